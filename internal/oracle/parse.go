package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"examstruct/internal/marker"
)

type proposalEntry struct {
	ExerciseNumber    string `json:"exercise_number"`
	Page              int    `json:"page"`
	EndPage           *int   `json:"end_page"`
	Marker            string `json:"marker"`
	LineHint          int    `json:"line_hint"`
	IsSubQuestion     bool   `json:"is_sub_question"`
	ParentExercise    string `json:"parent_exercise"`
	SubQuestionMarker string `json:"sub_question_marker"`
}

type proposalResponse struct {
	Exercises  []proposalEntry `json:"exercises"`
	TotalCount int             `json:"total_count"`
	Notes      string          `json:"notes"`
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseProposal decodes the oracle's boundary answer into marker candidates.
// Entries with an empty marker or a page outside 1..maxPage are dropped;
// end-page hints outside the valid range collapse to the start page. The
// result is sorted by page, then line hint.
func parseProposal(text string, maxPage int) ([]marker.Candidate, error) {
	var resp proposalResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		// The model sometimes surrounds the object with prose; try the
		// outermost JSON object before giving up.
		m := jsonObjectRe.FindString(text)
		if m == "" {
			return nil, fmt.Errorf("parse proposal: %w", err)
		}
		if err := json.Unmarshal([]byte(m), &resp); err != nil {
			return nil, fmt.Errorf("parse proposal: %w", err)
		}
	}

	var out []marker.Candidate
	for _, e := range resp.Exercises {
		if e.Marker == "" || e.ExerciseNumber == "" {
			continue
		}
		if e.Page < 1 || e.Page > maxPage {
			continue
		}
		c := marker.Candidate{
			Number:       e.ExerciseNumber,
			Marker:       e.Marker,
			Page:         e.Page,
			LineHint:     e.LineHint,
			IsSub:        e.IsSubQuestion,
			ParentNumber: e.ParentExercise,
			SubMarker:    e.SubQuestionMarker,
		}
		if e.EndPage != nil && *e.EndPage >= e.Page && *e.EndPage <= maxPage {
			c.EndPage = *e.EndPage
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].LineHint < out[j].LineHint
	})
	return out, nil
}

type pairingEntry struct {
	ExerciseNumber string `json:"exercise_number"`
	SolutionPage   int    `json:"solution_page"`
}

type pairingResponse struct {
	Matches []pairingEntry `json:"matches"`
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// parsePairings decodes the solution-match answer, accepting either a bare
// array or an object with a "matches" field.
func parsePairings(text string) ([]Pairing, error) {
	var entries []pairingEntry
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		var resp pairingResponse
		if err2 := json.Unmarshal([]byte(text), &resp); err2 == nil {
			entries = resp.Matches
		} else if m := jsonArrayRe.FindString(text); m != "" {
			if err3 := json.Unmarshal([]byte(m), &entries); err3 != nil {
				return nil, fmt.Errorf("parse pairings: %w", err3)
			}
		} else {
			return nil, fmt.Errorf("parse pairings: %w", err)
		}
	}

	var out []Pairing
	for _, e := range entries {
		if e.ExerciseNumber == "" || e.SolutionPage < 1 {
			continue
		}
		out = append(out, Pairing{ExerciseNumber: e.ExerciseNumber, SolutionPage: e.SolutionPage})
	}
	return out, nil
}
