package oracle

import (
	"strings"
	"testing"

	"examstruct/internal/document"
)

func TestParseProposal_Valid(t *testing.T) {
	text := `{"exercises": [
		{"exercise_number": "1", "page": 1, "end_page": 2, "marker": "Exercise 1", "line_hint": 3, "is_sub_question": false},
		{"exercise_number": "1a", "page": 1, "marker": "a)", "line_hint": 8, "is_sub_question": true, "parent_exercise": "1", "sub_question_marker": "a"}
	], "total_count": 2, "notes": ""}`

	cands, err := parseProposal(text, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].Number != "1" || cands[0].EndPage != 2 {
		t.Errorf("expected exercise 1 with end page 2, got %+v", cands[0])
	}
	if !cands[1].IsSub || cands[1].ParentNumber != "1" || cands[1].SubMarker != "a" {
		t.Errorf("expected sub-question of 1, got %+v", cands[1])
	}
}

func TestParseProposal_DropsInvalidEntries(t *testing.T) {
	text := `{"exercises": [
		{"exercise_number": "1", "page": 1, "marker": "Exercise 1"},
		{"exercise_number": "", "page": 1, "marker": "Exercise ?"},
		{"exercise_number": "2", "page": 1, "marker": ""},
		{"exercise_number": "3", "page": 0, "marker": "Exercise 3"},
		{"exercise_number": "4", "page": 99, "marker": "Exercise 4"}
	], "total_count": 5, "notes": ""}`

	cands, err := parseProposal(text, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected only the valid candidate, got %d", len(cands))
	}
	if cands[0].Number != "1" {
		t.Errorf("expected exercise 1, got %q", cands[0].Number)
	}
}

func TestParseProposal_InvalidEndPageCollapses(t *testing.T) {
	text := `{"exercises": [
		{"exercise_number": "1", "page": 3, "end_page": 2, "marker": "Exercise 1"},
		{"exercise_number": "2", "page": 3, "end_page": 99, "marker": "Exercise 2"}
	], "total_count": 2, "notes": ""}`

	cands, err := parseProposal(text, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range cands {
		if c.EndPage != 0 {
			t.Errorf("expected invalid end page dropped for exercise %q, got %d", c.Number, c.EndPage)
		}
		if c.HintedEndPage() != 3 {
			t.Errorf("expected hinted end page to collapse to start page, got %d", c.HintedEndPage())
		}
	}
}

func TestParseProposal_ExtractsEmbeddedObject(t *testing.T) {
	text := `Here is the analysis you asked for:
{"exercises": [{"exercise_number": "1", "page": 1, "marker": "Oppgave 1"}], "total_count": 1, "notes": ""}
Let me know if you need more.`

	cands, err := parseProposal(text, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 || cands[0].Marker != "Oppgave 1" {
		t.Errorf("expected embedded object to parse, got %+v", cands)
	}
}

func TestParseProposal_SortsByPageThenLine(t *testing.T) {
	text := `{"exercises": [
		{"exercise_number": "3", "page": 2, "line_hint": 1, "marker": "Exercise 3"},
		{"exercise_number": "2", "page": 1, "line_hint": 9, "marker": "Exercise 2"},
		{"exercise_number": "1", "page": 1, "line_hint": 2, "marker": "Exercise 1"}
	], "total_count": 3, "notes": ""}`

	cands, err := parseProposal(text, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"1", "2", "3"}
	for i, w := range want {
		if cands[i].Number != w {
			t.Errorf("position %d: expected exercise %q, got %q", i, w, cands[i].Number)
		}
	}
}

func TestParseProposal_Garbage(t *testing.T) {
	if _, err := parseProposal("not json at all", 5); err == nil {
		t.Error("expected error for non-JSON input")
	}
}

func TestParsePairings_BareArray(t *testing.T) {
	pairs, err := parsePairings(`[{"exercise_number": "1", "solution_page": 4}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 || pairs[0].SolutionPage != 4 {
		t.Errorf("expected one pairing on page 4, got %+v", pairs)
	}
}

func TestParsePairings_WrappedObject(t *testing.T) {
	pairs, err := parsePairings(`{"matches": [{"exercise_number": "2", "solution_page": 7}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 || pairs[0].ExerciseNumber != "2" {
		t.Errorf("expected one pairing for exercise 2, got %+v", pairs)
	}
}

func TestParsePairings_DropsInvalid(t *testing.T) {
	pairs, err := parsePairings(`[
		{"exercise_number": "1", "solution_page": 4},
		{"exercise_number": "", "solution_page": 4},
		{"exercise_number": "2", "solution_page": 0}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("expected invalid pairings dropped, got %d", len(pairs))
	}
}

func TestStripCodeBlock(t *testing.T) {
	in := "```json\n{\"exercises\": []}\n```"
	if got := stripCodeBlock(in); got != `{"exercises": []}` {
		t.Errorf("expected fence stripped, got %q", got)
	}
	plain := `{"exercises": []}`
	if got := stripCodeBlock(plain); got != plain {
		t.Errorf("expected plain text untouched, got %q", got)
	}
}

func TestBuildProposalPrompt_PageBanners(t *testing.T) {
	doc, err := document.New([]document.Page{
		{Number: 1, Text: "first page text"},
		{Number: 3, Text: "third page text"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := buildProposalPrompt(doc, DefaultMaxPromptChars)
	if !strings.Contains(prompt, "--- Page 1 ---") || !strings.Contains(prompt, "--- Page 3 ---") {
		t.Error("expected page banners for both pages")
	}
	if !strings.Contains(prompt, "first page text") {
		t.Error("expected page text in prompt")
	}
}

func TestBuildProposalPrompt_Truncates(t *testing.T) {
	doc, err := document.New([]document.Page{
		{Number: 1, Text: strings.Repeat("x", 2000)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := buildProposalPrompt(doc, 500)
	// The rendered document portion is bounded; the template adds a fixed
	// amount on top.
	if len(prompt) > 500+len(proposalUserTemplate) {
		t.Errorf("expected truncated prompt, got %d chars", len(prompt))
	}
}
