// Package solution pairs orphan pages with the exercises they answer, using
// escalating strategies: adjacency, appendix position, then the oracle.
// Each strategy claims pages and exercises so later strategies only see the
// remainder, and a match is never overwritten by a lower-confidence one.
package solution

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"examstruct/internal/oracle"
)

// Confidence levels reflect which strategy produced a match.
const (
	ConfidenceAdjacency = 0.9
	ConfidenceAppendix  = 0.7
	ConfidenceOracle    = 0.6
)

// DefaultReferenceWindow is how deep into a page the reference check looks.
const DefaultReferenceWindow = 500

// Match is one exercise/solution pairing.
type Match struct {
	ExerciseNumber string  `json:"exercise_number"`
	ExercisePage   int     `json:"exercise_page"`
	SolutionText   string  `json:"solution_text"`
	SolutionPage   int     `json:"solution_page"`
	Confidence     float64 `json:"confidence"`
}

// Matcher runs the escalating strategy chain. The oracle is optional; a nil
// oracle simply skips the third strategy.
type Matcher struct {
	oracle oracle.Oracle
	window int
	log    *slog.Logger

	adjacencyRuns int
	appendixRuns  int
	oracleRuns    int
}

func NewMatcher(orc oracle.Oracle, window int, log *slog.Logger) *Matcher {
	if window <= 0 {
		window = DefaultReferenceWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{oracle: orc, window: window, log: log}
}

// StrategyRuns reports how many times each strategy has executed, for
// cost-control verification.
func (m *Matcher) StrategyRuns() (adjacency, appendix, oracleAssisted int) {
	return m.adjacencyRuns, m.appendixRuns, m.oracleRuns
}

// Match pairs orphan pages with exercises. With no orphan pages it returns
// immediately without running any strategy.
func (m *Matcher) Match(ctx context.Context, exercisePages map[string]int, orphanPages []int, pageTexts map[int]string) []Match {
	if len(orphanPages) == 0 {
		return nil
	}

	matches := m.matchAdjacent(exercisePages, orphanPages, pageTexts)

	remainingOrphans, unmatched := remainder(matches, exercisePages, orphanPages)
	if len(remainingOrphans) > 0 && len(unmatched) > 0 {
		matches = append(matches, m.matchAppendix(unmatched, exercisePages, remainingOrphans, pageTexts)...)
	}

	remainingOrphans, unmatched = remainder(matches, exercisePages, orphanPages)
	if len(remainingOrphans) > 0 && len(unmatched) > 0 && m.oracle != nil {
		matches = append(matches, m.matchWithOracle(ctx, unmatched, exercisePages, remainingOrphans, pageTexts)...)
	}

	return matches
}

// matchAdjacent pairs an exercise on page p with orphan page p+1 when that
// page references the exercise number near its top.
func (m *Matcher) matchAdjacent(exercisePages map[string]int, orphanPages []int, pageTexts map[int]string) []Match {
	m.adjacencyRuns++
	orphanSet := make(map[int]bool, len(orphanPages))
	for _, p := range orphanPages {
		orphanSet[p] = true
	}

	var matches []Match
	for _, num := range sortedKeys(exercisePages) {
		exPage := exercisePages[num]
		next := exPage + 1
		text, ok := pageTexts[next]
		if !ok || !orphanSet[next] {
			continue
		}
		if m.referencesExercise(text, num) {
			matches = append(matches, Match{
				ExerciseNumber: num,
				ExercisePage:   exPage,
				SolutionText:   text,
				SolutionPage:   next,
				Confidence:     ConfidenceAdjacency,
			})
			m.log.Debug("adjacent solution match", "exercise", num, "page", next)
		}
	}
	return matches
}

// matchAppendix scans remaining orphan pages in order and pairs them with
// any remaining exercise they reference, independent of adjacency. Covers
// documents that bundle all solutions at the end.
func (m *Matcher) matchAppendix(unmatched []string, exercisePages map[string]int, orphanPages []int, pageTexts map[int]string) []Match {
	m.appendixRuns++
	sorted := append([]int(nil), orphanPages...)
	sort.Ints(sorted)

	var matches []Match
	claimed := make(map[string]bool)
	for _, page := range sorted {
		text, ok := pageTexts[page]
		if !ok {
			continue
		}
		for _, num := range unmatched {
			if claimed[num] {
				continue
			}
			if m.referencesExercise(text, num) {
				claimed[num] = true
				matches = append(matches, Match{
					ExerciseNumber: num,
					ExercisePage:   exercisePages[num],
					SolutionText:   text,
					SolutionPage:   page,
					Confidence:     ConfidenceAppendix,
				})
				m.log.Debug("appendix solution match", "exercise", num, "page", page)
			}
		}
	}
	return matches
}

// matchWithOracle delegates the leftovers to the oracle. Only pairs whose
// exercise and page both belong to the candidate sets are accepted; anything
// malformed or out of range is discarded, never partially trusted.
func (m *Matcher) matchWithOracle(ctx context.Context, unmatched []string, exercisePages map[string]int, orphanPages []int, pageTexts map[int]string) []Match {
	m.oracleRuns++

	refs := make([]oracle.ExerciseRef, 0, len(unmatched))
	for _, num := range unmatched {
		refs = append(refs, oracle.ExerciseRef{Number: num, Page: exercisePages[num]})
	}
	sorted := append([]int(nil), orphanPages...)
	sort.Ints(sorted)
	previews := make([]oracle.PagePreview, 0, len(sorted))
	for _, page := range sorted {
		text, ok := pageTexts[page]
		if !ok {
			continue
		}
		if len(text) > 300 {
			text = text[:300]
		}
		previews = append(previews, oracle.PagePreview{Page: page, Preview: text})
	}

	pairings, err := m.oracle.MatchSolutions(ctx, refs, previews)
	if err != nil {
		m.log.Warn("oracle solution matching failed", "error", err)
		return nil
	}

	unmatchedSet := make(map[string]bool, len(unmatched))
	for _, num := range unmatched {
		unmatchedSet[num] = true
	}
	orphanSet := make(map[int]bool, len(orphanPages))
	for _, p := range orphanPages {
		orphanSet[p] = true
	}

	var matches []Match
	claimed := make(map[string]bool)
	for _, p := range pairings {
		text, ok := pageTexts[p.SolutionPage]
		if !ok || !unmatchedSet[p.ExerciseNumber] || !orphanSet[p.SolutionPage] || claimed[p.ExerciseNumber] {
			continue
		}
		claimed[p.ExerciseNumber] = true
		matches = append(matches, Match{
			ExerciseNumber: p.ExerciseNumber,
			ExercisePage:   exercisePages[p.ExerciseNumber],
			SolutionText:   text,
			SolutionPage:   p.SolutionPage,
			Confidence:     ConfidenceOracle,
		})
		m.log.Debug("oracle solution match", "exercise", p.ExerciseNumber, "page", p.SolutionPage)
	}
	return matches
}

// referencesExercise checks structurally whether a page's opening mentions
// the exercise number: at line start with punctuation, or as a standalone
// token. No language-specific vocabulary.
func (m *Matcher) referencesExercise(text, number string) bool {
	window := m.window
	if window > len(text) {
		window = len(text)
	}
	head := text[:window]
	quoted := regexp.QuoteMeta(number)
	for _, p := range []string{
		`(?m)^[ \t]*` + quoted + `[\.\)\]:\s]`,
		`\b` + quoted + `\b`,
	} {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(head) {
			return true
		}
	}
	return false
}

func remainder(matches []Match, exercisePages map[string]int, orphanPages []int) (orphans []int, unmatched []string) {
	claimedPages := make(map[int]bool, len(matches))
	claimedExercises := make(map[string]bool, len(matches))
	for _, m := range matches {
		claimedPages[m.SolutionPage] = true
		claimedExercises[m.ExerciseNumber] = true
	}
	for _, p := range orphanPages {
		if !claimedPages[p] {
			orphans = append(orphans, p)
		}
	}
	for _, num := range sortedKeys(exercisePages) {
		if !claimedExercises[num] {
			unmatched = append(unmatched, num)
		}
	}
	return orphans, unmatched
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
