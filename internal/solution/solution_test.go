package solution

import (
	"context"
	"errors"
	"testing"

	"examstruct/internal/document"
	"examstruct/internal/marker"
	"examstruct/internal/oracle"
)

// fakeOracle returns canned pairings for solution matching.
type fakeOracle struct {
	pairings []oracle.Pairing
	err      error
	calls    int
}

func (f *fakeOracle) Propose(ctx context.Context, doc *document.Document) ([]marker.Candidate, error) {
	return nil, nil
}

func (f *fakeOracle) MatchSolutions(ctx context.Context, exercises []oracle.ExerciseRef, pages []oracle.PagePreview) ([]oracle.Pairing, error) {
	f.calls++
	return f.pairings, f.err
}

func TestMatch_NoOrphansRunsNothing(t *testing.T) {
	fake := &fakeOracle{}
	m := NewMatcher(fake, 500, nil)

	got := m.Match(context.Background(), map[string]int{"1": 1}, nil, nil)
	if got != nil {
		t.Errorf("expected no matches, got %d", len(got))
	}
	adj, app, orc := m.StrategyRuns()
	if adj != 0 || app != 0 || orc != 0 {
		t.Errorf("expected zero strategy runs, got %d/%d/%d", adj, app, orc)
	}
	if fake.calls != 0 {
		t.Errorf("expected oracle never called, got %d calls", fake.calls)
	}
}

func TestMatch_AdjacentPage(t *testing.T) {
	m := NewMatcher(nil, 500, nil)

	matches := m.Match(context.Background(),
		map[string]int{"3": 5},
		[]int{6},
		map[int]string{6: "3. The solution proceeds by induction on n."},
	)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	got := matches[0]
	if got.ExerciseNumber != "3" || got.SolutionPage != 6 {
		t.Errorf("expected exercise 3 on page 6, got %q on %d", got.ExerciseNumber, got.SolutionPage)
	}
	if got.Confidence != ConfidenceAdjacency {
		t.Errorf("expected confidence %.1f, got %.1f", ConfidenceAdjacency, got.Confidence)
	}
}

func TestMatch_AdjacentRequiresReference(t *testing.T) {
	m := NewMatcher(nil, 500, nil)

	// Page 6 follows exercise 3's page but never references it.
	matches := m.Match(context.Background(),
		map[string]int{"3": 5},
		[]int{6},
		map[int]string{6: "Unrelated appendix material about grading policy."},
	)
	for _, got := range matches {
		if got.Confidence == ConfidenceAdjacency {
			t.Errorf("unexpected adjacency match: %+v", got)
		}
	}
}

func TestMatch_AppendixLayout(t *testing.T) {
	m := NewMatcher(nil, 500, nil)

	matches := m.Match(context.Background(),
		map[string]int{"1": 1, "2": 2},
		[]int{9, 10},
		map[int]string{
			9:  "1) Answer to the first exercise with full working shown.",
			10: "2) Answer to the second exercise with full working shown.",
		},
	)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	for _, got := range matches {
		if got.Confidence != ConfidenceAppendix {
			t.Errorf("expected appendix confidence for exercise %q, got %.1f", got.ExerciseNumber, got.Confidence)
		}
	}
}

func TestMatch_AppendixClaimsExerciseOnce(t *testing.T) {
	m := NewMatcher(nil, 500, nil)

	// Both orphan pages reference exercise 1; only the first claims it.
	matches := m.Match(context.Background(),
		map[string]int{"1": 1},
		[]int{8, 9},
		map[int]string{
			8: "1) First answer candidate.",
			9: "1) Second answer candidate.",
		},
	)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].SolutionPage != 8 {
		t.Errorf("expected earliest page 8, got %d", matches[0].SolutionPage)
	}
}

func TestMatch_OracleFallback(t *testing.T) {
	fake := &fakeOracle{pairings: []oracle.Pairing{{ExerciseNumber: "2", SolutionPage: 7}}}
	m := NewMatcher(fake, 500, nil)

	matches := m.Match(context.Background(),
		map[string]int{"2": 3},
		[]int{7},
		map[int]string{7: "A page of prose that never cites the number at all."},
	)
	if len(matches) != 1 {
		t.Fatalf("expected 1 oracle match, got %d", len(matches))
	}
	if matches[0].Confidence != ConfidenceOracle {
		t.Errorf("expected oracle confidence, got %.1f", matches[0].Confidence)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 oracle call, got %d", fake.calls)
	}
}

func TestMatch_OracleOutOfRangeDiscarded(t *testing.T) {
	fake := &fakeOracle{pairings: []oracle.Pairing{
		{ExerciseNumber: "99", SolutionPage: 7}, // unknown exercise
		{ExerciseNumber: "2", SolutionPage: 42}, // page not an orphan
	}}
	m := NewMatcher(fake, 500, nil)

	matches := m.Match(context.Background(),
		map[string]int{"2": 3},
		[]int{7},
		map[int]string{7: "Prose without references."},
	)
	if len(matches) != 0 {
		t.Errorf("expected malformed oracle pairs discarded, got %d", len(matches))
	}
}

func TestMatch_OracleErrorDegrades(t *testing.T) {
	fake := &fakeOracle{err: errors.New("oracle unavailable")}
	m := NewMatcher(fake, 500, nil)

	matches := m.Match(context.Background(),
		map[string]int{"2": 3},
		[]int{7},
		map[int]string{7: "Prose without references."},
	)
	if len(matches) != 0 {
		t.Errorf("expected no matches on oracle failure, got %d", len(matches))
	}
}

func TestMatch_EarlierStrategyWins(t *testing.T) {
	// The oracle contradicts the adjacency match; the adjacency match must
	// not be overwritten.
	fake := &fakeOracle{pairings: []oracle.Pairing{{ExerciseNumber: "3", SolutionPage: 9}}}
	m := NewMatcher(fake, 500, nil)

	matches := m.Match(context.Background(),
		map[string]int{"3": 5},
		[]int{6, 9},
		map[int]string{
			6: "3. The adjacency answer.",
			9: "Leftover prose page.",
		},
	)
	var forThree []Match
	for _, got := range matches {
		if got.ExerciseNumber == "3" {
			forThree = append(forThree, got)
		}
	}
	if len(forThree) != 1 {
		t.Fatalf("expected exactly 1 match for exercise 3, got %d", len(forThree))
	}
	if forThree[0].Confidence != ConfidenceAdjacency || forThree[0].SolutionPage != 6 {
		t.Errorf("expected adjacency match on page 6 to win, got %+v", forThree[0])
	}
}

func TestReferencesExercise_WindowBound(t *testing.T) {
	m := NewMatcher(nil, 10, nil)
	// The reference sits past the 10-character window.
	text := "aaaaaaaaaaaaaaa 7) answer"
	if m.referencesExercise(text, "7") {
		t.Error("expected reference outside window to be ignored")
	}
	if !m.referencesExercise("7) answer", "7") {
		t.Error("expected reference inside window to hit")
	}
}
