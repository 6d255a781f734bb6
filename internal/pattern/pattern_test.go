package pattern

import (
	"fmt"
	"strings"
	"testing"
)

func TestDetectKeyword_InfersConvention(t *testing.T) {
	text := "Aufgabe 1\nBerechnen Sie die Summe.\nAufgabe 2\nZeigen Sie die Behauptung.\nAufgabe 3\nLoesen Sie das System."
	p := DetectKeyword(text, 0)
	if p == nil {
		t.Fatal("expected a detected convention")
	}
	if p.Keyword != "aufgabe" {
		t.Errorf("expected keyword %q, got %q", "aufgabe", p.Keyword)
	}
}

func TestDetectKeyword_RequiresTwoDistinctNumbers(t *testing.T) {
	// "Chapter" precedes the same number twice; no convention emerges.
	text := "Chapter 1 introduces sets.\nChapter 1 again, repeated."
	if p := DetectKeyword(text, 0); p != nil {
		t.Errorf("expected nil, got keyword %q", p.Keyword)
	}
}

func TestDetectKeyword_MostDistinctNumbersWins(t *testing.T) {
	text := strings.Join([]string{
		"Section 1 overview",
		"Exercise 1 do this",
		"Exercise 2 do that",
		"Exercise 3 do more",
		"Section 2 closing",
	}, "\n")
	p := DetectKeyword(text, 0)
	if p == nil {
		t.Fatal("expected a detected convention")
	}
	if p.Keyword != "exercise" {
		t.Errorf("expected keyword %q, got %q", "exercise", p.Keyword)
	}
}

func TestDetectKeyword_TieBreaksToFirstSeen(t *testing.T) {
	text := "Oppgave 1 foo\nProblem 1 bar\nOppgave 2 baz\nProblem 2 qux"
	p := DetectKeyword(text, 0)
	if p == nil {
		t.Fatal("expected a detected convention")
	}
	if p.Keyword != "oppgave" {
		t.Errorf("expected first-seen keyword %q, got %q", "oppgave", p.Keyword)
	}
}

func TestDetectKeyword_PrefixLimit(t *testing.T) {
	head := "plain prose without numbering at all, filling the prefix. "
	tail := "\nExercise 1 x\nExercise 2 y"
	text := head + tail
	if p := DetectKeyword(text, len(head)); p != nil {
		t.Errorf("expected nil inside prefix limit, got %q", p.Keyword)
	}
	if p := DetectKeyword(text, 0); p == nil {
		t.Error("expected detection over the full text")
	}
}

func TestScanKeyword_OffsetsAnchorAtKeyword(t *testing.T) {
	text := "  Exercise 1\nSolve for x in the equation.\nExercise 2\nProve the identity holds."
	p := DetectKeyword(text, 0)
	if p == nil {
		t.Fatal("expected a detected convention")
	}
	found := ScanKeyword(text, p)
	if len(found) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(found))
	}
	// The first marker starts after the leading indentation.
	if found[0].Offset != 2 {
		t.Errorf("expected offset 2, got %d", found[0].Offset)
	}
	if found[0].Number != "1" || found[1].Number != "2" {
		t.Errorf("expected numbers 1 and 2, got %q and %q", found[0].Number, found[1].Number)
	}
	if found[0].Marker != "Exercise 1" {
		t.Errorf("expected marker %q, got %q", "Exercise 1", found[0].Marker)
	}
}

func TestScanKeyword_DottedNumbers(t *testing.T) {
	text := "Exercise 1.2\nbody\nExercise 1.3\nbody"
	p := DetectKeyword("Exercise 1 a\nExercise 2 b", 0)
	if p == nil {
		t.Fatal("expected convention")
	}
	found := ScanKeyword(text, p)
	if len(found) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(found))
	}
	if found[0].Number != "1.2" {
		t.Errorf("expected dotted number %q, got %q", "1.2", found[0].Number)
	}
}

func TestScanStructural_NumberedLines(t *testing.T) {
	text := "1. " + strings.Repeat("a", 40) + "\n2. " + strings.Repeat("b", 40) + "\n3. " + strings.Repeat("c", 40)
	found := ScanStructural(text, 30)
	if len(found) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(found))
	}
	if found[1].Number != "2" {
		t.Errorf("expected number 2, got %q", found[1].Number)
	}
}

func TestScanStructural_MinSpanFilter(t *testing.T) {
	// Dense list items: spans are far below the minimum, so the pattern is
	// rejected as a table of contents rather than exercises.
	text := "1. a\n2. b\n3. c\n4. d"
	if found := ScanStructural(text, 30); found != nil {
		t.Errorf("expected rejection of short spans, got %d markers", len(found))
	}
}

func TestScanStructural_RomanNumerals(t *testing.T) {
	text := "i. " + strings.Repeat("x", 40) + "\nii. " + strings.Repeat("y", 40)
	found := ScanStructural(text, 30)
	if len(found) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(found))
	}
	if NormalizeNumber(found[1].Number) != "2" {
		t.Errorf("expected roman ii to normalize to 2, got %q", NormalizeNumber(found[1].Number))
	}
}

func TestRomanValue(t *testing.T) {
	cases := map[string]int{
		"i":    1,
		"iv":   4,
		"IX":   9,
		"xii":  12,
		"xl":   40,
		"mcmxcix": 1999,
		"abc":  0,
		"":     0,
	}
	for in, want := range cases {
		if got := RomanValue(in); got != want {
			t.Errorf("RomanValue(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestCache_Memoizes(t *testing.T) {
	c := NewCache(8)
	text := "Exercise 1 alpha\nExercise 2 beta"

	first := c.DetectKeyword(text, 0)
	if first == nil {
		t.Fatal("expected detection")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}
	second := c.DetectKeyword(text, 0)
	if second == nil || second.Keyword != first.Keyword {
		t.Error("expected identical cached result")
	}
	if c.Len() != 1 {
		t.Errorf("expected cache size to stay 1, got %d", c.Len())
	}
}

func TestCache_CachesNegativeResults(t *testing.T) {
	c := NewCache(8)
	if c.DetectKeyword("no numbering here at all", 0) != nil {
		t.Fatal("expected nil detection")
	}
	if c.Len() != 1 {
		t.Errorf("expected negative result to be cached, got size %d", c.Len())
	}
}

func TestCache_BoundedLRU(t *testing.T) {
	c := NewCache(4)
	for i := 0; i < 10; i++ {
		c.DetectKeyword(fmt.Sprintf("Exercise %d a\nExercise %d b", i, i+1), 0)
	}
	if c.Len() != 4 {
		t.Errorf("expected cache bounded at 4, got %d", c.Len())
	}
}

func TestCache_NilCacheComputes(t *testing.T) {
	var c *Cache
	p := c.DetectKeyword("Exercise 1 a\nExercise 2 b", 0)
	if p == nil || p.Keyword != "exercise" {
		t.Error("expected nil cache to fall through to plain detection")
	}
	if c.Len() != 0 {
		t.Error("expected nil cache length 0")
	}
}
