package hierarchy

import (
	"strings"
	"testing"

	"examstruct/internal/document"
	"examstruct/internal/marker"
)

func mustDoc(t *testing.T, pages ...document.Page) *document.Document {
	t.Helper()
	doc, err := document.New(pages)
	if err != nil {
		t.Fatalf("building document: %v", err)
	}
	return doc
}

func resolvedAt(t *testing.T, doc *document.Document, m string, c marker.Candidate) marker.Resolved {
	t.Helper()
	start := strings.Index(doc.Text(), m)
	if start < 0 {
		t.Fatalf("marker %q not in document", m)
	}
	c.Marker = m
	return marker.Resolved{Candidate: c, Start: start}
}

func TestBuild_SpansTileDocument(t *testing.T) {
	doc := mustDoc(t, document.Page{Number: 1, Text: "Exercise 1\n" + strings.Repeat("first body text. ", 5) + "\nExercise 2\n" + strings.Repeat("second body text. ", 5)})
	resolved := []marker.Resolved{
		resolvedAt(t, doc, "Exercise 1", marker.Candidate{Number: "1", Page: 1}),
		resolvedAt(t, doc, "Exercise 2", marker.Candidate{Number: "2", Page: 1}),
	}

	spans := Build(resolved, doc, 20, nil)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].End != spans[1].Start {
		t.Errorf("expected first span to end at second start: end=%d start=%d", spans[0].End, spans[1].Start)
	}
	if spans[1].End != len(doc.Text()) {
		t.Errorf("expected last span to end at document end %d, got %d", len(doc.Text()), spans[1].End)
	}
	if spans[0].Start != 0 {
		t.Errorf("expected first span at 0, got %d", spans[0].Start)
	}
}

func TestBuild_SubQuestionContext(t *testing.T) {
	text := "Exercise 1 intro describing the shared setup for every part.\n" +
		"a) First sub-question with enough text to survive cleaning.\n" +
		"b) Second sub-question with enough text to survive cleaning."
	doc := mustDoc(t, document.Page{Number: 1, Text: text})

	resolved := []marker.Resolved{
		resolvedAt(t, doc, "Exercise 1", marker.Candidate{Number: "1", Page: 1}),
		resolvedAt(t, doc, "a)", marker.Candidate{Number: "1a", Page: 1, IsSub: true, ParentNumber: "1", SubMarker: "a"}),
		resolvedAt(t, doc, "b)", marker.Candidate{Number: "1b", Page: 1, IsSub: true, ParentNumber: "1", SubMarker: "b"}),
	}

	spans := Build(resolved, doc, 20, nil)
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	wantContext := "Exercise 1 intro describing the shared setup for every part.\n"
	for _, s := range spans[1:] {
		if !s.IsSubQuestion {
			t.Errorf("expected span %q to be a sub-question", s.ExerciseNumber)
		}
		if s.Context != wantContext {
			t.Errorf("expected shared context %q, got %q", wantContext, s.Context)
		}
		if s.ParentNumber != "1" {
			t.Errorf("expected parent 1, got %q", s.ParentNumber)
		}
		assembled := s.AssembledText()
		if !strings.HasPrefix(assembled, "Exercise 1 intro") {
			t.Errorf("expected assembled text to start with the parent intro, got %q", assembled[:30])
		}
		if !strings.Contains(assembled, s.Text) {
			t.Error("expected assembled text to contain the span's own text")
		}
	}
}

func TestBuild_OrphanSubBecomesRoot(t *testing.T) {
	text := "a) A sub-question arriving before any parent marker exists here.\n" +
		"Exercise 2\nA regular exercise with a long enough statement body."
	doc := mustDoc(t, document.Page{Number: 1, Text: text})

	resolved := []marker.Resolved{
		resolvedAt(t, doc, "a)", marker.Candidate{Number: "0a", Page: 1, IsSub: true, SubMarker: "a"}),
		resolvedAt(t, doc, "Exercise 2", marker.Candidate{Number: "2", Page: 1}),
	}

	spans := Build(resolved, doc, 20, nil)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Context != "" {
		t.Errorf("expected orphan sub to have no inherited context, got %q", spans[0].Context)
	}
	if !spans[0].IsSubQuestion {
		t.Error("expected orphan span to keep its sub-question flag")
	}
}

func TestBuild_DropsShortSpans(t *testing.T) {
	text := "Exercise 1\nok\nExercise 2\n" + strings.Repeat("substantial body text. ", 4)
	doc := mustDoc(t, document.Page{Number: 1, Text: text})

	resolved := []marker.Resolved{
		resolvedAt(t, doc, "Exercise 1", marker.Candidate{Number: "1", Page: 1}),
		resolvedAt(t, doc, "Exercise 2", marker.Candidate{Number: "2", Page: 1}),
	}

	spans := Build(resolved, doc, 20, nil)
	if len(spans) != 1 {
		t.Fatalf("expected short span to be dropped, got %d spans", len(spans))
	}
	if spans[0].ExerciseNumber != "2" {
		t.Errorf("expected surviving exercise 2, got %q", spans[0].ExerciseNumber)
	}
}

func TestBuild_EndPageFromNextMarker(t *testing.T) {
	doc := mustDoc(t,
		document.Page{Number: 1, Text: "Exercise 1\n" + strings.Repeat("page one body. ", 4)},
		document.Page{Number: 2, Text: strings.Repeat("continuation on page two. ", 4)},
		document.Page{Number: 3, Text: "Exercise 2\n" + strings.Repeat("page three body. ", 4)},
	)
	resolved := []marker.Resolved{
		resolvedAt(t, doc, "Exercise 1", marker.Candidate{Number: "1", Page: 1}),
		resolvedAt(t, doc, "Exercise 2", marker.Candidate{Number: "2", Page: 3}),
	}

	spans := Build(resolved, doc, 20, nil)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Page != 1 || spans[0].EndPage != 2 {
		t.Errorf("expected first span pages 1..2 (ends where exercise 2 starts), got %d..%d", spans[0].Page, spans[0].EndPage)
	}
	if spans[1].Page != 3 || spans[1].EndPage != 3 {
		t.Errorf("expected second span pages 3..3, got %d..%d", spans[1].Page, spans[1].EndPage)
	}
}

func TestBuild_StableIDs(t *testing.T) {
	doc := mustDoc(t, document.Page{Number: 1, Text: "Exercise 1\n" + strings.Repeat("body text here. ", 4)})
	resolved := []marker.Resolved{
		resolvedAt(t, doc, "Exercise 1", marker.Candidate{Number: "1", Page: 1}),
	}

	a := Build(resolved, doc, 20, nil)
	b := Build(resolved, doc, 20, nil)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected 1 span per run, got %d and %d", len(a), len(b))
	}
	if a[0].ID != b[0].ID {
		t.Errorf("expected stable IDs across runs, got %q and %q", a[0].ID, b[0].ID)
	}
	if !strings.HasPrefix(a[0].ID, "ex_0001_") {
		t.Errorf("expected sequence-prefixed ID, got %q", a[0].ID)
	}
}

func TestBuild_Empty(t *testing.T) {
	doc := mustDoc(t, document.Page{Number: 1, Text: "anything"})
	if spans := Build(nil, doc, 20, nil); spans != nil {
		t.Errorf("expected nil spans for no markers, got %d", len(spans))
	}
}

func TestCleanText_StripsPageLabels(t *testing.T) {
	in := "Statement of the problem.\nPage 4\nMore of the statement.\n\n\n\nEnd."
	out := cleanText(in)
	if strings.Contains(out, "Page 4") {
		t.Errorf("expected page label removed, got %q", out)
	}
	if strings.Contains(out, "\n\n\n") {
		t.Errorf("expected blank runs squeezed, got %q", out)
	}
}
