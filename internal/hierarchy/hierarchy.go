// Package hierarchy turns an ordered list of resolved markers into a forest
// of exercise spans: parent exercises with nested sub-questions, each owning
// a contiguous slice of the document.
package hierarchy

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"examstruct/internal/document"
	"examstruct/internal/marker"
)

// Span is a contiguous, non-overlapping range of document text owned by one
// exercise or sub-question. End is exclusive; spans tile the claimed portion
// of the document in order.
type Span struct {
	ID             string
	ExerciseNumber string
	Start          int
	End            int
	Page           int
	EndPage        int
	IsSubQuestion  bool
	ParentNumber   string
	SubMarker      string
	Context        string // parent's lead-in text, shared by all siblings
	Text           string // cleaned own span text
}

// AssembledText returns the text of the span made self-contained: for a
// sub-question, the shared parent context followed by its own text.
func (s Span) AssembledText() string {
	if s.Context == "" {
		return s.Text
	}
	return s.Context + "\n\n" + s.Text
}

// Build walks resolved markers in document order. Each parent marker opens a
// new root span; each sub marker attaches to the most recent parent, or
// becomes a root itself when no parent is open yet (an orphan sub-question,
// retained by design). Span ends are the next span's start, or document end
// for the last. Spans shorter than minChars after cleaning are dropped.
func Build(resolved []marker.Resolved, doc *document.Document, minChars int, log *slog.Logger) []Span {
	if log == nil {
		log = slog.Default()
	}
	if len(resolved) == 0 {
		return nil
	}

	text := doc.Text()
	index := doc.Index()

	type node struct {
		r          marker.Resolved
		end        int
		parentIdx  int // -1 for roots
		firstChild int // start offset of first child; -1 if none
	}
	nodes := make([]node, len(resolved))
	currentParent := -1
	for i, r := range resolved {
		nodes[i] = node{r: r, parentIdx: -1, firstChild: -1}
		if !r.IsSub {
			currentParent = i
			continue
		}
		if currentParent < 0 {
			log.Warn("sub-question marker with no open parent, keeping as root",
				"exercise", r.Number, "marker", r.Marker)
			continue
		}
		nodes[i].parentIdx = currentParent
		if nodes[currentParent].firstChild < 0 {
			nodes[currentParent].firstChild = r.Start
		}
	}

	// Second pass: each span ends where the next begins.
	for i := range nodes {
		if i+1 < len(nodes) {
			nodes[i].end = nodes[i+1].r.Start
		} else {
			nodes[i].end = len(text)
		}
	}

	var spans []Span
	for _, n := range nodes {
		own := cleanText(text[n.r.Start:n.end])
		if len(strings.TrimSpace(own)) < minChars {
			log.Warn("dropping short span", "exercise", n.r.Number, "chars", len(own))
			continue
		}

		s := Span{
			ExerciseNumber: n.r.Number,
			Start:          n.r.Start,
			End:            n.end,
			Page:           index.PageOf(n.r.Start),
			IsSubQuestion:  n.r.IsSub,
			ParentNumber:   n.r.ParentNumber,
			SubMarker:      n.r.SubMarker,
			Text:           own,
		}
		if n.end > n.r.Start {
			s.EndPage = index.PageOf(n.end - 1)
		} else {
			s.EndPage = s.Page
		}
		if n.parentIdx >= 0 {
			p := nodes[n.parentIdx]
			if s.ParentNumber == "" {
				s.ParentNumber = p.r.Number
			}
			if p.firstChild > p.r.Start {
				s.Context = text[p.r.Start:p.firstChild]
			}
		}
		s.ID = spanID(len(spans)+1, s.ExerciseNumber, s.Start)
		spans = append(spans, s)
	}
	return spans
}

// spanID derives a stable short identifier from the span's position in the
// document, so reruns over identical input produce identical IDs.
func spanID(seq int, number string, start int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d_%d", number, start, seq)))
	return fmt.Sprintf("ex_%04d_%x", seq, sum[:6])
}

var (
	blankRunRe  = regexp.MustCompile(`\n\s*\n\s*\n+`)
	pageLabelRe = regexp.MustCompile(`(?im)(?:^|\n)(?:Page|Pagina)[ \t]+\d+[ \t]*(?:\n|$)`)
)

// cleanText squeezes excessive blank lines and strips stray page-number
// lines left behind by the renderer.
func cleanText(s string) string {
	s = pageLabelRe.ReplaceAllString(s, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
