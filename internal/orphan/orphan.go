// Package orphan finds document pages unclaimed by any exercise span and
// scores them as solution-page candidates using structural, language-
// agnostic signals.
package orphan

import (
	"regexp"
	"strings"
)

// PageRange is an inclusive page interval claimed by one exercise span.
type PageRange struct {
	Start int
	End   int
}

// Unclaimed returns, in ascending order, every page from 1..totalPages not
// covered by any claimed range.
func Unclaimed(totalPages int, claimed []PageRange) []int {
	taken := make(map[int]bool)
	for _, r := range claimed {
		end := r.End
		if end < r.Start {
			end = r.Start
		}
		for p := r.Start; p <= end; p++ {
			taken[p] = true
		}
	}
	var out []int
	for p := 1; p <= totalPages; p++ {
		if !taken[p] {
			out = append(out, p)
		}
	}
	return out
}

// AvgSentenceThreshold is the empirical average-sentence-length cutoff above
// which a page reads as explanatory prose rather than problem statements.
const AvgSentenceThreshold = 60

var bareNumberRe = regexp.MustCompile(`\b\d+\b`)

// LooksLikeSolution reports whether a page structurally resembles solution
// text: it carries none of the document's known exercise markers, and either
// its sentences run long (explanatory prose) or its opening is dense with
// bare numeric references. Used as a cost-control gate before cross-page
// matching, never as a hard filter.
func LooksLikeSolution(pageText string, knownMarkers []string, window int) bool {
	lower := strings.ToLower(pageText)
	for _, m := range knownMarkers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			return false
		}
	}

	sentences := splitSentences(pageText)
	if len(sentences) == 0 {
		return false
	}
	total := 0
	for _, s := range sentences {
		total += len(s)
	}
	if total/len(sentences) > AvgSentenceThreshold {
		return true
	}

	if window <= 0 || window > len(pageText) {
		window = len(pageText)
	}
	return len(bareNumberRe.FindAllString(pageText[:window], -1)) >= 2
}

// splitSentences does basic terminator-based sentence splitting; exact
// linguistic boundaries are not required for a length heuristic.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
