package marker

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"examstruct/internal/document"
)

// DefaultAdjacencyOrder is the page-escalation order used when a marker is
// not found on its hinted page. Covers the oracle's common off-by-one and
// off-by-two page attribution errors.
var DefaultAdjacencyOrder = []int{-1, 1, -2, 2}

// Strategy names, in cascade order.
const (
	StrategyExact    = "exact"
	StrategyFold     = "fold"
	StrategyNorm     = "normalize"
	StrategyCollapse = "collapse"
	StrategyTokens   = "tokens"
	StrategyNumber   = "number"
	StrategyBare     = "bare"
)

type strategy struct {
	name string
	find func(text string, c Candidate) []int
}

// Locator resolves approximate marker candidates to exact document-wide
// offsets using a cascade of increasingly permissive matching strategies.
type Locator struct {
	doc   *document.Document
	order []int
	log   *slog.Logger

	strategies []strategy
	attempts   map[string]int
	hits       map[string]int
}

// NewLocator builds a locator for one document. order is the adjacent-page
// escalation order; nil selects DefaultAdjacencyOrder.
func NewLocator(doc *document.Document, order []int, log *slog.Logger) *Locator {
	if order == nil {
		order = DefaultAdjacencyOrder
	}
	if log == nil {
		log = slog.Default()
	}
	return &Locator{
		doc:   doc,
		order: order,
		log:   log,
		strategies: []strategy{
			{StrategyExact, findExact},
			{StrategyFold, findFold},
			{StrategyNorm, findNormalized},
			{StrategyCollapse, findCollapsed},
			{StrategyTokens, findTokens},
			{StrategyNumber, findNumberAnchored},
			{StrategyBare, findBareNumber},
		},
		attempts: make(map[string]int),
		hits:     make(map[string]int),
	}
}

// StrategyAttempts returns how many times the named strategy has run.
func (l *Locator) StrategyAttempts(name string) int { return l.attempts[name] }

// StrategyHits returns how many times the named strategy has succeeded.
func (l *Locator) StrategyHits(name string) int { return l.hits[name] }

// Locate resolves one candidate. It searches the hinted page first, then
// adjacent pages in escalation order, then every remaining page in index
// order. Returns false only after all pages and strategies are exhausted.
func (l *Locator) Locate(c Candidate) (Resolved, bool) {
	searched := make(map[int]bool)

	for _, pageNum := range l.searchOrder(c.Page) {
		if searched[pageNum] {
			continue
		}
		searched[pageNum] = true

		page, ok := l.doc.Page(pageNum)
		if !ok {
			continue
		}
		pos, ok := l.searchPage(page.Text, c)
		if !ok {
			continue
		}
		if pageNum != c.Page {
			l.log.Info("marker found on different page",
				"marker", c.Marker, "hinted_page", c.Page, "page", pageNum)
		}
		r := Resolved{Candidate: c, Start: l.doc.Index().PageStart(pageNum) + pos}
		r.Page = pageNum
		return r, true
	}
	return Resolved{}, false
}

// LocateAll resolves every candidate it can, dropping the rest with a
// warning, and returns the survivors sorted by start offset.
func (l *Locator) LocateAll(cands []Candidate) []Resolved {
	var out []Resolved
	for _, c := range cands {
		r, ok := l.Locate(c)
		if !ok {
			l.log.Warn("marker not found on any page",
				"marker", c.Marker, "exercise", c.Number, "hinted_page", c.Page)
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// searchOrder yields the hinted page, its neighbors per the escalation
// order, then every page of the document in index order.
func (l *Locator) searchOrder(hinted int) []int {
	var order []int
	order = append(order, hinted)
	for _, d := range l.order {
		order = append(order, hinted+d)
	}
	for _, p := range l.doc.Pages() {
		order = append(order, p.Number)
	}
	return order
}

// searchPage runs the cascade on one page. The first strategy that yields
// any occurrence wins; later strategies are never consulted.
func (l *Locator) searchPage(text string, c Candidate) (int, bool) {
	for _, s := range l.strategies {
		l.attempts[s.name]++
		positions := s.find(text, c)
		if len(positions) == 0 {
			continue
		}
		l.hits[s.name]++
		return selectByLineHint(text, positions, c.LineHint), true
	}
	return 0, false
}

// selectByLineHint picks the occurrence whose line number is numerically
// closest to the hint; ties break to the earliest offset.
func selectByLineHint(text string, positions []int, hint int) int {
	if len(positions) == 1 {
		return positions[0]
	}
	if hint < 1 {
		hint = 1
	}
	best := positions[0]
	bestDist := -1
	for _, pos := range positions {
		line := 1 + strings.Count(text[:min(pos, len(text))], "\n")
		dist := line - hint
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && pos < best) {
			best = pos
			bestDist = dist
		}
	}
	return best
}

// Strategy 1: exact substring.
func findExact(text string, c Candidate) []int {
	return indexAll(text, c.Marker)
}

// Strategy 2: case-insensitive substring.
func findFold(text string, c Candidate) []int {
	return indexAll(strings.ToLower(text), strings.ToLower(c.Marker))
}

// Strategy 3: Unicode-normalized match, NFC then NFKC. Handles accent,
// ligature and width variants introduced by OCR. Positions are mapped back
// to the original text via the marker's first token.
func findNormalized(text string, c Candidate) []int {
	for _, form := range []norm.Form{norm.NFC, norm.NFKC} {
		nt := strings.ToLower(form.String(text))
		nm := strings.ToLower(form.String(c.Marker))
		if strings.Contains(nt, nm) {
			if pos, ok := mapViaFirstToken(text, c.Marker); ok {
				return []int{pos}
			}
		}
	}
	return nil
}

// Strategy 4: whitespace-collapsed match, mapped back via the first token.
func findCollapsed(text string, c Candidate) []int {
	ct := strings.ToLower(collapseSpace(text))
	cm := strings.ToLower(collapseSpace(c.Marker))
	if cm == "" || !strings.Contains(ct, cm) {
		return nil
	}
	if pos, ok := mapViaFirstToken(text, c.Marker); ok {
		return []int{pos}
	}
	return nil
}

// Strategy 5: rebuild the marker as a token regex with flexible whitespace
// between tokens. Handles OCR-inserted spacing and line breaks.
func findTokens(text string, c Candidate) []int {
	tokens := strings.Fields(c.Marker)
	if len(tokens) < 2 {
		return nil
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(quoted, `\s+`))
	if err != nil {
		return nil
	}
	return matchStarts(re.FindAllStringIndex(text, -1))
}

var firstNumberRe = regexp.MustCompile(`\d+`)

// Strategy 6: any word token followed by the first number in the marker.
// Tolerates complete OCR corruption of the keyword, including an inserted
// line break between keyword and number.
func findNumberAnchored(text string, c Candidate) []int {
	num := firstNumberRe.FindString(c.Marker)
	if num == "" {
		return nil
	}
	re, err := regexp.Compile(`(?i)[\p{L}\p{N}]+\s+` + num + `\b`)
	if err != nil {
		return nil
	}
	return matchStarts(re.FindAllStringIndex(text, -1))
}

// Strategy 7: the bare exercise number, first with trailing punctuation at
// line start, then as a standalone token. Low specificity; last resort.
func findBareNumber(text string, c Candidate) []int {
	if c.Number == "" {
		return nil
	}
	quoted := regexp.QuoteMeta(c.Number)
	for _, p := range []string{
		`(?m)^[ \t]*` + quoted + `[\.\)\]:]`,
		`\b` + quoted + `\b`,
	} {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if m := re.FindAllStringIndex(text, -1); len(m) > 0 {
			return matchStarts(m)
		}
	}
	return nil
}

func indexAll(text, sub string) []int {
	if sub == "" {
		return nil
	}
	var out []int
	for from := 0; ; {
		i := strings.Index(text[from:], sub)
		if i < 0 {
			break
		}
		out = append(out, from+i)
		from += i + 1
	}
	return out
}

func matchStarts(matches [][]int) []int {
	if len(matches) == 0 {
		return nil
	}
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m[0]
	}
	return out
}

var spaceRunRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

// mapViaFirstToken approximates a position in the original text for a match
// found in a transformed copy, by locating the marker's first whitespace
// token case-insensitively.
func mapViaFirstToken(text, marker string) (int, bool) {
	fields := strings.Fields(marker)
	if len(fields) == 0 {
		return 0, false
	}
	i := strings.Index(strings.ToLower(text), strings.ToLower(fields[0]))
	if i < 0 {
		return 0, false
	}
	return i, true
}
