// Package structure is the per-document recovery pipeline: candidate
// markers (oracle or pattern detection) -> resolved offsets -> span
// hierarchy -> orphan pages -> solution matches. Every stage degrades to a
// narrower result instead of failing the document.
package structure

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"examstruct/internal/document"
	"examstruct/internal/hierarchy"
	"examstruct/internal/marker"
	"examstruct/internal/oracle"
	"examstruct/internal/orphan"
	"examstruct/internal/pattern"
	"examstruct/internal/solution"
)

// Config carries the tunable constants of the pipeline. The adjacency
// order and window are empirical; they are configuration, not truths.
type Config struct {
	AdjacencyOrder     []int
	AdjacencyWindow    int
	MinExerciseChars   int // spans shorter than this are dropped
	MinPageChars       int // pages shorter than this never become fallback spans
	MinStructuralSpan  int // span filter for structural numbering fallback
	PatternPrefixChars int

	// OnPhase, when set, receives coarse progress notifications.
	OnPhase func(phase string)
}

// DefaultConfig mirrors the empirically chosen constants of the matcher.
func DefaultConfig() Config {
	return Config{
		AdjacencyOrder:     marker.DefaultAdjacencyOrder,
		AdjacencyWindow:    solution.DefaultReferenceWindow,
		MinExerciseChars:   20,
		MinPageChars:       80,
		MinStructuralSpan:  30,
		PatternPrefixChars: 20000,
	}
}

// Result is the recovered structure of one document.
type Result struct {
	Spans   []hierarchy.Span `json:"spans"`
	Matches []solution.Match `json:"matches"`
}

// Recover runs the full pipeline over one document. It never fails: every
// error path degrades (oracle trouble falls back to pattern detection, no
// markers fall back to page spans, an empty document yields an empty
// result).
func Recover(ctx context.Context, doc *document.Document, orc oracle.Oracle, cache *pattern.Cache, cfg Config, log *slog.Logger) *Result {
	if log == nil {
		log = slog.Default()
	}
	if doc == nil || doc.PageCount() == 0 || strings.TrimSpace(doc.Text()) == "" {
		return &Result{}
	}

	phase(cfg, "detecting")
	cands := proposeCandidates(ctx, doc, orc, cache, cfg, log)
	if len(cands) == 0 {
		log.Info("no marker candidates, falling back to page spans")
		return &Result{Spans: pageSpans(doc, cfg.MinPageChars)}
	}

	phase(cfg, "locating")
	locator := marker.NewLocator(doc, cfg.AdjacencyOrder, log)
	resolved := locator.LocateAll(cands)
	if len(resolved) == 0 {
		log.Info("no candidate could be located, falling back to page spans")
		return &Result{Spans: pageSpans(doc, cfg.MinPageChars)}
	}

	phase(cfg, "building")
	spans := hierarchy.Build(resolved, doc, cfg.MinExerciseChars, log)
	if len(spans) == 0 {
		return &Result{Spans: pageSpans(doc, cfg.MinPageChars)}
	}

	result := &Result{Spans: spans}

	orphanPages := orphan.Unclaimed(doc.LastPageNumber(), claimedRanges(resolved))
	if len(orphanPages) == 0 {
		return result
	}
	if !worthMatching(doc, resolved, orphanPages, cfg.AdjacencyWindow) {
		log.Debug("orphan pages do not look like solutions, skipping matcher",
			"orphans", len(orphanPages))
		return result
	}

	phase(cfg, "matching")
	matcher := solution.NewMatcher(orc, cfg.AdjacencyWindow, log)
	result.Matches = matcher.Match(ctx, exercisePages(spans), orphanPages, orphanTexts(doc, orphanPages))
	log.Info("structure recovered",
		"spans", len(result.Spans), "orphan_pages", len(orphanPages), "solutions", len(result.Matches))
	return result
}

// proposeCandidates asks the oracle first and degrades to pattern detection
// on failure or empty answers: a statistically inferred keyword convention,
// then structural numbering patterns.
func proposeCandidates(ctx context.Context, doc *document.Document, orc oracle.Oracle, cache *pattern.Cache, cfg Config, log *slog.Logger) []marker.Candidate {
	if orc != nil {
		cands, err := orc.Propose(ctx, doc)
		if err != nil {
			log.Warn("oracle proposal failed, falling back to pattern detection", "error", err)
		} else if len(cands) > 0 {
			return cands
		}
	}

	text := doc.Text()
	if compiled := cache.DetectKeyword(text, cfg.PatternPrefixChars); compiled != nil {
		log.Info("detected marker keyword", "keyword", compiled.Keyword)
		if found := pattern.ScanKeyword(text, compiled); len(found) > 0 {
			return foundToCandidates(doc, found, false)
		}
	}
	if found := pattern.ScanStructural(text, cfg.MinStructuralSpan); len(found) > 0 {
		return foundToCandidates(doc, found, true)
	}
	return nil
}

// foundToCandidates turns exact pattern hits into candidates with page and
// line hints derived from their own offsets, so the locator resolves them
// on the first strategy.
func foundToCandidates(doc *document.Document, found []pattern.Found, structural bool) []marker.Candidate {
	index := doc.Index()
	text := doc.Text()
	out := make([]marker.Candidate, 0, len(found))
	for _, f := range found {
		page := index.PageOf(f.Offset)
		pageStart := index.PageStart(page)
		number := f.Number
		if structural {
			number = pattern.NormalizeNumber(number)
		}
		out = append(out, marker.Candidate{
			Number:   number,
			Marker:   f.Marker,
			Page:     page,
			LineHint: 1 + strings.Count(text[pageStart:f.Offset], "\n"),
		})
	}
	return out
}

// pageSpans is the last-resort degradation: one span per substantial page.
// Pages below the minimum character threshold are dropped rather than
// treated as exercises of their own.
func pageSpans(doc *document.Document, minChars int) []hierarchy.Span {
	index := doc.Index()
	var resolved []marker.Resolved
	for _, p := range doc.Pages() {
		if len(strings.TrimSpace(p.Text)) < minChars {
			continue
		}
		resolved = append(resolved, marker.Resolved{
			Candidate: marker.Candidate{
				Number: strconv.Itoa(p.Number),
				Marker: "",
				Page:   p.Number,
			},
			Start: index.PageStart(p.Number),
		})
	}
	return hierarchy.Build(resolved, doc, minChars, nil)
}

// claimedRanges collects the page intervals claimed by located markers,
// widened by the oracle's end-page hints. Span end pages never claim pages
// here: tiling stretches the last span to the end of the document, which
// would swallow every trailing solution page.
func claimedRanges(resolved []marker.Resolved) []orphan.PageRange {
	out := make([]orphan.PageRange, 0, len(resolved))
	for _, r := range resolved {
		out = append(out, orphan.PageRange{Start: r.Page, End: r.HintedEndPage()})
	}
	return out
}

// worthMatching is the cost-control gate before cross-page matching: the
// orphans must follow exercise pages (solution layout) or trail the last
// exercise (appendix layout), or at least one orphan must structurally read
// as solution text. Exercise pages come from the located markers, for the
// same reason claimedRanges ignores span ends.
func worthMatching(doc *document.Document, resolved []marker.Resolved, orphanPages []int, window int) bool {
	endPages := make(map[int]bool, len(resolved))
	last := 0
	for _, r := range resolved {
		end := r.HintedEndPage()
		endPages[end] = true
		if end > last {
			last = end
		}
	}
	for _, p := range orphanPages {
		if endPages[p-1] {
			return true
		}
	}
	if len(orphanPages) > 0 && orphanPages[0] > last {
		return true
	}

	markers := make([]string, 0, len(resolved))
	for _, r := range resolved {
		markers = append(markers, r.Marker)
	}
	for _, p := range orphanPages {
		if text, ok := doc.PageText(p); ok && orphan.LooksLikeSolution(text, markers, window) {
			return true
		}
	}
	return false
}

func exercisePages(spans []hierarchy.Span) map[string]int {
	out := make(map[string]int, len(spans))
	for _, s := range spans {
		if s.ExerciseNumber != "" {
			out[s.ExerciseNumber] = s.Page
		}
	}
	return out
}

func orphanTexts(doc *document.Document, orphanPages []int) map[int]string {
	out := make(map[int]string, len(orphanPages))
	for _, p := range orphanPages {
		if text, ok := doc.PageText(p); ok {
			out[p] = text
		}
	}
	return out
}

func phase(cfg Config, name string) {
	if cfg.OnPhase != nil {
		cfg.OnPhase(name)
	}
}
