// Package oracle defines the capability interface for the external
// classification service that proposes exercise markers and solution
// pairings, plus the Anthropic-backed implementation. The rest of the
// engine depends only on the interface, never on a provider identity, and
// treats every answer as a hint to be verified rather than trusted.
package oracle

import (
	"context"

	"examstruct/internal/document"
	"examstruct/internal/marker"
)

// ExerciseRef identifies one unmatched exercise for solution pairing.
type ExerciseRef struct {
	Number string
	Page   int
}

// PagePreview is a short text preview of one orphan page.
type PagePreview struct {
	Page    int
	Preview string
}

// Pairing is one exercise/solution-page pair returned by the oracle.
// Callers must validate both ids against their candidate sets before use.
type Pairing struct {
	ExerciseNumber string
	SolutionPage   int
}

// Oracle is the classification capability consumed by the recovery engine.
// Both calls are single synchronous request/response exchanges; failures and
// malformed answers must be treated by callers as "no proposal", never as
// fatal.
type Oracle interface {
	// Propose asks for candidate exercise markers over a prefix of the
	// document. The returned candidates carry page and line hints only;
	// positions are resolved separately.
	Propose(ctx context.Context, doc *document.Document) ([]marker.Candidate, error)

	// MatchSolutions asks which orphan pages answer which unmatched
	// exercises.
	MatchSolutions(ctx context.Context, exercises []ExerciseRef, pages []PagePreview) ([]Pairing, error)
}
