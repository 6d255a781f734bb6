package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"examstruct/internal/document"
	"examstruct/internal/marker"
	"examstruct/internal/oracle"
	"examstruct/internal/parser"
	"examstruct/internal/pattern"
	"examstruct/internal/store"
	"examstruct/internal/structure"
)

// Worker processes a single exam document job.
type Worker struct {
	orc   oracle.Oracle
	store *store.Client
	cache *pattern.Cache
	cfg   structure.Config
	log   *slog.Logger
}

func NewWorker(orc oracle.Oracle, st *store.Client, cache *pattern.Cache, cfg structure.Config, log *slog.Logger) *Worker {
	return &Worker{
		orc:   orc,
		store: st,
		cache: cache,
		cfg:   cfg,
		log:   log,
	}
}

// Process runs the full recovery pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	pages, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetPages(len(pages))

	doc, err := document.New(pages)
	if err != nil {
		log.Error("invalid page sequence", "error", err)
		job.AddError(fmt.Sprintf("pages: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.ContentHash = ContentHashHex([]byte(doc.Text()))

	// Dedup check against the exercise store, when configured. A lookup
	// failure is not fatal.
	if w.store != nil {
		exists, existingDocID, err := w.store.ExistsByHash(ctx, job.ContentHash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if exists {
			log.Info("duplicate document, skipping", "existing_doc_id", existingDocID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Recover structure. The oracle is wrapped so transient
	// failures get retried before the pipeline degrades to patterns.
	cfg := w.cfg
	cfg.OnPhase = func(phase string) {
		switch phase {
		case "detecting":
			job.SetStatus(StatusDetecting, phase)
		case "locating":
			job.SetStatus(StatusLocating, phase)
		case "building":
			job.SetStatus(StatusBuilding, phase)
		case "matching":
			job.SetStatus(StatusMatching, phase)
		}
	}

	var orc oracle.Oracle
	if w.orc != nil {
		orc = &retryingOracle{inner: w.orc, log: log}
	}
	result := structure.Recover(ctx, doc, orc, w.cache, cfg, log)
	job.SetResult(result)

	if w.store == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 3: Push to the exercise store.
	job.SetStatus(StatusStoring, "storing")
	hadErrors := w.pushToStore(ctx, job, doc, result, log)

	switch {
	case hadErrors && job.Snapshot().Progress.Stored > 0:
		job.SetStatus(StatusPartial, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "storing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

// pushToStore writes the document and its spans to the exercise store.
// Store errors never discard the in-memory result.
func (w *Worker) pushToStore(ctx context.Context, job *Job, doc *document.Document, result *structure.Result, log *slog.Logger) bool {
	solutionPage := make(map[string]int)
	confidence := make(map[string]float64)
	for _, m := range result.Matches {
		solutionPage[m.ExerciseNumber] = m.SolutionPage
		confidence[m.ExerciseNumber] = m.Confidence
	}

	hadErrors := false
	for _, span := range result.Spans {
		hasMath := false
		if page, ok := doc.Page(span.Page); ok {
			hasMath = page.HasMath
		}
		req := store.ExerciseRequest{
			ExerciseNumber: span.ExerciseNumber,
			Text:           span.AssembledText(),
			Page:           span.Page,
			EndPage:        span.EndPage,
			IsSubQuestion:  span.IsSubQuestion,
			ParentNumber:   span.ParentNumber,
			SubMarker:      span.SubMarker,
			SolutionPage:   solutionPage[span.ExerciseNumber],
			Confidence:     confidence[span.ExerciseNumber],
			HasMath:        hasMath,
		}
		if err := w.store.PutExercise(ctx, job.DocID, span.ID, req); err != nil {
			log.Error("store exercise failed", "span", span.ID, "error", err)
			job.AddError(fmt.Sprintf("store %s: %s", span.ID, err))
			hadErrors = true
			continue
		}
		job.AddStored(1)
	}

	metaErr := w.store.PutDocument(ctx, job.DocID, store.DocumentRequest{
		Filename:    job.Filename,
		ContentHash: job.ContentHash,
		Pages:       doc.PageCount(),
		Exercises:   len(result.Spans),
		Solutions:   len(result.Matches),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
	})
	if metaErr != nil {
		log.Error("store document meta failed", "error", metaErr)
		job.AddError(fmt.Sprintf("meta: %s", metaErr))
		hadErrors = true
	}
	return hadErrors
}

// retryingOracle retries transient oracle failures with backoff before
// giving up and letting the pipeline degrade.
type retryingOracle struct {
	inner oracle.Oracle
	log   *slog.Logger
}

func (r *retryingOracle) Propose(ctx context.Context, doc *document.Document) ([]marker.Candidate, error) {
	var cands []marker.Candidate
	err := r.withRetry(ctx, "propose", func() error {
		var err error
		cands, err = r.inner.Propose(ctx, doc)
		return err
	})
	return cands, err
}

func (r *retryingOracle) MatchSolutions(ctx context.Context, exercises []oracle.ExerciseRef, pages []oracle.PagePreview) ([]oracle.Pairing, error) {
	var pairs []oracle.Pairing
	err := r.withRetry(ctx, "match_solutions", func() error {
		var err error
		pairs, err = r.inner.MatchSolutions(ctx, exercises, pages)
		return err
	})
	return pairs, err
}

func (r *retryingOracle) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		r.log.Warn("retryable oracle error", "op", op, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
