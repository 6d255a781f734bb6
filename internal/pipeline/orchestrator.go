package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"examstruct/internal/oracle"
	"examstruct/internal/pattern"
	"examstruct/internal/store"
	"examstruct/internal/structure"
)

// Orchestrator manages the document processing pipeline.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	orc   oracle.Oracle
	store *store.Client
	cache *pattern.Cache
	log   *slog.Logger

	workerCount  int
	maxQueueSize int
	recoverCfg   structure.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures the orchestrator.
type Options struct {
	WorkerCount      int
	MaxQueueSize     int
	JobTTL           time.Duration
	PatternCacheSize int
	RecoverConfig    structure.Config
}

// NewOrchestrator creates the pipeline. Call Start to begin processing.
func NewOrchestrator(opts Options, orc oracle.Oracle, st *store.Client, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:         NewJobStore(opts.JobTTL),
		queue:        make(chan *Job, opts.MaxQueueSize),
		orc:          orc,
		store:        st,
		cache:        pattern.NewCache(opts.PatternCacheSize),
		log:          log,
		workerCount:  opts.WorkerCount,
		maxQueueSize: opts.MaxQueueSize,
		recoverCfg:   opts.RecoverConfig,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.workerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.orc, o.store, o.cache, o.recoverCfg, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.maxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
