// Package worker runs submitted analyses on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/services/analysis"
	"github.com/ternarybob/aestimo/internal/services/tasks"
)

// ErrQueueFull indicates the job queue is at capacity.
var ErrQueueFull = errors.New("worker queue full")

// Runner executes analyses. Single runs arrive with their task key already
// acquired by the submitter; batch runs acquire per item.
type Runner interface {
	RunSingleHeld(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
	RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error)
}

type job func(ctx context.Context)

// Pool dispatches analysis jobs to a fixed number of workers. Duplicate
// detection happens at submit time so handlers can reject synchronously.
type Pool struct {
	runner     Runner
	registry   interfaces.TaskRegistry
	jobs       chan job
	numWorkers int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	logger     arbor.ILogger
}

// NewPool creates a stopped pool with numWorkers workers and a queue twice
// that size.
func NewPool(runner Runner, registry interfaces.TaskRegistry, numWorkers int, logger arbor.ILogger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		runner:     runner,
		registry:   registry,
		jobs:       make(chan job, numWorkers*2),
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.Info().
		Int("num_workers", p.numWorkers).
		Msg("Starting worker pool")

	for i := 0; i < p.numWorkers; i++ {
		workerID := i
		p.wg.Add(1)
		common.SafeGo(p.logger, fmt.Sprintf("worker-%d", workerID), func() {
			p.worker(workerID)
		})
	}
}

// Stop drains in-flight jobs and waits for the workers to exit.
func (p *Pool) Stop() {
	p.logger.Info().Msg("Stopping worker pool...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

// Submit acquires the request's task key and enqueues the run. Returns
// tasks.ErrDuplicateTask when the stock is already being analyzed, or
// ErrQueueFull when the queue is at capacity. The key is released by the
// run itself, or here when enqueueing fails.
func (p *Pool) Submit(req models.AnalysisRequest) error {
	key := analysis.TaskKey(req.Code)
	if key == "" {
		return errors.New("invalid stock code")
	}
	if !p.registry.TryAcquire(key, req.ClientID) {
		owner, _ := p.registry.Owner(key)
		p.logger.Debug().
			Str("code", req.Code).
			Str("held_by", owner).
			Msg("Rejecting duplicate analysis submission")
		return tasks.ErrDuplicateTask
	}

	run := func(ctx context.Context) {
		if _, err := p.runner.RunSingleHeld(ctx, req); err != nil {
			p.logger.Warn().Err(err).Str("code", req.Code).Msg("Analysis run failed")
		}
	}

	select {
	case p.jobs <- run:
		return nil
	default:
		p.registry.Release(key)
		return ErrQueueFull
	}
}

// SubmitBatch enqueues a batch run. Per-item duplicate detection happens
// inside the run, so a batch never blocks other submissions.
func (p *Pool) SubmitBatch(req models.BatchRequest) error {
	run := func(ctx context.Context) {
		if _, err := p.runner.RunBatch(ctx, req); err != nil {
			p.logger.Warn().Err(err).Int("codes", len(req.Codes)).Msg("Batch run failed")
		}
	}

	select {
	case p.jobs <- run:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	p.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping")
			return
		case run := <-p.jobs:
			run(p.ctx)
		}
	}
}
