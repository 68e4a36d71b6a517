package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/services/analysis"
	"github.com/ternarybob/aestimo/internal/services/tasks"
)

type stubRunner struct {
	mu       sync.Mutex
	singles  []string
	batches  []int
	registry *tasks.Registry
	done     chan struct{}
}

func (s *stubRunner) RunSingleHeld(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	defer s.registry.Release(analysis.TaskKey(req.Code))
	s.mu.Lock()
	s.singles = append(s.singles, req.Code)
	s.mu.Unlock()
	s.done <- struct{}{}
	return &models.AnalysisResult{Code: req.Code}, nil
}

func (s *stubRunner) RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error) {
	s.mu.Lock()
	s.batches = append(s.batches, len(req.Codes))
	s.mu.Unlock()
	s.done <- struct{}{}
	return &models.BatchResult{Total: len(req.Codes)}, nil
}

func newTestPool(t *testing.T, numWorkers int) (*Pool, *stubRunner, *tasks.Registry) {
	t.Helper()
	logger := arbor.NewLogger()
	registry := tasks.NewRegistry(logger)
	runner := &stubRunner{registry: registry, done: make(chan struct{}, 16)}
	pool := NewPool(runner, registry, numWorkers, logger)
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool, runner, registry
}

func waitDone(t *testing.T, runner *stubRunner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-runner.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func TestPool_RunsSubmittedAnalysis(t *testing.T) {
	pool, runner, registry := newTestPool(t, 2)

	require.NoError(t, pool.Submit(models.AnalysisRequest{Code: "BHP", ClientID: "client-1"}))
	waitDone(t, runner, 1)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"BHP"}, runner.singles)
	assert.Zero(t, registry.ActiveCount())
}

func TestPool_RejectsDuplicateSubmission(t *testing.T) {
	pool, _, registry := newTestPool(t, 2)

	require.True(t, registry.TryAcquire(analysis.TaskKey("BHP"), "other-client"))
	defer registry.Release(analysis.TaskKey("BHP"))

	err := pool.Submit(models.AnalysisRequest{Code: "BHP", ClientID: "client-1"})
	assert.ErrorIs(t, err, tasks.ErrDuplicateTask)

	// The original holder is untouched by the rejected submission.
	owner, held := registry.Owner(analysis.TaskKey("BHP"))
	assert.True(t, held)
	assert.Equal(t, "other-client", owner)
}

func TestPool_RejectsInvalidCode(t *testing.T) {
	pool, _, _ := newTestPool(t, 1)
	assert.Error(t, pool.Submit(models.AnalysisRequest{Code: "  "}))
}

func TestPool_QueueFullReleasesKey(t *testing.T) {
	logger := arbor.NewLogger()
	registry := tasks.NewRegistry(logger)

	// A runner that blocks until released keeps the queue occupied.
	block := make(chan struct{})
	runner := &blockingRunner{block: block, started: make(chan struct{})}
	pool := NewPool(runner, registry, 1, logger)
	pool.Start()
	defer pool.Stop()
	defer close(block)

	require.NoError(t, pool.Submit(models.AnalysisRequest{Code: "AAA"}))
	// Wait for the worker to pick up the job so the queue is empty again.
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started a job")
	}

	// With the single worker blocked, two queued jobs fill the queue.
	require.NoError(t, pool.Submit(models.AnalysisRequest{Code: "BBB"}))
	require.NoError(t, pool.Submit(models.AnalysisRequest{Code: "CCC"}))

	err := pool.Submit(models.AnalysisRequest{Code: "DDD"})
	require.ErrorIs(t, err, ErrQueueFull)

	// The rejected submission must not leak its task key.
	assert.False(t, registry.Running(analysis.TaskKey("DDD")))
}

func TestPool_RunsBatch(t *testing.T) {
	pool, runner, _ := newTestPool(t, 1)

	require.NoError(t, pool.SubmitBatch(models.BatchRequest{Codes: []string{"BHP", "CSL"}}))
	waitDone(t, runner, 1)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []int{2}, runner.batches)
}

type blockingRunner struct {
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingRunner) RunSingleHeld(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	b.once.Do(func() {
		if b.started != nil {
			close(b.started)
		}
	})
	<-b.block
	return nil, nil
}

func (b *blockingRunner) RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error) {
	<-b.block
	return nil, nil
}
