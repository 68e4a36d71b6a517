package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/services/analysis"
	"github.com/ternarybob/aestimo/internal/services/tasks"
	"github.com/ternarybob/aestimo/internal/worker"
)

// noopRunner satisfies worker.Runner without doing any work.
type noopRunner struct{ registry *tasks.Registry }

func (n *noopRunner) RunSingleHeld(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	n.registry.Release(analysis.TaskKey(req.Code))
	return &models.AnalysisResult{Code: req.Code}, nil
}

func (n *noopRunner) RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error) {
	return &models.BatchResult{Total: len(req.Codes)}, nil
}

func testAnalysisConfig() common.AnalysisConfig {
	cfg := common.NewDefaultConfig()
	return cfg.Analysis
}

func newAnalyzeFixture(t *testing.T) (*AnalyzeHandler, *tasks.Registry) {
	t.Helper()
	logger := arbor.NewLogger()
	registry := tasks.NewRegistry(logger)
	pool := worker.NewPool(&noopRunner{registry: registry}, registry, 2, logger)
	pool.Start()
	t.Cleanup(pool.Stop)
	return NewAnalyzeHandler(pool, testAnalysisConfig(), logger), registry
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAnalyzeHandler_AcceptsRequest(t *testing.T) {
	handler, _ := newAnalyzeFixture(t)

	rec := postJSON(t, handler.AnalyzeHandler, "/api/analyze", `{"code":"BHP","client_id":"c1"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"client_id":"c1"`)
}

func TestAnalyzeHandler_GeneratesClientID(t *testing.T) {
	handler, _ := newAnalyzeFixture(t)

	rec := postJSON(t, handler.AnalyzeHandler, "/api/analyze", `{"code":"CSL"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"client_id"`)
}

func TestAnalyzeHandler_RejectsInvalidBody(t *testing.T) {
	handler, _ := newAnalyzeFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"code":`},
		{"missing code", `{}`},
		{"blank code", `{"code":"   "}`},
		{"bad provider", `{"code":"BHP","provider":"mystery"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler.AnalyzeHandler, "/api/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAnalyzeHandler_DuplicateReturns429(t *testing.T) {
	handler, registry := newAnalyzeFixture(t)

	require.True(t, registry.TryAcquire(analysis.TaskKey("BHP"), "other-client"))
	defer registry.Release(analysis.TaskKey("BHP"))

	rec := postJSON(t, handler.AnalyzeHandler, "/api/analyze", `{"code":"BHP"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
}

func TestAnalyzeHandler_RejectsWrongMethod(t *testing.T) {
	handler, _ := newAnalyzeFixture(t)

	req := httptest.NewRequest("GET", "/api/analyze", nil)
	rec := httptest.NewRecorder()
	handler.AnalyzeHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBatchHandler_AcceptsBatch(t *testing.T) {
	handler, _ := newAnalyzeFixture(t)

	rec := postJSON(t, handler.BatchHandler, "/api/analyze/batch", `{"codes":["BHP","CSL"],"client_id":"c1"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestBatchHandler_RejectsOversizedBatch(t *testing.T) {
	handler, _ := newAnalyzeFixture(t)

	codes := make([]string, 0, 11)
	for i := 0; i < 11; i++ {
		codes = append(codes, `"ST`+string(rune('A'+i))+`"`)
	}
	body := `{"codes":[` + strings.Join(codes, ",") + `]}`

	rec := postJSON(t, handler.BatchHandler, "/api/analyze/batch", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchHandler_RejectsEmptyBatch(t *testing.T) {
	handler, _ := newAnalyzeFixture(t)

	rec := postJSON(t, handler.BatchHandler, "/api/analyze/batch", `{"codes":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
