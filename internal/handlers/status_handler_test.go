package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/services/events"
	"github.com/ternarybob/aestimo/internal/services/tasks"
)

func newStatusFixture() (*StatusHandler, *tasks.Registry) {
	logger := arbor.NewLogger()
	broker := events.NewBroker(16, logger)
	registry := tasks.NewRegistry(logger)
	return NewStatusHandler(broker, registry, logger), registry
}

func TestGetStatusHandler_ReportsCounts(t *testing.T) {
	handler, registry := newStatusFixture()

	require.True(t, registry.TryAcquire("asx:BHP", "client-1"))
	defer registry.Release("asx:BHP")

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.GetStatusHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["active_analyses"])
	assert.Equal(t, float64(0), body["clients"])
	assert.Contains(t, body, "uptime")
	assert.Contains(t, body, "version")
	assert.Contains(t, body, "goroutines")
}

func TestGetStatusHandler_RejectsWrongMethod(t *testing.T) {
	handler, _ := newStatusFixture()

	req := httptest.NewRequest("POST", "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.GetStatusHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	handler, _ := newStatusFixture()

	req := httptest.NewRequest("GET", "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
