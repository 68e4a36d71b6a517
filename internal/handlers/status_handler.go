package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	broker    interfaces.EventBroker
	registry  interfaces.TaskRegistry
	startTime time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(broker interfaces.EventBroker, registry interfaces.TaskRegistry, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		broker:    broker,
		registry:  registry,
		startTime: time.Now(),
		logger:    logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         common.GetVersion(),
		"uptime":          time.Since(h.startTime).Round(time.Second).String(),
		"clients":         h.broker.ClientCount(),
		"active_analyses": h.registry.ActiveCount(),
		"goroutines":      common.GetGoroutineCount(),
	})
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetFullVersion(),
	})
}
