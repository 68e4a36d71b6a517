package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/services/tasks"
	"github.com/ternarybob/aestimo/internal/worker"
)

// AnalyzeHandler accepts analysis submissions and hands them to the
// worker pool. Progress is delivered over the client's event stream.
type AnalyzeHandler struct {
	pool     *worker.Pool
	cfg      common.AnalysisConfig
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(pool *worker.Pool, cfg common.AnalysisConfig, logger arbor.ILogger) *AnalyzeHandler {
	return &AnalyzeHandler{
		pool:     pool,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// AnalyzeHandler handles POST /api/analyze
func (h *AnalyzeHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}
	if common.ParseTicker(req.Code).Code == "" {
		WriteError(w, http.StatusBadRequest, "Invalid stock code")
		return
	}
	if req.ClientID == "" {
		req.ClientID = common.NewClientID()
	}

	if err := h.pool.Submit(req); err != nil {
		switch {
		case errors.Is(err, tasks.ErrDuplicateTask):
			WriteError(w, http.StatusTooManyRequests, fmt.Sprintf("Analysis of %s already in progress", req.Code))
		case errors.Is(err, worker.ErrQueueFull):
			WriteError(w, http.StatusServiceUnavailable, "Server busy, try again shortly")
		default:
			WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	h.logger.Info().
		Str("code", req.Code).
		Str("client_id", req.ClientID).
		Msg("Analysis accepted")

	WriteAccepted(w, fmt.Sprintf("Analysis of %s started", req.Code), req.ClientID)
}

// BatchHandler handles POST /api/analyze/batch
func (h *AnalyzeHandler) BatchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}
	limit := h.cfg.BatchLimit
	if limit <= 0 {
		limit = 10
	}
	if len(req.Codes) > limit {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Batch of %d codes exceeds limit of %d", len(req.Codes), limit))
		return
	}
	if req.ClientID == "" {
		req.ClientID = common.NewClientID()
	}

	if err := h.pool.SubmitBatch(req); err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			WriteError(w, http.StatusServiceUnavailable, "Server busy, try again shortly")
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Int("codes", len(req.Codes)).
		Str("client_id", req.ClientID).
		Msg("Batch analysis accepted")

	WriteAccepted(w, fmt.Sprintf("Batch analysis of %d stocks started", len(req.Codes)), req.ClientID)
}
