package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/services/events"
)

// SSEHandler streams analysis events to a client over Server-Sent Events.
type SSEHandler struct {
	broker interfaces.EventBroker
	cfg    common.AnalysisConfig
	logger arbor.ILogger
}

// NewSSEHandler creates a new SSEHandler.
func NewSSEHandler(broker interfaces.EventBroker, cfg common.AnalysisConfig, logger arbor.ILogger) *SSEHandler {
	return &SSEHandler{
		broker: broker,
		cfg:    cfg,
		logger: logger,
	}
}

// EventsHandler handles GET /api/events?client_id=ID
func (h *SSEHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		WriteError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := h.broker.Connect(clientID)
	defer h.broker.Disconnect(clientID, ch)

	h.logger.Info().Str("client_id", clientID).Msg("SSE client connected")

	// Flush the connected event immediately so EventSource.onopen fires.
	writeSSEEvent(w, events.New(interfaces.EventConnected, map[string]any{"client_id": clientID}))
	flusher.Flush()

	heartbeat := time.NewTicker(h.cfg.HeartbeatDuration())
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("client_id", clientID).Msg("SSE client disconnected")
			return

		case event, open := <-ch:
			if !open {
				// Replaced by a reconnect with the same client ID.
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
			heartbeat.Reset(h.cfg.HeartbeatDuration())

		case <-heartbeat.C:
			writeSSEEvent(w, events.New(interfaces.EventHeartbeat, nil))
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one event in wire format, with the event kind as
// the SSE event name and the full envelope as JSON data.
func writeSSEEvent(w http.ResponseWriter, event interfaces.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
}
