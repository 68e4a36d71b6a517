package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/services/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const writeTimeout = 10 * time.Second

// WebSocketHandler streams analysis events to a client over a WebSocket,
// carrying the same envelopes as the SSE transport.
type WebSocketHandler struct {
	broker interfaces.EventBroker
	cfg    common.AnalysisConfig
	logger arbor.ILogger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(broker interfaces.EventBroker, cfg common.AnalysisConfig, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		broker: broker,
		cfg:    cfg,
		logger: logger,
	}
}

// StreamHandler handles GET /ws?client_id=ID
func (h *WebSocketHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		WriteError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := h.broker.Connect(clientID)
	defer h.broker.Disconnect(clientID, ch)

	h.logger.Info().Str("client_id", clientID).Msg("WebSocket client connected")

	// Writes come from the event loop and the read loop's close path.
	var writeMu sync.Mutex
	writeEvent := func(event interfaces.Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(event)
	}

	if err := writeEvent(events.New(interfaces.EventConnected, map[string]any{"client_id": clientID})); err != nil {
		return
	}

	// Read loop detects client close. Inbound messages are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(h.cfg.HeartbeatDuration())
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.logger.Debug().Str("client_id", clientID).Msg("WebSocket client disconnected")
			return

		case <-r.Context().Done():
			return

		case event, open := <-ch:
			if !open {
				// Replaced by a reconnect with the same client ID.
				return
			}
			if err := writeEvent(event); err != nil {
				h.logger.Debug().Err(err).Str("client_id", clientID).Msg("WebSocket write failed")
				return
			}
			heartbeat.Reset(h.cfg.HeartbeatDuration())

		case <-heartbeat.C:
			if err := writeEvent(events.New(interfaces.EventHeartbeat, nil)); err != nil {
				return
			}
		}
	}
}
