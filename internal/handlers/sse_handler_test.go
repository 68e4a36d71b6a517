package handlers

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/services/events"
)

func TestEventsHandler_RequiresClientID(t *testing.T) {
	logger := arbor.NewLogger()
	broker := events.NewBroker(16, logger)
	handler := NewSSEHandler(broker, testAnalysisConfig(), logger)

	req := httptest.NewRequest("GET", "/api/events", nil)
	rec := httptest.NewRecorder()
	handler.EventsHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsHandler_StreamsFrames(t *testing.T) {
	logger := arbor.NewLogger()
	broker := events.NewBroker(16, logger)
	handler := NewSSEHandler(broker, testAnalysisConfig(), logger)

	srv := httptest.NewServer(http.HandlerFunc(handler.EventsHandler))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events?client_id=c1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	reader := bufio.NewReader(resp.Body)

	// First frame is the connected event.
	frame := readSSEFrame(t, reader)
	assert.Contains(t, frame, "event: connected")
	assert.Contains(t, frame, `"client_id":"c1"`)

	// Events sent through the broker arrive as named frames.
	require.Eventually(t, func() bool {
		return broker.Send("c1", events.New(interfaces.EventLog, map[string]any{
			"message": "Starting analysis of BHP",
			"type":    "header",
		}))
	}, time.Second, 10*time.Millisecond)

	frame = readSSEFrame(t, reader)
	assert.Contains(t, frame, "event: log")
	assert.Contains(t, frame, "Starting analysis of BHP")
	assert.Contains(t, frame, `"timestamp"`)
}

func TestEventsHandler_EmitsHeartbeatWhenIdle(t *testing.T) {
	logger := arbor.NewLogger()
	broker := events.NewBroker(16, logger)
	cfg := testAnalysisConfig()
	cfg.HeartbeatInterval = "50ms"
	handler := NewSSEHandler(broker, cfg, logger)

	srv := httptest.NewServer(http.HandlerFunc(handler.EventsHandler))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events?client_id=c1")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readSSEFrame(t, reader) // connected

	// Nothing is sent through the broker, so the next frame must be a
	// synthesized heartbeat.
	frame := readSSEFrame(t, reader)
	assert.Contains(t, frame, "event: heartbeat")
	assert.Contains(t, frame, `"timestamp"`)
}

func TestEventsHandler_ReconnectReplacesClient(t *testing.T) {
	logger := arbor.NewLogger()
	broker := events.NewBroker(16, logger)
	handler := NewSSEHandler(broker, testAnalysisConfig(), logger)

	srv := httptest.NewServer(http.HandlerFunc(handler.EventsHandler))
	defer srv.Close()

	first, err := http.Get(srv.URL + "/api/events?client_id=c1")
	require.NoError(t, err)
	defer first.Body.Close()
	readSSEFrame(t, bufio.NewReader(first.Body))

	// Second connection with the same ID takes over the stream.
	second, err := http.Get(srv.URL + "/api/events?client_id=c1")
	require.NoError(t, err)
	defer second.Body.Close()

	reader := bufio.NewReader(second.Body)
	frame := readSSEFrame(t, reader)
	assert.Contains(t, frame, "event: connected")

	// The replaced handler's cleanup must not tear down the new stream:
	// the client stays registered and keeps receiving events.
	require.Eventually(t, func() bool {
		return broker.ClientCount() == 1 &&
			broker.Send("c1", events.New(interfaces.EventLog, map[string]any{"message": "after reconnect"}))
	}, 2*time.Second, 20*time.Millisecond)

	frame = readSSEFrame(t, reader)
	assert.Contains(t, frame, "after reconnect")
}

// readSSEFrame reads lines until the blank frame terminator.
func readSSEFrame(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	frames := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		var sb strings.Builder
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			if line == "\n" {
				frames <- sb.String()
				return
			}
			sb.WriteString(line)
		}
	}()
	select {
	case frame := <-frames:
		return frame
	case err := <-errs:
		t.Fatalf("stream ended before frame terminator: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading SSE frame")
	}
	return ""
}
