// Package events implements the per-client event broker used by the
// streaming transports (SSE and WebSocket).
package events

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/interfaces"
)

// DefaultBufferSize is the per-client channel capacity used when the
// configured value is not positive.
const DefaultBufferSize = 256

// Broker implements interfaces.EventBroker with one bounded channel per
// client. Producers never block: a full buffer drops the event for that
// client rather than stalling the pipeline.
type Broker struct {
	mu      sync.RWMutex
	clients map[string]chan interfaces.Event
	bufSize int
	logger  arbor.ILogger
}

// NewBroker creates an event broker with the given per-client buffer size.
func NewBroker(bufSize int, logger arbor.ILogger) *Broker {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Broker{
		clients: make(map[string]chan interfaces.Event),
		bufSize: bufSize,
		logger:  logger,
	}
}

// Connect registers a client and returns its receive channel. Reconnecting
// with the same client ID replaces the previous channel; the old channel is
// closed so a stale consumer loop terminates.
func (b *Broker) Connect(clientID string) <-chan interfaces.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.clients[clientID]; ok {
		close(old)
		b.logger.Debug().
			Str("client_id", clientID).
			Msg("Replacing existing event channel")
	}

	ch := make(chan interfaces.Event, b.bufSize)
	b.clients[clientID] = ch

	b.logger.Info().
		Str("client_id", clientID).
		Int("clients", len(b.clients)).
		Msg("Event client connected")

	return ch
}

// Disconnect removes a client when ch is still its registered channel.
// A transport replaced by a reconnect passes its now-stale channel here,
// so its deferred cleanup cannot tear down the replacement's live stream.
func (b *Broker) Disconnect(clientID string, ch <-chan interfaces.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.clients[clientID]
	if !ok || (<-chan interfaces.Event)(cur) != ch {
		return
	}
	delete(b.clients, clientID)
	close(cur)

	b.logger.Info().
		Str("client_id", clientID).
		Int("clients", len(b.clients)).
		Msg("Event client disconnected")
}

// Send delivers an event to one client without blocking. Returns false when
// the client is unknown or its buffer is full. The read lock is held across
// the enqueue: channels are only closed under the write lock, so a concurrent
// Disconnect or reconnect cannot close the channel mid-send.
func (b *Broker) Send(clientID string, event interfaces.Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ch, ok := b.clients[clientID]
	if !ok {
		return false
	}

	select {
	case ch <- event:
		return true
	default:
		b.logger.Warn().
			Str("client_id", clientID).
			Str("event", string(event.Kind)).
			Msg("Event buffer full, dropping event")
		return false
	}
}

// Broadcast delivers an event to every connected client. Clients whose
// buffers are full are pruned: a consumer that stopped draining its channel
// is treated as gone.
func (b *Broker) Broadcast(event interfaces.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for clientID, ch := range b.clients {
		select {
		case ch <- event:
		default:
			delete(b.clients, clientID)
			close(ch)
			b.logger.Warn().
				Str("client_id", clientID).
				Msg("Pruned unresponsive event client during broadcast")
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// New constructs an event with a sanitized payload and an ISO-8601 UTC
// timestamp. All events must be built through this function so that
// non-JSON-safe values never reach a transport.
func New(kind interfaces.EventKind, data map[string]any) interfaces.Event {
	return interfaces.Event{
		Kind:      kind,
		Data:      SanitizeMap(data),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
