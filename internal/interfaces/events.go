package interfaces

// EventKind identifies the type of a streamed event.
type EventKind string

const (
	EventConnected         EventKind = "connected"
	EventHeartbeat         EventKind = "heartbeat"
	EventLog               EventKind = "log"
	EventProgress          EventKind = "progress"
	EventScoresUpdate      EventKind = "scores_update"
	EventDataQualityUpdate EventKind = "data_quality_update"
	EventPartialResult     EventKind = "partial_result"
	EventFinalResult       EventKind = "final_result"
	EventBatchResult       EventKind = "batch_result"
	EventAnalysisComplete  EventKind = "analysis_complete"
	EventAnalysisError     EventKind = "analysis_error"
	EventAIStream          EventKind = "ai_stream"
	EventAIPrompt          EventKind = "ai_prompt"
)

// Event is a single message pushed to a streaming client.
// Timestamp is ISO-8601 UTC, set at construction time.
type Event struct {
	Kind      EventKind      `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// EventBroker manages per-client event channels for streaming transports.
// Channels are bounded; sends never block the producer.
type EventBroker interface {
	// Connect registers a client and returns its receive channel.
	// A second Connect with the same client ID replaces the previous
	// channel, which is closed.
	Connect(clientID string) <-chan Event

	// Disconnect removes a client and closes its channel, but only when
	// ch is still the client's registered channel. A handler whose channel
	// was replaced by a reconnect is a no-op here, leaving the replacement
	// connected. Safe to call for unknown client IDs.
	Disconnect(clientID string, ch <-chan Event)

	// Send delivers an event to one client without blocking. Returns
	// false if the client is not connected or its buffer is full.
	Send(clientID string, event Event) bool

	// Broadcast delivers an event to every connected client, pruning
	// clients whose buffers are full.
	Broadcast(event Event)

	// ClientCount returns the number of connected clients.
	ClientCount() int
}
