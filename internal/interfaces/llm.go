package interfaces

import "context"

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single conversation turn sent to a generation provider.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Generator is a single AI text-generation provider (openai, anthropic,
// zhipu, gemini). Implementations must be safe for concurrent use.
type Generator interface {
	// Name returns the provider identifier used in configuration.
	Name() string

	// Generate produces a complete response for the conversation.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStream produces a response incrementally, invoking onChunk
	// for each text fragment as it arrives. Returns the full accumulated
	// text once the stream completes.
	GenerateStream(ctx context.Context, messages []Message, onChunk func(text string)) (string, error)
}

// GenerationService dispatches generation requests to a named provider
// with retry and backoff. An empty provider selects the configured default.
type GenerationService interface {
	Generate(ctx context.Context, provider string, messages []Message) (string, error)
	GenerateStream(ctx context.Context, provider string, messages []Message, onChunk func(text string)) (string, error)
}
