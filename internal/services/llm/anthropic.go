package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
)

// AnthropicProvider is a Generator backed by the Anthropic Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float32
	timeout     time.Duration
	logger      arbor.ILogger
}

// NewAnthropicProvider creates the anthropic generation provider.
func NewAnthropicProvider(cfg common.ProviderConfig, logger arbor.ILogger) (interfaces.Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required (set via ANTHROPIC_API_KEY or anthropic.api_key in config)")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}

	timeout := 5 * time.Minute
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("anthropic: invalid timeout duration '%s': %w", cfg.Timeout, err)
		}
		timeout = parsed
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	p := &AnthropicProvider{
		client:      client,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logger,
	}

	logger.Debug().
		Str("provider", "anthropic").
		Str("model", cfg.Model).
		Int64("max_tokens", maxTokens).
		Dur("timeout", timeout).
		Msg("Anthropic provider initialized")

	return p, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Generate(ctx context.Context, messages []interfaces.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Messages.New(ctx, p.buildParams(messages))
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	return response.String(), nil
}

func (p *AnthropicProvider) GenerateStream(ctx context.Context, messages []interfaces.Message, onChunk func(text string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(messages))

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				full.WriteString(delta.Text)
				if onChunk != nil {
					onChunk(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic stream failed: %w", err)
	}

	return full.String(), nil
}

func (p *AnthropicProvider) buildParams(messages []interfaces.Message) anthropic.MessageNewParams {
	conversation := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string

	for _, m := range messages {
		switch m.Role {
		case interfaces.RoleSystem:
			// Anthropic takes system text as a dedicated parameter.
			if systemText != "" {
				systemText += "\n\n"
			}
			systemText += m.Content
		case interfaces.RoleAssistant:
			conversation = append(conversation, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(m.Content),
			))
		default:
			conversation = append(conversation, anthropic.NewUserMessage(
				anthropic.NewTextBlock(m.Content),
			))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  conversation,
	}

	if p.temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.temperature))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	return params
}
