package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
)

// chatProvider is a Generator backed by the OpenAI Chat Completions API.
// It also serves Zhipu, whose API is OpenAI-compatible behind a custom
// base URL.
type chatProvider struct {
	name        string
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      arbor.ILogger
}

// NewOpenAIProvider creates the openai generation provider.
func NewOpenAIProvider(cfg common.ProviderConfig, logger arbor.ILogger) (interfaces.Generator, error) {
	return newChatProvider("openai", cfg, logger)
}

// NewZhipuProvider creates the zhipu generation provider. Zhipu exposes an
// OpenAI-compatible endpoint, so a base URL is mandatory.
func NewZhipuProvider(cfg common.ProviderConfig, logger arbor.ILogger) (interfaces.Generator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("zhipu: base_url is required")
	}
	return newChatProvider("zhipu", cfg, logger)
}

func newChatProvider(name string, cfg common.ProviderConfig, logger arbor.ILogger) (*chatProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model is required", name)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := 5 * time.Minute
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid timeout duration '%s': %w", name, cfg.Timeout, err)
		}
		timeout = parsed
	}

	p := &chatProvider{
		name:        name,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logger,
	}

	logger.Debug().
		Str("provider", name).
		Str("model", cfg.Model).
		Dur("timeout", timeout).
		Msg("Chat completion provider initialized")

	return p, nil
}

func (p *chatProvider) Name() string {
	return p.name
}

func (p *chatProvider) Generate(ctx context.Context, messages []interfaces.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(messages, false))
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", p.name)
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *chatProvider) GenerateStream(ctx context.Context, messages []interfaces.Message, onChunk func(text string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(messages, true))
	if err != nil {
		return "", fmt.Errorf("%s chat completion stream failed: %w", p.name, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%s stream receive failed: %w", p.name, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			full.WriteString(delta)
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}

	return full.String(), nil
}

func (p *chatProvider) buildRequest(messages []interfaces.Message, stream bool) openai.ChatCompletionRequest {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case interfaces.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case interfaces.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    chatMessages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Stream:      stream,
	}
}
