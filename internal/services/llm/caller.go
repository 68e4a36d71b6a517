package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
)

// Default retry constants. Backoff doubles per attempt: 1s before the
// second attempt, 2s before the third.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 1 * time.Second
)

// sleepFunc waits for d or until ctx is cancelled. Injectable for tests.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Caller implements interfaces.GenerationService. Each call is attempted up
// to maxAttempts times with exponential backoff; an empty response counts as
// a failed attempt. Unknown providers fail immediately without retry.
type Caller struct {
	registry       *Registry
	maxAttempts    int
	initialBackoff time.Duration
	sleep          sleepFunc
	logger         arbor.ILogger
}

// NewCaller builds a retrying caller from configuration.
func NewCaller(registry *Registry, cfg common.LLMConfig, logger arbor.ILogger) *Caller {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	backoff := DefaultInitialBackoff
	if cfg.InitialBackoff != "" {
		if d, err := time.ParseDuration(cfg.InitialBackoff); err == nil && d > 0 {
			backoff = d
		}
	}

	return &Caller{
		registry:       registry,
		maxAttempts:    maxAttempts,
		initialBackoff: backoff,
		sleep:          sleepContext,
		logger:         logger,
	}
}

// CalculateBackoff returns the wait before retrying after attempt
// (0-based): initialBackoff * 2^attempt.
func (c *Caller) CalculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
	}
	return backoff
}

// Generate dispatches a complete-response generation to the named provider.
func (c *Caller) Generate(ctx context.Context, provider string, messages []interfaces.Message) (string, error) {
	gen, err := c.registry.Get(provider)
	if err != nil {
		return "", err
	}
	return c.withRetry(ctx, gen.Name(), func(ctx context.Context) (string, error) {
		return gen.Generate(ctx, messages)
	})
}

// GenerateStream dispatches a streaming generation to the named provider.
// Chunks are forwarded to onChunk as they arrive; a retried attempt starts
// a fresh stream.
func (c *Caller) GenerateStream(ctx context.Context, provider string, messages []interfaces.Message, onChunk func(text string)) (string, error) {
	gen, err := c.registry.Get(provider)
	if err != nil {
		return "", err
	}
	return c.withRetry(ctx, gen.Name(), func(ctx context.Context) (string, error) {
		return gen.GenerateStream(ctx, messages, onChunk)
	})
}

// withRetry runs fn up to maxAttempts times. Empty results are failures.
// Exhaustion returns ErrExhausted so callers can degrade instead of abort.
func (c *Caller) withRetry(ctx context.Context, provider string, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := fn(ctx)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = ErrEmptyResult
		}
		lastErr = err

		c.logger.Warn().
			Err(err).
			Str("provider", provider).
			Int("attempt", attempt+1).
			Int("max_attempts", c.maxAttempts).
			Msg("Generation attempt failed")

		if attempt < c.maxAttempts-1 {
			if serr := c.sleep(ctx, c.CalculateBackoff(attempt)); serr != nil {
				return "", serr
			}
		}
	}

	c.logger.Error().
		Err(lastErr).
		Str("provider", provider).
		Int("attempts", c.maxAttempts).
		Msg("Generation attempts exhausted")

	return "", fmt.Errorf("%w (provider %s): %v", ErrExhausted, provider, lastErr)
}
