package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
)

// stubGenerator returns scripted results per attempt.
type stubGenerator struct {
	name    string
	results []stubResult
	calls   int
	chunks  []string
}

type stubResult struct {
	text string
	err  error
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Generate(ctx context.Context, messages []interfaces.Message) (string, error) {
	r := s.next()
	return r.text, r.err
}

func (s *stubGenerator) GenerateStream(ctx context.Context, messages []interfaces.Message, onChunk func(string)) (string, error) {
	r := s.next()
	if r.err == nil && onChunk != nil {
		for _, chunk := range s.chunks {
			onChunk(chunk)
		}
	}
	return r.text, r.err
}

func (s *stubGenerator) next() stubResult {
	r := s.results[s.calls]
	s.calls++
	return r
}

func newTestCaller(t *testing.T, gen interfaces.Generator) (*Caller, *[]time.Duration) {
	t.Helper()

	registry := NewRegistry(gen.Name())
	registry.Register(gen)

	caller := NewCaller(registry, common.LLMConfig{
		DefaultProvider: gen.Name(),
		MaxAttempts:     3,
		InitialBackoff:  "1s",
	}, common.GetLogger())

	var slept []time.Duration
	caller.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return caller, &slept
}

func TestCaller_SucceedsFirstAttempt(t *testing.T) {
	gen := &stubGenerator{name: "openai", results: []stubResult{
		{text: "analysis text"},
	}}
	caller, slept := newTestCaller(t, gen)

	text, err := caller.Generate(context.Background(), "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, "analysis text", text)
	assert.Empty(t, *slept)
}

func TestCaller_RetriesWithExponentialBackoff(t *testing.T) {
	gen := &stubGenerator{name: "openai", results: []stubResult{
		{err: errors.New("rate limited")},
		{err: errors.New("rate limited")},
		{text: "third time lucky"},
	}}
	caller, slept := newTestCaller(t, gen)

	text, err := caller.Generate(context.Background(), "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", text)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestCaller_EmptyResultCountsAsFailure(t *testing.T) {
	gen := &stubGenerator{name: "openai", results: []stubResult{
		{text: "   \n\t "},
		{text: "real content"},
	}}
	caller, slept := newTestCaller(t, gen)

	text, err := caller.Generate(context.Background(), "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, "real content", text)
	assert.Len(t, *slept, 1)
}

func TestCaller_ExhaustionWrapsErrExhausted(t *testing.T) {
	gen := &stubGenerator{name: "openai", results: []stubResult{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	caller, slept := newTestCaller(t, gen)

	text, err := caller.Generate(context.Background(), "openai", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, text)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestCaller_UnknownProviderFailsImmediately(t *testing.T) {
	gen := &stubGenerator{name: "openai", results: []stubResult{
		{text: "never reached"},
	}}
	caller, slept := newTestCaller(t, gen)

	_, err := caller.Generate(context.Background(), "nonsense", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Empty(t, *slept)
	assert.Zero(t, gen.calls)
}

func TestCaller_EmptyProviderUsesDefault(t *testing.T) {
	gen := &stubGenerator{name: "anthropic", results: []stubResult{
		{text: "default provider answered"},
	}}
	caller, _ := newTestCaller(t, gen)

	text, err := caller.Generate(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "default provider answered", text)
}

func TestCaller_StreamForwardsChunks(t *testing.T) {
	gen := &stubGenerator{
		name:   "openai",
		chunks: []string{"Hello", ", ", "world"},
		results: []stubResult{
			{text: "Hello, world"},
		},
	}
	caller, _ := newTestCaller(t, gen)

	var got []string
	text, err := caller.GenerateStream(context.Background(), "openai", nil, func(chunk string) {
		got = append(got, chunk)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
	assert.Equal(t, []string{"Hello", ", ", "world"}, got)
}

func TestCaller_CancelledContextStopsRetry(t *testing.T) {
	gen := &stubGenerator{name: "openai", results: []stubResult{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	caller, _ := newTestCaller(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	caller.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := caller.Generate(ctx, "openai", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls)
}

func TestRegistry_GetIsCaseInsensitive(t *testing.T) {
	gen := &stubGenerator{name: "OpenAI", results: []stubResult{{text: "x"}}}
	registry := NewRegistry("openai")
	registry.Register(gen)

	got, err := registry.Get("OPENAI")
	require.NoError(t, err)
	assert.Equal(t, gen, got)
}
