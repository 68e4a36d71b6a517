// Package app wires the application's services and handlers together.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/handlers"
	"github.com/ternarybob/aestimo/internal/market"
	"github.com/ternarybob/aestimo/internal/services/analysis"
	"github.com/ternarybob/aestimo/internal/services/cache"
	"github.com/ternarybob/aestimo/internal/services/events"
	"github.com/ternarybob/aestimo/internal/services/llm"
	"github.com/ternarybob/aestimo/internal/services/tasks"
	"github.com/ternarybob/aestimo/internal/worker"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	Cache *cache.Service

	// Market data
	MarketClient *market.Client
	MarketData   *market.Service

	// AI generation
	Registry *llm.Registry
	Caller   *llm.Caller

	// Streaming and task tracking
	Broker *events.Broker
	Tasks  *tasks.Registry

	// Pipeline
	Runner *analysis.Runner
	Pool   *worker.Pool

	// Handlers
	AnalyzeHandler *handlers.AnalyzeHandler
	SSEHandler     *handlers.SSEHandler
	WSHandler      *handlers.WebSocketHandler
	StatusHandler  *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	common.SetDefaultExchange(cfg.Markets.DefaultExchange)

	if err := app.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	app.Pool.Start()

	return app, nil
}

func (a *App) initServices(ctx context.Context) error {
	cacheService, err := cache.NewService(a.Config.Cache, a.Logger)
	if err != nil {
		return fmt.Errorf("snapshot cache: %w", err)
	}
	a.Cache = cacheService

	if a.Config.EODHD.APIKey == "" {
		return fmt.Errorf("eodhd api_key is required")
	}
	clientOpts := []market.ClientOption{
		market.WithLogger(a.Logger),
	}
	if a.Config.EODHD.BaseURL != "" {
		clientOpts = append(clientOpts, market.WithBaseURL(a.Config.EODHD.BaseURL))
	}
	if a.Config.EODHD.RateLimit > 0 {
		clientOpts = append(clientOpts, market.WithRateLimit(a.Config.EODHD.RateLimit))
	}
	if a.Config.EODHD.RequestTimeout > 0 {
		clientOpts = append(clientOpts, market.WithHTTPClient(&http.Client{Timeout: a.Config.EODHD.RequestTimeout}))
	}
	a.MarketClient = market.NewClient(a.Config.EODHD.APIKey, clientOpts...)
	a.MarketData = market.NewService(a.MarketClient, a.Cache, a.Logger)

	if err := a.initProviders(ctx); err != nil {
		return err
	}
	a.Caller = llm.NewCaller(a.Registry, a.Config.LLM, a.Logger)

	a.Broker = events.NewBroker(a.Config.Analysis.EventBuffer, a.Logger)
	a.Tasks = tasks.NewRegistry(a.Logger)

	a.Runner = analysis.NewRunner(a.MarketData, a.Caller, a.Broker, a.Tasks, a.Config.Analysis, a.Logger)
	a.Pool = worker.NewPool(a.Runner, a.Tasks, a.Config.Analysis.Workers, a.Logger)

	return nil
}

// initProviders registers every AI provider with an API key configured.
// The server starts without any: analysis then degrades to rule-based
// narratives.
func (a *App) initProviders(ctx context.Context) error {
	a.Registry = llm.NewRegistry(a.Config.LLM.DefaultProvider)

	if a.Config.OpenAI.APIKey != "" {
		g, err := llm.NewOpenAIProvider(a.Config.OpenAI, a.Logger)
		if err != nil {
			return fmt.Errorf("openai provider: %w", err)
		}
		a.Registry.Register(g)
		a.Logger.Info().Str("provider", "openai").Msg("AI provider registered")
	}
	if a.Config.Anthropic.APIKey != "" {
		g, err := llm.NewAnthropicProvider(a.Config.Anthropic, a.Logger)
		if err != nil {
			return fmt.Errorf("anthropic provider: %w", err)
		}
		a.Registry.Register(g)
		a.Logger.Info().Str("provider", "anthropic").Msg("AI provider registered")
	}
	if a.Config.Zhipu.APIKey != "" {
		g, err := llm.NewZhipuProvider(a.Config.Zhipu, a.Logger)
		if err != nil {
			return fmt.Errorf("zhipu provider: %w", err)
		}
		a.Registry.Register(g)
		a.Logger.Info().Str("provider", "zhipu").Msg("AI provider registered")
	}
	if a.Config.Gemini.APIKey != "" {
		g, err := llm.NewGeminiProvider(ctx, a.Config.Gemini, a.Logger)
		if err != nil {
			return fmt.Errorf("gemini provider: %w", err)
		}
		a.Registry.Register(g)
		a.Logger.Info().Str("provider", "gemini").Msg("AI provider registered")
	}

	if len(a.Registry.Names()) == 0 {
		a.Logger.Warn().Msg("No AI providers configured, analysis will use rule-based narratives")
	}
	return nil
}

func (a *App) initHandlers() {
	a.AnalyzeHandler = handlers.NewAnalyzeHandler(a.Pool, a.Config.Analysis, a.Logger)
	a.SSEHandler = handlers.NewSSEHandler(a.Broker, a.Config.Analysis, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Broker, a.Config.Analysis, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Broker, a.Tasks, a.Logger)
}

// Close shuts down components in reverse dependency order.
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application...")

	if a.Pool != nil {
		a.Pool.Stop()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Snapshot cache close failed")
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
