package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Logging     LoggingConfig  `toml:"logging"`
	Markets     MarketsConfig  `toml:"markets"`
	EODHD       EODHDConfig    `toml:"eodhd"`
	Cache       CacheConfig    `toml:"cache"`
	OpenAI      ProviderConfig `toml:"openai"`
	Anthropic   ProviderConfig `toml:"anthropic"`
	Zhipu       ProviderConfig `toml:"zhipu"`
	Gemini      ProviderConfig `toml:"gemini"`
	LLM         LLMConfig      `toml:"llm"`
	Analysis    AnalysisConfig `toml:"analysis"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// MarketsConfig controls ticker parsing defaults.
type MarketsConfig struct {
	DefaultExchange string `toml:"default_exchange"` // Exchange assumed for bare codes (default: "ASX")
}

// EODHDConfig contains EODHD market data API configuration
type EODHDConfig struct {
	APIKey         string        `toml:"api_key"`          // EODHD API key
	BaseURL        string        `toml:"base_url"`         // Override for testing
	RateLimit      int           `toml:"rate_limit"`       // Requests per second
	RequestTimeout time.Duration `toml:"request_timeout"`  // HTTP request timeout
}

// CacheConfig controls the market data snapshot cache.
// TTLs are per data kind: prices and fundamentals age slowly, news quickly.
type CacheConfig struct {
	Path             string `toml:"path"`              // BadgerDB directory
	PriceHours       int    `toml:"price_hours"`       // Price series TTL (default: 6)
	FundamentalHours int    `toml:"fundamental_hours"` // Fundamentals TTL (default: 6)
	NewsHours        int    `toml:"news_hours"`        // News TTL (default: 2)
	PurgeSchedule    string `toml:"purge_schedule"`    // Cron schedule for stale entry purge
}

// ProviderConfig contains configuration for one AI generation provider.
type ProviderConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`    // Custom endpoint (required for zhipu)
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response
	Temperature float32 `toml:"temperature"` // Completion temperature
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
}

// LLMConfig contains provider selection and retry behavior.
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider"` // "openai", "anthropic", "zhipu", or "gemini"
	MaxAttempts     int    `toml:"max_attempts"`     // Total attempts per call (default: 3)
	InitialBackoff  string `toml:"initial_backoff"`  // Backoff before second attempt (default: "1s")
}

// AnalysisConfig contains pipeline and streaming behavior.
type AnalysisConfig struct {
	Workers           int    `toml:"workers"`             // Worker pool size (default: 4)
	BatchLimit        int    `toml:"batch_limit"`         // Maximum codes per batch (default: 10)
	DefaultPeriodDays int    `toml:"default_period_days"` // Price history window (default: 365)
	NewsLimit         int    `toml:"news_limit"`          // Articles fetched per stock (default: 20)
	EventBuffer       int    `toml:"event_buffer"`        // Per-client event channel capacity (default: 256)
	HeartbeatInterval string `toml:"heartbeat_interval"`  // Idle heartbeat interval (default: "30s")

	// Composite score weights. Normalized at use if they do not sum to 1.
	WeightTechnical   float64 `toml:"weight_technical"`
	WeightFundamental float64 `toml:"weight_fundamental"`
	WeightSentiment   float64 `toml:"weight_sentiment"`
}

// HeartbeatDuration parses the configured heartbeat interval, falling back
// to 30 seconds on bad input.
func (a AnalysisConfig) HeartbeatDuration() time.Duration {
	if d, err := time.ParseDuration(a.HeartbeatInterval); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in aestimo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Markets: MarketsConfig{
			DefaultExchange: "ASX",
		},
		EODHD: EODHDConfig{
			APIKey:         "", // User must provide API key in config file
			RateLimit:      10,
			RequestTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Path:             "./data/cache",
			PriceHours:       6,
			FundamentalHours: 6,
			NewsHours:        2,
			PurgeSchedule:    "0 * * * *", // Hourly
		},
		OpenAI: ProviderConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     "5m",
		},
		Anthropic: ProviderConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Temperature: 0.7,
			Timeout:     "5m",
		},
		Zhipu: ProviderConfig{
			Model:       "glm-4-flash",
			BaseURL:     "https://open.bigmodel.cn/api/paas/v4",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     "5m",
		},
		Gemini: ProviderConfig{
			Model:       "gemini-3-flash-preview",
			MaxTokens:   8192,
			Temperature: 0.7,
			Timeout:     "5m",
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			MaxAttempts:     3,
			InitialBackoff:  "1s",
		},
		Analysis: AnalysisConfig{
			Workers:           4,
			BatchLimit:        10,
			DefaultPeriodDays: 365,
			NewsLimit:         20,
			EventBuffer:       256,
			HeartbeatInterval: "30s",
			WeightTechnical:   0.4,
			WeightFundamental: 0.4,
			WeightSentiment:   0.2,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AESTIMO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("AESTIMO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("AESTIMO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("AESTIMO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("AESTIMO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Markets configuration
	if exchange := os.Getenv("AESTIMO_DEFAULT_EXCHANGE"); exchange != "" {
		config.Markets.DefaultExchange = exchange
	}

	// EODHD configuration
	if apiKey := os.Getenv("AESTIMO_EODHD_API_KEY"); apiKey != "" {
		config.EODHD.APIKey = apiKey
	} else if apiKey := os.Getenv("EODHD_API_KEY"); apiKey != "" {
		config.EODHD.APIKey = apiKey
	}
	if baseURL := os.Getenv("AESTIMO_EODHD_BASE_URL"); baseURL != "" {
		config.EODHD.BaseURL = baseURL
	}
	if rateLimit := os.Getenv("AESTIMO_EODHD_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.Atoi(rateLimit); err == nil {
			config.EODHD.RateLimit = rl
		}
	}

	// Cache configuration
	if path := os.Getenv("AESTIMO_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}

	// Provider API keys. Standard vendor env vars are honored, with the
	// AESTIMO_ prefixed names taking priority.
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("AESTIMO_OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if model := os.Getenv("AESTIMO_OPENAI_MODEL"); model != "" {
		config.OpenAI.Model = model
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Anthropic.APIKey = apiKey
	}
	if apiKey := os.Getenv("AESTIMO_ANTHROPIC_API_KEY"); apiKey != "" {
		config.Anthropic.APIKey = apiKey
	}
	if model := os.Getenv("AESTIMO_ANTHROPIC_MODEL"); model != "" {
		config.Anthropic.Model = model
	}

	if apiKey := os.Getenv("ZHIPU_API_KEY"); apiKey != "" {
		config.Zhipu.APIKey = apiKey
	}
	if apiKey := os.Getenv("AESTIMO_ZHIPU_API_KEY"); apiKey != "" {
		config.Zhipu.APIKey = apiKey
	}
	if model := os.Getenv("AESTIMO_ZHIPU_MODEL"); model != "" {
		config.Zhipu.Model = model
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("AESTIMO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("AESTIMO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// LLM configuration
	if provider := os.Getenv("AESTIMO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if maxAttempts := os.Getenv("AESTIMO_LLM_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.LLM.MaxAttempts = ma
		}
	}

	// Analysis configuration
	if workers := os.Getenv("AESTIMO_ANALYSIS_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			config.Analysis.Workers = w
		}
	}
	if batchLimit := os.Getenv("AESTIMO_ANALYSIS_BATCH_LIMIT"); batchLimit != "" {
		if bl, err := strconv.Atoi(batchLimit); err == nil && bl > 0 {
			config.Analysis.BatchLimit = bl
		}
	}
	if periodDays := os.Getenv("AESTIMO_ANALYSIS_PERIOD_DAYS"); periodDays != "" {
		if pd, err := strconv.Atoi(periodDays); err == nil && pd > 0 {
			config.Analysis.DefaultPeriodDays = pd
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ProviderFor returns the provider configuration for a provider name.
func (c *Config) ProviderFor(name string) (ProviderConfig, bool) {
	switch strings.ToLower(name) {
	case "openai":
		return c.OpenAI, true
	case "anthropic", "claude":
		return c.Anthropic, true
	case "zhipu":
		return c.Zhipu, true
	case "gemini":
		return c.Gemini, true
	}
	return ProviderConfig{}, false
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
