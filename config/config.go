package config

import (
	"fmt"
	"time"

	"github.com/ragweave/ragweave/strategy"
)

// Config is the complete application configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache" env:"CACHE"`
	Model     ModelConfig     `yaml:"model" env:"MODEL"`
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`
	Strategy  StrategyConfig  `yaml:"strategy" env:"STRATEGY"`
	Workflow  WorkflowConfig  `yaml:"workflow" env:"WORKFLOW"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	// Backend is one of "file", "sqlite", "redis", or "none".
	Backend string `yaml:"backend" env:"BACKEND"`
	// Path is the backing file for the file and sqlite backends.
	Path string `yaml:"path" env:"PATH"`
	// AutoDump flushes and syncs after every write. Safer, slower.
	AutoDump bool `yaml:"auto_dump" env:"AUTO_DUMP"`

	// Redis connection settings, used when Backend is "redis".
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	RedisTTL      time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
}

// ModelConfig configures the model backend and its retry behavior.
type ModelConfig struct {
	BaseURL     string  `yaml:"base_url" env:"BASE_URL"`
	APIKey      string  `yaml:"api_key" env:"API_KEY"`
	Model       string  `yaml:"model" env:"NAME"`
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS"`

	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	BaseDelay  time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	MaxDelay   time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	Jitter     bool          `yaml:"jitter" env:"JITTER"`

	// RateLimit caps backend calls per second, 0 disables it.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// RetrievalConfig configures the retriever.
type RetrievalConfig struct {
	// BaseURL points at an external retrieval service. Empty selects the
	// in-memory retriever.
	BaseURL        string  `yaml:"base_url" env:"BASE_URL"`
	APIKey         string  `yaml:"api_key" env:"API_KEY"`
	TopK           int     `yaml:"top_k" env:"TOP_K"`
	ScoreThreshold float64 `yaml:"score_threshold" env:"SCORE_THRESHOLD"`
}

// StrategyConfig selects the reasoning strategy.
type StrategyConfig struct {
	Name     string `yaml:"name" env:"NAME"`
	MaxSteps int    `yaml:"max_steps" env:"MAX_STEPS"`
	// MaxContextTokens caps retrieved context per prompt, 0 disables.
	MaxContextTokens int `yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
}

// WorkflowConfig tunes batch execution.
type WorkflowConfig struct {
	NumParallel    int           `yaml:"num_parallel" env:"NUM_PARALLEL"`
	TestRounds     int           `yaml:"test_rounds" env:"TEST_ROUNDS"`
	SessionTimeout time.Duration `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level" env:"LEVEL"`
	// Format is "json" or "console".
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths are zap sink URLs, "stdout" by default.
	OutputPaths []string `yaml:"output_paths" env:"-"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend:  "file",
			Path:     "ragweave_cache.jsonl",
			AutoDump: true,
			RedisTTL: 0,
		},
		Model: ModelConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxRetries:  3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    30 * time.Second,
			Jitter:      true,
		},
		Retrieval: RetrievalConfig{
			TopK:           4,
			ScoreThreshold: 0.3,
		},
		Strategy: StrategyConfig{
			Name:     "generation",
			MaxSteps: 8,
		},
		Workflow: WorkflowConfig{
			NumParallel:    4,
			TestRounds:     1,
			SessionTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "ragweave",
			SampleRate:  1.0,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "file", "sqlite", "redis", "none":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if (c.Cache.Backend == "file" || c.Cache.Backend == "sqlite") && c.Cache.Path == "" {
		return fmt.Errorf("cache.path: required for %s backend", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr: required for redis backend")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model: required")
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("model.max_retries: must be >= 0")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k: must be > 0")
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold: must be in [0, 1]")
	}
	if err := strategy.Validate(c.Strategy.Name); err != nil {
		return fmt.Errorf("strategy.name: %w", err)
	}
	if c.Strategy.MaxSteps <= 0 {
		return fmt.Errorf("strategy.max_steps: must be > 0")
	}
	if c.Workflow.NumParallel <= 0 {
		return fmt.Errorf("workflow.num_parallel: must be > 0")
	}
	if c.Workflow.TestRounds <= 0 {
		return fmt.Errorf("workflow.test_rounds: must be > 0")
	}
	return nil
}
