// Package ragweave wires the question-answering core together: a cached
// retrying model client, a retriever, a reasoning strategy, and a batch
// scheduler, all assembled from one configuration object.
package ragweave

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ragweave/ragweave/cache"
	"github.com/ragweave/ragweave/config"
	"github.com/ragweave/ragweave/internal/metrics"
	"github.com/ragweave/ragweave/internal/telemetry"
	"github.com/ragweave/ragweave/llm"
	"github.com/ragweave/ragweave/retrieval"
	"github.com/ragweave/ragweave/strategy"
	"github.com/ragweave/ragweave/workflow"
)

// Engine is the assembled question-answering pipeline.
type Engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *cache.Store
	client    *llm.Client
	retriever retrieval.Retriever
	runner    *workflow.SessionRunner
	scheduler *workflow.Scheduler
	providers *telemetry.Providers
}

// Option customizes engine assembly.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	retriever retrieval.Retriever
	backend   llm.Backend
	registry  prometheus.Registerer
}

// WithLogger replaces the logger built from the config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRetriever replaces the config-selected retriever, e.g. with an
// in-memory index populated by the host application.
func WithRetriever(r retrieval.Retriever) Option {
	return func(o *options) { o.retriever = r }
}

// WithModelBackend replaces the config-selected model backend.
func WithModelBackend(b llm.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithMetricsRegistry sets the Prometheus registerer, defaulting to the
// global one.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// New assembles an Engine from cfg. The configuration must already be
// validated; config.Loader.Load does that.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = telemetry.NewLogger(telemetry.LogConfig{
			Level:       cfg.Log.Level,
			Format:      cfg.Log.Format,
			OutputPaths: cfg.Log.OutputPaths,
		})
	}

	providers, err := telemetry.Init(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	registry := o.registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	collector := metrics.NewCollector("ragweave", registry, logger)

	backend, err := buildCacheBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(ctx, backend, logger, collector)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	modelBackend := o.backend
	if modelBackend == nil {
		modelBackend = llm.NewOpenAICompatBackend(cfg.Model.BaseURL, cfg.Model.APIKey,
			llm.WithLogger(logger))
	}
	client := llm.NewClient(modelBackend, store, logger,
		llm.WithRetryPolicy(llm.RetryPolicy{
			MaxRetries: cfg.Model.MaxRetries,
			BaseDelay:  cfg.Model.BaseDelay,
			MaxDelay:   cfg.Model.MaxDelay,
			Jitter:     cfg.Model.Jitter,
		}),
		llm.WithRateLimit(cfg.Model.RateLimit, cfg.Model.RateBurst),
		llm.WithMetrics(collector),
	)

	retriever := o.retriever
	if retriever == nil {
		if cfg.Retrieval.BaseURL != "" {
			retriever = retrieval.NewHTTPRetriever(cfg.Retrieval.BaseURL, cfg.Retrieval.APIKey,
				retrieval.WithRetrieverLogger(logger),
				retrieval.WithRetrieverMetrics(collector))
		} else {
			retriever = retrieval.NewMemoryRetriever(
				retrieval.WithMemoryLogger(logger),
				retrieval.WithMemoryMetrics(collector))
		}
	}

	runner, err := workflow.NewSessionRunner(cfg.Strategy.Name,
		strategy.Deps{Model: client, Retriever: retriever, Logger: logger},
		strategy.Config{
			MaxSteps:         cfg.Strategy.MaxSteps,
			MaxContextTokens: cfg.Strategy.MaxContextTokens,
			TopK:             cfg.Retrieval.TopK,
			ScoreThreshold:   cfg.Retrieval.ScoreThreshold,
			Params: llm.Params{
				Model:       cfg.Model.Model,
				Temperature: cfg.Model.Temperature,
				MaxTokens:   cfg.Model.MaxTokens,
			},
		},
		logger,
		workflow.WithTimeout(cfg.Workflow.SessionTimeout),
		workflow.WithMetrics(collector),
	)
	if err != nil {
		return nil, err
	}

	scheduler := workflow.NewScheduler(runner, cfg.Workflow.NumParallel, logger,
		workflow.WithTestRounds(cfg.Workflow.TestRounds))

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		client:    client,
		retriever: retriever,
		runner:    runner,
		scheduler: scheduler,
		providers: providers,
	}, nil
}

func buildCacheBackend(cfg *config.Config, logger *zap.Logger) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "file":
		return cache.NewFileBackend(cfg.Cache.Path, cfg.Cache.AutoDump, logger)
	case "sqlite":
		return cache.NewSQLiteBackend(cfg.Cache.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		return cache.NewRedisBackend(client, "ragweave:cache:", cfg.Cache.RedisTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// Ask runs one question through a single session.
func (e *Engine) Ask(ctx context.Context, question workflow.Question) *workflow.Answer {
	return e.runner.Run(ctx, question)
}

// RunBatch runs an ordered batch of questions with the configured
// parallelism and test rounds.
func (e *Engine) RunBatch(ctx context.Context, questions []workflow.Question) *workflow.BatchResult {
	return e.scheduler.Run(ctx, questions)
}

// Retriever exposes the engine's retriever, so hosts using the in-memory
// implementation can index documents.
func (e *Engine) Retriever() retrieval.Retriever {
	return e.retriever
}

// CacheLen reports the number of cached model responses.
func (e *Engine) CacheLen() int {
	return e.store.Len()
}

// Close flushes the cache and shuts telemetry down.
func (e *Engine) Close(ctx context.Context) error {
	err := e.store.Close()
	if e.providers != nil {
		if terr := e.providers.Shutdown(ctx); terr != nil && err == nil {
			err = terr
		}
	}
	_ = e.logger.Sync()
	return err
}
