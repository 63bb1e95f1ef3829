package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ragweave/ragweave/cache"
	"github.com/ragweave/ragweave/internal/metrics"
	"github.com/ragweave/ragweave/types"
)

// Client is the model client used by reasoning strategies. Run fingerprints
// the request, delegates to the cache store's single-flight entry point,
// and performs the actual backend call inside a retry loop.
type Client struct {
	backend Backend
	store   *cache.Store
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithRateLimit throttles backend calls to rps requests per second with
// the given burst. Zero rps disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithMetrics attaches the Prometheus collector.
func WithMetrics(collector *metrics.Collector) ClientOption {
	return func(c *Client) { c.metrics = collector }
}

// NewClient creates a Client over the given backend. store may be nil, in
// which case every Run performs a live backend call.
func NewClient(backend Backend, store *cache.Store, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		backend: backend,
		store:   store,
		policy:  DefaultRetryPolicy(),
		logger:  logger.With(zap.String("component", "model_client"), zap.String("backend", backend.Name())),
		tracer:  otel.Tracer("ragweave/llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy = c.policy.normalize()
	return c
}

// Run executes one model request. Concurrent Runs with identical
// fingerprints share a single backend call through the cache store;
// successful responses populate the cache, failures never do.
func (c *Client) Run(ctx context.Context, req *Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm.Run",
		trace.WithAttributes(
			attribute.String("llm.model", req.Params.Model),
			attribute.String("llm.backend", c.backend.Name()),
		))
	defer span.End()

	if c.store == nil {
		return c.completeWithRetry(ctx, req)
	}

	fp := cache.NewFingerprint(req.Params.Model, req.Rendered(), req.Params)
	return c.store.GetOrCompute(ctx, fp, func(ctx context.Context) (string, error) {
		return c.completeWithRetry(ctx, req)
	})
}

// completeWithRetry performs the backend call, retrying transient
// failures with exponential backoff. Fatal failures abort immediately;
// exhausting the budget surfaces a terminal transient error wrapping the
// last attempt's fault.
func (c *Client) completeWithRetry(ctx context.Context, req *Request) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.policy.delay(attempt)
			c.logger.Debug("retrying model call",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if c.metrics != nil {
				c.metrics.RecordModelRetry()
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		start := time.Now()
		resp, err := c.backend.Complete(ctx, req)
		if c.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			c.metrics.RecordModelRequest(c.backend.Name(), status, time.Since(start))
		}
		if err == nil {
			if attempt > 0 {
				c.logger.Info("model call recovered", zap.Int("attempt", attempt))
			}
			return resp, nil
		}

		if !types.IsTransient(err) {
			c.logger.Debug("fatal backend error, not retrying", zap.Error(err))
			return "", err
		}
		lastErr = err
	}

	c.logger.Warn("retry budget exhausted",
		zap.Int("attempts", c.policy.MaxRetries+1),
		zap.Error(lastErr))
	return "", types.Transient(types.ErrRetryExhausted, "retries exhausted").
		WithBackend(c.backend.Name()).
		WithCause(lastErr)
}
