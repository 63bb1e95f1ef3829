// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the module's Prometheus instruments.
type Collector struct {
	// Cache instruments
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheDeduped    prometheus.Counter
	cacheEntries    prometheus.Gauge

	// Model-client instruments
	modelRequestsTotal   *prometheus.CounterVec
	modelRequestDuration *prometheus.HistogramVec
	modelRetriesTotal    prometheus.Counter

	// Retrieval instruments
	retrievalsTotal   prometheus.Counter
	retrievalReturned prometheus.Histogram

	// Session instruments
	sessionsTotal   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a Collector registered against reg. Pass
// prometheus.DefaultRegisterer for production use; tests should pass a
// fresh registry to avoid duplicate-registration panics.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of response cache hits",
	})
	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of response cache misses",
	})
	c.cacheDeduped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_inflight_deduped_total",
		Help:      "Calls coalesced onto an already in-flight computation",
	})
	c.cacheEntries = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Number of entries currently held by the response cache",
	})

	c.modelRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_requests_total",
		Help:      "Total model backend invocations",
	}, []string{"backend", "status"})
	c.modelRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_request_duration_seconds",
		Help:      "Model backend call duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})
	c.modelRetriesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_retries_total",
		Help:      "Total retry attempts against model backends",
	})

	c.retrievalsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrievals_total",
		Help:      "Total retriever queries issued",
	})
	c.retrievalReturned = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieval_results_returned",
		Help:      "Number of passages returned per retrieval after filtering",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	c.sessionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Completed reasoning sessions by outcome",
	}, []string{"strategy", "outcome"})
	c.sessionDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Reasoning session duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"strategy"})

	return c
}

// RecordCacheHit increments the cache-hit counter.
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss increments the cache-miss counter.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// RecordCacheDedup counts a caller coalesced onto an in-flight computation.
func (c *Collector) RecordCacheDedup() { c.cacheDeduped.Inc() }

// SetCacheEntries reports the current entry count.
func (c *Collector) SetCacheEntries(n int) { c.cacheEntries.Set(float64(n)) }

// RecordModelRequest records one backend invocation with its outcome.
func (c *Collector) RecordModelRequest(backend, status string, d time.Duration) {
	c.modelRequestsTotal.WithLabelValues(backend, status).Inc()
	c.modelRequestDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordModelRetry counts one retry attempt.
func (c *Collector) RecordModelRetry() { c.modelRetriesTotal.Inc() }

// RecordRetrieval records one retriever query and its filtered result count.
func (c *Collector) RecordRetrieval(returned int) {
	c.retrievalsTotal.Inc()
	c.retrievalReturned.Observe(float64(returned))
}

// RecordSession records one finished session.
func (c *Collector) RecordSession(strategy, outcome string, d time.Duration) {
	c.sessionsTotal.WithLabelValues(strategy, outcome).Inc()
	c.sessionDuration.WithLabelValues(strategy).Observe(d.Seconds())
}
