package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ragweave/ragweave/internal/metrics"
)

// Entry is one cached response. Written once per fingerprint, read many
// times. HitCount is maintained in memory; backends persist it on a
// best-effort basis only.
type Entry struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Response    string      `json:"response"`
	CreatedAt   time.Time   `json:"created_at"`
	HitCount    int64       `json:"hit_count"`
}

// Backend persists cache entries. Load replays previously persisted
// entries; a backend signals an unreadable store with a
// types.ErrCacheCorruption error, which the Store recovers from by
// starting empty.
type Backend interface {
	Load(ctx context.Context) (map[Fingerprint]*Entry, error)
	Append(ctx context.Context, e *Entry) error
	Close() error
}

// Store is the in-memory view of the response cache plus its persistence
// backend. All mutation funnels through GetOrCompute, which serializes
// concurrent access per fingerprint, not globally.
type Store struct {
	mu      sync.RWMutex
	entries map[Fingerprint]*Entry

	flight  singleflight.Group
	backend Backend
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Open creates a Store over the given backend and replays persisted
// entries into memory. A nil backend yields a memory-only store. An
// unreadable backend does not fail Open: the store starts empty and the
// condition is logged as a warning.
func Open(ctx context.Context, backend Backend, logger *zap.Logger, collector *metrics.Collector) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries := make(map[Fingerprint]*Entry)
	if backend != nil {
		loaded, err := backend.Load(ctx)
		if err != nil {
			logger.Warn("cache backend unreadable, starting empty", zap.Error(err))
		} else if loaded != nil {
			entries = loaded
		}
	}

	s := &Store{
		entries: entries,
		backend: backend,
		logger:  logger.With(zap.String("component", "cache_store")),
		metrics: collector,
	}
	if collector != nil {
		collector.SetCacheEntries(len(entries))
	}
	s.logger.Info("cache store opened", zap.Int("entries", len(entries)))
	return s, nil
}

// Get returns the cached response for fp, if present.
func (s *Store) Get(fp Fingerprint) (string, bool) {
	s.mu.Lock()
	e, ok := s.entries[fp]
	if ok {
		e.HitCount++
	}
	s.mu.Unlock()

	if s.metrics != nil {
		if ok {
			s.metrics.RecordCacheHit()
		} else {
			s.metrics.RecordCacheMiss()
		}
	}
	if !ok {
		return "", false
	}
	return e.Response, true
}

// GetOrCompute returns the cached response for fp, computing it at most
// once across concurrent callers. All callers blocked on the same
// fingerprint receive the same response, or the same error when compute
// fails; a failed computation writes no entry, so the fingerprint stays
// computable.
func (s *Store) GetOrCompute(ctx context.Context, fp Fingerprint, compute func(ctx context.Context) (string, error)) (string, error) {
	if resp, ok := s.Get(fp); ok {
		return resp, nil
	}

	v, err, shared := s.flight.Do(string(fp), func() (any, error) {
		// A caller that queued behind the winner finds the entry here
		// without recomputing.
		s.mu.RLock()
		e, ok := s.entries[fp]
		s.mu.RUnlock()
		if ok {
			return e.Response, nil
		}

		resp, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		s.put(ctx, fp, resp)
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	if shared && s.metrics != nil {
		s.metrics.RecordCacheDedup()
	}
	return v.(string), nil
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close flushes and closes the persistence backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// put records a freshly computed response. The write-once invariant is
// enforced here: an existing entry is never overwritten.
func (s *Store) put(ctx context.Context, fp Fingerprint, response string) {
	e := &Entry{
		Fingerprint: fp,
		Response:    response,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	if _, exists := s.entries[fp]; exists {
		s.mu.Unlock()
		return
	}
	s.entries[fp] = e
	size := len(s.entries)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetCacheEntries(size)
	}
	if s.backend != nil {
		if err := s.backend.Append(ctx, e); err != nil {
			// The caller already has a valid response; persistence
			// failure only costs durability.
			s.logger.Warn("cache append failed",
				zap.String("fingerprint", string(fp)),
				zap.Error(err))
		}
	}
}
