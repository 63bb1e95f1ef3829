package retrieval

import (
	"context"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ragweave/ragweave/internal/metrics"
)

// EmbedFunc turns text into a dense vector. It is called for queries
// only; chunks carry their embeddings at Add time.
type EmbedFunc func(ctx context.Context, text string) ([]float64, error)

// MemoryRetriever is an in-process index. With an EmbedFunc it scores by
// cosine similarity against chunk embeddings; without one it falls back
// to Jaccard word overlap, which is enough for small corpora and tests.
type MemoryRetriever struct {
	mu      sync.RWMutex
	chunks  []Chunk
	embed   EmbedFunc
	logger  *zap.Logger
	metrics *metrics.Collector
}

// MemoryOption configures a MemoryRetriever.
type MemoryOption func(*MemoryRetriever)

// WithEmbedder enables cosine scoring through fn.
func WithEmbedder(fn EmbedFunc) MemoryOption {
	return func(m *MemoryRetriever) { m.embed = fn }
}

// WithMemoryLogger attaches a logger.
func WithMemoryLogger(logger *zap.Logger) MemoryOption {
	return func(m *MemoryRetriever) { m.logger = logger }
}

// WithMemoryMetrics attaches the Prometheus collector.
func WithMemoryMetrics(collector *metrics.Collector) MemoryOption {
	return func(m *MemoryRetriever) { m.metrics = collector }
}

// NewMemoryRetriever creates an empty in-memory index.
func NewMemoryRetriever(opts ...MemoryOption) *MemoryRetriever {
	m := &MemoryRetriever{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add indexes chunks. Safe for concurrent use with Retrieve.
func (m *MemoryRetriever) Add(chunks ...Chunk) {
	m.mu.Lock()
	m.chunks = append(m.chunks, chunks...)
	m.mu.Unlock()
}

// Len returns the number of indexed chunks.
func (m *MemoryRetriever) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Retrieve implements Retriever.
func (m *MemoryRetriever) Retrieve(ctx context.Context, query string, k int, threshold float64) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var queryVec []float64
	if m.embed != nil {
		vec, err := m.embed(ctx, query)
		if err != nil {
			return nil, err
		}
		queryVec = vec
	}

	m.mu.RLock()
	scored := make([]Result, 0, len(m.chunks))
	for _, c := range m.chunks {
		var score float64
		if queryVec != nil && len(c.Embedding) > 0 {
			score = cosineSimilarity(queryVec, c.Embedding)
		} else {
			score = jaccardSimilarity(query, c.Text)
		}
		scored = append(scored, Result{Chunk: c, Score: score})
	}
	m.mu.RUnlock()

	results := Filter(scored, k, threshold)
	if m.metrics != nil {
		m.metrics.RecordRetrieval(len(results))
	}
	m.logger.Debug("memory retrieval",
		zap.String("query", query),
		zap.Int("candidates", len(scored)),
		zap.Int("returned", len(results)))
	return results, nil
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func jaccardSimilarity(text1, text2 string) float64 {
	words1 := tokenizeToSet(text1)
	words2 := tokenizeToSet(text2)

	if len(words1) == 0 && len(words2) == 0 {
		return 1.0
	}

	intersection := 0
	for w := range words1 {
		if words2[w] {
			intersection++
		}
	}

	union := len(words1) + len(words2) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func tokenizeToSet(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
