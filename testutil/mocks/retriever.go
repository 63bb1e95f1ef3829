package mocks

import (
	"context"
	"sync"

	"github.com/ragweave/ragweave/retrieval"
)

// FixedRetriever returns a preset result list for every query, after
// applying the standard filtering rules. It records the queries it sees.
type FixedRetriever struct {
	mu      sync.Mutex
	results []retrieval.Result
	queries []string

	// Err, when set, fails every Retrieve.
	Err error

	// ByQuery, when set, overrides the fixed results for specific queries.
	ByQuery map[string][]retrieval.Result
}

// NewFixedRetriever creates a retriever that always serves results.
func NewFixedRetriever(results ...retrieval.Result) *FixedRetriever {
	return &FixedRetriever{results: results}
}

// Retrieve implements retrieval.Retriever.
func (f *FixedRetriever) Retrieve(ctx context.Context, query string, k int, threshold float64) ([]retrieval.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.queries = append(f.queries, query)
	results := f.results
	if f.ByQuery != nil {
		if r, ok := f.ByQuery[query]; ok {
			results = r
		}
	}
	err := f.Err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return retrieval.Filter(results, k, threshold), nil
}

// Queries returns every query received so far.
func (f *FixedRetriever) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}
