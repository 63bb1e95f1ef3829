package retrieval

import (
	"context"
	"sort"
)

// Chunk is one indexed passage of a source document.
type Chunk struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Result is a retrieved chunk with its relevance score, higher meaning
// more relevant.
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Retriever finds the chunks most relevant to a query. Implementations
// must return results sorted by descending score, already filtered to
// scores >= threshold, and at most k of them. An empty result set is not
// an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, threshold float64) ([]Result, error)
}

// Filter applies the shared post-processing contract: stable sort by
// descending score, drop everything below threshold, keep the top k.
// Implementations score however they like and funnel through here. The
// input slice is left untouched.
func Filter(results []Result, k int, threshold float64) []Result {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	out := sorted[:0]
	for _, r := range sorted {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
