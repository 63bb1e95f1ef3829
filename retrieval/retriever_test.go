package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func results(scores ...float64) []Result {
	out := make([]Result, len(scores))
	for i, s := range scores {
		out[i] = Result{Chunk: Chunk{ID: string(rune('a' + i))}, Score: s}
	}
	return out
}

func TestFilterDropsBelowThreshold(t *testing.T) {
	out := Filter(results(0.9, 0.5, 0.1), 10, 0.3)

	require.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, 0.5, out[1].Score)
}

func TestFilterLeavesInputUntouched(t *testing.T) {
	in := results(0.2, 0.9, 0.5)
	out := Filter(in, 2, 0.3)

	require.Len(t, out, 2)
	assert.Equal(t, []float64{0.2, 0.9, 0.5}, []float64{in[0].Score, in[1].Score, in[2].Score})
	assert.Equal(t, "a", in[0].Chunk.ID)
}

func TestFilterThresholdIsInclusive(t *testing.T) {
	out := Filter(results(0.3), 10, 0.3)
	require.Len(t, out, 1)
}

func TestFilterTopK(t *testing.T) {
	out := Filter(results(0.2, 0.8, 0.6, 0.9), 2, 0.0)
	require.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, 0.8, out[1].Score)
}

func TestFilterEmptyResultIsNotError(t *testing.T) {
	out := Filter(results(0.1, 0.2), 5, 0.9)
	assert.Empty(t, out)
}

func TestFilterProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		scores := rapid.SliceOfN(rapid.Float64Range(0, 1), 0, 40).Draw(t, "scores")
		k := rapid.IntRange(1, 20).Draw(t, "k")
		threshold := rapid.Float64Range(0, 1).Draw(t, "threshold")

		out := Filter(results(scores...), k, threshold)

		assert.LessOrEqual(t, len(out), k)
		assert.True(t, sort.SliceIsSorted(out, func(i, j int) bool {
			return out[i].Score > out[j].Score
		}))
		for _, r := range out {
			assert.GreaterOrEqual(t, r.Score, threshold)
		}
	})
}

func TestMemoryRetrieverKeywordFallback(t *testing.T) {
	m := NewMemoryRetriever()
	m.Add(
		Chunk{ID: "1", Text: "the capital of france is paris"},
		Chunk{ID: "2", Text: "go is a compiled language"},
		Chunk{ID: "3", Text: "paris hosts the louvre museum"},
	)

	out, err := m.Retrieve(context.Background(), "capital of france", 2, 0.01)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "1", out[0].Chunk.ID)
}

func TestMemoryRetrieverCosine(t *testing.T) {
	embed := func(_ context.Context, text string) ([]float64, error) {
		if text == "query" {
			return []float64{1, 0}, nil
		}
		return []float64{0, 1}, nil
	}
	m := NewMemoryRetriever(WithEmbedder(embed))
	m.Add(
		Chunk{ID: "aligned", Text: "x", Embedding: []float64{0.9, 0.1}},
		Chunk{ID: "orthogonal", Text: "y", Embedding: []float64{0, 1}},
	)

	out, err := m.Retrieve(context.Background(), "query", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "aligned", out[0].Chunk.ID)
}

func TestHTTPRetriever(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/retrieve", r.URL.Path)
		var req retrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "who wrote hamlet", req.Query)

		// Unsorted and unfiltered on purpose; the client normalizes.
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "c2", "doc_id": "d", "text": "low", "score": 0.1},
				{"id": "c1", "doc_id": "d", "text": "high", "score": 0.95},
				{"id": "c3", "doc_id": "d", "text": "mid", "score": 0.5},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, "key")
	out, err := r.Retrieve(context.Background(), "who wrote hamlet", 5, 0.3)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c1", out[0].Chunk.ID)
	assert.Equal(t, "c3", out[1].Chunk.ID)
}

func TestHTTPRetrieverServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, "")
	_, err := r.Retrieve(context.Background(), "q", 5, 0.3)
	require.Error(t, err)
}
