package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ragweave/ragweave/internal/metrics"
	"github.com/ragweave/ragweave/types"
)

// HTTPRetriever queries an external retrieval service over a small JSON
// API: POST {base}/retrieve with the query and limits, scored chunks
// back. Post-processing still happens client side, so a service that
// ignores the threshold behaves identically to one that honors it.
type HTTPRetriever struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Collector
}

// HTTPRetrieverOption configures an HTTPRetriever.
type HTTPRetrieverOption func(*HTTPRetriever)

// WithRetrieverHTTPClient replaces the default HTTP client.
func WithRetrieverHTTPClient(hc *http.Client) HTTPRetrieverOption {
	return func(r *HTTPRetriever) { r.httpClient = hc }
}

// WithRetrieverLogger attaches a logger.
func WithRetrieverLogger(logger *zap.Logger) HTTPRetrieverOption {
	return func(r *HTTPRetriever) { r.logger = logger }
}

// WithRetrieverMetrics attaches the Prometheus collector.
func WithRetrieverMetrics(collector *metrics.Collector) HTTPRetrieverOption {
	return func(r *HTTPRetriever) { r.metrics = collector }
}

// NewHTTPRetriever creates a client for the retrieval service at baseURL.
func NewHTTPRetriever(baseURL, apiKey string, opts ...HTTPRetrieverOption) *HTTPRetriever {
	r := &HTTPRetriever{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type retrieveRequest struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

type retrieveResponse struct {
	Results []struct {
		ID    string  `json:"id"`
		DocID string  `json:"doc_id"`
		Text  string  `json:"text"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Retrieve implements Retriever.
func (r *HTTPRetriever) Retrieve(ctx context.Context, query string, k int, threshold float64) ([]Result, error) {
	payload, err := json.Marshal(retrieveRequest{Query: query, TopK: k, Threshold: threshold})
	if err != nil {
		return nil, types.Fatal(types.ErrInvalidRequest, "marshal retrieve request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/retrieve", bytes.NewReader(payload))
	if err != nil {
		return nil, types.Fatal(types.ErrInvalidRequest, "build retrieve request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.Transient(types.ErrUpstreamError, "retrieval request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, types.Transient(types.ErrUpstreamError, "read retrieval response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		code := types.ErrUpstreamError
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		e := types.NewError(code, "retrieval service error").WithRetryable(retryable)
		r.logger.Warn("retrieval service error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(raw))))
		return nil, e
	}

	var parsed retrieveResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.Transient(types.ErrUpstreamError, "decode retrieval response").WithCause(err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		results = append(results, Result{
			Chunk: Chunk{ID: item.ID, DocID: item.DocID, Text: item.Text},
			Score: item.Score,
		})
	}
	filtered := Filter(results, k, threshold)
	if r.metrics != nil {
		r.metrics.RecordRetrieval(len(filtered))
	}
	return filtered, nil
}
