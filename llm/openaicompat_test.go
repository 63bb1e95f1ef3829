package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ragweave/ragweave/llm"
	"github.com/ragweave/ragweave/types"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func okBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	return string(b)
}

func TestOpenAICompatComplete(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(okBody("the answer")))
	})

	backend := llm.NewOpenAICompatBackend(srv.URL, "sk-test", llm.WithLogger(zap.NewNop()))
	resp, err := backend.Complete(context.Background(), &llm.Request{
		Prompt: "what is up",
		System: "be brief",
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "earlier question"},
			{Role: llm.RoleAssistant, Content: "earlier answer"},
		},
		Params: llm.Params{Model: "gpt-4o-mini"},
	})

	require.NoError(t, err)
	assert.Equal(t, "the answer", resp)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	require.Len(t, gotBody.Messages, 4)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "what is up", gotBody.Messages[3].Content)
}

func TestOpenAICompatStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
		code      types.ErrorCode
	}{
		{http.StatusBadRequest, false, types.ErrInvalidRequest},
		{http.StatusUnauthorized, false, types.ErrUnauthorized},
		{http.StatusForbidden, false, types.ErrForbidden},
		{http.StatusTooManyRequests, true, types.ErrRateLimited},
		{http.StatusBadGateway, true, types.ErrUpstreamError},
		{http.StatusServiceUnavailable, true, types.ErrUpstreamError},
		{http.StatusGatewayTimeout, true, types.ErrUpstreamTimeout},
		{529, true, types.ErrRateLimited},
		{http.StatusInternalServerError, true, types.ErrUpstreamError},
	}

	for _, tc := range cases {
		srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error":{"message":"upstream says no"}}`))
		})

		backend := llm.NewOpenAICompatBackend(srv.URL, "")
		_, err := backend.Complete(context.Background(), &llm.Request{
			Prompt: "q", Params: llm.Params{Model: "m"},
		})

		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.transient, types.IsTransient(err), "status %d", tc.status)
		assert.Equal(t, tc.code, types.GetErrorCode(err), "status %d", tc.status)
	}
}

func TestOpenAICompatNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refused connection from here on

	backend := llm.NewOpenAICompatBackend(srv.URL, "")
	_, err := backend.Complete(context.Background(), &llm.Request{
		Prompt: "q", Params: llm.Params{Model: "m"},
	})
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
}

func TestOpenAICompatThroughClientRetries(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(okBody("eventually")))
	})

	backend := llm.NewOpenAICompatBackend(srv.URL, "")
	client := llm.NewClient(backend, nil, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(3)))

	resp, err := client.Run(context.Background(), &llm.Request{
		Prompt: "q", Params: llm.Params{Model: "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, "eventually", resp)
	assert.Equal(t, int32(3), calls.Load())
}
