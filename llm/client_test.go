package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ragweave/ragweave/cache"
	"github.com/ragweave/ragweave/llm"
	"github.com/ragweave/ragweave/testutil/mocks"
	"github.com/ragweave/ragweave/types"
)

func fastPolicy(maxRetries int) llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Jitter:     false,
	}
}

func newRequest(prompt string) *llm.Request {
	return &llm.Request{
		Prompt: prompt,
		Params: llm.Params{Model: "test-model", Temperature: 0.2},
	}
}

func TestRunSuccessFirstAttempt(t *testing.T) {
	backend := mocks.NewScriptedBackend()
	backend.QueueResponse("answer")
	client := llm.NewClient(backend, nil, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(3)))

	resp, err := client.Run(context.Background(), newRequest("q"))
	require.NoError(t, err)
	assert.Equal(t, "answer", resp)
	assert.Equal(t, 1, backend.Calls())
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	backend := mocks.NewScriptedBackend()
	backend.QueueTransient("blip").QueueTransient("blip").QueueResponse("recovered")
	client := llm.NewClient(backend, nil, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(3)))

	resp, err := client.Run(context.Background(), newRequest("q"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp)
	assert.Equal(t, 3, backend.Calls())
}

func TestRunExhaustsRetryBudget(t *testing.T) {
	// max_retries=2 means exactly 3 invocations: initial plus two retries.
	backend := mocks.NewScriptedBackend()
	for i := 0; i < 10; i++ {
		backend.QueueTransient("down")
	}
	client := llm.NewClient(backend, nil, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(2)))

	_, err := client.Run(context.Background(), newRequest("q"))
	require.Error(t, err)
	assert.Equal(t, 3, backend.Calls())
	assert.Equal(t, types.ErrRetryExhausted, types.GetErrorCode(err))
	assert.True(t, types.IsTransient(err))

	var terr *types.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(terr.Cause))
}

func TestRunFatalShortCircuits(t *testing.T) {
	backend := mocks.NewScriptedBackend()
	backend.QueueFatal("bad request")
	client := llm.NewClient(backend, nil, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(5)))

	_, err := client.Run(context.Background(), newRequest("q"))
	require.Error(t, err)
	assert.Equal(t, 1, backend.Calls(), "fatal errors must not be retried")
	assert.True(t, types.IsFatal(err))
}

func TestRunFatalLeavesCacheEmpty(t *testing.T) {
	store, err := cache.Open(context.Background(), nil, zap.NewNop(), nil)
	require.NoError(t, err)
	defer store.Close()

	backend := mocks.NewScriptedBackend()
	backend.QueueFatal("rejected")
	client := llm.NewClient(backend, store, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(3)))

	_, err = client.Run(context.Background(), newRequest("q"))
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestRunCachesSuccessfulResponse(t *testing.T) {
	store, err := cache.Open(context.Background(), nil, zap.NewNop(), nil)
	require.NoError(t, err)
	defer store.Close()

	backend := mocks.NewScriptedBackend()
	backend.QueueResponse("cached answer")
	client := llm.NewClient(backend, store, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(1)))

	req := newRequest("same question")
	first, err := client.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := client.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Calls(), "second call must be served from cache")
}

func TestRunDistinctParamsMissCache(t *testing.T) {
	store, err := cache.Open(context.Background(), nil, zap.NewNop(), nil)
	require.NoError(t, err)
	defer store.Close()

	backend := mocks.NewScriptedBackend()
	backend.QueueResponse("a").QueueResponse("b")
	client := llm.NewClient(backend, store, zap.NewNop(), llm.WithRetryPolicy(fastPolicy(1)))

	hot := newRequest("q")
	cold := newRequest("q")
	cold.Params.Temperature = 0.9

	_, err = client.Run(context.Background(), hot)
	require.NoError(t, err)
	_, err = client.Run(context.Background(), cold)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls())
}

func TestRunContextCancelledDuringBackoff(t *testing.T) {
	backend := mocks.NewScriptedBackend()
	backend.QueueTransient("down")
	policy := llm.RetryPolicy{MaxRetries: 3, BaseDelay: 10 * time.Second, MaxDelay: 10 * time.Second}
	client := llm.NewClient(backend, nil, zap.NewNop(), llm.WithRetryPolicy(policy))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Run(ctx, newRequest("q"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, backend.Calls())
}
