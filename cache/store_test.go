package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), nil, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func TestStore_GetOrCompute_SingleCaller(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	fp := NewFingerprint("m", "p", nil)

	calls := 0
	resp, err := s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
		calls++
		return "answer", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp)
	assert.Equal(t, 1, calls)

	// Second call is a pure cache hit.
	resp, err = s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
		calls++
		return "different", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp)
	assert.Equal(t, 1, calls)
}

func TestStore_GetOrCompute_ConcurrentDedup(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	fp := NewFingerprint("m", "expensive prompt", map[string]any{"temperature": 0.1})

	const n = 32
	var computations atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			results[idx], errs[idx] = s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
				computations.Add(1)
				time.Sleep(20 * time.Millisecond) // widen the race window
				return "shared answer", nil
			})
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), computations.Load(), "compute must run exactly once")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared answer", results[i])
	}
}

func TestStore_GetOrCompute_FailurePropagatesToAllWaiters(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	fp := NewFingerprint("m", "failing prompt", nil)
	boom := errors.New("backend down")

	const n = 8
	var computations atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			_, errs[idx] = s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
				computations.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "", boom
			})
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), computations.Load())
	for i := 0; i < n; i++ {
		assert.ErrorIs(t, errs[i], boom)
	}

	// Failed computation writes no entry; the fingerprint is retryable.
	_, ok := s.Get(fp)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	resp, err := s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp)
}

func TestStore_WriteOnce(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	fp := NewFingerprint("m", "p", nil)

	s.put(context.Background(), fp, "first")
	s.put(context.Background(), fp, "second")

	resp, ok := s.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "first", resp, "an entry is never overwritten")
}

func TestStore_GetRoundtripPayloads(t *testing.T) {
	t.Parallel()

	s := newMemoryStore(t)
	payloads := []string{
		"",
		"plain ascii",
		"unicode: 日本語テキスト, emoji 🤖, accents àéîõü",
		"with\nnewlines\tand\ttabs",
		`{"embedded":"json"}`,
	}

	for i, payload := range payloads {
		fp := NewFingerprint("m", "prompt", i)
		_, err := s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
			return payload, nil
		})
		require.NoError(t, err)

		got, ok := s.Get(fp)
		require.True(t, ok)
		assert.Equal(t, payload, got)
	}
}

// failingBackend reports corruption on Load to exercise the fallback path.
type failingBackend struct{}

func (failingBackend) Load(ctx context.Context) (map[Fingerprint]*Entry, error) {
	return nil, errors.New("disk on fire")
}
func (failingBackend) Append(ctx context.Context, e *Entry) error { return nil }
func (failingBackend) Close() error                               { return nil }

func TestOpen_UnreadableBackendStartsEmpty(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), failingBackend{}, zap.NewNop(), nil)
	require.NoError(t, err, "corruption must not fail Open")
	assert.Equal(t, 0, s.Len())
}
