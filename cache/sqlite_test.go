package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)

	s, err := Open(context.Background(), b, zap.NewNop(), nil)
	require.NoError(t, err)

	fp := NewFingerprint("gpt-4", "what is the capital of France?", map[string]any{"temperature": 0.1})
	_, err = s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
		return "Paris", nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	b2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	s2, err := Open(context.Background(), b2, zap.NewNop(), nil)
	require.NoError(t, err)
	defer s2.Close()

	got, ok := s2.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "Paris", got)
}

func TestSQLiteBackend_AppendIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()

	fp := NewFingerprint("m", "p", nil)
	require.NoError(t, b.Append(context.Background(), &Entry{Fingerprint: fp, Response: "first"}))
	require.NoError(t, b.Append(context.Background(), &Entry{Fingerprint: fp, Response: "second"}))

	entries, err := b.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, entries, fp)
	assert.Equal(t, "first", entries[fp].Response)
}
