package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileBackend_AppendAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.jsonl")

	for _, autoDump := range []bool{true, false} {
		b, err := NewFileBackend(path, autoDump, zap.NewNop())
		require.NoError(t, err)

		s, err := Open(context.Background(), b, zap.NewNop(), nil)
		require.NoError(t, err)

		fp := NewFingerprint("m", "prompt", autoDump)
		_, err = s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
			return "persisted", nil
		})
		require.NoError(t, err)
		require.NoError(t, s.Close())

		// Reopen and confirm the entry replays.
		b2, err := NewFileBackend(path, autoDump, zap.NewNop())
		require.NoError(t, err)
		s2, err := Open(context.Background(), b2, zap.NewNop(), nil)
		require.NoError(t, err)

		got, ok := s2.Get(fp)
		require.True(t, ok, "entry must survive reopen (autoDump=%v)", autoDump)
		assert.Equal(t, "persisted", got)
		require.NoError(t, s2.Close())
	}
}

func TestFileBackend_PartialTrailingRecordIgnored(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.jsonl")

	b, err := NewFileBackend(path, true, zap.NewNop())
	require.NoError(t, err)
	fpA := NewFingerprint("m", "a", nil)
	fpB := NewFingerprint("m", "b", nil)
	require.NoError(t, b.Append(context.Background(), &Entry{Fingerprint: fpA, Response: "alpha"}))
	require.NoError(t, b.Append(context.Background(), &Entry{Fingerprint: fpB, Response: "beta"}))
	require.NoError(t, b.Close())

	// Simulate a crash mid-write: a truncated record at the tail.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"fingerprint":"deadbeef","resp`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b2, err := NewFileBackend(path, true, zap.NewNop())
	require.NoError(t, err)
	entries, err := b2.Load(context.Background())
	require.NoError(t, err, "a partial tail is not corruption")
	assert.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[fpA].Response)
	assert.Equal(t, "beta", entries[fpB].Response)
	require.NoError(t, b2.Close())
}

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "never-written.jsonl")
	b := &FileBackend{path: path, logger: zap.NewNop()}
	entries, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileBackend_GarbageFileFallsBackEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("\x00\x01\x02 not json at all\n"), 0o644))

	b, err := NewFileBackend(path, true, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	// Garbage from the first record means nothing replays, but the store
	// still opens and serves.
	s, err := Open(context.Background(), b, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	fp := NewFingerprint("m", "fresh", nil)
	resp, err := s.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
		return "works", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "works", resp)
}

func TestFileBackend_DuplicateLinesFirstWins(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.jsonl")
	fp := NewFingerprint("m", "dup", nil)

	b, err := NewFileBackend(path, true, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, b.Append(context.Background(), &Entry{Fingerprint: fp, Response: "original"}))
	require.NoError(t, b.Append(context.Background(), &Entry{Fingerprint: fp, Response: "imposter"}))
	require.NoError(t, b.Close())

	b2, err := NewFileBackend(path, true, zap.NewNop())
	require.NoError(t, err)
	defer b2.Close()
	entries, err := b2.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, entries, fp)
	assert.Equal(t, "original", entries[fp].Response)
}
