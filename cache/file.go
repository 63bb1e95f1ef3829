package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ragweave/ragweave/types"
)

// FileBackend persists entries as an append-only JSONL log. With AutoDump
// enabled every append is flushed and fsynced before returning (safer,
// slower); otherwise writes sit in a buffer until it fills or the backend
// is closed, so a crash can lose the most recent entries.
type FileBackend struct {
	mu       sync.Mutex
	path     string
	autoDump bool
	f        *os.File
	w        *bufio.Writer
	closed   bool
	logger   *zap.Logger
}

// NewFileBackend opens (creating if needed) the backing file at path.
func NewFileBackend(path string, autoDump bool, logger *zap.Logger) (*FileBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileBackend{
		path:     path,
		autoDump: autoDump,
		f:        f,
		w:        bufio.NewWriter(f),
		logger:   logger.With(zap.String("component", "cache_file")),
	}, nil
}

// Load replays the log. Records after the last complete line are ignored,
// not treated as corruption of the whole file: an unclean shutdown leaves
// at most one partial trailing record. An unreadable file surfaces as a
// types.ErrCacheCorruption error for the Store to recover from.
func (b *FileBackend) Load(ctx context.Context) (map[Fingerprint]*Entry, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[Fingerprint]*Entry{}, nil
		}
		return nil, types.NewError(types.ErrCacheCorruption, "open cache file").WithCause(err)
	}
	defer f.Close()

	entries := make(map[Fingerprint]*Entry)
	r := bufio.NewReader(f)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := r.ReadBytes('\n')
		if len(raw) > 0 {
			var e Entry
			if uerr := json.Unmarshal(raw, &e); uerr != nil {
				// Truncated or garbled tail; everything before it stands.
				b.logger.Warn("ignoring incomplete cache record",
					zap.Int("line", line),
					zap.Error(uerr))
				break
			}
			// First write wins, matching the store's write-once rule.
			if _, dup := entries[e.Fingerprint]; !dup {
				entry := e
				entries[e.Fingerprint] = &entry
			}
			line++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, types.NewError(types.ErrCacheCorruption, "read cache file").WithCause(err)
		}
	}
	return entries, nil
}

// Append writes one entry as a single JSON line.
func (b *FileBackend) Append(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.w.Write(append(data, '\n')); err != nil {
		return err
	}
	if b.autoDump {
		if err := b.w.Flush(); err != nil {
			return err
		}
		return b.f.Sync()
	}
	return nil
}

// Close flushes buffered entries and closes the file.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}
