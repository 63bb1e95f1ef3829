package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ragweave/ragweave/types"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint TEXT PRIMARY KEY,
	response TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteBackend persists entries in a SQLite database. Writes are
// INSERT OR IGNORE so the write-once invariant holds even if two
// processes share the file.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (creating if needed) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Load reads all persisted entries.
func (b *SQLiteBackend) Load(ctx context.Context) (map[Fingerprint]*Entry, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT fingerprint, response, created_at, hit_count FROM cache_entries`)
	if err != nil {
		return nil, types.NewError(types.ErrCacheCorruption, "query cache db").WithCause(err)
	}
	defer rows.Close()

	entries := make(map[Fingerprint]*Entry)
	for rows.Next() {
		var e Entry
		var createdAt time.Time
		if err := rows.Scan(&e.Fingerprint, &e.Response, &createdAt, &e.HitCount); err != nil {
			return nil, types.NewError(types.ErrCacheCorruption, "scan cache row").WithCause(err)
		}
		e.CreatedAt = createdAt
		entries[e.Fingerprint] = &e
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewError(types.ErrCacheCorruption, "iterate cache rows").WithCause(err)
	}
	return entries, nil
}

// Append stores one entry, ignoring duplicates.
func (b *SQLiteBackend) Append(ctx context.Context, e *Entry) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cache_entries (fingerprint, response, created_at, hit_count)
		 VALUES (?, ?, ?, ?)`,
		e.Fingerprint, e.Response, e.CreatedAt, e.HitCount,
	)
	if err != nil {
		return fmt.Errorf("cache append: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
