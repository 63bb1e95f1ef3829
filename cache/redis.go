package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ragweave/ragweave/types"
)

// RedisBackend persists entries in Redis under a key prefix. SetNX keeps
// the write-once invariant when several processes share one cache.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend wraps an existing Redis client. A zero ttl means entries
// never expire.
func NewRedisBackend(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "ragweave:cache:"
	}
	return &RedisBackend{client: client, prefix: prefix, ttl: ttl}
}

// Load scans the prefix and reads every entry.
func (b *RedisBackend) Load(ctx context.Context) (map[Fingerprint]*Entry, error) {
	entries := make(map[Fingerprint]*Entry)

	iter := b.client.Scan(ctx, 0, b.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := b.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			// Key may have expired between SCAN and GET.
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		entries[e.Fingerprint] = &e
	}
	if err := iter.Err(); err != nil {
		return nil, types.NewError(types.ErrCacheCorruption, "scan cache keys").WithCause(err)
	}
	return entries, nil
}

// Append stores one entry if its key is not already set.
func (b *RedisBackend) Append(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.SetNX(ctx, b.prefix+string(e.Fingerprint), data, b.ttl).Err()
}

// Close releases the Redis client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
