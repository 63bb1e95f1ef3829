// Package cache implements the durable response cache that backs the model
// client. A Store maps a request fingerprint to the canonical response for
// that request, guarantees at most one in-flight computation per
// fingerprint across concurrent callers, and replays a persistence backend
// (append-only file, SQLite, or Redis) into memory on open.
//
// Entries are write-once: a fingerprint is never re-associated with a
// different response, because a changed prompt produces a different
// fingerprint instead.
package cache
