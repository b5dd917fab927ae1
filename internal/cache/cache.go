// Package cache implements the namespaced, TTL-bound cache-aside layer
// that fronts every read-heavy query path in Atrium (products, courses,
// events, videos). Values are opaque to the store: the layer serializes
// with JSON and never inspects entry contents. Backends implement the
// Store interface; Redis is the production backend, MemoryStore serves
// tests and redis-less development.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
// An expired-but-not-yet-reaped entry is indistinguishable from an
// absent one.
var ErrNotFound = errors.New("cache: key not found")

// Store abstracts the underlying key-value store. All operations are
// safe for concurrent use and honor the caller's context. Pattern
// arguments use glob-style wildcards ('*', '?') anchored to whole keys.
type Store interface {
	// Get retrieves the value associated with key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. TTL must be positive;
	// entries always expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes an exact key, reporting how many keys were
	// removed (0 or 1). Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) (int64, error)

	// DeletePattern removes every key matching the glob pattern and
	// reports the number removed. No matches is not an error.
	DeletePattern(ctx context.Context, pattern string) (int64, error)

	// CountPattern reports how many keys match the glob pattern.
	CountPattern(ctx context.Context, pattern string) (int64, error)

	// Keys enumerates the keys matching the glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// FlushAll removes every key managed by this store.
	FlushAll(ctx context.Context) error

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}
