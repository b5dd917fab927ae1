package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/atriumhq/atrium/internal/logging"
	"github.com/atriumhq/atrium/internal/metrics"
)

// Client is the cache-aside layer the domain accessors talk to. Reads
// fail open: a store that is down or timing out degrades to a cache
// miss, and write failures against the store are logged and swallowed,
// so correctness of the source of truth never depends on cache
// availability. Only serialization errors and fetch-function failures
// reach the caller.
type Client struct {
	store Store
	log   *slog.Logger
	stats *metrics.CacheMetrics

	// group collapses concurrent misses on the same key into a single
	// source-of-truth fetch. singleflight prunes its per-key entry when
	// the flight completes, so the map stays bounded under high key
	// cardinality.
	group singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics attaches prometheus collectors for hits, misses, fetches,
// and invalidations.
func WithMetrics(m *metrics.CacheMetrics) Option {
	return func(c *Client) { c.stats = m }
}

// New creates a cache client over the given store. The store handle is
// owned by the caller; Close releases it.
func New(store Store, opts ...Option) *Client {
	c := &Client{
		store: store,
		log:   logging.Op(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheStats is a point-in-time snapshot of the keyspace. Namespaces
// with no keys are omitted from the mapping.
type CacheStats struct {
	TotalKeys       int64               `json:"total_keys"`
	KeysByNamespace map[Namespace]int64 `json:"keys_by_namespace"`
}

// Set serializes value and stores it under key, best-effort. A positive
// ttl overrides the namespace default. Serialization failures are
// returned (programming defect); store failures are logged and
// swallowed.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	ttl = ResolveTTL(Namespace(keyNamespace(key)), ttl)
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.storeError("set", key, err)
	}
	return nil
}

// Delete removes an exact key, reporting how many keys were removed.
func (c *Client) Delete(ctx context.Context, key string) int64 {
	n, err := c.store.Delete(ctx, key)
	if err != nil {
		c.storeError("delete", key, err)
		return n
	}
	if c.stats != nil {
		c.stats.AddInvalidated(keyNamespace(key), n)
	}
	return n
}

// Invalidate deletes every key matching the glob pattern and returns
// the count removed. No matches is a zero count, not an error.
func (c *Client) Invalidate(ctx context.Context, pattern string) int64 {
	n, err := c.store.DeletePattern(ctx, pattern)
	if err != nil {
		c.storeError("delete_pattern", pattern, err)
		return n
	}
	if c.stats != nil {
		c.stats.AddInvalidated(keyNamespace(pattern), n)
	}
	return n
}

// InvalidateNamespace deletes every key in the namespace. Keys in other
// namespaces are untouched even when identifiers collide, because the
// namespace is always the first key segment.
func (c *Client) InvalidateNamespace(ctx context.Context, ns Namespace) int64 {
	return c.Invalidate(ctx, ns.Pattern())
}

// FlushAll clears every key regardless of namespace. Maintenance and
// test-reset use only; normal write paths invalidate selectively.
func (c *Client) FlushAll(ctx context.Context) bool {
	if err := c.store.FlushAll(ctx); err != nil {
		c.storeError("flush_all", "*", err)
		return false
	}
	return true
}

// Stats enumerates the keyspace for a point-in-time snapshot.
func (c *Client) Stats(ctx context.Context) (CacheStats, error) {
	total, err := c.store.CountPattern(ctx, "*")
	if err != nil {
		return CacheStats{}, fmt.Errorf("cache: count keys: %w", err)
	}
	stats := CacheStats{
		TotalKeys:       total,
		KeysByNamespace: make(map[Namespace]int64),
	}
	for _, ns := range Namespaces() {
		n, err := c.store.CountPattern(ctx, ns.Pattern())
		if err != nil {
			return CacheStats{}, fmt.Errorf("cache: count %s keys: %w", ns, err)
		}
		if n > 0 {
			stats.KeysByNamespace[ns] = n
		}
	}
	return stats, nil
}

// KeysMatching enumerates the keys matching the glob pattern.
func (c *Client) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	return c.store.Keys(ctx, pattern)
}

// Ping verifies connectivity to the underlying store.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close releases the underlying store.
func (c *Client) Close() error {
	return c.store.Close()
}

func (c *Client) storeError(op, key string, err error) {
	c.log.Warn("cache store degraded", "op", op, "key", key, "error", err)
	if c.stats != nil {
		c.stats.StoreError(op)
	}
}

// Get retrieves and decodes the value under key. The second return
// reports presence: a miss, an expired entry, and a store failure all
// come back as absent. A value that cannot be decoded into T is a
// serialization error and is returned.
func Get[T any](ctx context.Context, c *Client, key string) (T, bool, error) {
	var zero T
	ns := keyNamespace(key)

	data, err := c.store.Get(ctx, key)
	if err == ErrNotFound {
		if c.stats != nil {
			c.stats.Miss(ns)
		}
		return zero, false, nil
	}
	if err != nil {
		// Fail open: an unreachable store is a miss, not an error.
		c.storeError("get", key, err)
		if c.stats != nil {
			c.stats.Miss(ns)
		}
		return zero, false, nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	if c.stats != nil {
		c.stats.Hit(ns)
	}
	return value, true, nil
}

// GetOrSet returns the cached value under key, or fetches it from the
// source of truth, stores it, and returns it. Concurrent misses on the
// same key collapse into a single fetch; the waiters share its result.
// Fetch failures propagate to every waiter, nothing is cached, and the
// next call retries.
func GetOrSet[T any](ctx context.Context, c *Client, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if cached, ok, err := Get[T](ctx, c, key); err != nil {
		var zero T
		return zero, err
	} else if ok {
		return cached, nil
	}

	ns := keyNamespace(key)
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A flight that landed between our miss and joining the group
		// has already populated the entry.
		if data, err := c.store.Get(ctx, key); err == nil {
			var cached T
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}

		start := time.Now()
		value, err := fetch(ctx)
		if c.stats != nil {
			c.stats.ObserveFetch(ns, time.Since(start), err)
		}
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cache: encode %s: %w", key, err)
		}
		if err := c.store.Set(ctx, key, data, ResolveTTL(Namespace(ns), ttl)); err != nil {
			c.storeError("set", key, err)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
