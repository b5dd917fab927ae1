package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch bounds how many keys a single SCAN iteration returns and how
// many keys a single DEL touches during pattern deletion. Incremental
// scans keep pattern operations from stalling the server under a large
// keyspace, unlike a blocking KEYS call.
const scanBatch = 512

// RedisStore implements Store backed by Redis. All cache keys share a
// configurable prefix so that pattern operations, flushes, and stats
// never touch keys owned by other users of the same database. The client
// handle is owned by the caller: opened at process start, passed in, and
// closed through Close at shutdown.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection settings for a Redis-backed store.
type RedisConfig struct {
	Addr      string // Redis address (e.g. "localhost:6379")
	Password  string // Redis password
	DB        int    // Redis database number
	KeyPrefix string // key prefix for isolation (default: "atrium:cache:")
}

const defaultKeyPrefix = "atrium:cache:"

// NewRedisStore creates a Redis-backed store with its own client.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreFromClient(client, cfg.KeyPrefix)
}

// NewRedisStoreFromClient creates a Redis-backed store using an existing
// client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) (int64, error) {
	return s.client.Del(ctx, s.key(key)).Result()
}

func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var (
		deleted int64
		cursor  uint64
		batch   []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key(pattern), scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		batch = append(batch, keys...)
		if len(batch) >= scanBatch {
			n, err := s.client.Del(ctx, batch...).Result()
			deleted += n
			if err != nil {
				return deleted, err
			}
			batch = batch[:0]
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(batch) > 0 {
		n, err := s.client.Del(ctx, batch...).Result()
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (s *RedisStore) CountPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		count  int64
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key(pattern), scanBatch).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key(pattern), scanBatch).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, k[len(s.prefix):])
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// FlushAll removes every key under the store's prefix. It deliberately
// avoids FLUSHDB: the database may be shared with other subsystems.
func (s *RedisStore) FlushAll(ctx context.Context) error {
	_, err := s.DeletePattern(ctx, "*")
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
