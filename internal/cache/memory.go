package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for tests and redis-less
// development. Expiry is enforced lazily on read and swept periodically;
// an expired entry is never returned.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	closed  bool
	stop    chan struct{}
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// NewMemoryStore creates an in-memory store with periodic eviction.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memEntry),
		stop:    make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok || entry.expired() {
		return nil, ErrNotFound
	}
	// Return a copy to prevent mutation of the stored value.
	cp := make([]byte, len(entry.value))
	copy(cp, entry.value)
	return cp, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if ttl <= 0 {
		ttl = FallbackTTL
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.entries[key] = &memEntry{value: cp, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	delete(s.entries, key)
	if entry.expired() {
		return 0, nil
	}
	return 1, nil
}

func (s *MemoryStore) DeletePattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, entry := range s.entries {
		if matchGlob(pattern, key) {
			delete(s.entries, key)
			if !entry.expired() {
				deleted++
			}
		}
	}
	return deleted, nil
}

func (s *MemoryStore) CountPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for key, entry := range s.entries {
		if !entry.expired() && matchGlob(pattern, key) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key, entry := range s.entries {
		if !entry.expired() && matchGlob(pattern, key) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *MemoryStore) FlushAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*memEntry)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stop)
	s.entries = nil
	return nil
}

func (s *MemoryStore) evictLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if entry.expired() {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// matchGlob matches keys against '*' and '?' wildcards the way Redis
// does for the patterns this layer emits. Keys never contain '/', so
// path.Match degenerates to plain glob matching over the whole key.
func matchGlob(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
