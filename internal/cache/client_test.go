package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testEntity struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Count int      `json:"count"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	store := NewMemoryStore()
	c := New(store)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_SetGetRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	want := testEntity{ID: "1", Name: "intro course", Tags: []string{"go", "cache"}, Count: 3}
	if err := c.Set(ctx, "courses:1", want, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := Get[testEntity](ctx, c, "courses:1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestClient_GetMissing(t *testing.T) {
	c := newTestClient(t)

	_, ok, err := Get[testEntity](context.Background(), c, "courses:absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected a miss")
	}
}

func TestClient_TTLExpiry(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Set(ctx, "products:1", "short-lived", 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok, _ := Get[string](ctx, c, "products:1"); !ok {
		t.Fatal("expected a hit before expiry")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok, _ := Get[string](ctx, c, "products:1"); ok {
		t.Fatal("expected a miss after expiry")
	}
}

func TestClient_SetSerializationError(t *testing.T) {
	c := newTestClient(t)

	if err := c.Set(context.Background(), "products:1", make(chan int), 0); err == nil {
		t.Fatal("expected serialization error for non-encodable value")
	}
}

func TestGetOrSet_FetchOnceOnMiss(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (testEntity, error) {
		atomic.AddInt32(&calls, 1)
		return testEntity{ID: "9", Name: "fetched"}, nil
	}

	got, err := GetOrSet(ctx, c, "products:9", 0, fetch)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if got.Name != "fetched" {
		t.Fatalf("unexpected value: %+v", got)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 fetch on miss, got %d", n)
	}

	// Second call hits the cache; the fetch function must not run.
	if _, err := GetOrSet(ctx, c, "products:9", 0, fetch); err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 0 fetches on hit, got %d total", n)
	}
}

func TestGetOrSet_StampedeProtection(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(100 * time.Millisecond)
		return "expensive", nil
	}

	const concurrency = 20
	var wg sync.WaitGroup
	results := make([]string, concurrency)
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = GetOrSet(ctx, c, "courses:hot", 0, fetch)
		}(i)
	}
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] != "expensive" {
			t.Fatalf("caller %d got %q", i, results[i])
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("concurrent misses should collapse into one fetch, got %d", n)
	}
}

func TestGetOrSet_FetchErrorNotCached(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	fetchErr := errors.New("source of truth down")
	var calls int32

	_, err := GetOrSet(ctx, c, "events:1", 0, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", fetchErr
	})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error to propagate verbatim, got: %v", err)
	}

	// Nothing was cached: the next call retries the fetch and succeeds.
	got, err := GetOrSet(ctx, c, "events:1", 0, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got != "recovered" {
		t.Fatalf("expected 'recovered', got %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 fetches (fail then retry), got %d", n)
	}
}

func TestGetOrSet_ErrorSharedByWaiters(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	fetchErr := errors.New("boom")
	var calls int32

	const concurrency = 10
	var wg sync.WaitGroup
	errs := make([]error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = GetOrSet(ctx, c, "events:bad", 0, func(ctx context.Context) (string, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(50 * time.Millisecond)
				return "", fetchErr
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, fetchErr) {
			t.Fatalf("waiter %d: expected shared fetch error, got %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one in-flight fetch, got %d", n)
	}
}

func TestClient_Invalidate(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	c.Set(ctx, "products:1", "a", 0)
	c.Set(ctx, "products:2", "b", 0)
	c.Set(ctx, "courses:1", "c", 0)

	if n := c.Invalidate(ctx, "products:*"); n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	// Colliding identifier in another namespace is untouched.
	if _, ok, _ := Get[string](ctx, c, "courses:1"); !ok {
		t.Fatal("courses:1 must survive products invalidation")
	}

	if n := c.Invalidate(ctx, "products:*"); n != 0 {
		t.Fatalf("expected 0 on repeat invalidation, got %d", n)
	}
}

func TestClient_InvalidateNamespace(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	c.Set(ctx, "events:1", "a", 0)
	c.Set(ctx, "events:2", "b", 0)
	c.Set(ctx, "videos:1", "c", 0)

	if n := c.InvalidateNamespace(ctx, NamespaceEvents); n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	if _, ok, _ := Get[string](ctx, c, "videos:1"); !ok {
		t.Fatal("videos namespace must be unaffected")
	}
}

func TestClient_Stats(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalKeys != 0 {
		t.Fatalf("expected empty store, got %d keys", stats.TotalKeys)
	}
	if len(stats.KeysByNamespace) != 0 {
		t.Fatalf("expected empty namespace map, got %v", stats.KeysByNamespace)
	}
	if stats.KeysByNamespace == nil {
		t.Fatal("namespace map should be empty, not nil")
	}

	c.Set(ctx, "products:1", "a", 0)
	c.Set(ctx, "products:2", "b", 0)
	c.Set(ctx, "courses:1", "c", 0)

	stats, err = c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalKeys != 3 {
		t.Fatalf("expected 3 total keys, got %d", stats.TotalKeys)
	}
	if stats.KeysByNamespace[NamespaceProducts] != 2 {
		t.Fatalf("expected 2 product keys, got %d", stats.KeysByNamespace[NamespaceProducts])
	}
	if stats.KeysByNamespace[NamespaceCourses] != 1 {
		t.Fatalf("expected 1 course key, got %d", stats.KeysByNamespace[NamespaceCourses])
	}
	if _, present := stats.KeysByNamespace[NamespaceEvents]; present {
		t.Fatal("empty namespaces must be omitted, not reported as zero")
	}
}

func TestClient_FlushAll(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	c.Set(ctx, "products:1", "a", 0)
	c.Set(ctx, "courses:1", "b", 0)
	c.Set(ctx, "events:1", "c", 0)

	if !c.FlushAll(ctx) {
		t.Fatal("FlushAll should succeed")
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalKeys != 0 {
		t.Fatalf("expected empty store after flush, got %d keys", stats.TotalKeys)
	}
}

// faultyStore simulates an unreachable backend: every operation fails.
type faultyStore struct{}

var errStoreDown = errors.New("connection refused")

func (faultyStore) Get(context.Context, string) ([]byte, error) { return nil, errStoreDown }
func (faultyStore) Set(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}
func (faultyStore) Delete(context.Context, string) (int64, error)        { return 0, errStoreDown }
func (faultyStore) DeletePattern(context.Context, string) (int64, error) { return 0, errStoreDown }
func (faultyStore) CountPattern(context.Context, string) (int64, error)  { return 0, errStoreDown }
func (faultyStore) Keys(context.Context, string) ([]string, error)       { return nil, errStoreDown }
func (faultyStore) FlushAll(context.Context) error                       { return errStoreDown }
func (faultyStore) Ping(context.Context) error                           { return errStoreDown }
func (faultyStore) Close() error                                         { return nil }

func TestClient_FailOpen(t *testing.T) {
	c := New(faultyStore{})
	ctx := context.Background()

	// Reads degrade to misses, never errors.
	if _, ok, err := Get[string](ctx, c, "products:1"); err != nil || ok {
		t.Fatalf("expected silent miss on store failure, got ok=%v err=%v", ok, err)
	}

	// Best-effort writes swallow store failures.
	if err := c.Set(ctx, "products:1", "value", 0); err != nil {
		t.Fatalf("Set must swallow store failures, got: %v", err)
	}

	// The business read still succeeds straight from the source.
	got, err := GetOrSet(ctx, c, "products:1", 0, func(ctx context.Context) (string, error) {
		return "from-source", nil
	})
	if err != nil {
		t.Fatalf("GetOrSet must bypass a dead cache: %v", err)
	}
	if got != "from-source" {
		t.Fatalf("expected 'from-source', got %q", got)
	}

	if c.FlushAll(ctx) {
		t.Fatal("FlushAll should report failure")
	}
	if _, err := c.Stats(ctx); err == nil {
		t.Fatal("Stats should surface store failure")
	}
}

func TestGetOrSet_DecodeMismatchSurfaces(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	// Entry written as an object cannot decode into an int.
	if err := c.Set(ctx, "products:1", testEntity{ID: "1"}, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	_, err := GetOrSet(ctx, c, "products:1", 0, func(ctx context.Context) (int, error) {
		return 0, fmt.Errorf("fetch should not run")
	})
	if err == nil {
		t.Fatal("expected decode error for mismatched type")
	}
}
