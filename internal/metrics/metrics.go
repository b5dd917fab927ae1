// Package metrics wires prometheus collectors for the cache layer.
// Collectors are constructed and injected rather than reached through a
// package-level registry, so tests and embedders own their lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheMetrics aggregates the cache layer's prometheus collectors.
// Namespace labels carry the cache namespace (first key segment), not
// the prometheus metric namespace.
type CacheMetrics struct {
	registry *prometheus.Registry

	hits            *prometheus.CounterVec
	misses          *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	invalidatedKeys *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
}

// Fetch duration buckets in seconds: source-of-truth round trips range
// from sub-millisecond (warm Postgres) to multi-second (encoder API).
var fetchBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// New creates a CacheMetrics with its own registry, including the
// default Go and process collectors.
func New(promNamespace string) *CacheMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &CacheMetrics{
		registry: registry,

		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      "cache_hits_total",
				Help:      "Cache reads answered from the store",
			},
			[]string{"namespace"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      "cache_misses_total",
				Help:      "Cache reads that fell through to the source of truth",
			},
			[]string{"namespace"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      "cache_fetches_total",
				Help:      "Source-of-truth fetches triggered by cache misses",
			},
			[]string{"namespace", "status"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: promNamespace,
				Name:      "cache_fetch_duration_seconds",
				Help:      "Duration of source-of-truth fetches",
				Buckets:   fetchBuckets,
			},
			[]string{"namespace"},
		),
		invalidatedKeys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      "cache_invalidated_keys_total",
				Help:      "Keys removed by explicit invalidation",
			},
			[]string{"namespace"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      "cache_store_errors_total",
				Help:      "Store operations that failed and were degraded fail-open",
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(
		m.hits,
		m.misses,
		m.fetches,
		m.fetchDuration,
		m.invalidatedKeys,
		m.storeErrors,
	)
	return m
}

// Hit records a cache hit for the given cache namespace.
func (m *CacheMetrics) Hit(namespace string) {
	m.hits.WithLabelValues(namespace).Inc()
}

// Miss records a cache miss for the given cache namespace.
func (m *CacheMetrics) Miss(namespace string) {
	m.misses.WithLabelValues(namespace).Inc()
}

// ObserveFetch records a source-of-truth fetch and its outcome.
func (m *CacheMetrics) ObserveFetch(namespace string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetches.WithLabelValues(namespace, status).Inc()
	if err == nil {
		m.fetchDuration.WithLabelValues(namespace).Observe(d.Seconds())
	}
}

// AddInvalidated records keys removed by explicit invalidation.
func (m *CacheMetrics) AddInvalidated(namespace string, n int64) {
	if n > 0 {
		m.invalidatedKeys.WithLabelValues(namespace).Add(float64(n))
	}
}

// StoreError records a store failure that was swallowed fail-open.
func (m *CacheMetrics) StoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

// Handler returns the prometheus scrape handler for this registry.
func (m *CacheMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
