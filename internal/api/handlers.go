// Package api exposes the read surface of the catalog plus cache
// observability and maintenance routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/atriumhq/atrium/internal/cache"
	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/domain"
	"github.com/atriumhq/atrium/internal/metrics"
)

// Pinger reports source-of-truth connectivity for health probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles catalog HTTP requests.
type Handler struct {
	Catalog *catalog.Catalog
	Cache   *cache.Client
	Source  Pinger
	Metrics *metrics.CacheMetrics
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/products", h.ListProducts)
	mux.HandleFunc("GET /v1/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /v1/courses", h.ListCourses)
	mux.HandleFunc("GET /v1/courses/{id}", h.GetCourse)
	mux.HandleFunc("GET /v1/courses/{id}/videos", h.ListCourseVideos)
	mux.HandleFunc("GET /v1/events", h.ListEvents)
	mux.HandleFunc("GET /v1/events/{id}", h.GetEvent)
	mux.HandleFunc("GET /v1/videos/{id}", h.GetVideo)

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /stats", h.Stats)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}

	mux.HandleFunc("POST /admin/cache/invalidate", h.InvalidateCache)
	mux.HandleFunc("POST /admin/cache/flush", h.FlushCache)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Catalog.ListCourses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.Catalog.GetCourse(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ListCourseVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.Catalog.ListCourseVideos(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Catalog.ListEvents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.Catalog.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := h.Catalog.GetVideo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Health handles GET /health. The cache being down degrades the
// response, it does not fail it: reads still work against the source.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	sourceOK := h.Source.Ping(ctx) == nil
	cacheOK := h.Cache.Ping(ctx) == nil

	status := "ok"
	code := http.StatusOK
	if !cacheOK {
		status = "degraded"
	}
	if !sourceOK {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"source": sourceOK,
		"cache":  cacheOK,
	})
}

// Stats handles GET /stats with a point-in-time keyspace snapshot.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Cache.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// InvalidateCache handles POST /admin/cache/invalidate with a JSON body
// {"pattern": "products:*"}.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pattern == "" {
		http.Error(w, "pattern is required", http.StatusBadRequest)
		return
	}
	deleted := h.Cache.Invalidate(r.Context(), req.Pattern)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// FlushCache handles POST /admin/cache/flush.
func (h *Handler) FlushCache(w http.ResponseWriter, r *http.Request) {
	ok := h.Cache.FlushAll(r.Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"flushed": ok})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
