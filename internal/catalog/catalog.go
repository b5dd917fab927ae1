// Package catalog exposes the platform's read-heavy accessors. Every
// read goes through the cache-aside layer under the accessor's own
// namespace; every write lands in the source of truth first and then
// invalidates the exact entity key and the list-level caches it may
// have staled.
package catalog

import (
	"context"

	"github.com/atriumhq/atrium/internal/cache"
	"github.com/atriumhq/atrium/internal/domain"
)

// listID is the identifier under which an accessor caches its
// collection view, e.g. "products:list".
const listID = "list"

// Source is the source of truth behind the catalog. *store.PostgresStore
// implements it; tests supply a fake.
type Source interface {
	SaveProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	SaveCourse(ctx context.Context, c *domain.Course) error
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	ListCourses(ctx context.Context) ([]*domain.Course, error)
	DeleteCourse(ctx context.Context, id string) error

	SaveEvent(ctx context.Context, e *domain.Event) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]*domain.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	SaveVideo(ctx context.Context, v *domain.Video) error
	GetVideo(ctx context.Context, id string) (*domain.Video, error)
	ListCourseVideos(ctx context.Context, courseID string) ([]*domain.Video, error)
	UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus) (*domain.Video, error)
	DeleteVideo(ctx context.Context, id string) error
}

// Catalog serves catalog reads through the cache and keeps the cache
// coherent on writes. It owns neither handle: both are opened by the
// caller and closed at shutdown.
type Catalog struct {
	src   Source
	cache *cache.Client
}

func New(src Source, c *cache.Client) *Catalog {
	return &Catalog{src: src, cache: c}
}

// --- products ---

func (c *Catalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	key, err := cache.BuildKey(cache.NamespaceProducts, id)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) (*domain.Product, error) {
		return c.src.GetProduct(ctx, id)
	})
}

func (c *Catalog) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	key, err := cache.BuildKey(cache.NamespaceProducts, listID)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) ([]*domain.Product, error) {
		return c.src.ListProducts(ctx)
	})
}

func (c *Catalog) SaveProduct(ctx context.Context, p *domain.Product) error {
	if err := c.src.SaveProduct(ctx, p); err != nil {
		return err
	}
	// Re-prime the entity entry, drop the now-stale list views.
	if key, err := cache.BuildKey(cache.NamespaceProducts, p.ID); err == nil {
		_ = c.cache.Set(ctx, key, p, 0)
	}
	c.invalidateList(ctx, cache.NamespaceProducts)
	return nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	if err := c.src.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if key, err := cache.BuildKey(cache.NamespaceProducts, id); err == nil {
		c.cache.Delete(ctx, key)
	}
	c.invalidateList(ctx, cache.NamespaceProducts)
	return nil
}

// --- courses ---

func (c *Catalog) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	key, err := cache.BuildKey(cache.NamespaceCourses, id)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) (*domain.Course, error) {
		return c.src.GetCourse(ctx, id)
	})
}

func (c *Catalog) ListCourses(ctx context.Context) ([]*domain.Course, error) {
	key, err := cache.BuildKey(cache.NamespaceCourses, listID)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) ([]*domain.Course, error) {
		return c.src.ListCourses(ctx)
	})
}

func (c *Catalog) SaveCourse(ctx context.Context, course *domain.Course) error {
	if err := c.src.SaveCourse(ctx, course); err != nil {
		return err
	}
	if key, err := cache.BuildKey(cache.NamespaceCourses, course.ID); err == nil {
		_ = c.cache.Set(ctx, key, course, 0)
	}
	c.invalidateList(ctx, cache.NamespaceCourses)
	return nil
}

// DeleteCourse removes a course; its videos cascade away in the store,
// so the video and course-video caches cannot be invalidated key by key
// and go namespace-wide instead.
func (c *Catalog) DeleteCourse(ctx context.Context, id string) error {
	if err := c.src.DeleteCourse(ctx, id); err != nil {
		return err
	}
	if key, err := cache.BuildKey(cache.NamespaceCourses, id); err == nil {
		c.cache.Delete(ctx, key)
	}
	c.invalidateList(ctx, cache.NamespaceCourses)
	c.cache.InvalidateNamespace(ctx, cache.NamespaceVideos)
	c.cache.InvalidateNamespace(ctx, cache.NamespaceCourseVideos)
	return nil
}

// --- events ---

func (c *Catalog) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	key, err := cache.BuildKey(cache.NamespaceEvents, id)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) (*domain.Event, error) {
		return c.src.GetEvent(ctx, id)
	})
}

func (c *Catalog) ListEvents(ctx context.Context) ([]*domain.Event, error) {
	key, err := cache.BuildKey(cache.NamespaceEvents, listID)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) ([]*domain.Event, error) {
		return c.src.ListEvents(ctx)
	})
}

func (c *Catalog) SaveEvent(ctx context.Context, e *domain.Event) error {
	if err := c.src.SaveEvent(ctx, e); err != nil {
		return err
	}
	if key, err := cache.BuildKey(cache.NamespaceEvents, e.ID); err == nil {
		_ = c.cache.Set(ctx, key, e, 0)
	}
	c.invalidateList(ctx, cache.NamespaceEvents)
	return nil
}

func (c *Catalog) DeleteEvent(ctx context.Context, id string) error {
	if err := c.src.DeleteEvent(ctx, id); err != nil {
		return err
	}
	if key, err := cache.BuildKey(cache.NamespaceEvents, id); err == nil {
		c.cache.Delete(ctx, key)
	}
	c.invalidateList(ctx, cache.NamespaceEvents)
	return nil
}

// --- videos ---

func (c *Catalog) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	key, err := cache.BuildKey(cache.NamespaceVideos, id)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) (*domain.Video, error) {
		return c.src.GetVideo(ctx, id)
	})
}

// ListCourseVideos caches a course's video list under the
// course_videos namespace, keyed by the course id.
func (c *Catalog) ListCourseVideos(ctx context.Context, courseID string) ([]*domain.Video, error) {
	key, err := cache.BuildKey(cache.NamespaceCourseVideos, courseID)
	if err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, c.cache, key, 0, func(ctx context.Context) ([]*domain.Video, error) {
		return c.src.ListCourseVideos(ctx, courseID)
	})
}

func (c *Catalog) SaveVideo(ctx context.Context, v *domain.Video) error {
	if err := c.src.SaveVideo(ctx, v); err != nil {
		return err
	}
	if key, err := cache.BuildKey(cache.NamespaceVideos, v.ID); err == nil {
		_ = c.cache.Set(ctx, key, v, 0)
	}
	c.invalidateCourseVideos(ctx, v.CourseID)
	return nil
}

// UpdateVideoStatus is the write path the encoder status sync calls.
func (c *Catalog) UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus) (*domain.Video, error) {
	v, err := c.src.UpdateVideoStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if key, err := cache.BuildKey(cache.NamespaceVideos, id); err == nil {
		_ = c.cache.Set(ctx, key, v, 0)
	}
	c.invalidateCourseVideos(ctx, v.CourseID)
	return v, nil
}

func (c *Catalog) DeleteVideo(ctx context.Context, id string) error {
	// Resolve the owning course before the row disappears.
	v, err := c.src.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if err := c.src.DeleteVideo(ctx, id); err != nil {
		return err
	}
	if key, err := cache.BuildKey(cache.NamespaceVideos, id); err == nil {
		c.cache.Delete(ctx, key)
	}
	c.invalidateCourseVideos(ctx, v.CourseID)
	return nil
}

// invalidateList drops every list-level entry of the namespace
// ("ns:list" and any suffixed variants) without disturbing entity keys.
func (c *Catalog) invalidateList(ctx context.Context, ns cache.Namespace) {
	c.cache.Invalidate(ctx, string(ns)+":"+listID+"*")
}

func (c *Catalog) invalidateCourseVideos(ctx context.Context, courseID string) {
	if key, err := cache.BuildKey(cache.NamespaceCourseVideos, courseID); err == nil {
		c.cache.Delete(ctx, key)
	}
}
