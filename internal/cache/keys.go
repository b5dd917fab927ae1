package cache

import (
	"fmt"
	"strings"
)

// Namespace identifies a logical cache domain. The set is closed: each
// read-heavy accessor owns exactly one namespace, and a key's namespace
// is always its first colon-delimited segment. That invariant is what
// makes namespace-wide invalidation a safe prefix match.
type Namespace string

const (
	NamespaceProducts     Namespace = "products"
	NamespaceCourses      Namespace = "courses"
	NamespaceEvents       Namespace = "events"
	NamespaceVideos       Namespace = "videos"
	NamespaceCourseVideos Namespace = "course_videos"
)

// Namespaces returns the closed set of cache namespaces.
func Namespaces() []Namespace {
	return []Namespace{
		NamespaceProducts,
		NamespaceCourses,
		NamespaceEvents,
		NamespaceVideos,
		NamespaceCourseVideos,
	}
}

// Valid reports whether n is a member of the closed namespace set.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceProducts, NamespaceCourses, NamespaceEvents,
		NamespaceVideos, NamespaceCourseVideos:
		return true
	}
	return false
}

// Pattern returns the glob matching every key in the namespace.
func (n Namespace) Pattern() string {
	return string(n) + ":*"
}

// BuildKey constructs the canonical cache key "ns:id" or "ns:id:suffix".
// Empty suffix parts are elided, so BuildKey(ns, id, "") equals
// BuildKey(ns, id) and never produces a trailing separator. Namespace
// and identifier must be non-empty.
func BuildKey(ns Namespace, id string, suffix ...string) (string, error) {
	if ns == "" {
		return "", fmt.Errorf("cache: build key: namespace is required")
	}
	if !ns.Valid() {
		return "", fmt.Errorf("cache: build key: unknown namespace %q", ns)
	}
	if id == "" {
		return "", fmt.Errorf("cache: build key: identifier is required")
	}

	parts := []string{string(ns), id}
	for _, s := range suffix {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":"), nil
}

// keyNamespace extracts the first colon-delimited segment of a key.
// Used for per-namespace metrics labels.
func keyNamespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
