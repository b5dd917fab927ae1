package cache

import "time"

// FallbackTTL applies when a namespace has no entry in the policy table
// and the caller did not override.
const FallbackTTL = 5 * time.Minute

// defaultTTLs is the per-namespace expiry policy. Product pages are the
// hottest and cheapest to refetch; video entries carry encoding status,
// the most volatile field, so they turn over fastest.
var defaultTTLs = map[Namespace]time.Duration{
	NamespaceProducts:     5 * time.Minute,
	NamespaceCourses:      10 * time.Minute,
	NamespaceEvents:       10 * time.Minute,
	NamespaceVideos:       2 * time.Minute,
	NamespaceCourseVideos: 10 * time.Minute,
}

// ResolveTTL returns the expiry to apply for a namespace: a positive
// override wins, then the policy table, then FallbackTTL. Call sites on
// the common path pass 0 and take the namespace default.
func ResolveTTL(ns Namespace, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if ttl, ok := defaultTTLs[ns]; ok {
		return ttl
	}
	return FallbackTTL
}
