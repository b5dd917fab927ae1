package cache

import (
	"testing"
	"time"
)

func TestResolveTTL_OverrideWins(t *testing.T) {
	got := ResolveTTL(NamespaceProducts, 30*time.Second)
	if got != 30*time.Second {
		t.Fatalf("expected override 30s, got %v", got)
	}
}

func TestResolveTTL_TableDefault(t *testing.T) {
	if got := ResolveTTL(NamespaceProducts, 0); got != 5*time.Minute {
		t.Fatalf("expected products default 5m, got %v", got)
	}
	if got := ResolveTTL(NamespaceCourses, 0); got != 10*time.Minute {
		t.Fatalf("expected courses default 10m, got %v", got)
	}
	if got := ResolveTTL(NamespaceVideos, 0); got != 2*time.Minute {
		t.Fatalf("expected videos default 2m, got %v", got)
	}
}

func TestResolveTTL_Fallback(t *testing.T) {
	if got := ResolveTTL(Namespace("unlisted"), 0); got != FallbackTTL {
		t.Fatalf("expected fallback %v, got %v", FallbackTTL, got)
	}
}

func TestResolveTTL_NegativeOverrideIgnored(t *testing.T) {
	if got := ResolveTTL(NamespaceEvents, -1); got != 10*time.Minute {
		t.Fatalf("negative override must fall back to table default, got %v", got)
	}
}
