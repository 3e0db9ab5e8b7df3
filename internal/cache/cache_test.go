package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetPutTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(8)

	if _, ok := m.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	m.Put(ctx, "k", "v", 50*time.Millisecond)
	if got, ok := m.Get(ctx, "k"); !ok || got != "v" {
		t.Fatalf("expected hit, got %q ok=%v", got, ok)
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatalf("expected expiry after ttl")
	}
}

func TestMemoryBounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	m.Put(ctx, "a", "1", time.Minute)
	time.Sleep(time.Millisecond)
	m.Put(ctx, "b", "2", time.Minute)
	time.Sleep(time.Millisecond)
	m.Put(ctx, "c", "3", time.Minute)

	if m.Len() > 2 {
		t.Fatalf("expected bounded cache, len=%d", m.Len())
	}
	if _, ok := m.Get(ctx, "a"); ok {
		t.Fatalf("expected oldest entry evicted")
	}
	if _, ok := m.Get(ctx, "c"); !ok {
		t.Fatalf("expected newest entry retained")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips tracking params and fragment",
			in:   "https://example.com/article?id=1&utm_source=rss#top",
			want: "https://example.com/article?id=1",
		},
		{
			name: "sorts query parameters",
			in:   "https://example.com/p?b=2&a=1",
			want: "https://example.com/p?a=1&b=2",
		},
		{
			name: "removes default port and lowercases host",
			in:   "http://Example.COM:80/x",
			want: "http://example.com/x",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFetchKeyStable(t *testing.T) {
	a := FetchKey("https://example.com/a?utm_source=x&q=1")
	b := FetchKey("https://EXAMPLE.com/a?q=1")
	if a != b {
		t.Fatalf("expected equivalent urls to share a key: %s vs %s", a, b)
	}
}
