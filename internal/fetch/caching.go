package fetch

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kallisto-osint/osinter/internal/cache"
)

// CachingFetcher wraps any Fetcher with a TTL cache and in-flight request
// coalescing: at most one underlying fetch runs per URL, concurrent callers
// for the same URL await that result instead of issuing duplicates.
type CachingFetcher struct {
	inner Fetcher
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachingFetcher wraps inner with cache-and-coalesce behaviour.
func NewCachingFetcher(inner Fetcher, c cache.Cache, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{inner: inner, cache: c, ttl: ttl}
}

// Fetch serves from cache when possible, otherwise coalesces concurrent
// misses into one underlying call. Only successful documents are cached so
// transient failures stay retryable.
func (f *CachingFetcher) Fetch(ctx context.Context, url string) Document {
	key := cache.FetchKey(url)
	if raw, ok := f.cache.Get(ctx, key); ok {
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err == nil {
			return doc
		}
	}

	v, _, _ := f.group.Do(key, func() (interface{}, error) {
		doc := f.inner.Fetch(ctx, url)
		if doc.Status == StatusOK {
			if raw, err := json.Marshal(doc); err == nil {
				f.cache.Put(ctx, key, string(raw), f.ttl)
			}
		}
		return doc, nil
	})
	return v.(Document)
}
