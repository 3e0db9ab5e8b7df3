package search

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kallisto-osint/osinter/internal/cache"
	"github.com/kallisto-osint/osinter/internal/search/models"
)

// CachingSearcher wraps a Searcher with a TTL cache and in-flight
// coalescing, mirroring the page fetch layer: repeated identical queries
// inside the TTL cost one upstream call.
type CachingSearcher struct {
	inner Searcher
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachingSearcher wraps inner with cache-and-coalesce behaviour.
func NewCachingSearcher(inner Searcher, c cache.Cache, ttl time.Duration) *CachingSearcher {
	return &CachingSearcher{inner: inner, cache: c, ttl: ttl}
}

// Search serves cached result lists when possible. Errors are never
// cached, so an unavailable backend is retried on the next call.
func (s *CachingSearcher) Search(ctx context.Context, q string, k int, f models.Filters) ([]models.Result, error) {
	key := cache.SearchKey(q, k)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var results []models.Result
		if err := json.Unmarshal([]byte(raw), &results); err == nil {
			return results, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		results, err := s.inner.Search(ctx, q, k, f)
		if err != nil {
			return nil, err
		}
		if raw, merr := json.Marshal(results); merr == nil {
			s.cache.Put(ctx, key, string(raw), s.ttl)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Result), nil
}
