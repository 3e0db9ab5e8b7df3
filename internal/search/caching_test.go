package search

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kallisto-osint/osinter/internal/cache"
	"github.com/kallisto-osint/osinter/internal/search/models"
)

type countingSearcher struct {
	calls int64
	err   error
}

func (s *countingSearcher) Search(context.Context, string, int, models.Filters) ([]models.Result, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return []models.Result{{URL: "https://example.com", Rank: 0}}, nil
}

func TestCachingSearcherServesFromCache(t *testing.T) {
	inner := &countingSearcher{}
	s := NewCachingSearcher(inner, cache.NewMemory(16), time.Minute)

	for i := 0; i < 3; i++ {
		results, err := s.Search(context.Background(), "jane doe", 5, models.Filters{})
		if err != nil || len(results) != 1 {
			t.Fatalf("search %d: %v %v", i, results, err)
		}
	}
	if n := atomic.LoadInt64(&inner.calls); n != 1 {
		t.Fatalf("upstream called %d times, want 1", n)
	}
}

func TestCachingSearcherDoesNotCacheErrors(t *testing.T) {
	inner := &countingSearcher{err: models.ErrUnavailable}
	s := NewCachingSearcher(inner, cache.NewMemory(16), time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := s.Search(context.Background(), "jane doe", 5, models.Filters{}); err == nil {
			t.Fatalf("expected error on call %d", i)
		}
	}
	if n := atomic.LoadInt64(&inner.calls); n != 2 {
		t.Fatalf("error was cached: %d upstream calls, want 2", n)
	}
}
