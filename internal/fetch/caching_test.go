package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kallisto-osint/osinter/internal/cache"
)

// countingFetcher serves a fixed document and counts underlying calls.
// When gate is set, calls block until it closes, so tests can hold several
// callers in flight at once.
type countingFetcher struct {
	calls  int64
	doc    Document
	gate   chan struct{}
	status Status
}

func (f *countingFetcher) Fetch(_ context.Context, url string) Document {
	atomic.AddInt64(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	doc := f.doc
	doc.URL = url
	if f.status != "" {
		doc.Status = f.status
	}
	return doc
}

func TestCachingFetcherServesFromCache(t *testing.T) {
	inner := &countingFetcher{doc: Document{Status: StatusOK, Content: "body"}}
	f := NewCachingFetcher(inner, cache.NewMemory(16), time.Minute)

	first := f.Fetch(context.Background(), "https://example.com/page")
	second := f.Fetch(context.Background(), "https://example.com/page")
	if first.Content != "body" || second.Content != "body" {
		t.Fatalf("unexpected documents: %+v %+v", first, second)
	}
	if n := atomic.LoadInt64(&inner.calls); n != 1 {
		t.Fatalf("inner fetch ran %d times, want 1", n)
	}
}

func TestCachingFetcherNormalizesKey(t *testing.T) {
	inner := &countingFetcher{doc: Document{Status: StatusOK, Content: "body"}}
	f := NewCachingFetcher(inner, cache.NewMemory(16), time.Minute)

	f.Fetch(context.Background(), "https://example.com/page?utm_source=x")
	f.Fetch(context.Background(), "https://EXAMPLE.com/page")
	if n := atomic.LoadInt64(&inner.calls); n != 1 {
		t.Fatalf("equivalent URLs fetched %d times, want 1", n)
	}
}

func TestCachingFetcherDoesNotCacheFailures(t *testing.T) {
	inner := &countingFetcher{status: StatusTimeout}
	f := NewCachingFetcher(inner, cache.NewMemory(16), time.Minute)

	f.Fetch(context.Background(), "https://example.com/flaky")
	f.Fetch(context.Background(), "https://example.com/flaky")
	if n := atomic.LoadInt64(&inner.calls); n != 2 {
		t.Fatalf("failed fetch cached: %d calls, want 2", n)
	}
}

func TestCachingFetcherCoalescesConcurrentMisses(t *testing.T) {
	inner := &countingFetcher{
		doc:  Document{Status: StatusOK, Content: "body"},
		gate: make(chan struct{}),
	}
	f := NewCachingFetcher(inner, cache.NewMemory(16), time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	docs := make([]Document, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docs[i] = f.Fetch(context.Background(), "https://example.com/hot")
		}(i)
	}
	// let all callers pile up on the same key before releasing the fetch
	time.Sleep(50 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	if n := atomic.LoadInt64(&inner.calls); n != 1 {
		t.Fatalf("coalescing failed: %d underlying fetches for one key", n)
	}
	for i, doc := range docs {
		if doc.Content != "body" {
			t.Fatalf("caller %d got %+v", i, doc)
		}
	}
}
