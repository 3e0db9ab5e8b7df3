package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	name  string
	out   string
	err   error
	mu    sync.Mutex
	calls []time.Time
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(_ context.Context, _ string, _ int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestFallbackOrder(t *testing.T) {
	a := &fakeProvider{name: "a", err: NewCallError("a", Retryable, errors.New("timeout"))}
	b := &fakeProvider{name: "b", err: NewCallError("b", Retryable, errors.New("503"))}
	c := &fakeProvider{name: "c", out: "from-c"}
	client := NewClientWithProviders([]Provider{a, b, c}, time.Millisecond, nil)

	out, err := client.Complete(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from-c" {
		t.Fatalf("expected c's result, got %q", out)
	}
	if a.callCount() != 1 || b.callCount() != 1 || c.callCount() != 1 {
		t.Fatalf("expected a, b, c each attempted once, got %d/%d/%d", a.callCount(), b.callCount(), c.callCount())
	}
}

func TestNonRetryableStillAdvances(t *testing.T) {
	a := &fakeProvider{name: "a", err: NewCallError("a", NonRetryable, errors.New("bad auth"))}
	b := &fakeProvider{name: "b", out: "ok"}
	client := NewClientWithProviders([]Provider{a, b}, time.Millisecond, nil)

	out, err := client.Complete(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("expected fallback result, got %q", out)
	}
}

func TestExhausted(t *testing.T) {
	a := &fakeProvider{name: "a", err: NewCallError("a", Retryable, errors.New("down"))}
	b := &fakeProvider{name: "b", err: NewCallError("b", NonRetryable, errors.New("denied"))}
	client := NewClientWithProviders([]Provider{a, b}, time.Millisecond, nil)

	_, err := client.Complete(context.Background(), "q", 0)
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if !IsExhausted(err) {
		t.Fatalf("expected ErrExhausted, got %T: %v", err, err)
	}
	var ee *ErrExhausted
	if !errors.As(err, &ee) || len(ee.Attempts) != 2 {
		t.Fatalf("expected two recorded attempts")
	}
}

func TestPerProviderRateClock(t *testing.T) {
	a := &fakeProvider{name: "a", out: "x"}
	client := NewClientWithProviders([]Provider{a}, 50*time.Millisecond, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Complete(context.Background(), "q", 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// burst of 1: calls 2 and 3 must each wait out the interval
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("expected rate clock to pace calls, elapsed %v", elapsed)
	}
}

func TestRateClockContextCancel(t *testing.T) {
	a := &fakeProvider{name: "a", out: "x"}
	client := NewClientWithProviders([]Provider{a}, time.Hour, nil)

	if _, err := client.Complete(context.Background(), "q", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Complete(ctx, "q", 0); err == nil {
		t.Fatalf("expected context error while waiting on rate clock")
	}
}
