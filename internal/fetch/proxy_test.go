package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProxyPoolRoundRobin(t *testing.T) {
	p := NewProxyPool([]string{"http://p1:8080", "http://p2:8080"}, "")
	got := []string{}
	for i := 0; i < 4; i++ {
		proxy, ok := p.Next()
		if !ok {
			t.Fatalf("pool unexpectedly empty at %d", i)
		}
		got = append(got, proxy)
	}
	want := []string{"http://p1:8080", "http://p2:8080", "http://p1:8080", "http://p2:8080"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("checkout %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestProxyPoolEvict(t *testing.T) {
	p := NewProxyPool([]string{"http://p1:8080", "http://p2:8080"}, "")
	p.Evict("http://p1:8080")
	if p.Len() != 1 {
		t.Fatalf("len = %d after evict", p.Len())
	}
	proxy, ok := p.Next()
	if !ok || proxy != "http://p2:8080" {
		t.Fatalf("next = %s, %v", proxy, ok)
	}
	p.Evict("http://p2:8080")
	if _, ok := p.Next(); ok {
		t.Fatalf("empty pool handed out a proxy")
	}
}

func TestProxyPoolNilSafe(t *testing.T) {
	var p *ProxyPool
	if p.Len() != 0 {
		t.Fatal("nil pool has nonzero length")
	}
	if _, ok := p.Next(); ok {
		t.Fatal("nil pool handed out a proxy")
	}
	p.Evict("anything")
	p.Probe(context.Background())
}

func TestProxyPoolProbeDropsDeadProxies(t *testing.T) {
	// a forward proxy that answers everything with 200
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer alive.Close()

	p := NewProxyPool([]string{alive.URL, "http://127.0.0.1:1"}, "http://liveness.example/ip")
	p.probeTimeout = 2 * time.Second
	p.Probe(context.Background())

	if p.Len() != 1 {
		t.Fatalf("probe kept %d proxies, want 1", p.Len())
	}
	proxy, _ := p.Next()
	if proxy != alive.URL {
		t.Fatalf("survivor = %s, want %s", proxy, alive.URL)
	}
}
