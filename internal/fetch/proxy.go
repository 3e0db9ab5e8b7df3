package fetch

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ProxyPool rotates outbound requests across validated proxies. All checkout
// and eviction goes through the pool's mutex (single-writer discipline); the
// network I/O itself runs unguarded and parallel.
type ProxyPool struct {
	mu      sync.Mutex
	proxies []string
	next    int

	probeURL     string
	probeTimeout time.Duration
	logger       *log.Logger
}

// NewProxyPool builds a pool over the raw proxy list. Call Probe to drop
// dead entries before first use.
func NewProxyPool(proxies []string, probeURL string) *ProxyPool {
	return &ProxyPool{
		proxies:      append([]string(nil), proxies...),
		probeURL:     probeURL,
		probeTimeout: 5 * time.Second,
		logger:       log.New(log.Writer(), "[PROXY] ", log.LstdFlags),
	}
}

// Len reports how many proxies are currently in rotation.
func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Next checks out the next proxy in round-robin order.
func (p *ProxyPool) Next() (string, bool) {
	if p == nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return "", false
	}
	proxy := p.proxies[p.next%len(p.proxies)]
	p.next++
	return proxy, true
}

// Evict removes a proxy from rotation. Evicted proxies are not retried.
func (p *ProxyPool) Evict(proxy string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, candidate := range p.proxies {
		if candidate == proxy {
			p.proxies = append(p.proxies[:i], p.proxies[i+1:]...)
			return
		}
	}
}

// Probe checks every proxy against the liveness URL concurrently and keeps
// only the ones that answer.
func (p *ProxyPool) Probe(ctx context.Context) {
	if p == nil {
		return
	}
	p.mu.Lock()
	candidates := append([]string(nil), p.proxies...)
	p.mu.Unlock()
	if len(candidates) == 0 {
		return
	}

	valid := make([]string, 0, len(candidates))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, 10)
	for _, proxy := range candidates {
		wg.Add(1)
		go func(proxy string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if p.alive(ctx, proxy) {
				mu.Lock()
				valid = append(valid, proxy)
				mu.Unlock()
			} else {
				p.logger.Printf("proxy %s failed liveness probe", proxy)
			}
		}(proxy)
	}
	wg.Wait()

	p.mu.Lock()
	p.proxies = valid
	p.next = 0
	p.mu.Unlock()
	p.logger.Printf("probe kept %d/%d proxies", len(valid), len(candidates))
}

func (p *ProxyPool) alive(ctx context.Context, proxy string) bool {
	u, err := url.Parse(proxy)
	if err != nil {
		return false
	}
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
		Timeout:   p.probeTimeout,
	}
	req, err := http.NewRequestWithContext(ctx, "GET", p.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
