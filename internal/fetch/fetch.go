package fetch

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/telemetry"
)

// Status classifies the outcome of one page fetch. Everything except
// StatusOK is treated uniformly by callers as "skip this source".
type Status string

const (
	StatusOK      Status = "ok"
	StatusTimeout Status = "timeout"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Document is the raw fetched content for one URL. It lives only until the
// summarization pass; afterwards only the derived finding persists.
type Document struct {
	URL       string
	Title     string
	Content   string
	Status    Status
	FetchedAt time.Time
}

// Fetcher retrieves one URL. Failures are folded into the document status
// rather than returned, since a failed source never fails the round.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Document
}

// defaultUserAgents is the identity rotation pool used when the config does
// not supply its own.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
}

// blockMarkers are body substrings that indicate bot detection on a 200.
var blockMarkers = []string{
	"captcha",
	"are you a robot",
	"access denied",
	"unusual traffic",
}

// HTTPFetcher retrieves pages over plain HTTP with per-request timeout,
// a randomized client identity and optional proxy rotation.
type HTTPFetcher struct {
	timeout    time.Duration
	maxChars   int
	userAgents []string
	proxies    *ProxyPool
	logger     *log.Logger
	telemetry  *telemetry.Telemetry

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHTTPFetcher builds a fetcher from configuration. The proxy pool may be
// nil when no proxies are configured.
func NewHTTPFetcher(cfg config.FetchConfig, proxies *ProxyPool, tele *telemetry.Telemetry) *HTTPFetcher {
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &HTTPFetcher{
		timeout:    cfg.Timeout,
		maxChars:   cfg.MaxChars,
		userAgents: agents,
		proxies:    proxies,
		logger:     log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
		telemetry:  tele,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *HTTPFetcher) userAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userAgents[f.rng.Intn(len(f.userAgents))]
}

// Fetch retrieves one URL. The per-request timeout is enforced
// independently of any deadline already present on ctx.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) Document {
	doc := Document{URL: rawURL, FetchedAt: time.Now()}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", rawURL, nil)
	if err != nil {
		doc.Status = StatusError
		f.record(doc)
		return doc
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	client, proxy := f.client()
	resp, err := client.Do(req)
	if err != nil {
		doc.Status = classifyFetchErr(err)
		if proxy != "" && doc.Status == StatusError {
			f.proxies.Evict(proxy)
			f.logger.Printf("evicted proxy %s after failure on %s", proxy, rawURL)
		}
		f.record(doc)
		return doc
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		doc.Status = StatusBlocked
		f.record(doc)
		return doc
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		doc.Status = StatusError
		f.record(doc)
		return doc
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		doc.Status = classifyFetchErr(err)
		f.record(doc)
		return doc
	}

	title, text := extractText(string(body), rawURL)
	if looksBlocked(text) {
		doc.Status = StatusBlocked
		f.record(doc)
		return doc
	}
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	doc.Title = title
	doc.Content = text
	doc.Status = StatusOK
	f.record(doc)
	return doc
}

// client returns an HTTP client and the proxy it was bound to, if any.
func (f *HTTPFetcher) client() (*http.Client, string) {
	if f.proxies != nil {
		if proxy, ok := f.proxies.Next(); ok {
			if u, err := url.Parse(proxy); err == nil {
				return &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(u)}}, proxy
			}
		}
	}
	return http.DefaultClient, ""
}

func (f *HTTPFetcher) record(doc Document) {
	f.telemetry.RecordFetch(string(doc.Status))
	if doc.Status != StatusOK {
		f.logger.Printf("fetch %s -> %s", doc.URL, doc.Status)
	}
}

// extractText strips boilerplate with readability and falls back to the raw
// body when extraction fails.
func extractText(html, rawURL string) (title, text string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return "", html
	}
	return strings.TrimSpace(article.Title), strings.TrimSpace(article.TextContent)
}

func looksBlocked(text string) bool {
	if len(text) > 2048 {
		// real articles mention captchas too; only sniff short interstitials
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func classifyFetchErr(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusTimeout
	}
	return StatusError
}
