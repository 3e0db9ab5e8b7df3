package fetch

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/telemetry"
)

// RenderFetcher retrieves pages through a headless browser so that
// JS-rendered profiles and feeds produce usable text. Slower than the plain
// HTTP fetcher; selected via fetch.renderer=chromedp.
type RenderFetcher struct {
	timeout   time.Duration
	maxChars  int
	userAgent string
	telemetry *telemetry.Telemetry
}

// NewRenderFetcher builds the chromedp-backed fetcher.
func NewRenderFetcher(cfg config.FetchConfig, tele *telemetry.Telemetry) *RenderFetcher {
	ua := defaultUserAgents[0]
	if len(cfg.UserAgents) > 0 {
		ua = cfg.UserAgents[0]
	}
	return &RenderFetcher{
		timeout:   cfg.Timeout,
		maxChars:  cfg.MaxChars,
		userAgent: ua,
		telemetry: tele,
	}
}

// Fetch renders one URL and extracts the readable text.
func (f *RenderFetcher) Fetch(ctx context.Context, rawURL string) Document {
	doc := Document{URL: rawURL, FetchedAt: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	html, err := f.renderHTML(ctx, rawURL)
	if err != nil {
		doc.Status = classifyFetchErr(err)
		f.telemetry.RecordFetch(string(doc.Status))
		return doc
	}

	u, perr := url.Parse(rawURL)
	if perr != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	text := html
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		doc.Title = strings.TrimSpace(article.Title)
		text = strings.TrimSpace(article.TextContent)
	}
	if looksBlocked(text) {
		doc.Status = StatusBlocked
		f.telemetry.RecordFetch(string(doc.Status))
		return doc
	}
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	doc.Content = text
	doc.Status = StatusOK
	f.telemetry.RecordFetch(string(doc.Status))
	return doc
}

func (f *RenderFetcher) renderHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
