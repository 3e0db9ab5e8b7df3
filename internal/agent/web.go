package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/kallisto-osint/osinter/internal/fetch"
	"github.com/kallisto-osint/osinter/internal/search"
	"github.com/kallisto-osint/osinter/internal/search/models"
	"github.com/kallisto-osint/osinter/internal/summarize"
)

// WebAgent runs one search round: query the search backend, fetch the
// ranked pages, summarize each into a finding. Fetch and summarization for
// one source share a worker so that a budget cutoff keeps every source
// already carried to completion.
type WebAgent struct {
	searcher search.Searcher
	fetcher  fetch.Fetcher
	pipeline *summarize.Pipeline
	filters  models.Filters
	workers  int
	logger   *log.Logger
}

// NewWebAgent wires a web agent. workers bounds concurrent source
// processing within a round.
func NewWebAgent(searcher search.Searcher, fetcher fetch.Fetcher, pipeline *summarize.Pipeline, filters models.Filters, workers int) *WebAgent {
	if workers <= 0 {
		workers = 4
	}
	return &WebAgent{
		searcher: searcher,
		fetcher:  fetcher,
		pipeline: pipeline,
		filters:  filters,
		workers:  workers,
		logger:   log.New(log.Writer(), "[WEB] ", log.LstdFlags),
	}
}

// Investigate searches for query, processes at most limit results and
// returns the findings tagged with round. A dead source is skipped, never
// fatal. The error return is reserved for the search call itself.
func (a *WebAgent) Investigate(ctx context.Context, query string, limit, round int) ([]Finding, error) {
	results, err := a.searcher.Search(ctx, query, limit, a.filters)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	findings := make([]*Finding, len(results))
	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, a.workers)
	for i, r := range results {
		wg.Add(1)
		go func(i int, r models.Result) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if f, ok := a.process(ctx, r, round); ok {
				mu.Lock()
				findings[i] = &f
				mu.Unlock()
			}
		}(i, r)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// budget expired mid-round: keep whatever finished, workers
		// still in flight fail fast on the dead context
		a.logger.Printf("round %d cut off: %v", round, ctx.Err())
		<-done
	}

	var out []Finding
	mu.Lock()
	for _, f := range findings {
		if f != nil {
			out = append(out, *f)
		}
	}
	mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// process turns one search result into a finding, or reports it unusable.
func (a *WebAgent) process(ctx context.Context, r models.Result, round int) (Finding, bool) {
	doc := a.fetcher.Fetch(ctx, r.URL)
	if doc.Status != fetch.StatusOK {
		return Finding{}, false
	}
	summary, err := a.pipeline.Summarize(ctx, doc.Content)
	if err != nil {
		if !errors.Is(err, summarize.ErrNoContent) {
			a.logger.Printf("summarize %s: %v", r.URL, err)
		}
		return Finding{}, false
	}
	title := doc.Title
	if title == "" {
		title = r.Title
	}
	return Finding{
		URL:        r.URL,
		Title:      title,
		Summary:    summary,
		Confidence: rankConfidence(r.Rank),
		Round:      round,
		Rank:       r.Rank,
	}, true
}

// rankConfidence maps search position to a coarse confidence signal.
func rankConfidence(rank int) float64 {
	c := 1.0 - 0.1*float64(rank)
	if c < 0.3 {
		c = 0.3
	}
	return c
}

// DeepDiveAgent narrows the web agent onto one follow-up topic. The query
// keeps the investigation subject as an anchor so a generic topic like
// "court records" stays tied to the person under investigation.
type DeepDiveAgent struct {
	web     *WebAgent
	subject string
	topic   Topic
}

// NewDeepDiveAgent binds a deep dive to its subject and topic.
func NewDeepDiveAgent(web *WebAgent, subject string, topic Topic) *DeepDiveAgent {
	return &DeepDiveAgent{web: web, subject: subject, topic: topic}
}

// Query is the composed search query for this deep dive.
func (d *DeepDiveAgent) Query() string {
	return strings.TrimSpace(d.subject + " " + d.topic.Text)
}

// Investigate runs the deep-dive round.
func (d *DeepDiveAgent) Investigate(ctx context.Context, limit, round int) ([]Finding, error) {
	return d.web.Investigate(ctx, d.Query(), limit, round)
}
