package app

import (
	"context"
	"fmt"
	"log"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/agent"
	"github.com/kallisto-osint/osinter/internal/cache"
	"github.com/kallisto-osint/osinter/internal/fetch"
	"github.com/kallisto-osint/osinter/internal/provider"
	"github.com/kallisto-osint/osinter/internal/search"
	"github.com/kallisto-osint/osinter/internal/search/models"
	"github.com/kallisto-osint/osinter/internal/store"
	"github.com/kallisto-osint/osinter/internal/summarize"
	"github.com/kallisto-osint/osinter/internal/telemetry"
)

// Engine is the fully wired investigation stack shared by the HTTP server
// and the CLI. Build once, run many investigations.
type Engine struct {
	Config    *config.Config
	Telemetry *telemetry.Telemetry
	Knowledge *agent.KnowledgeAgent
	Store     *store.Store // nil when no audit store is configured

	logger  *log.Logger
	closers []func() error
}

// New assembles the engine from configuration.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	eng := &Engine{
		Config:    cfg,
		Telemetry: telemetry.New(cfg.Telemetry),
		logger:    log.New(log.Writer(), "[APP] ", log.LstdFlags),
	}

	llm, err := provider.NewClient(cfg.LLM, eng.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	searcher, err := search.NewSearcher(search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	if err != nil {
		return nil, fmt.Errorf("search backend: %w", err)
	}

	// one cache backend serves both layers; keys are namespaced
	c, err := eng.buildCache(ctx)
	if err != nil {
		return nil, err
	}
	cachedSearcher := search.NewCachingSearcher(searcher, c, cfg.Cache.TTL)
	fetcher := fetch.NewCachingFetcher(eng.buildFetcher(ctx), c, cfg.Cache.TTL)

	pipeline := summarize.NewPipeline(llm, summarize.WithConcurrency(cfg.Fetch.Workers))
	filters := models.Filters{Country: cfg.Search.Country, Language: cfg.Search.Language}
	web := agent.NewWebAgent(cachedSearcher, fetcher, pipeline, filters, cfg.Fetch.Workers)
	eng.Knowledge = agent.NewKnowledgeAgent(llm, web, pipeline, eng.Telemetry)

	if cfg.Storage.Postgres.Enabled() {
		st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		eng.Store = st
		eng.closers = append(eng.closers, st.Close)
	}
	return eng, nil
}

// buildFetcher assembles the renderer and proxy rotation for raw page
// retrieval.
func (e *Engine) buildFetcher(ctx context.Context) fetch.Fetcher {
	cfg := e.Config.Fetch

	var proxies *fetch.ProxyPool
	if len(cfg.Proxies) > 0 {
		proxies = fetch.NewProxyPool(cfg.Proxies, cfg.ProbeURL)
		proxies.Probe(ctx)
		e.logger.Printf("proxy pool: %d of %d alive", proxies.Len(), len(cfg.Proxies))
	}

	if cfg.Renderer == "chromedp" {
		return fetch.NewRenderFetcher(cfg, e.Telemetry)
	}
	return fetch.NewHTTPFetcher(cfg, proxies, e.Telemetry)
}

func (e *Engine) buildCache(ctx context.Context) (cache.Cache, error) {
	if e.Config.Cache.Backend == "redis" {
		r, err := cache.NewRedis(ctx, e.Config.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		e.closers = append(e.closers, r.Close)
		return r, nil
	}
	return cache.NewMemory(e.Config.Cache.MaxEntries), nil
}

// Run executes one investigation and records it in the audit store when
// one is configured. Persistence failures are logged, never fatal: the
// report already exists and belongs to the caller.
func (e *Engine) Run(ctx context.Context, req agent.Request) (*agent.Investigation, agent.Report, error) {
	if req.Config.Budget == 0 {
		req.Config.Budget = e.Config.Investigation.Budget
	}
	if req.Config.RoundLimit == 0 {
		req.Config.RoundLimit = e.Config.Investigation.RoundLimit
	}
	if req.Config.ResultLimit == 0 {
		req.Config.ResultLimit = e.Config.Investigation.ResultLimit
	}
	if req.Config.MaxTopics == 0 {
		req.Config.MaxTopics = e.Config.Investigation.MaxTopics
	}

	inv, report, err := e.Knowledge.Run(ctx, req)
	if inv != nil && e.Store != nil {
		var rep *agent.Report
		if err == nil {
			rep = &report
		}
		if serr := e.Store.SaveInvestigation(context.WithoutCancel(ctx), inv, rep); serr != nil {
			e.logger.Printf("audit save for %s failed: %v", inv.ID, serr)
		}
	}
	return inv, report, err
}

// Close releases held resources in reverse acquisition order.
func (e *Engine) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
