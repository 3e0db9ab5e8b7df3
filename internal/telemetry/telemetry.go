package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kallisto-osint/osinter/config"
)

// Telemetry records investigation metrics. Counters are exported through
// prometheus; an in-process snapshot is kept alongside for quick status
// endpoints and log summaries.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu       sync.RWMutex
	totals   Totals
	registry *prometheus.Registry

	investigations *prometheus.CounterVec
	rounds         prometheus.Counter
	providerCalls  *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	duration       prometheus.Histogram
	tokens         prometheus.Counter
}

// Totals is a mutex-guarded aggregate mirror of the exported counters.
type Totals struct {
	Investigations int64
	Failed         int64
	Rounds         int64
	ProviderCalls  int64
	ProviderErrors int64
	Fetches        int64
	FetchFailures  int64
	TokensUsed     int64
}

// New creates a telemetry instance with its own registry so that multiple
// instances can coexist in tests without duplicate-registration panics.
func New(cfg config.TelemetryConfig) *Telemetry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	t := &Telemetry{
		config:   cfg,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: reg,
		investigations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osinter_investigations_total",
			Help: "Investigations by terminal status.",
		}, []string{"status"}),
		rounds: factory.NewCounter(prometheus.CounterOpts{
			Name: "osinter_rounds_total",
			Help: "Completed investigation rounds.",
		}),
		providerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osinter_provider_calls_total",
			Help: "LLM provider completion attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osinter_fetches_total",
			Help: "Page fetches by result status.",
		}, []string{"status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "osinter_investigation_duration_seconds",
			Help:    "Wall-clock duration of investigations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		tokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "osinter_tokens_used_total",
			Help: "Approximate tokens consumed across provider calls.",
		}),
	}
	return t
}

// Registry exposes the prometheus registry for HTTP scraping.
func (t *Telemetry) Registry() *prometheus.Registry { return t.registry }

// RecordInvestigation records one finished investigation.
func (t *Telemetry) RecordInvestigation(status string, d time.Duration) {
	if t == nil {
		return
	}
	t.investigations.WithLabelValues(status).Inc()
	t.duration.Observe(d.Seconds())
	t.mu.Lock()
	t.totals.Investigations++
	if status == "failed" {
		t.totals.Failed++
	}
	t.mu.Unlock()
}

// RecordRound records one completed round.
func (t *Telemetry) RecordRound() {
	if t == nil {
		return
	}
	t.rounds.Inc()
	t.mu.Lock()
	t.totals.Rounds++
	t.mu.Unlock()
}

// RecordProviderCall records one provider completion attempt.
func (t *Telemetry) RecordProviderCall(provider string, success bool, tokens int64) {
	if t == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	t.providerCalls.WithLabelValues(provider, outcome).Inc()
	if t.config.CostTracking && tokens > 0 {
		t.tokens.Add(float64(tokens))
	}
	t.mu.Lock()
	t.totals.ProviderCalls++
	if !success {
		t.totals.ProviderErrors++
	}
	t.totals.TokensUsed += tokens
	t.mu.Unlock()
}

// RecordFetch records one page fetch outcome.
func (t *Telemetry) RecordFetch(status string) {
	if t == nil {
		return
	}
	t.fetches.WithLabelValues(status).Inc()
	t.mu.Lock()
	t.totals.Fetches++
	if status != "ok" {
		t.totals.FetchFailures++
	}
	t.mu.Unlock()
}

// Snapshot returns a copy of the aggregate totals.
func (t *Telemetry) Snapshot() Totals {
	if t == nil {
		return Totals{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totals
}

// LogSummary prints a one-line usage summary, useful at shutdown.
func (t *Telemetry) LogSummary() {
	if t == nil {
		return
	}
	s := t.Snapshot()
	t.logger.Printf("investigations=%d failed=%d rounds=%d provider_calls=%d provider_errors=%d fetches=%d fetch_failures=%d tokens=%d",
		s.Investigations, s.Failed, s.Rounds, s.ProviderCalls, s.ProviderErrors, s.Fetches, s.FetchFailures, s.TokensUsed)
}
