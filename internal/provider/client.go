package provider

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/telemetry"
)

// DefaultMinInterval is the per-provider floor between two calls when a
// provider block does not set its own.
const DefaultMinInterval = 2 * time.Second

// Client fans completion calls across an ordered provider chain. Each
// provider keeps its own rate clock, measured from that provider's last
// call, so concurrent pipeline branches throttle independently per backend.
type Client struct {
	providers []Provider
	clocks    map[string]*rate.Limiter
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

// NewClient builds the fallback client from configuration order.
func NewClient(cfg config.LLMConfig, tele *telemetry.Telemetry) (*Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	providers := make([]Provider, 0, len(cfg.Providers))
	clocks := make(map[string]*rate.Limiter, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		interval := pc.MinInterval
		if interval <= 0 {
			interval = DefaultMinInterval
		}
		providers = append(providers, NewOpenAIProvider(pc))
		clocks[pc.Name] = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Client{
		providers: providers,
		clocks:    clocks,
		logger:    log.New(log.Writer(), "[LLM] ", log.LstdFlags),
		telemetry: tele,
	}, nil
}

// NewClientWithProviders wires a client around pre-built providers. Used by
// tests and by callers that already hold provider instances.
func NewClientWithProviders(providers []Provider, minInterval time.Duration, tele *telemetry.Telemetry) *Client {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	clocks := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		clocks[p.Name()] = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Client{
		providers: providers,
		clocks:    clocks,
		logger:    log.New(log.Writer(), "[LLM] ", log.LstdFlags),
		telemetry: tele,
	}
}

// Complete tries each provider in configured order and returns the first
// success. Every failure, retryable or not, advances to the next provider;
// ErrExhausted is returned only after the whole chain failed.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var attempts []error
	for _, p := range c.providers {
		if clock, ok := c.clocks[p.Name()]; ok {
			if err := clock.Wait(ctx); err != nil {
				return "", err
			}
		}

		out, err := p.Complete(ctx, prompt, maxTokens)
		if err == nil {
			c.telemetry.RecordProviderCall(p.Name(), true, estimateTokens(prompt)+estimateTokens(out))
			return out, nil
		}
		c.telemetry.RecordProviderCall(p.Name(), false, 0)
		c.logger.Printf("provider %s failed (%s), advancing: %v", p.Name(), ClassOf(err), err)
		attempts = append(attempts, err)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", &ErrExhausted{Attempts: attempts}
}

func estimateTokens(s string) int64 {
	return int64((len(s) + 3) / 4)
}
