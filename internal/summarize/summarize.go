package summarize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// PlaceholderUnavailable replaces a chunk whose summarization failed after
// provider fallback; one bad chunk never aborts the whole document.
const PlaceholderUnavailable = "[summary unavailable]"

const (
	// MinContentChars is the floor under which a document is not worth a
	// provider call.
	MinContentChars = 50
	// DefaultSummaryTokens caps each summarization response.
	DefaultSummaryTokens = 512
	// maxReducePasses bounds recursion on pathological inputs.
	maxReducePasses = 5
)

// ErrNoContent marks documents too small or empty to summarize.
var ErrNoContent = errors.New("content too small to summarize")

// Completer is the single LLM capability the pipeline needs. Satisfied by
// provider.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Pipeline is the chunk/map-reduce summarizer. Safe for concurrent use.
type Pipeline struct {
	llm            Completer
	maxChunkChars  int
	maxReduceChars int
	concurrency    int
	logger         *log.Logger
}

// Option adjusts pipeline construction.
type Option func(*Pipeline)

// WithChunkChars overrides the per-chunk character budget.
func WithChunkChars(n int) Option {
	return func(p *Pipeline) { p.maxChunkChars = n }
}

// WithReduceChars overrides the reduce-phase character budget.
func WithReduceChars(n int) Option {
	return func(p *Pipeline) { p.maxReduceChars = n }
}

// WithConcurrency bounds parallel map-phase calls.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// NewPipeline builds a pipeline with the standard budgets.
func NewPipeline(llm Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		llm:            llm,
		maxChunkChars:  MaxChunkChars,
		maxReduceChars: MaxReduceChars,
		concurrency:    4,
		logger:         log.New(log.Writer(), "[SUMMARIZE] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency <= 0 {
		p.concurrency = 1
	}
	return p
}

// Summarize condenses document text to one bounded summary. Text that fits
// a single chunk skips the map phase entirely and costs exactly one call.
func (p *Pipeline) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if len(text) < MinContentChars {
		return "", ErrNoContent
	}

	chunks := Split(text, p.maxChunkChars)
	if len(chunks) == 1 {
		out, err := p.llm.Complete(ctx, chunkPrompt(text), DefaultSummaryTokens)
		if err != nil {
			return "", fmt.Errorf("summarize: %w", err)
		}
		return strings.TrimSpace(out), nil
	}

	combined, err := p.condense(ctx, chunks)
	if err != nil {
		return "", err
	}
	out, err := p.llm.Complete(ctx, mergePrompt(combined), DefaultSummaryTokens)
	if err != nil {
		return "", fmt.Errorf("reduce: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Condense shrinks arbitrary text until it fits the reduce budget, without
// the final synthesis call. The orchestrator re-enters here when the
// concatenation of all findings would blow the model's input budget.
func (p *Pipeline) Condense(ctx context.Context, text string) (string, error) {
	if len(text) <= p.maxReduceChars {
		return text, nil
	}
	return p.condense(ctx, Split(text, p.maxChunkChars))
}

func (p *Pipeline) condense(ctx context.Context, chunks []Chunk) (string, error) {
	combined := strings.Join(p.mapChunks(ctx, chunks), "\n\n")
	for pass := 0; len(combined) > p.maxReduceChars && pass < maxReducePasses; pass++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p.logger.Printf("combined summaries still %d tokens, re-reducing (pass %d)",
			TokenEstimate(combined), pass+1)
		combined = strings.Join(p.mapChunks(ctx, Split(combined, p.maxChunkChars)), "\n\n")
	}
	return combined, nil
}

// mapChunks summarizes every chunk in parallel, bounded by the pipeline's
// concurrency. Order is preserved by index; failures become placeholders.
func (p *Pipeline) mapChunks(ctx context.Context, chunks []Chunk) []string {
	summaries := make([]string, len(chunks))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, c Chunk) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out, err := p.llm.Complete(ctx, chunkPrompt(c.Text), DefaultSummaryTokens)
			if err != nil {
				p.logger.Printf("chunk %d failed: %v", c.Index, err)
				summaries[i] = PlaceholderUnavailable
				return
			}
			summaries[i] = strings.TrimSpace(out)
		}(i, c)
	}
	wg.Wait()
	return summaries
}

func chunkPrompt(text string) string {
	return "Summarize the following text in a concise manner, keeping names, places, dates and other identifying details:\n\n" + text + "\n\nSummary:"
}

func mergePrompt(text string) string {
	return "The following are partial summaries of one document. Merge them into a single coherent summary, preserving all identifying details:\n\n" + text + "\n\nMerged summary:"
}
