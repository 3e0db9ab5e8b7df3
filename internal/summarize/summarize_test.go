package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   func(call int, prompt string) (string, error)
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ int) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.reply != nil {
		return s.reply(call, prompt)
	}
	return "summary", nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSingleChunkSkipsMapPhase(t *testing.T) {
	llm := &scriptedLLM{}
	p := NewPipeline(llm)

	out, err := p.Summarize(context.Background(), strings.Repeat("short text about the subject. ", 4))
	require.NoError(t, err)
	require.Equal(t, "summary", out)
	require.Equal(t, 1, llm.callCount(), "single-chunk document must cost exactly one call")
}

func TestMapReduceMultiChunk(t *testing.T) {
	llm := &scriptedLLM{reply: func(_ int, prompt string) (string, error) {
		if strings.Contains(prompt, "partial summaries") {
			return "merged", nil
		}
		return "part", nil
	}}
	p := NewPipeline(llm, WithChunkChars(100), WithReduceChars(10000))

	text := strings.Repeat("A detailed sentence about the subject under investigation. ", 20)
	out, err := p.Summarize(context.Background(), text)
	require.NoError(t, err)
	require.Equal(t, "merged", out)

	wantChunks := len(Split(text, 100))
	require.Equal(t, wantChunks+1, llm.callCount(), "one call per chunk plus one reduce")
}

func TestFailedChunkBecomesPlaceholder(t *testing.T) {
	llm := &scriptedLLM{reply: func(_ int, prompt string) (string, error) {
		if strings.Contains(prompt, "partial summaries") {
			// reduce sees the placeholder, not an error
			if !strings.Contains(prompt, PlaceholderUnavailable) {
				return "", errors.New("placeholder missing from reduce input")
			}
			return "merged", nil
		}
		if strings.Contains(prompt, "FAILCHUNK") {
			return "", errors.New("provider exhausted")
		}
		return "part", nil
	}}
	p := NewPipeline(llm, WithChunkChars(100), WithConcurrency(1))

	text := strings.Repeat("Plain sentence with ordinary details here. ", 3) +
		"FAILCHUNK " + strings.Repeat("more ordinary text follows in this chunk. ", 3) +
		strings.Repeat("And a final run of text to force several chunks. ", 3)
	out, err := p.Summarize(context.Background(), text)
	require.NoError(t, err)
	require.Equal(t, "merged", out)
}

func TestReduceRecursesWhenCombinedTooLarge(t *testing.T) {
	text := strings.Repeat("Sentence about the subject with plenty of words. ", 40)
	firstPassChunks := len(Split(text, 200))

	big := strings.Repeat("verbose chunk summary with many words repeated over. ", 10)
	llm := &scriptedLLM{reply: func(call int, prompt string) (string, error) {
		if strings.Contains(prompt, "partial summaries") {
			return "final", nil
		}
		if call <= firstPassChunks {
			return big, nil // first map pass output blows the reduce budget
		}
		return "tiny", nil
	}}
	p := NewPipeline(llm, WithChunkChars(200), WithReduceChars(600), WithConcurrency(1))

	out, err := p.Summarize(context.Background(), text)
	require.NoError(t, err)
	require.Equal(t, "final", out)
	// a second map pass means more chunk calls than the first pass alone
	require.Greater(t, llm.callCount(), firstPassChunks+1, "expected recursive reduce pass")
}

func TestTooSmallContent(t *testing.T) {
	llm := &scriptedLLM{}
	p := NewPipeline(llm)
	_, err := p.Summarize(context.Background(), "  hi  ")
	require.ErrorIs(t, err, ErrNoContent)
	require.Zero(t, llm.callCount())
}

func TestCondensePassthroughWhenSmall(t *testing.T) {
	llm := &scriptedLLM{}
	p := NewPipeline(llm)
	text := "already small enough"
	out, err := p.Condense(context.Background(), text)
	require.NoError(t, err)
	require.Equal(t, text, out)
	require.Zero(t, llm.callCount(), "no provider calls when text already fits")
}
