package summarize

import (
	"strings"
	"testing"
)

func TestSplitLossless(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		max  int
	}{
		{"paragraphs", strings.Repeat("First paragraph with detail.\n\nSecond paragraph here.\n\n", 40), 200},
		{"sentences", strings.Repeat("A sentence about the subject. Another one follows! Was there more? ", 30), 150},
		{"no boundaries", strings.Repeat("x", 1000), 128},
		{"unicode", strings.Repeat("héllo wörld — naïve café. ", 100), 97},
		{"short", "tiny", 100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.max)
			if got := Join(chunks); got != tt.text {
				t.Fatalf("join(split(text)) diverged from input: len %d vs %d", len(got), len(tt.text))
			}
			for _, c := range chunks {
				if len(c.Text) > tt.max {
					t.Fatalf("chunk %d exceeds budget: %d > %d", c.Index, len(c.Text), tt.max)
				}
			}
		})
	}
}

func TestSplitIndexesSequential(t *testing.T) {
	t.Parallel()
	chunks := Split(strings.Repeat("word ", 500), 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks")
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 100)
	chunks := Split(text, 80)
	if len(chunks) < 2 {
		t.Fatalf("expected a split")
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Fatalf("expected first chunk to end on paragraph boundary, got %q", chunks[0].Text[len(chunks[0].Text)-5:])
	}
}

func TestSplitSingleChunkPassthrough(t *testing.T) {
	t.Parallel()
	text := "fits in one chunk"
	chunks := Split(text, MaxChunkChars)
	if len(chunks) != 1 || chunks[0].Text != text {
		t.Fatalf("expected single passthrough chunk, got %d", len(chunks))
	}
}

func TestTokenEstimate(t *testing.T) {
	t.Parallel()
	if got := TokenEstimate(""); got != 0 {
		t.Fatalf("empty estimate = %d", got)
	}
	if got := TokenEstimate("abcd"); got != 1 {
		t.Fatalf("4 chars = %d tokens", got)
	}
	if got := TokenEstimate("abcde"); got != 2 {
		t.Fatalf("5 chars = %d tokens", got)
	}
}
