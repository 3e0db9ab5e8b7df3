package summarize

import (
	"strings"
	"unicode/utf8"
)

// Token accounting is deliberately explicit: budgets below drive both the
// split decision and the recursion check, and tests pin them down.
const (
	// CharsPerToken approximates tokens from byte length.
	CharsPerToken = 4
	// ChunkTokenBudget caps one map-phase prompt.
	ChunkTokenBudget = 800
	// MaxChunkChars is the character form of the chunk budget.
	MaxChunkChars = ChunkTokenBudget * CharsPerToken
	// ReduceTokenBudget caps the final synthesis input.
	ReduceTokenBudget = 3000
	// MaxReduceChars is the character form of the reduce budget.
	MaxReduceChars = ReduceTokenBudget * CharsPerToken
)

// Chunk is a bounded slice of a document's text, tagged with its sequence
// index. Chunks are exact substrings: joining them in order reproduces the
// input byte for byte.
type Chunk struct {
	Index int
	Text  string
}

// TokenEstimate approximates the token cost of s.
func TokenEstimate(s string) int {
	return (len(s) + CharsPerToken - 1) / CharsPerToken
}

// Split cuts text into ordered chunks of at most maxChars bytes, preferring
// paragraph boundaries, then sentence boundaries, then whitespace. The split
// is lossless: Join(Split(text)) == text.
func Split(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = MaxChunkChars
	}
	if len(text) <= maxChars {
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		rest := text[start:]
		if len(rest) <= maxChars {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: rest})
			break
		}
		cut := boundary(rest[:maxChars])
		if cut <= 0 {
			// hard cut, backed off to a rune start so multi-byte
			// characters never straddle two chunks
			cut = maxChars
			for cut > 0 && !utf8.RuneStart(rest[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxChars
			}
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: rest[:cut]})
		start += cut
	}
	return chunks
}

// Join reassembles chunks in order.
func Join(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

// boundary returns the byte offset just after the best split point in
// window, or 0 when no acceptable boundary exists.
func boundary(window string) int {
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i + 2
	}
	best := 0
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i > 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	if best > 0 {
		return best
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return i + 1
	}
	return 0
}
