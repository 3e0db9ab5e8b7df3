package search

import (
	"context"

	"github.com/kallisto-osint/osinter/internal/search/brave"
	"github.com/kallisto-osint/osinter/internal/search/models"
	"github.com/kallisto-osint/osinter/internal/search/serper"
)

// Searcher issues one structured query against an external search API and
// returns a ranked result list.
type Searcher interface {
	Search(ctx context.Context, q string, k int, f models.Filters) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = &Error{"unsupported provider"}

type Error struct{ msg string }

func (e *Error) Error() string { return e.msg }

func NewSearcher(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
