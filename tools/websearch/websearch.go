package websearch

import (
	"context"
	"fmt"

	"github.com/arovi-health/arovi/tools/websearch/brave"
	"github.com/arovi-health/arovi/tools/websearch/models"
	"github.com/arovi-health/arovi/tools/websearch/serper"
)

// WebSearcher is the search tool boundary the ingestion stages call once per
// region query.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", provider)
	}
}
