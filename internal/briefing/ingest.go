package briefing

import (
	"context"
	"fmt"
	"strings"

	"github.com/arovi-health/arovi/internal/workflow"
	"github.com/arovi-health/arovi/tools/webfetch"
	"github.com/arovi-health/arovi/tools/websearch"
)

// RegionSpec describes one ingestion partition. The four specs fan out in
// parallel and write disjoint output keys.
type RegionSpec struct {
	StageName string
	Label     string
	Region    string
	OutputKey string
}

// Regions is the fixed ingestion fan-out: global, national, state, city.
var Regions = []RegionSpec{
	{StageName: "global_ingestion_stage", Label: "global", Region: RegionGlobal, OutputKey: KeyItemsGlobal},
	{StageName: "us_ingestion_stage", Label: "United States", Region: RegionNational, OutputKey: KeyItemsUS},
	{StageName: "state_ingestion_stage", Label: "state-level", Region: RegionState, OutputKey: KeyItemsState},
	{StageName: "city_ingestion_stage", Label: "city/local", Region: RegionCity, OutputKey: KeyItemsCity},
}

// fetchTopN bounds how many search hits get full article extraction.
const fetchTopN = 3

// IngestionStage discovers public-health news for one region partition: a web
// search, optional article extraction for the top hits, then a model call to
// distill the raw results into structured news items.
type IngestionStage struct {
	spec       RegionSpec
	deps       Deps
	searcher   websearch.WebSearcher
	fetcher    *webfetch.Fetcher
	maxResults int
}

// NewIngestionStage builds the ingestion stage for one region. The fetcher
// may be nil, in which case only search snippets feed the model.
func NewIngestionStage(spec RegionSpec, deps Deps, searcher websearch.WebSearcher, fetcher *webfetch.Fetcher, maxResults int) *IngestionStage {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &IngestionStage{spec: spec, deps: deps, searcher: searcher, fetcher: fetcher, maxResults: maxResults}
}

func (s *IngestionStage) Name() string      { return s.spec.StageName }
func (s *IngestionStage) Inputs() []string  { return nil }
func (s *IngestionStage) OutputKey() string { return s.spec.OutputKey }

func (s *IngestionStage) Run(ctx context.Context, st *workflow.State) (interface{}, error) {
	query := s.query(st)
	results, err := s.searcher.Discover(ctx, query, s.maxResults, nil, 2)
	if err != nil {
		return nil, fmt.Errorf("search for %q: %w", query, err)
	}

	var digest strings.Builder
	for i, r := range results {
		fmt.Fprintf(&digest, "[%d] %s\n%s\n%s\n", i+1, r.Title, r.URL, r.Snippet)
		if s.fetcher != nil && i < fetchTopN {
			// Extraction failures degrade to snippet-only input.
			if page, err := s.fetcher.Exec(ctx, r.URL); err == nil && page.Text != "" {
				fmt.Fprintf(&digest, "Extract: %s\n", page.Text)
			}
		}
		digest.WriteString("\n")
	}
	if digest.Len() == 0 {
		return []NewsItem{}, nil
	}

	raw, err := s.deps.generate(ctx, "ingestion", ingestionPrompt(s.spec.Label, st, digest.String()))
	if err != nil {
		return nil, err
	}
	items, err := parseItems(raw)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if strings.TrimSpace(items[i].Region) == "" {
			items[i].Region = s.spec.Region
		}
	}
	return items, nil
}

func (s *IngestionStage) query(st *workflow.State) string {
	get := func(key string) string {
		if v, ok := st.Get(key); ok {
			if str, ok := v.(string); ok {
				return str
			}
		}
		return ""
	}

	var scope string
	switch s.spec.Region {
	case RegionGlobal:
		scope = "global"
	case RegionNational:
		scope = get(KeyTargetCountry)
		if scope == "" {
			scope = "United States"
		}
	case RegionState:
		scope = get(KeyTargetState)
	case RegionCity:
		scope = strings.TrimSpace(get(KeyTargetCity) + " " + get(KeyTargetState))
	}

	q := strings.TrimSpace(scope + " public health news")
	if date := get(KeyTargetDate); date != "" {
		q += " " + date
	}
	return q
}
