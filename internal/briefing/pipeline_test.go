package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/arovi-health/arovi/config"
	"github.com/arovi-health/arovi/internal/workflow"
	"github.com/arovi-health/arovi/provider"
	"github.com/arovi-health/arovi/tools/websearch/models"
)

// stubSearcher returns one canned hit per query.
type stubSearcher struct{}

func (stubSearcher) Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error) {
	return []models.Result{{Title: "hit for " + q, URL: "https://example.com/news", Snippet: "snippet"}}, nil
}

// scriptedProvider answers each stage's prompt with a deterministic reply
// keyed off the prompt text. Classification echoes the items embedded in its
// own prompt, so the dedupe counts flow through unchanged.
type scriptedProvider struct {
	globalItems []NewsItem
	usItems     []NewsItem
	stateItems  []NewsItem
	cityItems   []NewsItem
}

func itemsJSON(t []NewsItem) string {
	if len(t) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(t)
	return string(b)
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt, model string, options map[string]interface{}) (string, error) {
	out, _, _, err := p.GenerateWithTokens(ctx, prompt, model, options)
	return out, err
}

func (p *scriptedProvider) GenerateWithTokens(ctx context.Context, prompt, model string, options map[string]interface{}) (string, int64, int64, error) {
	switch {
	case strings.Contains(prompt, "ingestion agent for the global region"):
		return itemsJSON(p.globalItems), 10, 20, nil
	case strings.Contains(prompt, "ingestion agent for the United States region"):
		return itemsJSON(p.usItems), 10, 20, nil
	case strings.Contains(prompt, "ingestion agent for the state-level region"):
		return itemsJSON(p.stateItems), 10, 20, nil
	case strings.Contains(prompt, "ingestion agent for the city/local region"):
		return itemsJSON(p.cityItems), 10, 20, nil
	case strings.Contains(prompt, "classifier for public-health news"):
		// identity classification: return the filtered items from the prompt
		idx := strings.Index(prompt, "Items:\n")
		if idx == -1 {
			return "", 0, 0, fmt.Errorf("classification prompt missing items")
		}
		return prompt[idx+len("Items:\n"):], 10, 20, nil
	case strings.Contains(prompt, "public-health trend analyst"):
		return `{"key_trends":["t"],"risks":[],"positive_developments":[],"notes_for_briefing_writer":"n"}`, 10, 20, nil
	case strings.Contains(prompt, "briefing writer"):
		return `{"section_global":"g","section_us":"u","section_state":"s","section_city":"c","section_good_news":"gn","section_fun_fact":"ff"}`, 10, 20, nil
	case strings.Contains(prompt, "Combine the section texts"):
		return "# Daily Public-Health Briefing\n\ncombined", 10, 20, nil
	case strings.Contains(prompt, "safety reviewer"):
		return `{"is_safe": true, "issues": [], "high_level_feedback": "clean"}`, 10, 20, nil
	case strings.Contains(prompt, "editor applying safety fixes"):
		return "# Daily Public-Health Briefing\n\nrevised", 10, 20, nil
	}
	return "", 0, 0, fmt.Errorf("unexpected prompt: %.80s", prompt)
}

func (p *scriptedProvider) GetAvailableModels() []string { return []string{"stub"} }
func (p *scriptedProvider) GetModelInfo(model string) (provider.ModelInfo, error) {
	return provider.ModelInfo{Name: model}, nil
}
func (p *scriptedProvider) CalculateCost(in, out int64, model string) float64 { return 0 }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.General.DefaultCountry = "United States"
	cfg.Pipeline = config.PipelineConfig{}.Normalize()
	cfg.Sources.WebSearch.MaxResults = 3
	return cfg
}

func TestEngineEndToEnd(t *testing.T) {
	// 5 global items with 1 duplicate, 3 national, 0 state, 2 city: the
	// classified total must come out to 9.
	llm := &scriptedProvider{
		globalItems: []NewsItem{
			item("global", "Measles outbreak update"),
			item("global", "Measles outbreak update"), // duplicate
			item("global", "Heat advisory extended"),
			item("global", "Cholera response scaled up"),
			item("global", "Air quality improves"),
		},
		usItems: []NewsItem{
			item("national", "Flu season begins"),
			item("national", "Vaccination drive expands"),
			item("national", "Hospital capacity steady"),
		},
		stateItems: nil,
		cityItems: []NewsItem{
			item("city", "Clinic hours extended"),
			item("city", "Water testing results published"),
		},
	}

	engine, err := NewEngine(testConfig(), llm, stubSearcher{}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := engine.Run(context.Background(), Request{City: "Chicago", State: "Illinois", Date: "2026-08-29"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Summary.ItemsTotalCount != 9 {
		t.Fatalf("expected items_total_count=9, got %d", res.Summary.ItemsTotalCount)
	}
	if res.Summary.ItemsGlobalCount != 5 || res.Summary.ItemsUSCount != 3 ||
		res.Summary.ItemsStateCount != 0 || res.Summary.ItemsCityCount != 2 {
		t.Fatalf("wrong regional counts: %+v", res.Summary)
	}
	if res.Degraded {
		t.Fatal("run should not be degraded when everything succeeds")
	}
	// checker accepted on the first pass, so no revision happened and the
	// draft is the final text
	if !strings.Contains(res.Briefing, "combined") {
		t.Fatalf("unexpected briefing text: %q", res.Briefing)
	}
	if v, ok := res.State.Get(KeyRiskLoopOutcome); ok {
		outcome := v.(workflow.LoopOutcome)
		if outcome.Final != workflow.LoopAccepted || outcome.CheckerCalls != 1 || outcome.ReviserCalls != 0 {
			t.Fatalf("unexpected loop outcome: %+v", outcome)
		}
	} else {
		t.Fatal("loop outcome missing from state")
	}
}

// flakyReviewProvider never marks the draft safe, forcing loop exhaustion.
type flakyReviewProvider struct{ scriptedProvider }

func (p *flakyReviewProvider) GenerateWithTokens(ctx context.Context, prompt, model string, options map[string]interface{}) (string, int64, int64, error) {
	if strings.Contains(prompt, "safety reviewer") {
		return `{"is_safe": false, "issues": [{"type":"speculation","excerpt":"may explode","suggested_fix":"remove"}], "high_level_feedback":"rework"}`, 10, 20, nil
	}
	return p.scriptedProvider.GenerateWithTokens(ctx, prompt, model, options)
}

func TestEngineDegradesOnLoopExhaustion(t *testing.T) {
	llm := &flakyReviewProvider{scriptedProvider{
		globalItems: []NewsItem{item("global", "Heat advisory extended")},
	}}

	cfg := testConfig()
	cfg.Pipeline.MaxRiskIterations = 2

	engine, err := NewEngine(cfg, llm, stubSearcher{}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := engine.Run(context.Background(), Request{City: "Chicago"})
	if err != nil {
		t.Fatalf("exhausted loop must not fail the run: %v", err)
	}
	if !res.Degraded {
		t.Fatal("exhausted loop must mark the run degraded")
	}
	if !res.Summary.NeedsReview {
		t.Fatal("metrics must flag the briefing for review")
	}
	// the reviser ran, so the revised text is preferred
	if !strings.Contains(res.Briefing, "revised") {
		t.Fatalf("expected revised briefing, got %q", res.Briefing)
	}
	v, _ := res.State.Get(KeyRiskLoopOutcome)
	outcome := v.(workflow.LoopOutcome)
	if outcome.CheckerCalls != 2 || outcome.ReviserCalls != 1 {
		t.Fatalf("unexpected loop call counts: %+v", outcome)
	}
}

// brokenSearcher fails one region's discovery to exercise the group policy.
type brokenSearcher struct{ failSubstring string }

func (b brokenSearcher) Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error) {
	if strings.Contains(q, b.failSubstring) {
		return nil, fmt.Errorf("search backend unavailable")
	}
	return []models.Result{{Title: "hit", URL: "https://example.com/news", Snippet: "snippet"}}, nil
}

func TestEngineDegradedIngestion(t *testing.T) {
	llm := &scriptedProvider{
		globalItems: []NewsItem{item("global", "Heat advisory extended")},
		usItems:     []NewsItem{item("national", "Flu season begins")},
		stateItems:  []NewsItem{item("state", "County reports stable numbers")},
		cityItems:   []NewsItem{item("city", "Clinic hours extended")},
	}

	cfg := testConfig()
	engine, err := NewEngine(cfg, llm, brokenSearcher{failSubstring: "Illinois public health news"}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := engine.Run(context.Background(), Request{City: "Chicago", State: "Illinois"})
	if err != nil {
		t.Fatalf("degraded ingestion must not fail the run: %v", err)
	}
	if !res.Degraded {
		t.Fatal("failed partition must mark the run degraded")
	}
	// city query includes the state name, so both state and city partitions
	// fail; global and national still land
	if res.Summary.ItemsGlobalCount != 1 || res.Summary.ItemsUSCount != 1 {
		t.Fatalf("surviving partitions missing: %+v", res.Summary)
	}
	if res.Summary.ItemsStateCount != 0 || res.Summary.ItemsCityCount != 0 {
		t.Fatalf("failed partitions should contribute nothing: %+v", res.Summary)
	}
}

func TestEngineConcurrentRunsKeepDegradedFlag(t *testing.T) {
	// One shared engine, two runs in flight: the run with the broken state
	// search must stay degraded while the clean run stays clean.
	llm := &scriptedProvider{
		globalItems: []NewsItem{item("global", "Heat advisory extended")},
		usItems:     []NewsItem{item("national", "Flu season begins")},
		stateItems:  []NewsItem{item("state", "County reports stable numbers")},
		cityItems:   []NewsItem{item("city", "Clinic hours extended")},
	}
	engine, err := NewEngine(testConfig(), llm, brokenSearcher{failSubstring: "Illinois"}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var wg sync.WaitGroup
	var brokenRes, cleanRes *Result
	var brokenErr, cleanErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		brokenRes, brokenErr = engine.Run(context.Background(), Request{City: "Chicago", State: "Illinois"})
	}()
	go func() {
		defer wg.Done()
		cleanRes, cleanErr = engine.Run(context.Background(), Request{City: "Denver", State: "Colorado"})
	}()
	wg.Wait()

	if brokenErr != nil || cleanErr != nil {
		t.Fatalf("runs failed: %v / %v", brokenErr, cleanErr)
	}
	if !brokenRes.Degraded {
		t.Fatal("run with failed partitions lost its degraded flag")
	}
	if cleanRes.Degraded {
		t.Fatal("clean run picked up another run's degraded flag")
	}
}

func TestEngineFailFastPolicy(t *testing.T) {
	llm := &scriptedProvider{}
	cfg := testConfig()
	cfg.Pipeline.FailurePolicy = config.FailurePolicyFailFast

	engine, err := NewEngine(cfg, llm, brokenSearcher{failSubstring: "global"}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := engine.Run(context.Background(), Request{City: "Chicago"}); err == nil {
		t.Fatal("fail-fast policy must surface the partition failure")
	}
}
