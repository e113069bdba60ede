package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arovi-health/arovi/config"
	"github.com/arovi-health/arovi/internal/helpers"
	"github.com/arovi-health/arovi/internal/telemetry"
	"github.com/arovi-health/arovi/internal/workflow"
	"github.com/arovi-health/arovi/provider"
)

// Deps bundles the external collaborators the stages talk through. The
// telemetry handle may be nil in tests.
type Deps struct {
	Provider  provider.LLMProvider
	Routing   config.LLMRoutingConfig
	Telemetry *telemetry.Telemetry
}

func (d Deps) generate(ctx context.Context, family, prompt string) (string, error) {
	model := d.Routing.ModelFor(family)
	raw, inTok, outTok, err := d.Provider.GenerateWithTokens(ctx, prompt, model, nil)
	if err != nil {
		return "", err
	}
	if d.Telemetry != nil {
		cost := d.Provider.CalculateCost(inTok, outTok, model)
		d.Telemetry.RecordLLMUsage(model, inTok, outTok, cost)
	}
	return raw, nil
}

// LLMStage is a workflow stage whose action is a single model call. The stage
// only owns its prompt template and the shape of the value it writes; model
// behaviour lives behind the provider boundary.
type LLMStage struct {
	name   string
	family string
	inputs []string
	output string
	deps   Deps
	prompt func(st *workflow.State) (string, error)
	parse  func(raw string) (interface{}, error)
}

func (s *LLMStage) Name() string      { return s.name }
func (s *LLMStage) Inputs() []string  { return s.inputs }
func (s *LLMStage) OutputKey() string { return s.output }

func (s *LLMStage) Run(ctx context.Context, st *workflow.State) (interface{}, error) {
	prompt, err := s.prompt(st)
	if err != nil {
		return nil, err
	}
	raw, err := s.deps.generate(ctx, s.family, prompt)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if s.parse == nil {
		return raw, nil
	}
	return s.parse(raw)
}

// parseItems decodes a model reply into news items. Both a bare JSON array
// and an {"items": [...]} wrapper are accepted; a bare "null" reply means the
// model found nothing for the region.
func parseItems(raw string) ([]NewsItem, error) {
	if strings.TrimSpace(raw) == "null" {
		return []NewsItem{}, nil
	}
	blob, err := helpers.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("locating items JSON: %w", err)
	}

	var items []NewsItem
	if err := json.Unmarshal([]byte(blob), &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []NewsItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(blob), &wrapped); err != nil {
		return nil, fmt.Errorf("decoding items JSON: %w", err)
	}
	return wrapped.Items, nil
}

func parseTrendNotes(raw string) (interface{}, error) {
	blob, err := helpers.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("locating trend notes JSON: %w", err)
	}
	var notes TrendNotes
	if err := json.Unmarshal([]byte(blob), &notes); err != nil {
		return nil, fmt.Errorf("decoding trend notes: %w", err)
	}
	return notes, nil
}

func parseRiskReport(raw string) (interface{}, error) {
	blob, err := helpers.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("locating risk report JSON: %w", err)
	}
	var report RiskReport
	if err := json.Unmarshal([]byte(blob), &report); err != nil {
		return nil, fmt.Errorf("decoding risk report: %w", err)
	}
	return report, nil
}

func parseSections(raw string) (interface{}, error) {
	blob, err := helpers.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("locating sections JSON: %w", err)
	}
	var sections map[string]string
	if err := json.Unmarshal([]byte(blob), &sections); err != nil {
		return nil, fmt.Errorf("decoding sections: %w", err)
	}
	return sections, nil
}

// itemsAt reads a slice of news items from state, tolerating an absent key
// (empty slice) so a degraded ingestion run still classifies what it has.
func itemsAt(st *workflow.State, key string) []NewsItem {
	v, ok := st.Get(key)
	if !ok {
		return nil
	}
	items, ok := v.([]NewsItem)
	if !ok {
		return nil
	}
	return items
}
