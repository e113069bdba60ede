package briefing

import (
	"context"
	"fmt"
	"log"

	"github.com/arovi-health/arovi/internal/workflow"
)

// ClassifyStage merges the regional item lists, runs the deterministic
// filter/dedupe pass locally, and asks the model to normalize tags on what
// survives.
type ClassifyStage struct {
	deps            Deps
	minRelevanceLen int
}

func NewClassifyStage(deps Deps, minRelevanceLen int) *ClassifyStage {
	return &ClassifyStage{deps: deps, minRelevanceLen: minRelevanceLen}
}

func (s *ClassifyStage) Name() string { return "classification_stage" }

// Inputs is empty on purpose: a degraded ingestion run may leave some region
// keys absent, and classification proceeds with whatever is present.
func (s *ClassifyStage) Inputs() []string  { return nil }
func (s *ClassifyStage) OutputKey() string { return KeyTaggedItems }

func (s *ClassifyStage) Run(ctx context.Context, st *workflow.State) (interface{}, error) {
	merged := MergeRegionItems(st)
	res := FilterAndDedupe(merged, s.minRelevanceLen)
	if len(res.Items) == 0 {
		return []NewsItem{}, nil
	}

	raw, err := s.deps.generate(ctx, "analysis", classificationPrompt(st, res.Items))
	if err != nil {
		return nil, err
	}
	tagged, err := parseItems(raw)
	if err != nil {
		return nil, err
	}
	return tagged, nil
}

// MergeRegionItems concatenates the four regional item lists in their fixed
// fan-out order. Absent keys contribute nothing.
func MergeRegionItems(st *workflow.State) []NewsItem {
	var merged []NewsItem
	for _, key := range []string{KeyItemsGlobal, KeyItemsUS, KeyItemsState, KeyItemsCity} {
		merged = append(merged, itemsAt(st, key)...)
	}
	return merged
}

// NewTrendStage identifies trends, risks, and positives across tagged items.
func NewTrendStage(deps Deps) *LLMStage {
	return &LLMStage{
		name:   "trend_stage",
		family: "analysis",
		inputs: []string{KeyTaggedItems},
		output: KeyTrendNotes,
		deps:   deps,
		prompt: trendPrompt,
		parse:  parseTrendNotes,
	}
}

// NewDraftingStage writes the per-region briefing sections.
func NewDraftingStage(deps Deps) *LLMStage {
	return &LLMStage{
		name:   "drafting_stage",
		family: "drafting",
		inputs: []string{KeyTaggedItems, KeyTrendNotes},
		output: KeyDraftSections,
		deps:   deps,
		prompt: draftingPrompt,
		parse:  parseSections,
	}
}

// NewCombinerStage assembles the sections into one Markdown briefing.
func NewCombinerStage(deps Deps) *LLMStage {
	return &LLMStage{
		name:   "combiner_stage",
		family: "drafting",
		inputs: []string{KeyDraftSections},
		output: KeyBriefingDraft,
		deps:   deps,
		prompt: combinerPrompt,
	}
}

// NewRiskCheckerStage reviews the current draft for political, speculative,
// or sensational content.
func NewRiskCheckerStage(deps Deps) *LLMStage {
	return &LLMStage{
		name:   "risk_checker_stage",
		family: "review",
		inputs: []string{KeyBriefingDraft},
		output: KeyRiskReport,
		deps:   deps,
		prompt: riskCheckPrompt,
		parse:  parseRiskReport,
	}
}

// NewRedraftStage rewrites the draft applying the risk report's fixes.
func NewRedraftStage(deps Deps) *LLMStage {
	return &LLMStage{
		name:   "redraft_stage",
		family: "review",
		inputs: []string{KeyRiskReport},
		output: KeyBriefingRevised,
		deps:   deps,
		prompt: redraftPrompt,
	}
}

// RiskVerdict reads the checker's latest report and accepts when it marks
// the draft safe.
func RiskVerdict(st *workflow.State) (bool, error) {
	v, ok := st.Get(KeyRiskReport)
	if !ok {
		return false, &workflow.MissingInputError{Stage: "risk_loop", Key: KeyRiskReport}
	}
	report, ok := v.(RiskReport)
	if !ok {
		return false, &workflow.MissingInputError{Stage: "risk_loop", Key: KeyRiskReport, Want: "RiskReport"}
	}
	return report.IsSafe, nil
}

// MetricsSummary is the scalar-count record the metrics stage writes.
type MetricsSummary struct {
	ItemsGlobalCount int  `json:"items_global_count"`
	ItemsUSCount     int  `json:"items_us_count"`
	ItemsStateCount  int  `json:"items_state_count"`
	ItemsCityCount   int  `json:"items_city_count"`
	TaggedItemsCount int  `json:"tagged_items_count"`
	ItemsTotalCount  int  `json:"items_total_count"`
	RiskIssueCount   int  `json:"risk_issue_count"`
	NeedsReview      bool `json:"needs_review"`
}

// NewMetricsStage counts the final state per category and writes a summary.
// Every read defaults to zero on a missing or oddly shaped key; metrics never
// fail a run. The logger line is the human-readable trace notification.
func NewMetricsStage(deps Deps, logger *log.Logger) *workflow.FuncStage {
	return &workflow.FuncStage{
		StageName: "metrics_stage",
		Output:    KeyMetricsSummary,
		Fn: func(ctx context.Context, st *workflow.State) (interface{}, error) {
			tagged := itemsAt(st, KeyTaggedItems)

			summary := MetricsSummary{
				ItemsGlobalCount: len(itemsAt(st, KeyItemsGlobal)),
				ItemsUSCount:     len(itemsAt(st, KeyItemsUS)),
				ItemsStateCount:  len(itemsAt(st, KeyItemsState)),
				ItemsCityCount:   len(itemsAt(st, KeyItemsCity)),
				TaggedItemsCount: len(tagged),
				ItemsTotalCount:  len(tagged),
			}

			if v, ok := st.Get(KeyRiskReport); ok {
				if report, ok := v.(RiskReport); ok {
					summary.RiskIssueCount = len(report.Issues)
				}
			}
			if v, ok := st.Get(KeyRiskLoopOutcome); ok {
				if outcome, ok := v.(workflow.LoopOutcome); ok && outcome.Exhausted() {
					summary.NeedsReview = true
					if deps.Telemetry != nil {
						deps.Telemetry.RecordRiskLoopExhaustion()
					}
				}
			}

			if logger != nil {
				logger.Printf("metrics summary: global=%d us=%d state=%d city=%d tagged=%d total=%d risk_issues=%d needs_review=%t",
					summary.ItemsGlobalCount, summary.ItemsUSCount, summary.ItemsStateCount, summary.ItemsCityCount,
					summary.TaggedItemsCount, summary.ItemsTotalCount, summary.RiskIssueCount, summary.NeedsReview)
			}
			return summary, nil
		},
	}
}

// TaggedItems returns the classified items from a finished run's state.
func TaggedItems(st *workflow.State) []NewsItem {
	return itemsAt(st, KeyTaggedItems)
}

// FinalBriefing returns the best available briefing text from a finished run,
// preferring the revised draft when the loop produced one.
func FinalBriefing(st *workflow.State) (string, error) {
	if v, ok := st.Get(KeyBriefingRevised); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	if v, ok := st.Get(KeyBriefingDraft); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("no briefing text in state")
}
