package briefing

import (
	"context"
	"testing"

	"github.com/arovi-health/arovi/internal/workflow"
)

func TestMetricsStageDefaultsToZeroOnMissingKeys(t *testing.T) {
	stage := NewMetricsStage(Deps{}, nil)
	st := workflow.NewState()

	v, err := stage.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("metrics stage must not fail on empty state: %v", err)
	}
	summary := v.(MetricsSummary)
	if summary.ItemsTotalCount != 0 || summary.RiskIssueCount != 0 || summary.NeedsReview {
		t.Fatalf("expected zero-valued summary, got %+v", summary)
	}
}

func TestMetricsStageCountsAndFlagsExhaustion(t *testing.T) {
	st := workflow.NewStateFrom(map[string]interface{}{
		KeyItemsGlobal: []NewsItem{item("global", "a"), item("global", "b")},
		KeyItemsCity:   []NewsItem{item("city", "c")},
		KeyTaggedItems: []NewsItem{item("global", "a"), item("global", "b"), item("city", "c")},
		KeyRiskReport: RiskReport{IsSafe: false, Issues: []RiskIssue{
			{Type: "speculation"}, {Type: "politics"},
		}},
		KeyRiskLoopOutcome: workflow.LoopOutcome{Final: workflow.LoopExhausted, CheckerCalls: 3, ReviserCalls: 2},
	})

	v, err := NewMetricsStage(Deps{}, nil).Run(context.Background(), st)
	if err != nil {
		t.Fatalf("metrics stage: %v", err)
	}
	summary := v.(MetricsSummary)
	if summary.ItemsGlobalCount != 2 || summary.ItemsCityCount != 1 || summary.ItemsUSCount != 0 {
		t.Fatalf("wrong regional counts: %+v", summary)
	}
	if summary.ItemsTotalCount != 3 {
		t.Fatalf("expected items_total_count=3, got %d", summary.ItemsTotalCount)
	}
	if summary.RiskIssueCount != 2 {
		t.Fatalf("expected 2 risk issues, got %d", summary.RiskIssueCount)
	}
	if !summary.NeedsReview {
		t.Fatal("exhausted loop must flag the briefing for review")
	}
}

func TestRiskVerdict(t *testing.T) {
	st := workflow.NewState()
	if _, err := RiskVerdict(st); err == nil {
		t.Fatal("expected error when risk report absent")
	}

	st.Set(KeyRiskReport, RiskReport{IsSafe: false})
	pass, err := RiskVerdict(st)
	if err != nil || pass {
		t.Fatalf("expected fail verdict, got pass=%t err=%v", pass, err)
	}

	st.Set(KeyRiskReport, RiskReport{IsSafe: true})
	pass, err = RiskVerdict(st)
	if err != nil || !pass {
		t.Fatalf("expected pass verdict, got pass=%t err=%v", pass, err)
	}

	st.Set(KeyRiskReport, "not a report")
	if _, err := RiskVerdict(st); err == nil {
		t.Fatal("expected error for unexpected report shape")
	}
}

func TestFinalBriefingPrefersRevised(t *testing.T) {
	st := workflow.NewStateFrom(map[string]interface{}{
		KeyBriefingDraft:   "draft text",
		KeyBriefingRevised: "revised text",
	})
	out, err := FinalBriefing(st)
	if err != nil {
		t.Fatalf("FinalBriefing: %v", err)
	}
	if out != "revised text" {
		t.Fatalf("expected revised text preferred, got %q", out)
	}

	st = workflow.NewStateFrom(map[string]interface{}{KeyBriefingDraft: "draft text"})
	out, err = FinalBriefing(st)
	if err != nil || out != "draft text" {
		t.Fatalf("expected draft fallback, got %q err=%v", out, err)
	}

	if _, err := FinalBriefing(workflow.NewState()); err == nil {
		t.Fatal("expected error when no briefing present")
	}
}

func TestMergeRegionItemsOrderAndAbsence(t *testing.T) {
	st := workflow.NewStateFrom(map[string]interface{}{
		KeyItemsCity:   []NewsItem{item("city", "local")},
		KeyItemsGlobal: []NewsItem{item("global", "world")},
	})
	merged := MergeRegionItems(st)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged items, got %d", len(merged))
	}
	if merged[0].Region != "global" || merged[1].Region != "city" {
		t.Fatalf("expected fixed global->city order, got %+v", merged)
	}
}
