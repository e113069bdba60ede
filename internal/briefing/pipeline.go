package briefing

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/arovi-health/arovi/config"
	"github.com/arovi-health/arovi/internal/telemetry"
	"github.com/arovi-health/arovi/internal/workflow"
	"github.com/arovi-health/arovi/provider"
	"github.com/arovi-health/arovi/tools/webfetch"
	"github.com/arovi-health/arovi/tools/websearch"
)

// Engine owns one assembled briefing pipeline and runs it per request.
type Engine struct {
	cfg      *config.Config
	pipeline *workflow.Pipeline
	group    *workflow.Group
	deps     Deps
	logger   *log.Logger
}

// Result is what a finished run hands back to callers.
type Result struct {
	RunID    string
	Briefing string
	Summary  MetricsSummary
	Degraded bool
	Duration time.Duration
	State    *workflow.State
}

// NewEngine assembles the full pipeline: parallel ingestion, classification,
// trend analysis, drafting, combining, the bounded risk loop, and metrics.
func NewEngine(cfg *config.Config, llm provider.LLMProvider, searcher websearch.WebSearcher, telem *telemetry.Telemetry, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	deps := Deps{Provider: llm, Routing: cfg.LLM.Routing, Telemetry: telem}

	var fetcher *webfetch.Fetcher
	if cfg.Sources.WebFetch.Enabled {
		fetcher = webfetch.NewFetcher(cfg.Sources.WebFetch.Timeout, cfg.Sources.WebFetch.MaxChars, "")
	}

	observe := workflow.Metrics{}
	if telem != nil {
		observe = workflow.Metrics{
			StageDuration: telem.ObserveStageDuration,
			StageFailure:  telem.IncStageFailure,
		}
	}
	runner := func(s workflow.Stage) *workflow.StageRunner {
		return &workflow.StageRunner{Stage: s, Timeout: cfg.Pipeline.StageTimeout, Observe: observe}
	}

	members := make([]workflow.Runner, 0, len(Regions))
	for _, spec := range Regions {
		members = append(members, runner(NewIngestionStage(spec, deps, searcher, fetcher, cfg.Sources.WebSearch.MaxResults)))
	}
	policy := workflow.DegradedCompletion
	if cfg.Pipeline.FailurePolicy == config.FailurePolicyFailFast {
		policy = workflow.FailFast
	}
	group, err := workflow.NewGroup("ingestion_group", policy, members...)
	if err != nil {
		return nil, err
	}

	loop, err := workflow.NewLoop("risk_loop",
		NewRiskCheckerStage(deps), NewRedraftStage(deps),
		cfg.Pipeline.MaxRiskIterations, RiskVerdict, KeyRiskLoopOutcome)
	if err != nil {
		return nil, err
	}

	metrics := runner(NewMetricsStage(deps, logger))
	metrics.BestEffort = true

	pipeline, err := workflow.NewPipeline("briefing_pipeline", []workflow.Runner{
		group,
		runner(NewClassifyStage(deps, cfg.Pipeline.MinRelevanceLen)),
		runner(NewTrendStage(deps)),
		runner(NewDraftingStage(deps)),
		runner(NewCombinerStage(deps)),
		loop,
		metrics,
	}, workflow.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &Engine{cfg: cfg, pipeline: pipeline, group: group, deps: deps, logger: logger}, nil
}

// Run executes the pipeline once for the given target. A degraded run (some
// ingestion partitions failed, or the risk loop exhausted its iteration cap)
// still returns a briefing; only required-stage failures return an error.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.New().String()
	if req.Country == "" {
		req.Country = e.cfg.General.DefaultCountry
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	st := workflow.NewStateFrom(req.Seed())
	start := time.Now()
	err := e.pipeline.Execute(ctx, st)
	elapsed := time.Since(start)

	degraded := len(workflow.GroupFailures(st, e.group.FailuresKey())) > 0
	if v, ok := st.Get(KeyRiskLoopOutcome); ok {
		if outcome, ok := v.(workflow.LoopOutcome); ok && outcome.Exhausted() {
			degraded = true
		}
	}

	if e.deps.Telemetry != nil {
		e.deps.Telemetry.RecordRunEvent(telemetry.RunEvent{
			RunID:     runID,
			City:      req.City,
			StartTime: start,
			EndTime:   start.Add(elapsed),
			Duration:  elapsed,
			Success:   err == nil,
			Degraded:  degraded,
			Error:     errString(err),
		})
	}
	if err != nil {
		return nil, err
	}

	briefing, err := FinalBriefing(st)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    runID,
		Briefing: briefing,
		Degraded: degraded,
		Duration: elapsed,
		State:    st,
	}
	if v, ok := st.Get(KeyMetricsSummary); ok {
		if summary, ok := v.(MetricsSummary); ok {
			res.Summary = summary
		}
	}
	return res, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
