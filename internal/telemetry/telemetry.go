package telemetry

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arovi-health/arovi/config"
)

// Telemetry provides monitoring and cost tracking for briefing runs.
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	server      *http.Server
	mu          sync.RWMutex
}

// Metrics holds aggregate performance metrics.
type Metrics struct {
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	DegradedRuns   int64
	AverageRunTime time.Duration

	StageExecutions   map[string]int64
	StageFailures     map[string]int64
	StageAverageTimes map[string]time.Duration

	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64
}

// CostTracker tracks LLM costs per model and in total.
type CostTracker struct {
	ModelCosts  map[string]float64
	TotalCost   float64
	TotalTokens int64
}

// RunEvent records a complete pipeline run.
type RunEvent struct {
	RunID     string
	City      string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Degraded  bool
	Error     string
	Cost      float64
	Tokens    int64
	Models    []string
}

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arovi_runs_total",
		Help: "Briefing pipeline runs by outcome.",
	}, []string{"outcome"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arovi_stage_duration_seconds",
		Help:    "Wall time per pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arovi_stage_failures_total",
		Help: "Stage execution failures.",
	}, []string{"stage"})
	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arovi_llm_tokens_total",
		Help: "LLM tokens consumed per model.",
	}, []string{"model", "direction"})
	riskLoopExhaustions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arovi_risk_loop_exhaustions_total",
		Help: "Risk loops that hit the iteration cap without acceptance.",
	})
)

// NewTelemetry creates a new telemetry instance.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			StageExecutions:   make(map[string]int64),
			StageFailures:     make(map[string]int64),
			StageAverageTimes: make(map[string]time.Duration),
			LLMRequests:       make(map[string]int64),
			LLMTokensUsed:     make(map[string]int64),
		},
		costTracker: &CostTracker{ModelCosts: make(map[string]float64)},
	}

	if cfg.Enabled && cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		t.server = &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}
		go func() {
			if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				t.logger.Printf("metrics server: %v", err)
			}
		}()
	}

	return t
}

// RecordRunEvent records a completed pipeline run.
func (t *Telemetry) RecordRunEvent(event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	outcome := "success"
	switch {
	case !event.Success:
		t.metrics.FailedRuns++
		outcome = "failure"
	case event.Degraded:
		t.metrics.DegradedRuns++
		outcome = "degraded"
	default:
		t.metrics.SuccessfulRuns++
	}
	runsTotal.WithLabelValues(outcome).Inc()

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunTime = event.Duration
	} else {
		total := t.metrics.AverageRunTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunTime = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	for _, model := range event.Models {
		t.metrics.LLMRequests[model]++
	}
	if t.config.CostTracking {
		t.costTracker.TotalCost += event.Cost
		t.costTracker.TotalTokens += event.Tokens
	}

	t.logger.Printf("Run Event: ID=%s, City=%s, Success=%t, Degraded=%t, Duration=%v, Cost=$%.4f, Tokens=%d",
		event.RunID, event.City, event.Success, event.Degraded, event.Duration, event.Cost, event.Tokens)
}

// ObserveStageDuration records a single stage execution.
func (t *Telemetry) ObserveStageDuration(stage string, d time.Duration) {
	if !t.config.Enabled {
		return
	}
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.StageExecutions[stage]++
	n := t.metrics.StageExecutions[stage]
	if n == 1 {
		t.metrics.StageAverageTimes[stage] = d
	} else {
		total := t.metrics.StageAverageTimes[stage] * time.Duration(n-1)
		t.metrics.StageAverageTimes[stage] = (total + d) / time.Duration(n)
	}
}

// IncStageFailure counts a failed stage execution.
func (t *Telemetry) IncStageFailure(stage string) {
	if !t.config.Enabled {
		return
	}
	stageFailures.WithLabelValues(stage).Inc()
	t.mu.Lock()
	t.metrics.StageFailures[stage]++
	t.mu.Unlock()
}

// RecordLLMUsage tracks token usage and cost for a single model call.
func (t *Telemetry) RecordLLMUsage(model string, inputTokens, outputTokens int64, cost float64) {
	if !t.config.Enabled {
		return
	}
	llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.LLMRequests[model]++
	t.metrics.LLMTokensUsed[model] += inputTokens + outputTokens
	if t.config.CostTracking {
		t.costTracker.ModelCosts[model] += cost
		t.costTracker.TotalCost += cost
		t.costTracker.TotalTokens += inputTokens + outputTokens
	}
}

// RecordRiskLoopExhaustion counts a risk loop that degraded.
func (t *Telemetry) RecordRiskLoopExhaustion() {
	if !t.config.Enabled {
		return
	}
	riskLoopExhaustions.Inc()
}

// GetMetricsSummary returns a snapshot of the aggregate metrics.
func (t *Telemetry) GetMetricsSummary() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]interface{}{
		"total_runs":       t.metrics.TotalRuns,
		"successful_runs":  t.metrics.SuccessfulRuns,
		"failed_runs":      t.metrics.FailedRuns,
		"degraded_runs":    t.metrics.DegradedRuns,
		"average_run_time": t.metrics.AverageRunTime.String(),
		"total_cost":       t.costTracker.TotalCost,
		"total_tokens":     t.costTracker.TotalTokens,
	}
}

// Shutdown stops the metrics server if one was started.
func (t *Telemetry) Shutdown() {
	if t.server != nil {
		_ = t.server.Close()
	}
}
