package config

import (
	"testing"
	"time"
)

func TestPipelineNormalizeDefaults(t *testing.T) {
	p := PipelineConfig{}.Normalize()
	if p.MaxRiskIterations != 3 {
		t.Fatalf("max_risk_iterations default = %d, want 3", p.MaxRiskIterations)
	}
	if p.FailurePolicy != FailurePolicyDegraded {
		t.Fatalf("failure_policy default = %q, want %q", p.FailurePolicy, FailurePolicyDegraded)
	}
	if p.MinRelevanceLen != 40 {
		t.Fatalf("min_relevance_len default = %d, want 40", p.MinRelevanceLen)
	}
	if p.StageTimeout != 2*time.Minute {
		t.Fatalf("stage_timeout default = %v, want 2m", p.StageTimeout)
	}
}

func TestPipelineNormalizeKeepsExplicitValues(t *testing.T) {
	in := PipelineConfig{
		MaxRiskIterations: 5,
		FailurePolicy:     FailurePolicyFailFast,
		MinRelevanceLen:   10,
		StageTimeout:      30 * time.Second,
	}
	if got := in.Normalize(); got != in {
		t.Fatalf("Normalize changed explicit values: %+v", got)
	}
}

func TestPipelineValidate(t *testing.T) {
	p := PipelineConfig{MaxRiskIterations: 3, FailurePolicy: FailurePolicyDegraded}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	p.FailurePolicy = "explode"
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for unknown failure policy")
	}
	p = PipelineConfig{MaxRiskIterations: 0, FailurePolicy: FailurePolicyFailFast}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for zero risk iterations")
	}
}

func TestRoutingModelFor(t *testing.T) {
	r := LLMRoutingConfig{Analysis: "gpt-4o", Fallback: "gpt-4o-mini"}
	if got := r.ModelFor("analysis"); got != "gpt-4o" {
		t.Fatalf("analysis route = %q", got)
	}
	if got := r.ModelFor("review"); got != "gpt-4o-mini" {
		t.Fatalf("unrouted family should fall back, got %q", got)
	}
	if got := r.ModelFor("unknown"); got != "gpt-4o-mini" {
		t.Fatalf("unknown family should fall back, got %q", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@db:5432/arovi?sslmode=require"}
	if got := p.DSN(); got != p.URL {
		t.Fatalf("explicit url should win, got %q", got)
	}
	p = PostgresConfig{Host: "localhost", Port: "5432", User: "arovi", Password: "s", DBName: "arovi"}
	want := "postgres://arovi:s@localhost:5432/arovi?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestTelemetryValidate(t *testing.T) {
	if err := (TelemetryConfig{Enabled: true}).Validate(); err == nil {
		t.Fatalf("enabled telemetry without metrics port should fail")
	}
	if err := (TelemetryConfig{Enabled: false}).Validate(); err != nil {
		t.Fatalf("disabled telemetry should validate: %v", err)
	}
}
