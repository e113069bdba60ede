package workflow

import (
	"context"
	"log"
)

// Pipeline runs an ordered list of stages and groups. Each element waits for
// the previous one to fully complete before starting; there is no overlap.
type Pipeline struct {
	name    string
	runners []Runner
	logger  *log.Logger
}

// PipelineOption configures pipeline behaviour.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// NewPipeline builds a sequential pipeline. Output-key uniqueness across all
// elements is validated here, not at runtime.
func NewPipeline(name string, runners []Runner, opts ...PipelineOption) (*Pipeline, error) {
	if err := validateOutputKeys(runners); err != nil {
		return nil, err
	}
	p := &Pipeline{name: name, runners: runners}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return p, nil
}

func (p *Pipeline) Name() string { return p.name }

// OutputKeys returns the keys written by every element of the pipeline.
func (p *Pipeline) OutputKeys() []string {
	var keys []string
	for _, r := range p.runners {
		keys = append(keys, r.OutputKeys()...)
	}
	return keys
}

// Execute runs the pipeline elements in order against the shared state. The
// first required-element failure halts the remaining elements and surfaces as
// a PipelineError. Best-effort stages log their failure and let the run
// proceed.
func (p *Pipeline) Execute(ctx context.Context, st *State) error {
	for _, r := range p.runners {
		if err := ctx.Err(); err != nil {
			return &PipelineError{Pipeline: p.name, Stage: r.Name(), Err: err}
		}
		p.logger.Printf("stage %s starting", r.Name())
		if err := r.Execute(ctx, st); err != nil {
			if sr, ok := r.(*StageRunner); ok && sr.BestEffort {
				p.logger.Printf("stage %s failed (best-effort, continuing): %v", r.Name(), err)
				continue
			}
			p.logger.Printf("stage %s failed: %v", r.Name(), err)
			return &PipelineError{Pipeline: p.name, Stage: r.Name(), Err: err}
		}
		p.logger.Printf("stage %s complete", r.Name())
	}
	return nil
}
