package workflow

import (
	"context"
	"fmt"
	"time"
)

// Stage is a single named unit of pipeline work. It declares the state keys it
// reads, the single key it writes, and performs its action in Run. Variants
// (LLM-backed, tool-backed, local-compute) all satisfy this contract; they are
// composed through explicit lists, not inheritance.
type Stage interface {
	Name() string
	Inputs() []string
	OutputKey() string
	Run(ctx context.Context, st *State) (interface{}, error)
}

// Runner is a composable pipeline element: a single stage, a parallel group,
// or a refinement loop. OutputKeys is used at construction time to validate
// the one-writer-per-key discipline.
type Runner interface {
	Name() string
	OutputKeys() []string
	Execute(ctx context.Context, st *State) error
}

// FuncStage is the local-compute stage variant: a pure function over state.
type FuncStage struct {
	StageName string
	InputKeys []string
	Output    string
	Fn        func(ctx context.Context, st *State) (interface{}, error)
}

func (f *FuncStage) Name() string      { return f.StageName }
func (f *FuncStage) Inputs() []string  { return f.InputKeys }
func (f *FuncStage) OutputKey() string { return f.Output }

func (f *FuncStage) Run(ctx context.Context, st *State) (interface{}, error) {
	return f.Fn(ctx, st)
}

// Metrics aggregates optional telemetry callbacks, invoked per stage run.
type Metrics struct {
	StageDuration func(stage string, d time.Duration)
	StageFailure  func(stage string)
}

// StageRunner adapts a Stage to the Runner contract: it verifies required
// inputs, runs the action, and writes the result under the declared output
// key exactly once per invocation.
type StageRunner struct {
	Stage      Stage
	BestEffort bool
	Timeout    time.Duration
	Observe    Metrics
}

// NewStageRunner wraps a stage for pipeline composition.
func NewStageRunner(s Stage) *StageRunner { return &StageRunner{Stage: s} }

func (r *StageRunner) Name() string         { return r.Stage.Name() }
func (r *StageRunner) OutputKeys() []string { return []string{r.Stage.OutputKey()} }

// Execute runs the stage once against the shared state.
func (r *StageRunner) Execute(ctx context.Context, st *State) error {
	for _, key := range r.Stage.Inputs() {
		if !st.Has(key) {
			return &MissingInputError{Stage: r.Stage.Name(), Key: key}
		}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	value, err := r.Stage.Run(ctx, st)
	if r.Observe.StageDuration != nil {
		r.Observe.StageDuration(r.Stage.Name(), time.Since(start))
	}
	if err != nil {
		if r.Observe.StageFailure != nil {
			r.Observe.StageFailure(r.Stage.Name())
		}
		return &StageExecutionError{Stage: r.Stage.Name(), Err: err}
	}
	if key := r.Stage.OutputKey(); key != "" {
		st.Set(key, value)
	}
	return nil
}

// validateOutputKeys rejects duplicate writers among the supplied runners.
func validateOutputKeys(runners []Runner) error {
	writers := make(map[string]string)
	for _, r := range runners {
		for _, key := range r.OutputKeys() {
			if key == "" {
				continue
			}
			if prev, ok := writers[key]; ok {
				return fmt.Errorf("%w: %q written by both %s and %s", ErrDuplicateOutputKey, key, prev, r.Name())
			}
			writers[key] = r.Name()
		}
	}
	return nil
}
