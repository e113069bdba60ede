package workflow

import (
	"errors"
	"fmt"
)

// MissingInputError indicates a stage's required state key was absent (or held
// a value of an unexpected shape) when the stage was invoked.
type MissingInputError struct {
	Stage string
	Key   string
	Want  string
}

func (e *MissingInputError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("stage %s: input key %q missing or not %s", e.Stage, e.Key, e.Want)
	}
	return fmt.Sprintf("stage %s: required input key %q missing", e.Stage, e.Key)
}

// StageExecutionError wraps a failure of the stage's underlying action
// (LLM call, tool call, or local computation).
type StageExecutionError struct {
	Stage string
	Err   error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s: execution failed: %v", e.Stage, e.Err)
}

func (e *StageExecutionError) Unwrap() error { return e.Err }

// PipelineError surfaces the first required-stage failure that halted a
// pipeline run.
type PipelineError struct {
	Pipeline string
	Stage    string
	Err      error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s: stage %s failed: %v", e.Pipeline, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ErrDuplicateOutputKey is returned at construction time when two stages that
// may run concurrently declare the same output key.
var ErrDuplicateOutputKey = errors.New("duplicate output key")

// ErrLoopExhausted marks a refinement loop that hit its iteration cap without
// acceptance. It is reported through the loop outcome, never as a pipeline
// failure.
var ErrLoopExhausted = errors.New("refinement loop exhausted")
