package workflow

import (
	"context"
	"fmt"
	"log"
)

// LoopState names a refinement loop state. Accepted and Exhausted are
// terminal.
type LoopState string

const (
	LoopChecking  LoopState = "checking"
	LoopRevising  LoopState = "revising"
	LoopAccepted  LoopState = "accepted"
	LoopExhausted LoopState = "exhausted"
)

// LoopOutcome records how a refinement loop terminated. It is written to the
// loop's outcome key so downstream stages (metrics) can report exhaustion.
type LoopOutcome struct {
	Final        LoopState `json:"final"`
	CheckerCalls int       `json:"checker_calls"`
	ReviserCalls int       `json:"reviser_calls"`
}

// Exhausted reports whether the loop hit its iteration cap without
// acceptance.
func (o LoopOutcome) Exhausted() bool { return o.Final == LoopExhausted }

// Verdict inspects the state after a checker run and reports acceptance.
type Verdict func(st *State) (bool, error)

// Loop alternates a checking stage and a revising stage for at most
// MaxIterations checker invocations, or until the verdict signals acceptance.
// Exhaustion is not fatal: the pipeline proceeds with the last draft and the
// outcome records the degrade.
type Loop struct {
	name       string
	checker    *StageRunner
	reviser    *StageRunner
	maxIters   int
	verdict    Verdict
	outcomeKey string
	logger     *log.Logger
}

// NewLoop builds a bounded refinement loop. maxIters bounds the number of
// checker invocations; the reviser runs at most maxIters-1 times.
func NewLoop(name string, checker, reviser Stage, maxIters int, verdict Verdict, outcomeKey string) (*Loop, error) {
	if maxIters < 1 {
		return nil, fmt.Errorf("loop %s: max iterations must be >= 1, got %d", name, maxIters)
	}
	if verdict == nil {
		return nil, fmt.Errorf("loop %s: verdict function required", name)
	}
	return &Loop{
		name:       name,
		checker:    NewStageRunner(checker),
		reviser:    NewStageRunner(reviser),
		maxIters:   maxIters,
		verdict:    verdict,
		outcomeKey: outcomeKey,
		logger:     log.New(log.Writer(), "[LOOP] ", log.LstdFlags),
	}, nil
}

func (l *Loop) Name() string { return l.name }

// OutputKeys returns the keys the loop's stages and outcome write.
func (l *Loop) OutputKeys() []string {
	keys := []string{l.checker.Stage.OutputKey(), l.reviser.Stage.OutputKey()}
	if l.outcomeKey != "" {
		keys = append(keys, l.outcomeKey)
	}
	return keys
}

// Execute drives the state machine: Checking -> Accepted on a passing
// verdict, Checking -> Revising -> Checking on a failing one, and
// Checking -> Exhausted when the cap is hit. It always terminates.
func (l *Loop) Execute(ctx context.Context, st *State) error {
	outcome := LoopOutcome{Final: LoopChecking}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.checker.Execute(ctx, st); err != nil {
			return err
		}
		outcome.CheckerCalls++

		pass, err := l.verdict(st)
		if err != nil {
			return &StageExecutionError{Stage: l.checker.Name(), Err: err}
		}
		if pass {
			outcome.Final = LoopAccepted
			break
		}
		if outcome.CheckerCalls >= l.maxIters {
			outcome.Final = LoopExhausted
			l.logger.Printf("loop %s: %v after %d checks", l.name, ErrLoopExhausted, outcome.CheckerCalls)
			break
		}

		if err := l.reviser.Execute(ctx, st); err != nil {
			return err
		}
		outcome.ReviserCalls++
	}

	if l.outcomeKey != "" {
		st.Set(l.outcomeKey, outcome)
	}
	return nil
}
