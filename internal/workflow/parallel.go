package workflow

import (
	"context"
	"log"
	"sync"
)

// GroupPolicy controls how a parallel group reacts to a member failure.
type GroupPolicy int

const (
	// FailFast cancels the remaining members and aborts the group on the
	// first member failure.
	FailFast GroupPolicy = iota
	// DegradedCompletion waits for every member, records the failures, and
	// lets the group succeed with the keys that were produced.
	DegradedCompletion
)

// Group runs a fixed set of member stages concurrently. Members have no
// ordering relation among themselves; the group is done only after all
// members have completed, regardless of completion order. Each member writes
// a distinct output key, which is validated at construction. A Group holds no
// per-run data and may execute several states concurrently; member failures
// are recorded into each run's State under FailuresKey.
type Group struct {
	name    string
	members []Runner
	policy  GroupPolicy
	logger  *log.Logger
}

// NewGroup builds a parallel group over the given members.
func NewGroup(name string, policy GroupPolicy, members ...Runner) (*Group, error) {
	if err := validateOutputKeys(members); err != nil {
		return nil, err
	}
	return &Group{
		name:    name,
		members: members,
		policy:  policy,
		logger:  log.New(log.Writer(), "[GROUP] ", log.LstdFlags),
	}, nil
}

func (g *Group) Name() string { return g.name }

// OutputKeys returns the distinct keys written by the group's members.
func (g *Group) OutputKeys() []string {
	var keys []string
	for _, m := range g.members {
		keys = append(keys, m.OutputKeys()...)
	}
	return keys
}

// FailuresKey is the state key under which the group records member failures
// for a degraded-completion run.
func (g *Group) FailuresKey() string { return g.name + "_failures" }

// GroupFailures reads the member failures a group recorded into st during a
// degraded-completion run, keyed by member name. Nil when every member
// succeeded.
func GroupFailures(st *State, key string) map[string]string {
	v, ok := st.Get(key)
	if !ok {
		return nil
	}
	failures, _ := v.(map[string]string)
	return failures
}

// Execute fans the members out on goroutines and waits for all of them. Under
// FailFast the first error cancels the rest and aborts the group; under
// DegradedCompletion errors are recorded into st and the group completes with
// whatever keys succeeded.
func (g *Group) Execute(ctx context.Context, st *State) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if g.policy == FailFast {
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := make(map[string]string)
	errCh := make(chan error, len(g.members))

	for _, member := range g.members {
		wg.Add(1)
		go func(m Runner) {
			defer wg.Done()
			if err := m.Execute(runCtx, st); err != nil {
				mu.Lock()
				failures[m.Name()] = err.Error()
				mu.Unlock()
				errCh <- err
				if cancel != nil {
					cancel()
				}
			}
		}(member)
	}

	// Merge point: every member has completed before the group is done.
	wg.Wait()
	close(errCh)

	if g.policy == FailFast {
		if err := <-errCh; err != nil {
			return err
		}
		return nil
	}
	for name, msg := range failures {
		g.logger.Printf("member %s failed (degraded completion): %s", name, msg)
	}
	if len(failures) > 0 {
		st.Set(g.FailuresKey(), failures)
	}
	return nil
}
