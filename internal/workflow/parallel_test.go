package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

func delayedStage(name, output string, delay time.Duration) Stage {
	return &FuncStage{
		StageName: name,
		Output:    output,
		Fn: func(ctx context.Context, st *State) (interface{}, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return name, nil
		},
	}
}

func groupKeys(t *testing.T, st *State, keys ...string) []string {
	t.Helper()
	var present []string
	for _, k := range keys {
		if st.Has(k) {
			present = append(present, k)
		}
	}
	sort.Strings(present)
	return present
}

func TestGroupMergesAfterAllMembers(t *testing.T) {
	// Reversed completion orders must yield the same merged key set.
	for _, delays := range [][]time.Duration{
		{time.Millisecond, 5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond},
		{15 * time.Millisecond, 10 * time.Millisecond, 5 * time.Millisecond, time.Millisecond},
	} {
		g, err := NewGroup("ingest", DegradedCompletion,
			NewStageRunner(delayedStage("global", "items_global", delays[0])),
			NewStageRunner(delayedStage("us", "items_us", delays[1])),
			NewStageRunner(delayedStage("state", "items_state", delays[2])),
			NewStageRunner(delayedStage("city", "items_city", delays[3])),
		)
		if err != nil {
			t.Fatalf("NewGroup: %v", err)
		}
		st := NewState()
		if err := g.Execute(context.Background(), st); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		got := groupKeys(t, st, "items_global", "items_us", "items_state", "items_city")
		want := []string{"items_city", "items_global", "items_state", "items_us"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("merged key set mismatch: got %v want %v", got, want)
			}
		}
	}
}

func TestGroupRejectsSharedOutputKey(t *testing.T) {
	_, err := NewGroup("bad", FailFast,
		NewStageRunner(delayedStage("a", "same", 0)),
		NewStageRunner(delayedStage("b", "same", 0)),
	)
	if !errors.Is(err, ErrDuplicateOutputKey) {
		t.Fatalf("expected duplicate output key error, got %v", err)
	}
}

func TestGroupFailFastAborts(t *testing.T) {
	failing := &FuncStage{
		StageName: "failing", Output: "items_failing",
		Fn: func(ctx context.Context, st *State) (interface{}, error) {
			return nil, errors.New("search down")
		},
	}
	g, err := NewGroup("ingest", FailFast,
		NewStageRunner(failing),
		NewStageRunner(delayedStage("slow", "items_slow", 50*time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if err := g.Execute(context.Background(), NewState()); err == nil {
		t.Fatalf("expected fail-fast group error")
	}
}

func TestGroupDegradedCompletionKeepsPartialResults(t *testing.T) {
	failing := &FuncStage{
		StageName: "failing", Output: "items_failing",
		Fn: func(ctx context.Context, st *State) (interface{}, error) {
			return nil, errors.New("search down")
		},
	}
	g, err := NewGroup("ingest", DegradedCompletion,
		NewStageRunner(failing),
		NewStageRunner(delayedStage("ok", "items_ok", time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	st := NewState()
	if err := g.Execute(context.Background(), st); err != nil {
		t.Fatalf("degraded group must not fail, got %v", err)
	}
	if !st.Has("items_ok") {
		t.Fatalf("surviving member output missing")
	}
	if st.Has("items_failing") {
		t.Fatalf("failed member must not write its key")
	}
	if got := GroupFailures(st, g.FailuresKey()); len(got) != 1 {
		t.Fatalf("expected one recorded failure, got %v", got)
	}
}

func TestGroupConcurrentRunsRecordFailuresPerRun(t *testing.T) {
	// One reusable group, two states in flight at once. Each run's failure
	// record must stay with its own state.
	flaky := &FuncStage{
		StageName: "city", Output: "items_city",
		Fn: func(ctx context.Context, st *State) (interface{}, error) {
			if st.Has("city_search_down") {
				time.Sleep(5 * time.Millisecond)
				return nil, errors.New("search down")
			}
			return "ok", nil
		},
	}
	g, err := NewGroup("ingest", DegradedCompletion, NewStageRunner(flaky))
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}

	broken := NewState()
	broken.Set("city_search_down", true)
	healthy := NewState()

	var wg sync.WaitGroup
	for _, st := range []*State{broken, healthy} {
		wg.Add(1)
		go func(st *State) {
			defer wg.Done()
			if err := g.Execute(context.Background(), st); err != nil {
				t.Errorf("Execute: %v", err)
			}
		}(st)
	}
	wg.Wait()

	if got := GroupFailures(broken, g.FailuresKey()); len(got) != 1 {
		t.Fatalf("broken run lost its failure record, got %v", got)
	}
	if got := GroupFailures(healthy, g.FailuresKey()); len(got) != 0 {
		t.Fatalf("healthy run picked up a foreign failure record: %v", got)
	}
	if !healthy.Has("items_city") {
		t.Fatalf("healthy run output missing")
	}
}
