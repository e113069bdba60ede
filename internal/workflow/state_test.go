package workflow

import (
	"errors"
	"testing"
)

func TestStateTypedAccessors(t *testing.T) {
	st := NewStateFrom(map[string]interface{}{
		"draft": "hello",
		"report": map[string]interface{}{
			"is_safe": true,
		},
	})

	if s, err := st.GetString("combiner", "draft"); err != nil || s != "hello" {
		t.Fatalf("GetString: %q, %v", s, err)
	}
	if _, err := st.GetMap("metrics", "report"); err != nil {
		t.Fatalf("GetMap: %v", err)
	}

	var merr *MissingInputError
	if _, err := st.GetString("combiner", "nope"); !errors.As(err, &merr) {
		t.Fatalf("expected MissingInputError for absent key, got %v", err)
	}
	// Wrong shape is rejected, not silently coerced.
	if _, err := st.GetMap("metrics", "draft"); !errors.As(err, &merr) {
		t.Fatalf("expected MissingInputError for shape mismatch, got %v", err)
	}
}

func TestStateMergeAndSnapshot(t *testing.T) {
	st := NewState()
	st.Set("a", 1)
	st.Merge(map[string]interface{}{"b": 2, "c": 3})
	if st.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d", st.Len())
	}
	snap := st.Snapshot()
	snap["d"] = 4
	if st.Has("d") {
		t.Fatalf("snapshot mutation leaked into state")
	}
}
