package workflow

import (
	"sync"
)

// State is the shared key-value store threaded through a pipeline run. Every
// key has exactly one designated writer (enforced when the pipeline is built),
// so stages never race on the same key; the mutex only guards the map itself
// for the parallel fan-out.
type State struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewState creates an empty state container.
func NewState() *State {
	return &State{values: make(map[string]interface{})}
}

// NewStateFrom seeds a state container with initial values.
func NewStateFrom(seed map[string]interface{}) *State {
	st := NewState()
	for k, v := range seed {
		st.values[k] = v
	}
	return st
}

// Get returns the raw value stored under key.
func (s *State) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key, overwriting any previous value. Loop stages
// overwrite their output key on every iteration.
func (s *State) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Merge copies every entry of values into the state.
func (s *State) Merge(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
}

// Has reports whether key is present.
func (s *State) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Len returns the number of keys currently stored.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Snapshot returns a shallow copy of the current state map.
func (s *State) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// GetString returns the string stored under key for the named stage, or a
// MissingInputError when the key is absent or holds a different shape.
func (s *State) GetString(stage, key string) (string, error) {
	v, ok := s.Get(key)
	if !ok {
		return "", &MissingInputError{Stage: stage, Key: key}
	}
	str, ok := v.(string)
	if !ok {
		return "", &MissingInputError{Stage: stage, Key: key, Want: "string"}
	}
	return str, nil
}

// GetMap returns the map stored under key for the named stage.
func (s *State) GetMap(stage, key string) (map[string]interface{}, error) {
	v, ok := s.Get(key)
	if !ok {
		return nil, &MissingInputError{Stage: stage, Key: key}
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, &MissingInputError{Stage: stage, Key: key, Want: "map"}
	}
	return m, nil
}
