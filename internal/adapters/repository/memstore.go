package repository

import (
	"context"
	"fmt"
	"sync"
)

// DefaultCapacity bounds how many runs the in-memory store retains before
// evicting the oldest.
const DefaultCapacity = 128

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithCapacity sets the retention bound for completed runs.
func WithCapacity(n int) Option {
	return func(s *MemStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// MemStore is an in-memory Store with bounded retention. It is safe for
// concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	runs     map[string]Run
	order    []string // insertion order, oldest first
	capacity int
}

// NewMemStore creates a MemStore with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		runs:     make(map[string]Run),
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save records a completed run, evicting the oldest beyond capacity.
func (s *MemStore) Save(_ context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: empty run id", ErrInvalidRun)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
	}
	return nil
}

// Get returns the run with the given ID.
func (s *MemStore) Get(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, nil
}

// Recent returns up to n runs ordered newest first.
func (s *MemStore) Recent(_ context.Context, n int) ([]Run, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.order) {
		n = len(s.order)
	}
	out := make([]Run, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.runs[s.order[i]])
	}
	return out, nil
}

// Count returns the number of runs tracked.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
