package runs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     map[string]Run
	failures map[string][]Failure
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:     make(map[string]Run),
		failures: make(map[string][]Failure),
	}
}

func (s *MemoryStore) Create(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("%w: %s", ErrExists, run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) Update(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, failure Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[failure.RunID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, failure.RunID)
	}
	s.failures[failure.RunID] = append(s.failures[failure.RunID], failure)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, nil
}

func (s *MemoryStore) Failures(_ context.Context, id string) ([]Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.runs[id]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]Failure, len(s.failures[id]))
	copy(out, s.failures[id])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
