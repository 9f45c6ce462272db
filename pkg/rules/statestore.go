package rules

import (
	"context"
	"sync"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// StateStore persists per-scope irreversibility declarations across process
// restarts. Implementations return (nil, nil) when no state exists; a read
// error is treated by the rule as absent state so a corrupt row can never
// block evaluation.
type StateStore interface {
	Get(ctx context.Context, scope string) (*model.IrreversibilityState, error)
	Put(ctx context.Context, state model.IrreversibilityState) error
}

// MemoryStateStore is an in-process StateStore for tests and single-run
// tooling.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]model.IrreversibilityState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]model.IrreversibilityState)}
}

func (m *MemoryStateStore) Get(_ context.Context, scope string) (*model.IrreversibilityState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[scope]; ok {
		copy := s
		return &copy, nil
	}
	return nil, nil
}

func (m *MemoryStateStore) Put(_ context.Context, state model.IrreversibilityState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Scope] = state
	return nil
}
