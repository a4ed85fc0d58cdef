package audit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps the audit trail in process memory. It is the default
// store when no database path is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	order       []string
	invocations map[string]*Invocation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invocations: make(map[string]*Invocation),
	}
}

// Write implements Sink. Steps and outcomes for unknown invocations are
// rejected.
func (s *MemoryStore) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Kind == KindInvocation {
		if _, exists := s.invocations[e.InvocationID]; exists {
			return fmt.Errorf("invocation %s already recorded", e.InvocationID)
		}
		s.invocations[e.InvocationID] = &Invocation{
			ID:          e.InvocationID,
			Type:        e.CommandType,
			Instruction: e.Instruction,
			CreatedAt:   e.At,
			Steps:       []Record{},
		}
		s.order = append(s.order, e.InvocationID)
		return nil
	}

	inv, ok := s.invocations[e.InvocationID]
	if !ok {
		return fmt.Errorf("%s for unknown invocation %q", e.Kind, e.InvocationID)
	}

	rec := Record{Result: e.Result, CreatedAt: e.At}
	switch e.Kind {
	case KindStep:
		inv.Steps = append(inv.Steps, rec)
	case KindOutcome:
		inv.Outcome = &rec
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
	return nil
}

// History implements History.
func (s *MemoryStore) History(_ context.Context, limit int) ([]Invocation, error) {
	limit = clampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Invocation, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyInvocation(s.invocations[s.order[i]]))
	}
	return out, nil
}

// Len returns the number of recorded invocations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func copyInvocation(inv *Invocation) Invocation {
	cp := *inv
	cp.Steps = append([]Record{}, inv.Steps...)
	if inv.Outcome != nil {
		o := *inv.Outcome
		cp.Outcome = &o
	}
	return cp
}
