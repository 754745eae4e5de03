package casestore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"casework/internal/enablement"
	"casework/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map. Used by tests and single-node
// deployments without a database.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.CaseID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.CaseID] = record
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, caseID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[caseID]; ok {
		return r, nil
	}
	return Record{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if filter.Status != "" && r.Status() != filter.Status {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := b.DecidedAt().Compare(a.DecidedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.CaseID, b.CaseID)
	})
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (s *InMemoryStore) SavePlan(_ context.Context, plan enablement.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[plan.CaseID]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.Plan = &plan
	s.records[plan.CaseID] = r
	return nil
}
