package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "casework/pkg/platform/audit"
)

type entry struct {
	outbox    audit.OutboxEntry
	event     audit.Event
	published bool
}

// InMemoryStore is an audit outbox kept in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	relayMu sync.Mutex
	entries []entry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	id := uuid.NewString()
	event.ID = id
	event.Category = audit.AuditEvent(event.Action).Category()
	payload, err := json.Marshal(audit.NewPayload(id, event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{
		outbox: audit.OutboxEntry{
			ID:          id,
			AggregateID: event.CaseID,
			EventType:   event.Action,
			Payload:     payload,
			CreatedAt:   s.now(),
		},
		event: event,
	})
	return nil
}

// ListByCase returns the events recorded for one case, oldest first.
func (s *InMemoryStore) ListByCase(_ context.Context, caseID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.entries {
		if e.event.CaseID == caseID {
			out = append(out, e.event)
		}
	}
	return out, nil
}

// Tx serialises relays.
func (s *InMemoryStore) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.relayMu.Lock()
	defer s.relayMu.Unlock()
	return fn(ctx)
}

// Pending returns unpublished entries in insertion order.
func (s *InMemoryStore) Pending(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, e := range s.entries {
		if e.published {
			continue
		}
		out = append(out, e.outbox)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	marked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if _, ok := marked[s.entries[i].outbox.ID]; ok {
			s.entries[i].published = true
		}
	}
	return nil
}
