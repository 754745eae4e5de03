package enablement

import (
	"context"
	"errors"
	"fmt"

	"casework/internal/casefile"
)

// PlanStore persists enablement plans next to the decided case.
type PlanStore interface {
	SavePlan(ctx context.Context, plan Plan) error
}

// Sink builds and stores the enablement plan of every decided case.
type Sink struct {
	store PlanStore
}

// NewSink creates a Sink writing to store.
func NewSink(store PlanStore) *Sink {
	return &Sink{store: store}
}

// Name identifies the sink in logs.
func (s *Sink) Name() string { return "enablement" }

// Consume builds the plan for snap and stores it.
func (s *Sink) Consume(ctx context.Context, snap casefile.Snapshot) error {
	if snap.Decision == nil {
		return errors.New("enablement: case has no decision")
	}
	if err := s.store.SavePlan(ctx, Build(snap)); err != nil {
		return fmt.Errorf("enablement: save plan: %w", err)
	}
	return nil
}
