package casestore

import (
	"context"
	"fmt"

	"casework/internal/casefile"
)

// Sink stores every decided case.
type Sink struct {
	store Store
}

func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

func (s *Sink) Name() string { return "casestore" }

func (s *Sink) Consume(ctx context.Context, snap casefile.Snapshot) error {
	record, err := FromSnapshot(snap)
	if err != nil {
		return fmt.Errorf("casestore: %w", err)
	}
	if err := s.store.Save(ctx, record); err != nil {
		return fmt.Errorf("casestore: save case %s: %w", snap.ID, err)
	}
	return nil
}
