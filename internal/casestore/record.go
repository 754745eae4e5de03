// Package casestore persists decided cases so caseworkers can retrieve the
// decision, the validated profile and the enablement plan by case ID.
package casestore

import (
	"context"
	"errors"
	"slices"
	"time"

	"casework/internal/casefile"
	"casework/internal/enablement"
)

// ErrNoDecision is returned when a snapshot without a decision is stored.
var ErrNoDecision = errors.New("case has no decision")

// DocumentStatus summarises one document slot of a stored case.
type DocumentStatus struct {
	Kind            casefile.Kind `json:"kind"`
	Extracted       bool          `json:"extracted"`
	FailureCategory string        `json:"failure_category,omitempty"`
}

// Record is the persisted form of a decided case.
type Record struct {
	CaseID      string                `json:"case_id"`
	Decision    casefile.Decision     `json:"decision"`
	Validation  *casefile.Validation  `json:"validation,omitempty"`
	Score       *casefile.Score       `json:"score,omitempty"`
	Documents   []DocumentStatus      `json:"documents"`
	StageErrors []casefile.StageError `json:"stage_errors,omitempty"`
	Plan        *enablement.Plan      `json:"plan,omitempty"`
}

// Status is the decision status of the record.
func (r Record) Status() casefile.Status {
	return r.Decision.Status
}

// DecidedAt is when the decision was made.
func (r Record) DecidedAt() time.Time {
	return r.Decision.DecidedAt
}

// FromSnapshot builds a record from a decided case.
func FromSnapshot(snap casefile.Snapshot) (Record, error) {
	if snap.Decision == nil {
		return Record{}, ErrNoDecision
	}
	r := Record{
		CaseID:      snap.ID,
		Decision:    *snap.Decision,
		Validation:  snap.Validation,
		Score:       snap.Score,
		StageErrors: slices.Clone(snap.StageErrors),
	}
	for _, kind := range casefile.AllKinds {
		res, ok := snap.Documents[kind]
		if !ok {
			continue
		}
		ds := DocumentStatus{Kind: kind, Extracted: res.OK()}
		if res.Failure != nil {
			ds.FailureCategory = res.Failure.Category
		}
		r.Documents = append(r.Documents, ds)
	}
	return r, nil
}

// Filter narrows List results.
type Filter struct {
	Status casefile.Status
	Limit  int
}

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store persists decided cases. Save is write-once per case ID and returns
// sentinel.ErrConflict on a second write; Get and SavePlan return
// sentinel.ErrNotFound for unknown IDs.
type Store interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, caseID string) (Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	SavePlan(ctx context.Context, plan enablement.Plan) error
}
