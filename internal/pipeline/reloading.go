package pipeline

import (
	"context"
	"sync/atomic"

	"casework/internal/casefile"
	"casework/internal/extraction"
)

// Reloading runs cases on an Orchestrator whose validator and decider can be
// replaced while runs are in flight. A run keeps the stages it started with.
type Reloading struct {
	base    Stages
	opts    []Option
	current atomic.Pointer[Orchestrator]
}

// NewReloading builds the initial Orchestrator from stages.
func NewReloading(stages Stages, opts ...Option) (*Reloading, error) {
	o, err := New(stages, opts...)
	if err != nil {
		return nil, err
	}
	r := &Reloading{base: stages, opts: opts}
	r.current.Store(o)
	return r, nil
}

// Update swaps in a validator and decider built from new policies. On error
// the previous stages stay in effect.
func (r *Reloading) Update(v Validator, d Decider) error {
	stages := r.base
	stages.Validator = v
	stages.Decider = d
	o, err := New(stages, r.opts...)
	if err != nil {
		return err
	}
	r.current.Store(o)
	return nil
}

// Run evaluates one case on the current stages.
func (r *Reloading) Run(ctx context.Context, caseID string, docs map[casefile.Kind]extraction.Document) (casefile.Snapshot, error) {
	return r.current.Load().Run(ctx, caseID, docs)
}
