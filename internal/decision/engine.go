// Package decision maps a case's score, confidence and issues to a terminal
// status with an auditable list of reasons.
package decision

import (
	"time"

	"casework/internal/casefile"
	"casework/internal/decision/metrics"
)

// Engine runs the decision stage. The rules themselves live in Evaluate;
// the engine adds the clock and instrumentation.
type Engine struct {
	policy  Policy
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics enables outcome metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the clock used for DecidedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine validates the policy and builds an Engine.
func NewEngine(policy Policy, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the policy in effect.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Decide evaluates the snapshot and returns the decision delta.
func (e *Engine) Decide(snap casefile.Snapshot) casefile.Delta {
	d, path := Evaluate(e.policy, InputFrom(snap))
	d.DecidedAt = e.now().UTC()

	e.metrics.IncrementOutcome(string(d.Status), string(path))
	if snap.Validation != nil {
		e.metrics.ObserveConfidence(snap.Validation.Confidence)
	}
	if snap.Score != nil {
		e.metrics.ObserveScore(snap.Score.Probability)
	}
	return casefile.Delta{Decision: &d}
}
