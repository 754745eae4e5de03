// Package events publishes decided cases to downstream consumers: the
// decision topic on Kafka and the compliance audit trail.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"casework/internal/casefile"
	audit "casework/pkg/platform/audit"
	"casework/pkg/requestcontext"
)

var errNoDecision = errors.New("case has no decision")

// DecisionEvent is the message published for every decided case. It carries
// decision reasons but no stage error detail or applicant PII.
type DecisionEvent struct {
	CaseID          string    `json:"case_id"`
	Status          string    `json:"status"`
	Reasons         []string  `json:"reasons"`
	Score           float64   `json:"score"`
	Confidence      float64   `json:"confidence"`
	DecidedAt       time.Time `json:"decided_at"`
	RequestID       string    `json:"request_id,omitempty"`
	CaseworkerID    string    `json:"caseworker_id,omitempty"`
	FailedDocuments []string  `json:"failed_documents,omitempty"`
}

// NewDecisionEvent builds the event for a decided case.
func NewDecisionEvent(ctx context.Context, snap casefile.Snapshot) (DecisionEvent, error) {
	if snap.Decision == nil {
		return DecisionEvent{}, errNoDecision
	}
	d := snap.Decision
	reasons := make([]string, 0, len(d.Reasons))
	for _, r := range d.Reasons {
		reasons = append(reasons, r.Text)
	}
	var failed []string
	for _, k := range snap.Documents.Failed() {
		failed = append(failed, string(k))
	}
	return DecisionEvent{
		CaseID:          snap.ID,
		Status:          string(d.Status),
		Reasons:         reasons,
		Score:           d.Score,
		Confidence:      d.Confidence,
		DecidedAt:       d.DecidedAt,
		RequestID:       requestcontext.RequestID(ctx),
		CaseworkerID:    requestcontext.CaseworkerID(ctx),
		FailedDocuments: failed,
	}, nil
}

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks Publisher,Emitter

// Publisher writes one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// DecisionSink publishes decided cases keyed by case ID.
type DecisionSink struct {
	publisher Publisher
	topic     string
}

func NewDecisionSink(publisher Publisher, topic string) *DecisionSink {
	return &DecisionSink{publisher: publisher, topic: topic}
}

func (s *DecisionSink) Name() string { return "kafka" }

func (s *DecisionSink) Consume(ctx context.Context, snap casefile.Snapshot) error {
	event, err := NewDecisionEvent(ctx, snap)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal decision event: %w", err)
	}
	if err := s.publisher.Publish(ctx, s.topic, snap.ID, value); err != nil {
		return fmt.Errorf("kafka: publish case %s: %w", snap.ID, err)
	}
	return nil
}

// Emitter persists compliance events.
type Emitter interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// AuditSink records a decision_made compliance event per decided case. The
// applicant's Emirates ID is stored hashed.
type AuditSink struct {
	emitter Emitter
}

func NewAuditSink(emitter Emitter) *AuditSink {
	return &AuditSink{emitter: emitter}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Consume(ctx context.Context, snap casefile.Snapshot) error {
	if snap.Decision == nil {
		return fmt.Errorf("audit: %w", errNoDecision)
	}
	reasons := make([]string, 0, len(snap.Decision.Reasons))
	for _, r := range snap.Decision.Reasons {
		reasons = append(reasons, r.Text)
	}
	err := s.emitter.Emit(ctx, audit.ComplianceEvent{
		Timestamp:     snap.Decision.DecidedAt,
		CaseID:        snap.ID,
		Action:        string(audit.EventDecisionMade),
		Decision:      string(snap.Decision.Status),
		Reason:        strings.Join(reasons, "; "),
		RequestID:     requestcontext.RequestID(ctx),
		ActorID:       requestcontext.CaseworkerID(ctx),
		SubjectIDHash: audit.HashSubjectID(subjectID(snap)),
	})
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}

func subjectID(snap casefile.Snapshot) string {
	if snap.Validation != nil && !casefile.IsUnknown(snap.Validation.Profile.EmiratesID) {
		return snap.Validation.Profile.EmiratesID
	}
	if eid, ok := snap.Documents.EmiratesID(); ok {
		return eid.IDNumber
	}
	return ""
}
