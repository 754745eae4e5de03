package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance, such as
	// case decisions. These require durable storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and relays can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	CaseID    string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID is the caseworker who triggered the action, if any.
	ActorID string
	// SubjectIDHash is a SHA-256 hash of the applicant's national ID.
	// Used for traceability without storing raw PII.
	SubjectIDHash string
}

type AuditEvent string

const (
	EventCaseSubmitted  AuditEvent = "case_submitted"
	EventDecisionMade   AuditEvent = "decision_made"
	EventPlanIssued     AuditEvent = "enablement_plan_issued"
	EventPolicyReloaded AuditEvent = "policy_reloaded"
	EventAuthFailed     AuditEvent = "auth_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCaseSubmitted:  CategoryOperations,
	EventDecisionMade:   CategoryCompliance,
	EventPlanIssued:     CategoryCompliance,
	EventPolicyReloaded: CategorySecurity,
	EventAuthFailed:     CategorySecurity,
}

// Category returns the category for an event. Unknown events are operational.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// ComplianceEvent is a regulatory audit record. Most are about one case;
// security events such as a policy reload carry no case.
type ComplianceEvent struct {
	Timestamp     time.Time
	CaseID        string
	Action        string
	Decision      string
	Reason        string
	RequestID     string
	ActorID       string
	SubjectIDHash string
}

// Validate checks the fields every compliance record must carry. CaseID is
// optional only for security events.
func (e ComplianceEvent) Validate() error {
	var errs []error
	if e.CaseID == "" && AuditEvent(e.Action).Category() != CategorySecurity {
		errs = append(errs, errors.New("compliance event requires CaseID"))
	}
	if e.Action == "" {
		errs = append(errs, errors.New("compliance event requires Action"))
	}
	return errors.Join(errs...)
}

// ToEvent converts to the store representation. Registered actions keep
// their own category; anything else is filed as compliance.
func (e ComplianceEvent) ToEvent() Event {
	category := CategoryCompliance
	if c, ok := eventCategories[AuditEvent(e.Action)]; ok {
		category = c
	}
	return Event{
		Category:      category,
		Timestamp:     e.Timestamp,
		CaseID:        e.CaseID,
		Action:        e.Action,
		Decision:      e.Decision,
		Reason:        e.Reason,
		RequestID:     e.RequestID,
		ActorID:       e.ActorID,
		SubjectIDHash: e.SubjectIDHash,
	}
}

// HashSubjectID returns the hex SHA-256 of a subject identifier, or "" for
// an empty one.
func HashSubjectID(subject string) string {
	if subject == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is a stored event waiting to be relayed to the broker.
type OutboxEntry struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// Outbox is a Store whose entries are relayed to a broker. Pending and
// MarkPublished should run inside Tx so concurrent relays skip rows another
// relay holds.
type Outbox interface {
	Store
	Tx(ctx context.Context, fn func(ctx context.Context) error) error
	Pending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Payload is the JSON body relayed for each outbox entry.
type Payload struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Timestamp     string `json:"timestamp"`
	CaseID        string `json:"case_id"`
	Action        string `json:"action"`
	Decision      string `json:"decision,omitempty"`
	Reason        string `json:"reason,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
	SubjectIDHash string `json:"subject_id_hash,omitempty"`
}

// NewPayload builds the relayed body. The category is always derived from
// the action.
func NewPayload(id string, event Event) Payload {
	return Payload{
		ID:            id,
		Category:      string(AuditEvent(event.Action).Category()),
		Timestamp:     event.Timestamp.UTC().Format(time.RFC3339Nano),
		CaseID:        event.CaseID,
		Action:        event.Action,
		Decision:      event.Decision,
		Reason:        event.Reason,
		RequestID:     event.RequestID,
		ActorID:       event.ActorID,
		SubjectIDHash: event.SubjectIDHash,
	}
}
