package casefile

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Failure marks a document whose extraction failed.
type Failure struct {
	Category string
	Cause    string
}

// DocumentResult is either an extracted document or a failure marker.
type DocumentResult struct {
	Kind     Kind
	Document Document
	Failure  *Failure
}

// OK reports whether the document was extracted.
func (r DocumentResult) OK() bool {
	return r.Failure == nil && r.Document != nil
}

// RawDocuments maps each document kind to its extraction result.
type RawDocuments map[Kind]DocumentResult

// Extracted returns the kinds that extracted successfully, in canonical order.
func (r RawDocuments) Extracted() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if res, ok := r[k]; ok && res.OK() {
			out = append(out, k)
		}
	}
	return out
}

// Failed returns the kinds that failed or were never recorded, in canonical order.
func (r RawDocuments) Failed() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if res, ok := r[k]; !ok || !res.OK() {
			out = append(out, k)
		}
	}
	return out
}

// BankStatement returns the extracted bank statement, if any.
func (r RawDocuments) BankStatement() (BankStatement, bool) {
	d, ok := r[KindBankStatement].Document.(BankStatement)
	return d, ok && r[KindBankStatement].OK()
}

// AssetsLiabilities returns the extracted assets/liabilities form, if any.
func (r RawDocuments) AssetsLiabilities() (AssetsLiabilities, bool) {
	d, ok := r[KindAssetsLiabilities].Document.(AssetsLiabilities)
	return d, ok && r[KindAssetsLiabilities].OK()
}

// CreditReport returns the extracted credit report, if any.
func (r RawDocuments) CreditReport() (CreditReport, bool) {
	d, ok := r[KindCreditReport].Document.(CreditReport)
	return d, ok && r[KindCreditReport].OK()
}

// EmiratesID returns the extracted ID document, if any.
func (r RawDocuments) EmiratesID() (EmiratesID, bool) {
	d, ok := r[KindEmiratesID].Document.(EmiratesID)
	return d, ok && r[KindEmiratesID].OK()
}

// Severity grades a validation issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities: high > medium > low.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Issue is a failed validation check.
type Issue struct {
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Profile is the applicant record consolidated from all extracted documents.
// Optional attributes stay nil when no document supplied them.
type Profile struct {
	Name             string     `json:"name,omitempty"`
	EmiratesID       string     `json:"emirates_id,omitempty"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	Nationality      string     `json:"nationality,omitempty"`
	EmploymentStatus string     `json:"employment_status,omitempty"`
	HousingType      string     `json:"housing_type,omitempty"`
	MaritalStatus    string     `json:"marital_status,omitempty"`
	HasDisability    *bool      `json:"has_disability,omitempty"`
	FamilySize       *int       `json:"family_size,omitempty"`
	MonthlyIncome    *float64   `json:"monthly_income,omitempty"`
	CreditScore      *int       `json:"credit_score,omitempty"`
	TotalOutstanding *float64   `json:"total_outstanding,omitempty"`
	NetWorth         *float64   `json:"net_worth,omitempty"`
	AverageBalance   *float64   `json:"average_balance,omitempty"`
}

// Validation is the output of the validation and quality scoring stage.
type Validation struct {
	Confidence float64 `json:"confidence"`
	Issues     []Issue `json:"issues"`
	Blocked    bool    `json:"blocked"`
	BlockCause string  `json:"block_cause,omitempty"`
	Profile    Profile `json:"profile"`
}

// IssuesAtLeast returns issues with severity at or above min, in recorded order.
func (v Validation) IssuesAtLeast(min Severity) []Issue {
	var out []Issue
	for _, is := range v.Issues {
		if is.Severity.Rank() >= min.Rank() {
			out = append(out, is)
		}
	}
	return out
}

func (v Validation) clone() *Validation {
	v.Issues = slices.Clone(v.Issues)
	return &v
}

// Vector is the fixed-order numeric feature representation of an applicant.
// Missing[i] is true when Values[i] holds an imputed default.
type Vector struct {
	Names   []string  `json:"names"`
	Values  []float64 `json:"values"`
	Missing []bool    `json:"missing"`
}

// Get returns the value of a named feature.
func (v Vector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// IsMissing reports whether a named feature was imputed.
func (v Vector) IsMissing(name string) bool {
	for i, n := range v.Names {
		if n == name {
			return v.Missing[i]
		}
	}
	return true
}

// MissingCount returns how many features were imputed.
func (v Vector) MissingCount() int {
	var n int
	for _, m := range v.Missing {
		if m {
			n++
		}
	}
	return n
}

// Map returns the vector as a name → value map.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.Names))
	for i, n := range v.Names {
		out[n] = v.Values[i]
	}
	return out
}

func (v Vector) clone() *Vector {
	return &Vector{
		Names:   slices.Clone(v.Names),
		Values:  slices.Clone(v.Values),
		Missing: slices.Clone(v.Missing),
	}
}

// Score is the eligibility scorer's output. Imputed is set when the model
// returned only a label and Probability was derived from it.
type Score struct {
	Probability float64 `json:"probability"`
	Label       bool    `json:"label"`
	Imputed     bool    `json:"imputed"`
}

// Status is the decision state. PENDING is the only non-terminal state.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusApprove     Status = "APPROVE"
	StatusReview      Status = "REVIEW"
	StatusSoftDecline Status = "SOFT_DECLINE"
)

// IsTerminal reports whether s is a final decision status.
func (s Status) IsTerminal() bool {
	return s == StatusApprove || s == StatusReview || s == StatusSoftDecline
}

// Reason is one line of the decision audit trail.
type Reason struct {
	Text string `json:"text"`
}

// Decision is the terminal outcome of a case.
type Decision struct {
	Status     Status    `json:"status"`
	Reasons    []Reason  `json:"reasons"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Stage names a pipeline stage.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageValidation Stage = "validation"
	StageFeatures   Stage = "features"
	StageScoring    Stage = "scoring"
	StageDecision   Stage = "decision"
)

// ErrorKind classifies a recorded stage failure.
type ErrorKind string

const (
	ErrorExtraction         ErrorKind = "extraction"
	ErrorAllDocumentsFailed ErrorKind = "all_documents_failed"
	ErrorValidationBlock    ErrorKind = "validation_block"
	ErrorFeatureBuild       ErrorKind = "feature_build"
	ErrorScoring            ErrorKind = "scoring"
	ErrorScoringTimeout     ErrorKind = "scoring_timeout"
)

// StageError records a non-fatal failure so later stages can run degraded.
// Message is for logs and caseworker audit; it is never returned to applicants.
type StageError struct {
	Stage   Stage     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Subject string    `json:"subject,omitempty"`
	Message string    `json:"message"`
}

func (e StageError) String() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s[%s] %s: %s", e.Stage, e.Kind, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Stage, e.Kind, e.Message)
}

// Snapshot is a read-only view of a case handed to stages and downstream
// consumers. Slices and maps are copies; mutating them has no effect on the case.
type Snapshot struct {
	ID          string
	Documents   RawDocuments
	Validation  *Validation
	Features    *Vector
	Score       *Score
	Decision    *Decision
	StageErrors []StageError
}

// HasStageError reports whether a failure of the given kind was recorded.
func (s Snapshot) HasStageError(kind ErrorKind) bool {
	return slices.ContainsFunc(s.StageErrors, func(e StageError) bool { return e.Kind == kind })
}

// StageErrorsOf returns recorded failures of the given kind.
func (s Snapshot) StageErrorsOf(kind ErrorKind) []StageError {
	var out []StageError
	for _, e := range s.StageErrors {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Delta is the set of changes a stage returns.
type Delta struct {
	Documents   RawDocuments
	Validation  *Validation
	Features    *Vector
	Score       *Score
	Decision    *Decision
	StageErrors []StageError
}

var (
	// ErrDecisionAlreadySet is returned when a second decision is merged.
	ErrDecisionAlreadySet = errors.New("decision already set")
	// ErrDocumentAlreadySet is returned when a delta rewrites a document entry.
	ErrDocumentAlreadySet = errors.New("document already set")
	// ErrInvalidDecision is returned when a merged decision breaks the reasons invariant.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Case is the mutable Case State. It is owned by exactly one pipeline run.
type Case struct {
	state Snapshot
}

// New creates an empty case.
func New(id string) *Case {
	return &Case{state: Snapshot{ID: id, Documents: RawDocuments{}}}
}

// ID returns the case identifier.
func (c *Case) ID() string {
	return c.state.ID
}

// Snapshot returns a copy of the current state.
func (c *Case) Snapshot() Snapshot {
	s := Snapshot{
		ID:          c.state.ID,
		Documents:   maps.Clone(c.state.Documents),
		StageErrors: slices.Clone(c.state.StageErrors),
	}
	if c.state.Validation != nil {
		s.Validation = c.state.Validation.clone()
	}
	if c.state.Features != nil {
		s.Features = c.state.Features.clone()
	}
	if c.state.Score != nil {
		sc := *c.state.Score
		s.Score = &sc
	}
	if c.state.Decision != nil {
		d := *c.state.Decision
		d.Reasons = slices.Clone(d.Reasons)
		s.Decision = &d
	}
	return s
}

// Apply merges a stage delta. Documents are write-once per kind and the
// decision is write-once per case; stage errors are appended in order.
func (c *Case) Apply(d Delta) error {
	for k := range d.Documents {
		if _, exists := c.state.Documents[k]; exists {
			return fmt.Errorf("%w: %s", ErrDocumentAlreadySet, k)
		}
	}
	if d.Decision != nil {
		if c.state.Decision != nil {
			return ErrDecisionAlreadySet
		}
		if !d.Decision.Status.IsTerminal() {
			return fmt.Errorf("%w: status %q is not terminal", ErrInvalidDecision, d.Decision.Status)
		}
		if d.Decision.Status != StatusApprove && len(d.Decision.Reasons) == 0 {
			return fmt.Errorf("%w: %s without reasons", ErrInvalidDecision, d.Decision.Status)
		}
	}

	for k, v := range d.Documents {
		c.state.Documents[k] = v
	}
	if d.Validation != nil {
		c.state.Validation = d.Validation.clone()
	}
	if d.Features != nil {
		c.state.Features = d.Features.clone()
	}
	if d.Score != nil {
		sc := *d.Score
		c.state.Score = &sc
	}
	if d.Decision != nil {
		dec := *d.Decision
		dec.Reasons = slices.Clone(dec.Reasons)
		c.state.Decision = &dec
	}
	c.state.StageErrors = append(c.state.StageErrors, d.StageErrors...)
	return nil
}
