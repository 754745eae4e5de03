// Package validation consolidates extracted documents into an applicant
// profile, cross-checks them, and scores how far the data can be trusted.
//
// The Validator is pure: the same documents, policy and clock always yield
// the same Validation. It never fails; problems become issues, and issues
// that make scoring meaningless block the case.
package validation

import (
	"fmt"
	"time"

	"casework/internal/casefile"
)

// Validator runs the validation stage.
type Validator struct {
	policy Policy
	now    func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the clock used for age checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// New builds a Validator. The policy must already be validated.
func New(policy Policy, opts ...Option) *Validator {
	v := &Validator{policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the policy in effect.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate produces the validation delta for a case. A blocked result also
// carries a validation_block stage error.
func (v *Validator) Validate(snap casefile.Snapshot) casefile.Delta {
	result := v.Evaluate(snap.Documents)
	delta := casefile.Delta{Validation: &result}
	if result.Blocked {
		delta.StageErrors = []casefile.StageError{{
			Stage:   casefile.StageValidation,
			Kind:    casefile.ErrorValidationBlock,
			Message: result.BlockCause,
		}}
	}
	return delta
}

// Evaluate consolidates and checks the documents. Documents that failed
// extraction raise no issues of their own; they lower confidence only
// through the extracted-document fraction.
func (v *Validator) Evaluate(docs casefile.RawDocuments) casefile.Validation {
	profile, issues := Consolidate(docs)
	issues = append(issues, checkRequired(docs, profile, v.policy)...)
	issues = append(issues, checkIncomeConsistency(docs, v.policy.IncomeTolerance)...)
	issues = append(issues, checkIdentity(docs, profile)...)
	issues = append(issues, checkPlausibility(docs, profile, v.now(), v.policy.MinimumAge)...)

	result := casefile.Validation{
		Confidence: v.policy.Confidence(len(docs.Extracted()), issues),
		Issues:     issues,
		Profile:    profile,
	}
	result.Blocked, result.BlockCause = v.gate(result)
	return result
}

func (v *Validator) gate(r casefile.Validation) (bool, string) {
	for _, is := range r.Issues {
		if is.Severity == casefile.SeverityHigh && v.policy.IsHardRequired(is.Field) {
			return true, fmt.Sprintf("high severity issue on %s: %s", is.Field, is.Message)
		}
	}
	if r.Confidence < v.policy.MinConfidence {
		return true, fmt.Sprintf("confidence %.2f below minimum %.2f", r.Confidence, v.policy.MinConfidence)
	}
	return false, ""
}
