package decision

import (
	"errors"
	"fmt"

	"casework/internal/casefile"
)

// Policy holds the decision thresholds.
type Policy struct {
	ApproveThreshold float64         `yaml:"approve_threshold"`
	ReviewThreshold  float64         `yaml:"review_threshold"`
	ConfidenceFloor  float64         `yaml:"confidence_floor"`
	SkippedStatus    casefile.Status `yaml:"skipped_status"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ApproveThreshold: 0.70,
		ReviewThreshold:  0.35,
		ConfidenceFloor:  0.70,
		SkippedStatus:    casefile.StatusSoftDecline,
	}
}

// Validate rejects inconsistent thresholds.
func (p Policy) Validate() error {
	var errs []error
	if p.ApproveThreshold <= 0 || p.ApproveThreshold > 1 {
		errs = append(errs, fmt.Errorf("approve_threshold %.2f outside (0,1]", p.ApproveThreshold))
	}
	if p.ReviewThreshold < 0 || p.ReviewThreshold > 1 {
		errs = append(errs, fmt.Errorf("review_threshold %.2f outside [0,1]", p.ReviewThreshold))
	}
	if p.ReviewThreshold > p.ApproveThreshold {
		errs = append(errs, fmt.Errorf("review_threshold %.2f above approve_threshold %.2f", p.ReviewThreshold, p.ApproveThreshold))
	}
	if p.ConfidenceFloor < 0 || p.ConfidenceFloor > 1 {
		errs = append(errs, fmt.Errorf("confidence_floor %.2f outside [0,1]", p.ConfidenceFloor))
	}
	if p.SkippedStatus != casefile.StatusSoftDecline && p.SkippedStatus != casefile.StatusReview {
		errs = append(errs, errors.New("skipped_status must be SOFT_DECLINE or REVIEW"))
	}
	return errors.Join(errs...)
}
