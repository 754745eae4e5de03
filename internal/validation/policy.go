package validation

import (
	"errors"
	"fmt"
	"slices"

	"casework/internal/casefile"
)

// Policy holds the constants of the confidence formula and the block gate.
//
//	confidence = clamp01(1 - DocumentWeight*(1 - extracted/4) - sum(SeverityWeights[issue]))
//
// A case is blocked when confidence < MinConfidence or when a high severity
// issue lands on a HardRequired field.
type Policy struct {
	DocumentWeight  float64                       `yaml:"document_weight"`
	SeverityWeights map[casefile.Severity]float64 `yaml:"issue_severity_weights"`
	MinConfidence   float64                       `yaml:"min_confidence"`
	IncomeTolerance float64                       `yaml:"income_tolerance"`
	HardRequired    []string                      `yaml:"hard_required"`
	MinimumAge      int                           `yaml:"minimum_age"`
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		DocumentWeight: 0.40,
		SeverityWeights: map[casefile.Severity]float64{
			casefile.SeverityHigh:   0.20,
			casefile.SeverityMedium: 0.10,
			casefile.SeverityLow:    0.05,
		},
		MinConfidence:   0.40,
		IncomeTolerance: 0.25,
		HardRequired:    []string{FieldName, FieldEmiratesID, FieldMonthlyIncome},
		MinimumAge:      18,
	}
}

// Validate rejects weights that would make confidence increase with more
// problems, or a gate that can never be passed.
func (p Policy) Validate() error {
	var errs []error
	if p.DocumentWeight < 0 || p.DocumentWeight > 1 {
		errs = append(errs, fmt.Errorf("document_weight %.2f outside [0,1]", p.DocumentWeight))
	}
	for _, sev := range []casefile.Severity{casefile.SeverityLow, casefile.SeverityMedium, casefile.SeverityHigh} {
		w, ok := p.SeverityWeights[sev]
		if !ok {
			errs = append(errs, fmt.Errorf("issue_severity_weights missing %q", sev))
			continue
		}
		if w < 0 {
			errs = append(errs, fmt.Errorf("issue_severity_weights[%s] must not be negative", sev))
		}
	}
	if p.SeverityWeights[casefile.SeverityHigh] < p.SeverityWeights[casefile.SeverityMedium] ||
		p.SeverityWeights[casefile.SeverityMedium] < p.SeverityWeights[casefile.SeverityLow] {
		errs = append(errs, errors.New("issue_severity_weights must not decrease with severity"))
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_confidence %.2f outside [0,1]", p.MinConfidence))
	}
	if p.IncomeTolerance <= 0 {
		errs = append(errs, errors.New("income_tolerance must be positive"))
	}
	return errors.Join(errs...)
}

// Confidence applies the formula to a document count and an issue list.
func (p Policy) Confidence(extracted int, issues []casefile.Issue) float64 {
	fraction := float64(extracted) / float64(len(casefile.AllKinds))
	c := 1 - p.DocumentWeight*(1-fraction)
	for _, is := range issues {
		c -= p.SeverityWeights[is.Severity]
	}
	return clamp01(c)
}

// IsHardRequired reports whether field must be present and trustworthy for
// scoring to run.
func (p Policy) IsHardRequired(field string) bool {
	return slices.Contains(p.HardRequired, field)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
