package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"casework/internal/decision"
	"casework/internal/validation"
)

// Policies groups every tunable threshold of a case run. A YAML file may
// override any subset; unset keys keep their defaults.
//
//	decision:
//	  approve_threshold: 0.75
//	validation:
//	  issue_severity_weights:
//	    high: 0.25
type Policies struct {
	Decision   decision.Policy   `yaml:"decision"`
	Validation validation.Policy `yaml:"validation"`
}

// DefaultPolicies returns the production thresholds.
func DefaultPolicies() Policies {
	return Policies{
		Decision:   decision.DefaultPolicy(),
		Validation: validation.DefaultPolicy(),
	}
}

// Validate checks both policies.
func (p Policies) Validate() error {
	var errs []error
	if err := p.Decision.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("decision: %w", err))
	}
	if err := p.Validation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("validation: %w", err))
	}
	return errors.Join(errs...)
}

// ParsePolicies overlays YAML onto the defaults and validates the result.
// Unknown keys are rejected so typos do not silently keep a default.
func ParsePolicies(data []byte) (Policies, error) {
	p := DefaultPolicies()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Policies{}, fmt.Errorf("parse policy: %w", err)
		}
	}
	if err := p.Validate(); err != nil {
		return Policies{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

// LoadPolicies reads the policy file at path. An empty path yields the defaults.
func LoadPolicies(path string) (Policies, error) {
	if path == "" {
		return DefaultPolicies(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policies{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data)
}
