// Package scoring adapts an eligibility classifier to the pipeline.
//
// The classifier is opaque: it receives the feature vector as-is and answers
// with a probability, a label, or both. The Adapter enforces a deadline,
// classifies failures and normalises the answer into a casefile.Score.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"casework/internal/casefile"
)

//go:generate mockgen -source=classifier.go -destination=mocks/mocks.go -package=mocks Classifier

// Prediction is a classifier answer. Probability is nil when the model only
// produced a label.
type Prediction struct {
	Probability *float64
	Label       bool
}

// Classifier predicts eligibility from a feature vector.
type Classifier interface {
	Predict(ctx context.Context, features casefile.Vector) (Prediction, error)
}

// ErrScoringTimeout is returned when the classifier misses its deadline.
var ErrScoringTimeout = errors.New("scoring timed out")

// ScoringError wraps any other classifier failure.
type ScoringError struct {
	Model string
	Err   error
}

func (e *ScoringError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("scoring with %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("scoring: %v", e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// IsScoringError reports whether err is a ScoringError.
func IsScoringError(err error) bool {
	var se *ScoringError
	return errors.As(err, &se)
}
