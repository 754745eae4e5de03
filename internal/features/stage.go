package features

import (
	"errors"
	"fmt"

	"casework/internal/casefile"
)

// ErrNotValidated is returned when the stage runs before validation.
var ErrNotValidated = errors.New("case has no validation result")

// BuildError reports that a central feature could not be derived. It is
// treated like a validation block: the case is decided without a score.
type BuildError struct {
	Feature string
	Reason  string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("feature %s: %s", e.Feature, e.Reason)
}

// IsBuildError reports whether err is a BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// Stage builds features from the validated profile of a case.
type Stage struct{}

// NewStage returns the feature building stage.
func NewStage() Stage {
	return Stage{}
}

// Run returns the feature delta. A build failure is recorded as a
// feature_build stage error in the delta and also returned.
func (Stage) Run(snap casefile.Snapshot) (casefile.Delta, error) {
	if snap.Validation == nil {
		return casefile.Delta{}, ErrNotValidated
	}
	vec, err := Build(snap.Validation.Profile)
	if err != nil {
		return casefile.Delta{StageErrors: []casefile.StageError{{
			Stage:   casefile.StageFeatures,
			Kind:    casefile.ErrorFeatureBuild,
			Subject: featureOf(err),
			Message: err.Error(),
		}}}, err
	}
	return casefile.Delta{Features: &vec}, nil
}

func featureOf(err error) string {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Feature
	}
	return ""
}
