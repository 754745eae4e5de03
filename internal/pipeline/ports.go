package pipeline

import (
	"context"

	"casework/internal/casefile"
	"casework/internal/extraction"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Extractor,Validator,FeatureBuilder,Scorer,Decider,Sink

// Extractor runs the extraction stage. An error wrapping
// extraction.ErrAllDocumentsFailed is fatal for scoring but the delta is
// still merged.
type Extractor interface {
	Extract(ctx context.Context, docs map[casefile.Kind]extraction.Document) (casefile.Delta, error)
}

// Validator runs the validation stage.
type Validator interface {
	Validate(snap casefile.Snapshot) casefile.Delta
}

// FeatureBuilder runs the feature stage.
type FeatureBuilder interface {
	Run(snap casefile.Snapshot) (casefile.Delta, error)
}

// Scorer runs the scoring stage.
type Scorer interface {
	Run(ctx context.Context, snap casefile.Snapshot) (casefile.Delta, error)
}

// Decider runs the decision stage.
type Decider interface {
	Decide(snap casefile.Snapshot) casefile.Delta
}

// Sink consumes a decided case. Sinks see a read-only snapshot and cannot
// change the decision. A sink that owns case identity returns an error
// wrapping sentinel.ErrConflict for a case ID it already holds.
type Sink interface {
	Name() string
	Consume(ctx context.Context, snap casefile.Snapshot) error
}
