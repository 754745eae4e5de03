package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"casework/internal/casefile"
)

// DefaultTimeout bounds a single prediction when the caller sets none.
const DefaultTimeout = 10 * time.Second

// Adapter calls the classifier and normalises its answer.
type Adapter struct {
	classifier Classifier
	model      string
	timeout    time.Duration
	metrics    *Metrics
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout sets the per-prediction deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithModelName labels errors and metrics.
func WithModelName(name string) Option {
	return func(a *Adapter) {
		a.model = name
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// NewAdapter wraps a classifier.
func NewAdapter(c Classifier, opts ...Option) (*Adapter, error) {
	if c == nil {
		return nil, errors.New("scoring: classifier is required")
	}
	a := &Adapter{
		classifier: c,
		model:      "classifier",
		timeout:    DefaultTimeout,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type predictResult struct {
	pred Prediction
	err  error
}

// Score predicts eligibility. It returns ErrScoringTimeout when the deadline
// passes, the caller's context error when the caller cancelled, and a
// *ScoringError for anything else. A label-only answer is imputed to a
// probability of 1 or 0 and flagged.
func (a *Adapter) Score(ctx context.Context, features casefile.Vector) (casefile.Score, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Buffered: the send must not block once Score has returned.
	done := make(chan predictResult, 1)
	go func() {
		pred, err := a.classifier.Predict(ctx, features)
		done <- predictResult{pred, err}
	}()

	var res predictResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = predictResult{err: ctx.Err()}
	}
	a.metrics.ObserveLatency(a.model, time.Since(start))

	if res.err != nil {
		err := a.classify(ctx, res.err)
		a.metrics.IncrementOutcome(a.model, outcomeOf(err))
		return casefile.Score{}, err
	}

	score, err := normalize(res.pred)
	if err != nil {
		err = &ScoringError{Model: a.model, Err: err}
		a.metrics.IncrementOutcome(a.model, outcomeError)
		return casefile.Score{}, err
	}
	if score.Imputed {
		a.metrics.IncrementOutcome(a.model, outcomeImputed)
	} else {
		a.metrics.IncrementOutcome(a.model, outcomeOK)
	}
	return score, nil
}

func (a *Adapter) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrScoringTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrScoringTimeout, a.timeout)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return err
	case IsScoringError(err):
		return err
	}
	return &ScoringError{Model: a.model, Err: err}
}

func normalize(p Prediction) (casefile.Score, error) {
	if p.Probability == nil {
		s := casefile.Score{Label: p.Label, Imputed: true}
		if p.Label {
			s.Probability = 1
		}
		return s, nil
	}
	prob := *p.Probability
	if math.IsNaN(prob) {
		return casefile.Score{}, errors.New("classifier returned NaN probability")
	}
	return casefile.Score{Probability: math.Min(1, math.Max(0, prob)), Label: p.Label}, nil
}

// Run is the pipeline stage. Failures are recorded as scoring or
// scoring_timeout stage errors and returned.
func (a *Adapter) Run(ctx context.Context, snap casefile.Snapshot) (casefile.Delta, error) {
	if snap.Features == nil {
		return casefile.Delta{}, errors.New("scoring: case has no features")
	}
	score, err := a.Score(ctx, *snap.Features)
	if err == nil {
		return casefile.Delta{Score: &score}, nil
	}
	if errors.Is(err, context.Canceled) {
		return casefile.Delta{}, err
	}

	kind := casefile.ErrorScoring
	if errors.Is(err, ErrScoringTimeout) {
		kind = casefile.ErrorScoringTimeout
	}
	a.logger.WarnContext(ctx, "scoring failed",
		"case_id", snap.ID,
		"model", a.model,
		"error", err,
	)
	return casefile.Delta{StageErrors: []casefile.StageError{{
		Stage:   casefile.StageScoring,
		Kind:    kind,
		Subject: a.model,
		Message: err.Error(),
	}}}, err
}
