// Package pipeline runs a case through extraction, validation, feature
// building, scoring and decision, merging each stage's delta into the case,
// and hands the decided case to downstream sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"casework/internal/casefile"
	"casework/internal/extraction"
	"casework/internal/features"
	"casework/pkg/platform/sentinel"
	"casework/pkg/requestcontext"
)

// ErrCancelled is returned when the caller cancels a run before a decision
// was reached. No decision is recorded and no sink is invoked.
var ErrCancelled = errors.New("pipeline cancelled")

// ErrDuplicateCase is returned when a sink reports that the case ID already
// holds a decision. Sinks after the reporting one are not invoked.
var ErrDuplicateCase = errors.New("case already decided")

// DefaultSinkTimeout bounds each sink call.
const DefaultSinkTimeout = 5 * time.Second

const tracerName = "casework/internal/pipeline"

// Run results used in metrics.
const (
	resultDecided   = "decided"
	resultCancelled = "cancelled"
	resultDuplicate = "duplicate"
	resultError     = "error"
)

// Stages groups the five stage implementations.
type Stages struct {
	Extractor Extractor
	Validator Validator
	Features  FeatureBuilder
	Scorer    Scorer
	Decider   Decider
}

func (s Stages) check() error {
	var errs []error
	if s.Extractor == nil {
		errs = append(errs, errors.New("extractor is required"))
	}
	if s.Validator == nil {
		errs = append(errs, errors.New("validator is required"))
	}
	if s.Features == nil {
		errs = append(errs, errors.New("feature builder is required"))
	}
	if s.Scorer == nil {
		errs = append(errs, errors.New("scorer is required"))
	}
	if s.Decider == nil {
		errs = append(errs, errors.New("decider is required"))
	}
	return errors.Join(errs...)
}

// Orchestrator owns the stage graph. It is the only component that writes
// to a Case.
type Orchestrator struct {
	stages      Stages
	sinks       []Sink
	sinkTimeout time.Duration
	metrics     *Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	newID       func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSinks registers downstream sinks. They run in the given order.
func WithSinks(sinks ...Sink) Option {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithSinkTimeout sets the per-sink timeout.
func WithSinkTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sinkTimeout = d
		}
	}
}

// WithMetrics enables run metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTracer sets the tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithIDGenerator sets the case ID generator used when Run gets no ID.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// New builds an Orchestrator. All five stages are required.
func New(stages Stages, opts ...Option) (*Orchestrator, error) {
	if err := stages.check(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	o := &Orchestrator{
		stages:      stages,
		sinkTimeout: DefaultSinkTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run evaluates one case. The returned snapshot is the final case state;
// on ErrCancelled it holds whatever was merged before cancellation.
// An empty caseID is replaced by a generated one.
func (o *Orchestrator) Run(ctx context.Context, caseID string, docs map[casefile.Kind]extraction.Document) (casefile.Snapshot, error) {
	if caseID == "" {
		caseID = o.newID()
	}
	start := time.Now()
	c := casefile.New(caseID)
	ctx = requestcontext.WithCaseID(ctx, caseID)

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("case.id", caseID)))
	defer span.End()

	err := o.evaluate(ctx, c, docs)
	snap := c.Snapshot()
	o.metrics.ObserveRun(time.Since(start))

	switch {
	case errors.Is(err, ErrCancelled):
		o.metrics.IncrementRun(resultCancelled)
		span.SetStatus(codes.Error, "cancelled")
		o.logger.InfoContext(ctx, "case evaluation cancelled",
			"case_id", caseID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return snap, err
	case err != nil:
		o.metrics.IncrementRun(resultError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
		o.logger.ErrorContext(ctx, "case evaluation failed",
			"case_id", caseID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return snap, err
	}

	if err := o.notify(ctx, snap); err != nil {
		o.metrics.IncrementRun(resultDuplicate)
		span.SetStatus(codes.Error, "duplicate case")
		o.logger.WarnContext(ctx, "case already decided, decision discarded",
			"case_id", caseID,
			"request_id", requestcontext.RequestID(ctx),
			"status", snap.Decision.Status,
		)
		return snap, err
	}

	o.metrics.IncrementRun(resultDecided)
	span.SetAttributes(attribute.String("decision.status", string(snap.Decision.Status)))
	o.logger.InfoContext(ctx, "case decided",
		"case_id", caseID,
		"request_id", requestcontext.RequestID(ctx),
		"status", snap.Decision.Status,
		"score", snap.Decision.Score,
		"confidence", snap.Decision.Confidence,
		"stage_errors", len(snap.StageErrors),
	)
	return snap, nil
}

// evaluate drives the stages in order. Only extraction runs concurrently
// (inside the extractor); every boundary checks for cancellation.
func (o *Orchestrator) evaluate(ctx context.Context, c *casefile.Case, docs map[casefile.Kind]extraction.Document) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	allFailed := false
	err := o.stage(ctx, c, casefile.StageExtraction, func(ctx context.Context, _ casefile.Snapshot) (casefile.Delta, error) {
		d, err := o.stages.Extractor.Extract(ctx, docs)
		if errors.Is(err, extraction.ErrAllDocumentsFailed) {
			allFailed = true
			return d, nil
		}
		return d, err
	})
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}

	if !allFailed {
		if err := o.scoreCase(ctx, c); err != nil {
			return err
		}
		if err := cancelled(ctx); err != nil {
			return err
		}
	}

	return o.stage(ctx, c, casefile.StageDecision, func(_ context.Context, snap casefile.Snapshot) (casefile.Delta, error) {
		return o.stages.Decider.Decide(snap), nil
	})
}

// scoreCase runs validation, features and scoring. A blocked validation or
// a feature build failure leaves the case without a score; the decision
// stage reads the recorded stage errors.
func (o *Orchestrator) scoreCase(ctx context.Context, c *casefile.Case) error {
	err := o.stage(ctx, c, casefile.StageValidation, func(_ context.Context, snap casefile.Snapshot) (casefile.Delta, error) {
		return o.stages.Validator.Validate(snap), nil
	})
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	if snap := c.Snapshot(); snap.Validation == nil || snap.Validation.Blocked {
		return nil
	}

	err = o.stage(ctx, c, casefile.StageFeatures, func(_ context.Context, snap casefile.Snapshot) (casefile.Delta, error) {
		d, err := o.stages.Features.Run(snap)
		if features.IsBuildError(err) {
			return d, nil
		}
		return d, err
	})
	if err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	if c.Snapshot().Features == nil {
		return nil
	}

	err = o.stage(ctx, c, casefile.StageScoring, func(ctx context.Context, snap casefile.Snapshot) (casefile.Delta, error) {
		d, err := o.stages.Scorer.Run(ctx, snap)
		if err != nil && !errors.Is(err, context.Canceled) {
			// recorded in d as a scoring stage error
			return d, nil
		}
		return d, err
	})
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return nil
}

// stage runs fn inside a span, times it and merges its delta. A non-nil
// error from fn is not merged.
func (o *Orchestrator) stage(ctx context.Context, c *casefile.Case, name casefile.Stage, fn func(context.Context, casefile.Snapshot) (casefile.Delta, error)) error {
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(name))
	defer span.End()

	start := time.Now()
	delta, err := fn(ctx, c.Snapshot())
	o.metrics.ObserveStage(string(name), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, se := range delta.StageErrors {
		span.AddEvent("stage_error", trace.WithAttributes(
			attribute.String("kind", string(se.Kind)),
			attribute.String("subject", se.Subject),
		))
	}
	if err := c.Apply(delta); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		return fmt.Errorf("merge %s delta: %w", name, err)
	}
	return nil
}

// notify hands the decided case to every sink. Sinks run detached from the
// caller's cancellation with their own timeout; failures are logged and
// counted but never change the decision. A sink error wrapping
// sentinel.ErrConflict means the case ID is taken: the remaining sinks are
// skipped and ErrDuplicateCase is returned.
func (o *Orchestrator) notify(ctx context.Context, snap casefile.Snapshot) error {
	base := context.WithoutCancel(ctx)
	for _, sink := range o.sinks {
		err := o.consume(base, sink, snap)
		if err == nil {
			continue
		}
		if errors.Is(err, sentinel.ErrConflict) {
			o.logger.WarnContext(ctx, "sink rejected duplicate case, skipping remaining sinks",
				"case_id", snap.ID,
				"request_id", requestcontext.RequestID(ctx),
				"sink", sink.Name(),
			)
			return fmt.Errorf("%w: %s", ErrDuplicateCase, snap.ID)
		}
		o.metrics.IncrementSinkFailure(sink.Name())
		o.logger.ErrorContext(ctx, "downstream sink failed",
			"case_id", snap.ID,
			"request_id", requestcontext.RequestID(ctx),
			"sink", sink.Name(),
			"error", err,
		)
	}
	return nil
}

func (o *Orchestrator) consume(ctx context.Context, sink Sink, snap casefile.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, o.sinkTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "pipeline.sink", trace.WithAttributes(attribute.String("sink", sink.Name())))
	defer span.End()

	err := sink.Consume(ctx, snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sink failed")
	}
	return err
}

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}
