// Package app assembles pipeline stages from configuration. Both the HTTP
// service and the CLI build their stages here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/prometheus/client_golang/prometheus"

	"casework/internal/casefile"
	"casework/internal/decision"
	decisionmetrics "casework/internal/decision/metrics"
	"casework/internal/extraction"
	"casework/internal/extraction/bankcsv"
	"casework/internal/extraction/cache"
	"casework/internal/extraction/jsondoc"
	"casework/internal/extraction/remote"
	"casework/internal/extraction/vision"
	"casework/internal/features"
	"casework/internal/pipeline"
	"casework/internal/platform/config"
	"casework/internal/scoring"
	"casework/internal/validation"
	"casework/pkg/platform/circuit"
)

// Metrics holds every stage's collectors. Register once per registry and
// reuse across policy reloads.
type Metrics struct {
	Extraction *extraction.Metrics
	Scoring    *scoring.Metrics
	Decision   *decisionmetrics.Metrics
	Pipeline   *pipeline.Metrics
}

// NewMetrics registers stage metrics with reg. A nil reg disables metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	return &Metrics{
		Extraction: extraction.NewMetrics(reg),
		Scoring:    scoring.NewMetrics(reg),
		Decision:   decisionmetrics.New(reg),
		Pipeline:   pipeline.NewMetrics(reg),
	}
}

// Builder constructs stages from configuration.
type Builder struct {
	cfg     config.Config
	metrics *Metrics
	logger  *slog.Logger
	cache   extraction.Cache
	clock   func() time.Time
	closers []func() error
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache sets the extraction cache. Without one an in-memory cache with
// the configured TTL is used.
func WithCache(c extraction.Cache) Option {
	return func(b *Builder) {
		b.cache = c
	}
}

// WithClock fixes the time used by validation and decision.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.clock = now
	}
}

// NewBuilder returns a Builder for cfg. A nil metrics disables stage metrics.
// Call Close to release the clients opened by Stages.
func NewBuilder(cfg config.Config, metrics *Metrics, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{cfg: cfg, metrics: metrics, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = &Metrics{}
	}
	return b
}

// Stages builds all five stages for policies.
func (b *Builder) Stages(ctx context.Context, policies config.Policies) (pipeline.Stages, error) {
	extractor, err := b.Extractor(ctx)
	if err != nil {
		return pipeline.Stages{}, err
	}
	scorer, err := b.Scorer()
	if err != nil {
		return pipeline.Stages{}, err
	}
	validator, decider, err := b.PolicyStages(policies)
	if err != nil {
		return pipeline.Stages{}, err
	}
	return pipeline.Stages{
		Extractor: extractor,
		Validator: validator,
		Features:  features.NewStage(),
		Scorer:    scorer,
		Decider:   decider,
	}, nil
}

// PolicyStages builds the policy-dependent stages. Used again on reload.
func (b *Builder) PolicyStages(p config.Policies) (pipeline.Validator, pipeline.Decider, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	validator := validation.New(p.Validation, validation.WithClock(b.clock))
	engine, err := decision.NewEngine(p.Decision,
		decision.WithMetrics(b.metrics.Decision),
		decision.WithClock(b.clock),
	)
	if err != nil {
		return nil, nil, err
	}
	return validator, engine, nil
}

// Extractor builds the extraction coordinator. Each kind routes by media
// type: JSON field maps are read directly, CSV bank statements are parsed
// locally, and PDFs and images go to the vision model when Vertex AI is
// configured. Anything else falls back to the remote extraction service.
func (b *Builder) Extractor(ctx context.Context) (*extraction.Coordinator, error) {
	var fallback extraction.Extractor
	if b.cfg.Extraction.ServiceURL != "" {
		client, err := remote.New(b.cfg.Extraction.ServiceURL,
			remote.WithAPIKey(b.cfg.Extraction.ServiceAPIKey),
			remote.WithRateLimit(b.cfg.Extraction.RatePerSecond, b.cfg.Extraction.RateBurst),
			remote.WithBreaker(circuit.New("extraction-service")),
			remote.WithLogger(b.logger),
		)
		if err != nil {
			return nil, err
		}
		fallback = client
	}

	var visual extraction.Extractor
	if b.cfg.Vertex.Project != "" {
		client, err := genai.NewClient(ctx, b.cfg.Vertex.Project, b.cfg.Vertex.Location)
		if err != nil {
			return nil, fmt.Errorf("vertex ai client: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		visual = vision.New(vision.NewModel(client, b.cfg.Vertex.Model),
			vision.WithMaxPages(b.cfg.Vertex.MaxPages),
			vision.WithLogger(b.logger),
		)
	}

	registry := extraction.NewRegistry()
	for _, kind := range casefile.AllKinds {
		router := extraction.NewRouter(extraction.WithFallback(fallback)).
			Handle("application/json", jsondoc.New())
		if kind == casefile.KindBankStatement {
			router.Handle("text/csv", bankcsv.New())
		}
		if visual != nil {
			router.Handle("application/pdf", visual).Handle("image/", visual)
		}
		if err := registry.Register(kind, router); err != nil {
			return nil, err
		}
	}

	c := b.cache
	if c == nil {
		c = cache.NewInMemoryCache(b.cfg.Extraction.CacheTTL)
	}
	return extraction.NewCoordinator(registry,
		extraction.WithDocumentTimeout(b.cfg.Extraction.DocumentTimeout),
		extraction.WithCache(c),
		extraction.WithMetrics(b.metrics.Extraction),
		extraction.WithLogger(b.logger),
	)
}

// Scorer builds the eligibility scorer: the remote model server when
// configured, otherwise the local logistic model.
func (b *Builder) Scorer() (*scoring.Adapter, error) {
	sc := b.cfg.Scoring
	var classifier scoring.Classifier
	name := sc.ModelName
	switch {
	case sc.ModelServerURL != "":
		breaker := circuit.New("model-server",
			circuit.WithFailureThreshold(sc.BreakerThreshold),
			circuit.WithCooldown(sc.BreakerCooldown),
		)
		rc, err := scoring.NewRemoteClassifier(sc.ModelServerURL, sc.ModelName,
			scoring.WithRemoteBreaker(breaker),
			scoring.WithRemoteLogger(b.logger),
		)
		if err != nil {
			return nil, err
		}
		classifier = rc
	case sc.ModelPath != "":
		m, err := scoring.LoadModel(sc.ModelPath)
		if err != nil {
			return nil, err
		}
		classifier = m
	default:
		classifier = scoring.DefaultModel()
		name = "default-logistic"
	}
	return scoring.NewAdapter(classifier,
		scoring.WithTimeout(sc.Timeout),
		scoring.WithModelName(name),
		scoring.WithMetrics(b.metrics.Scoring),
		scoring.WithLogger(b.logger),
	)
}

// Close releases clients opened while building.
func (b *Builder) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	b.closers = nil
	return errors.Join(errs...)
}
