package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"casework/internal/casefile"
	"casework/pkg/requestcontext"
)

const defaultDocumentTimeout = 30 * time.Second

// Coordinator runs the four document extractions concurrently and turns
// their results into a case delta.
type Coordinator struct {
	registry *Registry
	timeout  time.Duration
	cache    Cache
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDocumentTimeout bounds each individual extraction.
func WithDocumentTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache enables result caching keyed by document content.
func WithCache(cache Cache) Option {
	return func(c *Coordinator) {
		c.cache = cache
	}
}

// WithMetrics attaches extraction metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator constructs a coordinator over the given registry.
func NewCoordinator(registry *Registry, opts ...Option) (*Coordinator, error) {
	if registry == nil {
		return nil, errors.New("extractor registry is required")
	}
	c := &Coordinator{
		registry: registry,
		timeout:  defaultDocumentTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type outcome struct {
	result casefile.DocumentResult
	err    *ExtractionError
}

// Extract dispatches one extraction per required document kind and joins
// them all before returning. A failed document becomes a failure marker and
// a stage error; it never aborts the others. When every document fails the
// delta is still returned, together with ErrAllDocumentsFailed.
func (c *Coordinator) Extract(ctx context.Context, docs map[casefile.Kind]Document) (casefile.Delta, error) {
	outcomes := make([]outcome, len(casefile.AllKinds))

	var g errgroup.Group
	for i, kind := range casefile.AllKinds {
		doc, ok := docs[kind]
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					c.logger.ErrorContext(ctx, "document extractor panicked",
						"case_id", requestcontext.CaseID(ctx),
						"kind", kind,
						"panic", r,
						"stack", string(debug.Stack()),
					)
					outcomes[i] = c.fail(kind, NewExtractionError(kind, ErrorInternal, "extractor panicked", fmt.Errorf("panic: %v", r)))
				}
			}()
			if !ok {
				outcomes[i] = c.fail(kind, NewExtractionError(kind, ErrorNotFound, "document not provided", nil))
				return nil
			}
			outcomes[i] = c.extractOne(ctx, kind, doc)
			return nil
		})
	}
	// Workers never return errors; failures are carried in outcomes.
	_ = g.Wait()

	delta := casefile.Delta{Documents: make(casefile.RawDocuments, len(outcomes))}
	var extracted int
	for _, o := range outcomes {
		delta.Documents[o.result.Kind] = o.result
		if o.err == nil {
			extracted++
			continue
		}
		delta.StageErrors = append(delta.StageErrors, casefile.StageError{
			Stage:   casefile.StageExtraction,
			Kind:    casefile.ErrorExtraction,
			Subject: string(o.err.Kind),
			Message: o.err.Error(),
		})
		c.logger.WarnContext(ctx, "document extraction failed",
			"case_id", requestcontext.CaseID(ctx),
			"request_id", requestcontext.RequestID(ctx),
			"kind", o.err.Kind,
			"category", o.err.Category,
			"error", o.err,
		)
	}

	if extracted == 0 {
		delta.StageErrors = append(delta.StageErrors, casefile.StageError{
			Stage:   casefile.StageExtraction,
			Kind:    casefile.ErrorAllDocumentsFailed,
			Message: ErrAllDocumentsFailed.Error(),
		})
		return delta, ErrAllDocumentsFailed
	}
	return delta, nil
}

func (c *Coordinator) run(ctx context.Context, ex Extractor, doc Document) (casefile.Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	fields, err := ex.Extract(ctx, doc)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return fields, err
}

func (c *Coordinator) extractOne(ctx context.Context, kind casefile.Kind, doc Document) outcome {
	start := time.Now()
	defer func() {
		c.metrics.ObserveLatency(string(kind), time.Since(start))
	}()

	doc.Kind = kind
	ex, err := c.registry.Get(kind)
	if err != nil {
		return c.fail(kind, Classify(kind, err))
	}

	key := CacheKey(kind, doc.Data)
	fields, hit := c.lookup(ctx, key)
	if !hit {
		fields, err = c.run(ctx, ex, doc)
		if err != nil {
			return c.fail(kind, Classify(kind, err))
		}
	}

	typed, err := casefile.Decode(kind, fields)
	if err != nil {
		return c.fail(kind, NewExtractionError(kind, ErrorBadData, "extractor output does not match the document schema", err))
	}

	if !hit {
		c.store(ctx, key, fields)
	}
	c.metrics.IncrementOutcome(string(kind), "ok")
	return outcome{result: casefile.DocumentResult{Kind: kind, Document: typed}}
}

func (c *Coordinator) fail(kind casefile.Kind, err *ExtractionError) outcome {
	c.metrics.IncrementOutcome(string(kind), string(err.Category))
	return outcome{
		result: casefile.DocumentResult{
			Kind:    kind,
			Failure: &casefile.Failure{Category: string(err.Category), Cause: err.Cause},
		},
		err: err,
	}
}

func (c *Coordinator) lookup(ctx context.Context, key string) (casefile.Fields, bool) {
	if c.cache == nil {
		return nil, false
	}
	fields, found, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.IncrementCacheLookup("error")
		c.logger.WarnContext(ctx, "extraction cache lookup failed", "key", key, "error", err)
		return nil, false
	case !found:
		c.metrics.IncrementCacheLookup("miss")
		return nil, false
	}
	c.metrics.IncrementCacheLookup("hit")
	return fields, true
}

func (c *Coordinator) store(ctx context.Context, key string, fields casefile.Fields) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, fields); err != nil {
		c.logger.WarnContext(ctx, "extraction cache store failed", "key", key, "error", err)
	}
}
