// Package relay forwards audit outbox entries to a message broker.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "casework/pkg/platform/audit"
)

const (
	DefaultBatchSize = 100
	DefaultInterval  = time.Second
)

// Publisher writes one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Relay polls the outbox and publishes pending entries keyed by aggregate.
type Relay struct {
	outbox    audit.Outbox
	publisher Publisher
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the Relay.
type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func New(outbox audit.Outbox, publisher Publisher, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		topic:     topic,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.WarnContext(ctx, "audit relay flush failed", "error", err)
			}
		}
	}
}

// Flush publishes one batch. Entries are marked published up to the first
// publish failure, so a failed entry and everything after it is retried in
// order on the next flush.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	published := 0
	var publishErr error
	err := r.outbox.Tx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.Pending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			if err := r.publisher.Publish(ctx, r.topic, e.AggregateID, e.Payload); err != nil {
				publishErr = fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
				break
			}
			ids = append(ids, e.ID)
		}
		if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, publishErr
}
