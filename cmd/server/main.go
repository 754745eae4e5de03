package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"casework/internal/app"
	"casework/internal/casestore"
	"casework/internal/enablement"
	"casework/internal/events"
	"casework/internal/extraction/cache"
	jwt_token "casework/internal/jwt_token"
	"casework/internal/pipeline"
	casehandler "casework/internal/pipeline/handler"
	"casework/internal/platform/config"
	"casework/internal/platform/httpserver"
	"casework/internal/platform/kafka"
	"casework/internal/platform/logger"
	"casework/internal/platform/metrics"
	"casework/internal/platform/postgres"
	"casework/internal/platform/redis"
	audit "casework/pkg/platform/audit"
	"casework/pkg/platform/audit/publishers/compliance"
	"casework/pkg/platform/audit/relay"
	auditmemory "casework/pkg/platform/audit/store/memory"
	auditpostgres "casework/pkg/platform/audit/store/postgres"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "casework: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	stageMetrics := app.NewMetrics(reg)
	var checks []healthCheck

	var builderOpts []app.Option
	if cfg.Redis.URL != "" {
		rc, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()
		builderOpts = append(builderOpts, app.WithCache(cache.NewRedisCache(rc, cfg.Extraction.CacheTTL)))
		checks = append(checks, healthCheck{"redis", redis.Check(rc)})
	}

	var (
		cases       casestore.Store
		auditOutbox audit.Outbox
		db          *sql.DB
	)
	if cfg.Postgres.URL != "" {
		db, err = postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		pgCases := casestore.NewPostgres(db)
		if err := pgCases.Migrate(ctx); err != nil {
			return err
		}
		pgAudit := auditpostgres.New(db)
		if err := pgAudit.Migrate(ctx); err != nil {
			return err
		}
		cases, auditOutbox = pgCases, pgAudit
		checks = append(checks, healthCheck{"postgres", db.PingContext})
	} else {
		log.Warn("DATABASE_URL not set, cases and audit events are kept in memory")
		cases, auditOutbox = casestore.NewInMemoryStore(), auditmemory.NewInMemoryStore()
	}

	auditor := compliance.New(auditOutbox,
		compliance.WithLogger(logger.WithComponent(log, "audit")),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	defer auditor.Close()
	sinks := []pipeline.Sink{
		casestore.NewSink(cases),
		enablement.NewSink(cases),
		events.NewAuditSink(auditor),
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, logger.WithComponent(log, "kafka"))
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := kafka.EnsureTopics(ctx, producer.Client(), cfg.Kafka.Partitions, cfg.Kafka.Replication,
			cfg.Kafka.DecisionsTopic, cfg.Kafka.AuditTopic); err != nil {
			return err
		}
		sinks = append(sinks, events.NewDecisionSink(producer, cfg.Kafka.DecisionsTopic))
		checks = append(checks, healthCheck{"kafka", producer.Ping})

		r := relay.New(auditOutbox, producer, cfg.Kafka.AuditTopic,
			relay.WithBatchSize(cfg.Kafka.RelayBatchSize),
			relay.WithInterval(cfg.Kafka.RelayInterval),
			relay.WithLogger(logger.WithComponent(log, "audit-relay")),
		)
		g.Go(func() error { return ignoreCancel(r.Run(gctx)) })
	}

	builder := app.NewBuilder(cfg, stageMetrics, logger.WithComponent(log, "pipeline"), builderOpts...)
	defer builder.Close()

	policies, err := config.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		return err
	}
	stages, err := builder.Stages(ctx, policies)
	if err != nil {
		return err
	}
	evaluator, err := pipeline.NewReloading(stages,
		pipeline.WithSinks(sinks...),
		pipeline.WithSinkTimeout(cfg.Pipeline.SinkTimeout),
		pipeline.WithMetrics(stageMetrics.Pipeline),
		pipeline.WithLogger(logger.WithComponent(log, "pipeline")),
	)
	if err != nil {
		return err
	}

	if cfg.PolicyFile != "" && cfg.WatchPolicy {
		watcher, err := config.NewPolicyWatcher(cfg.PolicyFile, logger.WithComponent(log, "policy"),
			config.WithReloadHook(func(p config.Policies) {
				applyPolicies(gctx, log, builder, evaluator, auditor, cfg.PolicyFile, p)
			}))
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	jwtService := jwt_token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	router := newRouter(routerDeps{
		cases: casehandler.New(evaluator, cases, logger.WithComponent(log, "http")).
			WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		validator:   jwt_token.NewMiddlewareValidator(jwtService),
		registry:    reg,
		httpMetrics: metrics.NewHTTP(reg),
		checks:      checks,
		logger:      logger.WithComponent(log, "http"),
	})
	srv := httpserver.New(cfg.Server, router)

	g.Go(func() error {
		log.Info("starting casework", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// applyPolicies swaps reloaded policies into the evaluator and records the
// change in the audit trail.
func applyPolicies(ctx context.Context, log *slog.Logger, builder *app.Builder, evaluator *pipeline.Reloading,
	auditor *compliance.Publisher, path string, p config.Policies) {
	validator, decider, err := builder.PolicyStages(p)
	if err == nil {
		err = evaluator.Update(validator, decider)
	}
	if err != nil {
		log.ErrorContext(ctx, "policy reload not applied", "path", path, "error", err)
		return
	}
	event := audit.ComplianceEvent{Action: string(audit.EventPolicyReloaded), Reason: path}
	if err := auditor.Emit(ctx, event); err != nil {
		log.ErrorContext(ctx, "policy reload audit failed", "error", err)
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
