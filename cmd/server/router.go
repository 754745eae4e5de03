package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	casehandler "casework/internal/pipeline/handler"
	"casework/internal/platform/metrics"
	"casework/internal/platform/middleware"
	"casework/pkg/platform/httputil"
)

// healthCheck reports whether one dependency is reachable.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type routerDeps struct {
	cases       *casehandler.Handler
	validator   middleware.Validator
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTP
	checks      []healthCheck
	logger      *slog.Logger
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.AccessLog(d.logger))
	r.Use(d.httpMetrics.Middleware)

	r.Get("/health", healthHandler(d.checks))
	r.Handle("/metrics", metrics.Handler(d.registry))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCaseworker(d.validator, d.logger))
		d.cases.Register(r)
	})
	return r
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				deps[c.name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[c.name] = "ok"
		}
		body := map[string]any{"status": "ok", "dependencies": deps}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
