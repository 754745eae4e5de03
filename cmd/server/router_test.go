package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casework/internal/casestore"
	jwt_token "casework/internal/jwt_token"
	casehandler "casework/internal/pipeline/handler"
	"casework/internal/platform/metrics"
	"casework/internal/platform/middleware"
)

type RouterSuite struct {
	suite.Suite
	jwt     *jwt_token.JWTService
	checks  []healthCheck
	handler http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.jwt = jwt_token.NewJWTService("test-key", "casework", "casework-api")
	s.checks = nil
	s.build()
}

func (s *RouterSuite) build() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := metrics.NewRegistry()
	s.handler = newRouter(routerDeps{
		cases:       casehandler.New(nil, casestore.NewInMemoryStore(), logger),
		validator:   jwt_token.NewMiddlewareValidator(s.jwt),
		registry:    reg,
		httpMetrics: metrics.NewHTTP(reg),
		checks:      s.checks,
		logger:      logger,
	})
}

func (s *RouterSuite) TestHealthIsPublic() {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(middleware.RequestIDHeader))
}

func (s *RouterSuite) TestHealthReportsDegradedDependency() {
	s.checks = []healthCheck{
		{"postgres", func(context.Context) error { return nil }},
		{"kafka", func(context.Context) error { return errors.New("no brokers") }},
	}
	s.build()

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("degraded", body.Status)
	s.Equal(map[string]string{"postgres": "ok", "kafka": "unavailable"}, body.Dependencies)
	s.NotContains(w.Body.String(), "no brokers")
}

func (s *RouterSuite) TestMetricsIsPublic() {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestCasesRequireBearerToken() {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cases/case-1", nil))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestAuthenticatedLookup() {
	token, err := s.jwt.GenerateAccessToken("cw-1", "dubai", time.Hour)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/cases/unknown", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	s.Equal(http.StatusNotFound, w.Code)
}
