package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"casework/internal/casefile"
	"casework/pkg/platform/circuit"
	"casework/pkg/platform/sentinel"
	"casework/pkg/requestcontext"
)

// RemoteClassifier calls a model server at POST {base}/v1/predict.
//
// Request:  {"model": "...", "features": {"monthly_income": 9000, ...}, "missing": ["credit_score"]}
// Response: {"probability": 0.82, "label": true}; probability may be null.
type RemoteClassifier struct {
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// RemoteOption configures a RemoteClassifier.
type RemoteOption func(*RemoteClassifier)

// WithRemoteHTTPClient overrides the default HTTP client.
func WithRemoteHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteClassifier) {
		r.httpClient = c
	}
}

// WithRemoteBreaker guards calls with a circuit breaker.
func WithRemoteBreaker(b *circuit.Breaker) RemoteOption {
	return func(r *RemoteClassifier) {
		r.breaker = b
	}
}

// WithRemoteLogger configures structured logging.
func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(r *RemoteClassifier) {
		r.logger = l
	}
}

// NewRemoteClassifier creates a client for the named model at baseURL.
func NewRemoteClassifier(baseURL, model string, opts ...RemoteOption) (*RemoteClassifier, error) {
	if baseURL == "" {
		return nil, errors.New("remote classifier: baseURL is required")
	}
	r := &RemoteClassifier{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type predictRequest struct {
	Model    string             `json:"model,omitempty"`
	Features map[string]float64 `json:"features"`
	Missing  []string           `json:"missing"`
}

type predictResponse struct {
	Probability *float64 `json:"probability"`
	Label       *bool    `json:"label"`
}

// Predict implements Classifier.
func (r *RemoteClassifier) Predict(ctx context.Context, features casefile.Vector) (Prediction, error) {
	if r.breaker != nil && !r.breaker.Allow() {
		return Prediction{}, &ScoringError{
			Model: r.model,
			Err:   fmt.Errorf("circuit %s open: %w", r.breaker.Name(), sentinel.ErrUnavailable),
		}
	}
	pred, err := r.do(ctx, features)
	r.record(ctx, err)
	return pred, err
}

func (r *RemoteClassifier) do(ctx context.Context, features casefile.Vector) (Prediction, error) {
	body := predictRequest{Model: r.model, Features: features.Map(), Missing: []string{}}
	for i, name := range features.Names {
		if features.Missing[i] {
			body.Missing = append(body.Missing, name)
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Prediction{}, &ScoringError{Model: r.model, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/predict", bytes.NewReader(payload))
	if err != nil {
		return Prediction{}, &ScoringError{Model: r.model, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if rid := requestcontext.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Prediction{}, ctx.Err()
		}
		return Prediction{}, &ScoringError{Model: r.model, Err: fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGatewayTimeout:
		return Prediction{}, fmt.Errorf("%w: model server returned %d", ErrScoringTimeout, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Prediction{}, &ScoringError{Model: r.model, Err: fmt.Errorf("model server returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Prediction{}, &ScoringError{Model: r.model, Err: fmt.Errorf("model server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, &ScoringError{Model: r.model, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Probability == nil && out.Label == nil {
		return Prediction{}, &ScoringError{Model: r.model, Err: errors.New("response has neither probability nor label")}
	}

	pred := Prediction{Probability: out.Probability}
	switch {
	case out.Label != nil:
		pred.Label = *out.Label
	case out.Probability != nil:
		pred.Label = *out.Probability >= 0.5
	}
	return pred, nil
}

// record feeds the breaker. Only unavailability counts as a failure.
func (r *RemoteClassifier) record(ctx context.Context, err error) {
	if r.breaker == nil || ctx.Err() != nil {
		return
	}
	if err != nil && (errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, ErrScoringTimeout)) {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "model server circuit opened", "breaker", r.breaker.Name(), "model", r.model)
		}
		return
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "model server circuit closed", "breaker", r.breaker.Name(), "model", r.model)
	}
}
