// Package remote calls an external document extraction service over HTTP.
//
// The service accepts the raw document bytes at POST {base}/v1/extract/{kind}
// with the document's content type, and answers with {"fields": {...}}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"casework/internal/casefile"
	"casework/internal/extraction"
	"casework/pkg/platform/circuit"
	"casework/pkg/platform/sentinel"
	"casework/pkg/requestcontext"
)

const maxErrorBody = 4 << 10

// Client is an extraction.Extractor backed by the remote service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIKey sets the bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(cl *Client) {
		cl.apiKey = key
	}
}

// WithRateLimit caps outbound requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cl *Client) {
		if perSecond > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a client for the extraction service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote extraction: baseURL is required")
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type extractResponse struct {
	Fields map[string]any `json:"fields"`
	Error  string         `json:"error,omitempty"`
}

func (c *Client) Extract(ctx context.Context, doc extraction.Document) (casefile.Fields, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, fmt.Errorf("remote extraction: circuit %s open: %w", c.breaker.Name(), sentinel.ErrUnavailable)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	fields, err := c.do(ctx, doc)
	c.record(ctx, err)
	return fields, err
}

func (c *Client) do(ctx context.Context, doc extraction.Document) (casefile.Fields, error) {
	url := fmt.Sprintf("%s/v1/extract/%s", c.baseURL, doc.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("remote extraction: create request: %w", err)
	}
	req.Header.Set("Content-Type", doc.MediaType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if rid := requestcontext.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	if doc.Filename != "" {
		req.Header.Set("X-Filename", doc.Filename)
	}

	c.logger.DebugContext(ctx, "remote extraction request", "kind", doc.Kind, "bytes", len(doc.Data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, extraction.NewExtractionError(doc.Kind, extraction.ErrorProviderOutage, "extraction service unreachable", fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(doc.Kind, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out extractResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, extraction.NewExtractionError(doc.Kind, extraction.ErrorBadData, "extraction service returned malformed JSON", err)
	}
	if out.Error != "" {
		return nil, extraction.NewExtractionError(doc.Kind, extraction.ErrorBadData, out.Error, nil)
	}
	return casefile.Fields(out.Fields), nil
}

func statusError(kind casefile.Kind, status int, body string) error {
	cause := fmt.Sprintf("extraction service returned %d", status)
	if body != "" {
		cause += ": " + body
	}
	switch {
	case status == http.StatusUnsupportedMediaType:
		return extraction.NewExtractionError(kind, extraction.ErrorUnsupported, cause, extraction.ErrUnsupportedFormat)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return extraction.NewExtractionError(kind, extraction.ErrorBadData, cause, nil)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return extraction.NewExtractionError(kind, extraction.ErrorTimeout, cause, nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return extraction.NewExtractionError(kind, extraction.ErrorProviderOutage, cause, sentinel.ErrUnavailable)
	}
	return extraction.NewExtractionError(kind, extraction.ErrorInternal, cause, nil)
}

// record feeds the breaker. Only outages count as failures; a document the
// service could not read says nothing about the service's health.
func (c *Client) record(ctx context.Context, err error) {
	if c.breaker == nil || ctx.Err() != nil {
		return
	}
	if err != nil && extraction.IsRetryable(err) {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "remote extraction circuit opened", "breaker", c.breaker.Name())
		}
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "remote extraction circuit closed", "breaker", c.breaker.Name())
	}
}
