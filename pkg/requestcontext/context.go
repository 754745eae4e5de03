// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and pipeline stages read them for log
// correlation without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	caseworker := requestcontext.CaseworkerID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey    struct{}
	caseworkerIDKey struct{}
	caseIDKey       struct{}
	requestTimeKey  struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID    = requestIDKey{}
	ContextKeyCaseworkerID = caseworkerIDKey{}
	ContextKeyCaseID       = caseIDKey{}
	ContextKeyRequestTime  = requestTimeKey{}
)

// RequestID retrieves the correlation ID assigned by the request middleware.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// CaseworkerID retrieves the authenticated caseworker's subject.
func CaseworkerID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyCaseworkerID).(string); ok {
		return v
	}
	return ""
}

// WithCaseworkerID injects the authenticated caseworker's subject.
func WithCaseworkerID(ctx context.Context, caseworkerID string) context.Context {
	return context.WithValue(ctx, ContextKeyCaseworkerID, caseworkerID)
}

// CaseID retrieves the case being processed, if any.
func CaseID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyCaseID).(string); ok {
		return v
	}
	return ""
}

// WithCaseID tags the context with the case being processed.
func WithCaseID(ctx context.Context, caseID string) context.Context {
	return context.WithValue(ctx, ContextKeyCaseID, caseID)
}

// Now returns the request time if one was injected, otherwise time.Now().
// Tests inject a fixed time to make decisions reproducible.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
