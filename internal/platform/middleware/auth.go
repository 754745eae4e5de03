package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"casework/pkg/requestcontext"
)

// Validator validates caseworker bearer tokens.
type Validator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is what the auth middleware needs from a validated token.
type Claims struct {
	CaseworkerID string
	Office       string
	TokenID      string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireCaseworker rejects requests without a valid bearer token and puts
// the caseworker ID into the request context.
func RequireCaseworker(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithCaseworkerID(ctx, claims.CaseworkerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
