package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// correlationIDKey marks the context storage slot for the correlation identifier.
type correlationIDKey struct{}

// CorrelationIDFromContext returns the correlation identifier stored in ctx, or an empty string when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}

	return ""
}

// WithCorrelationID stores a fresh correlation identifier in ctx and returns it
// alongside the derived context. Used by the bot update middleware, where there
// is no http.Request to hang the identifier on.
func WithCorrelationID(ctx context.Context) (context.Context, string) {
	correlationID := uuid.NewString()

	return context.WithValue(ctx, correlationIDKey{}, correlationID), correlationID
}

// Middleware injects a correlation identifier into the request context before delegating to the next handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxWithID, _ := WithCorrelationID(r.Context())
		next.ServeHTTP(w, r.WithContext(ctxWithID))
	})
}
