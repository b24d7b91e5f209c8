// Package middleware carries a per-request correlation id so access logs can
// be tied back to the documents and jobs a request touched.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

// CorrelationKey indexes the correlation id inside a request context.
const CorrelationKey ctxKey = 0

// CorrelationID tags the request with an id (client-supplied X-Correlation-ID
// or a fresh one), echoes it in the response header and emits one access log
// line per request. The logger's ContextHandler picks the id up from the
// context, so handlers never thread it explicitly.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.New().String()
		}

		ctx := WithCorrelationID(r.Context(), id)
		w.Header().Set("X-Correlation-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		slog.InfoContext(ctx, "http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// GetCorrelationID returns the id stored in ctx, or "" outside a request.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationKey).(string); ok {
		return id
	}
	return ""
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}
