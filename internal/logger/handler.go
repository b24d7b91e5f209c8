// Package logger decorates slog records with request-scoped attributes.
package logger

import (
	"context"
	"log/slog"

	"docpipe/internal/middleware"
)

// ContextHandler stamps every record with the request's correlation id, so a
// document submit and the pipeline jobs it spawned share one searchable key.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := middleware.GetCorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
