package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	stationIDKey ctxKey = iota
	operationKey
)

// WithStationID returns a context with the station ID set.
func WithStationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, stationIDKey, id)
}

// WithOperation returns a context with the operation name set (create, update, delete, ...).
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey, op)
}

// StationID extracts the station ID from the context, or "" if absent.
func StationID(ctx context.Context) string {
	v, _ := ctx.Value(stationIDKey).(string)
	return v
}

// Operation extracts the operation name from the context, or "" if absent.
func Operation(ctx context.Context) string {
	v, _ := ctx.Value(operationKey).(string)
	return v
}

// LogWith returns a logger enriched with correlation values from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if v := Operation(ctx); v != "" {
		logger = logger.With(slog.String("operation", v))
	}
	if v := StationID(ctx); v != "" {
		logger = logger.With(slog.String("station_id", v))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, injecting correlation values from
// the context into every record. Use with logger.InfoContext(ctx, ...).
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := Operation(ctx); v != "" {
		r.AddAttrs(slog.String("operation", v))
	}
	if v := StationID(ctx); v != "" {
		r.AddAttrs(slog.String("station_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
