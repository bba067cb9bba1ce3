package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", StationID(ctx))
	assert.Equal(t, "", Operation(ctx))

	ctx = WithStationID(ctx, "st-123")
	ctx = WithOperation(ctx, "update")

	assert.Equal(t, "st-123", StationID(ctx))
	assert.Equal(t, "update", Operation(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithOperation(WithStationID(context.Background(), "st-abc"), "delete")
	LogWith(ctx, logger).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "station_id=st-abc")
	assert.Contains(t, output, "operation=delete")
	assert.Contains(t, output, "test message")
}

func TestLogWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogWith(context.Background(), logger).Info("no context")

	output := buf.String()
	assert.NotContains(t, output, "station_id")
	assert.NotContains(t, output, "operation")
	assert.Contains(t, output, "no context")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithOperation(WithStationID(context.Background(), "st-auto"), "create")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"station_id":"st-auto"`)
	assert.Contains(t, output, `"operation":"create"`)
	assert.Contains(t, output, "auto inject")
}

func TestCorrelationHandlerPartialContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(WithStationID(context.Background(), "st-only"), "partial")

	output := buf.String()
	assert.Contains(t, output, `"station_id":"st-only"`)
	assert.NotContains(t, output, "operation")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "store")}))

	logger.InfoContext(WithStationID(context.Background(), "st-attr"), "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"station_id":"st-attr"`)
	assert.Contains(t, output, `"component":"store"`)
}
