package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("authgate", "1.2.3", "json", slog.LevelInfo, &buf).Info("hello")

	entry := decode(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "authgate", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.NotContains(t, entry, "trace_id")
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	Setup("authgate", "dev", "text", slog.LevelInfo, &buf).Info("hello")
	assert.Contains(t, buf.String(), "service=authgate")
}

func TestSetupLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "dev", "json", slog.LevelWarn, &buf)
	logger.Info("dropped")
	assert.Zero(t, buf.Len())
	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "dev", "json", slog.LevelDebug, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	logger.With("component", "test").InfoContext(ctx, "traced")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.Equal(t, "test", entry["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLogErrorOops(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "dev", "json", slog.LevelDebug, &buf)

	err := oops.Code("DB_PING_FAILED").With("host", "db").Wrap(errors.New("refused"))
	LogError(context.Background(), logger, "startup failed", err)

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "DB_PING_FAILED", entry["code"])
	assert.Contains(t, entry["error"], "refused")
	ctxAttrs, ok := entry["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "db", ctxAttrs["host"])
}

func TestLogErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "dev", "json", slog.LevelDebug, &buf)

	LogError(context.Background(), logger, "failed", errors.New("boom"))

	entry := decode(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "code")
}
