package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogWithContextAddsTraceInfo(t *testing.T) {
	// Setup OpenTelemetry
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer("test-tracer")

	// Setup Zap observer
	core, observedLogs := observer.New(zap.InfoLevel)
	zapLogger := zap.New(core)
	logger := &Logger{Logger: zapLogger}

	// Start a span
	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	// Log something with the context
	logger.Info(ctx, "test message", nil)

	// Verify log entry
	requireLogs := observedLogs.All()
	assert.Equal(t, 1, len(requireLogs), "Expected 1 log entry")

	entry := requireLogs[0]
	assert.Equal(t, "test message", entry.Message)

	// Check for trace_id and span_id fields
	fields := entry.ContextMap()
	assert.Contains(t, fields, "trace_id", "Log should contain trace_id")
	assert.Contains(t, fields, "span_id", "Log should contain span_id")

	// Verify values match the span
	spanContext := span.SpanContext()
	assert.Equal(t, spanContext.TraceID().String(), fields["trace_id"])
	assert.Equal(t, spanContext.SpanID().String(), fields["span_id"])
}

func TestLogWithContextNoSpan(t *testing.T) {
	// Setup Zap observer
	core, observedLogs := observer.New(zap.InfoLevel)
	zapLogger := zap.New(core)
	logger := &Logger{Logger: zapLogger}

	// Log without a span
	logger.Info(context.Background(), "test message", nil)

	// Verify log entry
	requireLogs := observedLogs.All()
	assert.Equal(t, 1, len(requireLogs), "Expected 1 log entry")

	entry := requireLogs[0]
	fields := entry.ContextMap()

	// Should not contain trace info
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "span_id")
}

func TestLoggerErrorIncludesErrorAndFields(t *testing.T) {
	core, observedLogs := observer.New(zap.DebugLevel)
	logger := &Logger{Logger: zap.New(core)}

	logger.Error(context.Background(), "failed to upvote issue", assert.AnError,
		map[string]interface{}{"issue_id": int64(7)},
		map[string]interface{}{"attempt": 1},
	)

	entries := observedLogs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, assert.AnError.Error(), fields["error"])
		assert.Equal(t, int64(7), fields["issue_id"])
		assert.EqualValues(t, 1, fields["attempt"])
	}
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info(context.Background(), "dropped")
	logger.Warn(context.Background(), "dropped", nil)
	assert.NoError(t, logger.Sync())
}

func TestLoggerLeavesCallerFieldsUntouched(t *testing.T) {
	tp := trace.NewTracerProvider()
	ctx, span := tp.Tracer("test-tracer").Start(context.Background(), "create-report")
	defer span.End()

	core, observedLogs := observer.New(zap.DebugLevel)
	logger := &Logger{Logger: zap.New(core)}

	fields := map[string]interface{}{"report_id": int64(3)}
	logger.Error(ctx, "notification failed", assert.AnError, fields)
	logger.Warn(ctx, "notification retried", fields, map[string]interface{}{"report_id": int64(4)})

	assert.Equal(t, map[string]interface{}{"report_id": int64(3)}, fields)

	entries := observedLogs.All()
	if assert.Len(t, entries, 2) {
		assert.Contains(t, entries[0].ContextMap(), "trace_id")
		assert.Equal(t, int64(4), entries[1].ContextMap()["report_id"])
		assert.NotContains(t, entries[1].ContextMap(), "error")
	}
}

func TestNewLoggerWithLevel_NilConfig(t *testing.T) {
	logger := NewLoggerWithLevel(nil, zap.DebugLevel)
	assert.NotNil(t, logger)
	logger.Error(context.Background(), "dropped", assert.AnError)
}
