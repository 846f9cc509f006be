package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "campusfix"

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		// Fallback to default tracer if not initialized
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceIssueFunction starts a new span for an issue service function.
func TraceIssueFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "issue", functionName, attributes...)
}

// TraceSafetyFunction starts a new span for a safety report service function.
func TraceSafetyFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "safety", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceOAuthFunction starts a new span for an OAuth service function.
func TraceOAuthFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "oauth", functionName, attributes...)
}

// TraceStorageFunction starts a new span for a media sink function.
func TraceStorageFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "storage", functionName, attributes...)
}

// TraceTokenCacheFunction starts a new span for a token cache function.
func TraceTokenCacheFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "tokencache", functionName, attributes...)
}

// TraceNotificationFunction starts a new span for a notification function.
func TraceNotificationFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "notification", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeIssueID returns a tracing attribute for an issue ID.
func AttributeIssueID(id int64) attribute.KeyValue {
	return attribute.Int64("issue.id", id)
}

// AttributeReportID returns a tracing attribute for a safety report ID.
func AttributeReportID(id int64) attribute.KeyValue {
	return attribute.Int64("safety_report.id", id)
}

// AttributeProvider returns a tracing attribute for an identity provider name.
func AttributeProvider(provider string) attribute.KeyValue {
	return attribute.String("oauth.provider", provider)
}

// AttributeStatus returns a tracing attribute for a status value.
func AttributeStatus(status string) attribute.KeyValue {
	return attribute.String("status", status)
}

// AttributeLimit returns a tracing attribute for a limit value.
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}

// AttributeSkip returns a tracing attribute for an offset value.
func AttributeSkip(skip int) attribute.KeyValue {
	return attribute.Int("skip", skip)
}

// AttributeSortBy returns a tracing attribute for a sort mode.
func AttributeSortBy(sortBy string) attribute.KeyValue {
	return attribute.String("sort_by", sortBy)
}
