// Package observability wires OpenTelemetry tracing, metrics and zap logging
// for the campusfix backend. Log records carry the active trace and span ids.
package observability

import (
	"context"
	"os"

	"campusfix/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger whose level methods take a context and field maps
type Logger struct {
	*zap.Logger
}

// NewLogger logs at info level
func NewLogger(cfg *config.OpenTelemetryConfig) *Logger {
	return NewLoggerWithLevel(cfg, zap.InfoLevel)
}

// NewNopLogger returns a logger that discards everything, for tests and tools
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ParseLevel maps server.log_level onto a zap level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.InfoLevel
	}
	return lvl
}

// NewLoggerWithLevel writes JSON to stdout and, when open_telemetry.enable_logging
// is set with an endpoint, also ships every record over OTLP/gRPC.
// A nil cfg yields a no-op logger.
func NewLoggerWithLevel(cfg *config.OpenTelemetryConfig, level zapcore.Level) *Logger {
	if cfg == nil {
		return NewNopLogger()
	}

	base := stdoutLogger(level)
	if !cfg.EnableLogging || cfg.Endpoint == "" {
		return &Logger{Logger: base}
	}

	otlpCore, err := newOTLPCore(cfg)
	if err != nil {
		base.Warn("OTLP log export disabled", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: base}
	}
	base.Info("OTLP log export enabled", zap.String("endpoint", cfg.Endpoint))
	return &Logger{Logger: zap.New(zapcore.NewTee(base.Core(), otlpCore))}
}

func stdoutLogger(level zapcore.Level) *zap.Logger {
	zc := zap.NewProductionConfig()
	if os.Getenv("ENV") == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func newOTLPCore(cfg *config.OpenTelemetryConfig) (zapcore.Core, error) {
	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(cfg.Endpoint),
		otlploggrpc.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)
	return otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(provider)), nil
}

// Debug logs at debug level
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.Logger.Debug(msg, zapFields(ctx, nil, fields)...)
}

// Info logs at info level
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.Logger.Info(msg, zapFields(ctx, nil, fields)...)
}

// Warn logs at warn level
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.Logger.Warn(msg, zapFields(ctx, nil, fields)...)
}

// Error logs at error level; err is recorded under "error"
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Logger.Error(msg, zapFields(ctx, err, fields)...)
}

// zapFields flattens the field maps, later maps winning on key clashes.
// The caller's maps are never modified.
func zapFields(ctx context.Context, err error, maps []map[string]interface{}) []zap.Field {
	merged := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	if err != nil {
		merged["error"] = err.Error()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		merged["trace_id"] = sc.TraceID().String()
		merged["span_id"] = sc.SpanID().String()
	}

	out := make([]zap.Field, 0, len(merged))
	for k, v := range merged {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
