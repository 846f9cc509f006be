package observability

import (
	"context"
	"sync"

	"campusfix/internal/config"
	contextutils "campusfix/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	// Set up resource attributes
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}

	// Set up exporter
	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	// Set up meter provider
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// DomainMetrics holds the counters recorded by the services
type DomainMetrics struct {
	IssuesCreated        otelmetric.Int64Counter
	IssueUpvotes         otelmetric.Int64Counter
	SafetyReportsCreated otelmetric.Int64Counter
	MediaUploadFailures  otelmetric.Int64Counter
}

var (
	domainMetrics   *DomainMetrics
	domainMetricsMu sync.RWMutex
)

// InitDomainMetrics (re)creates the domain counters from the global meter provider
func InitDomainMetrics() *DomainMetrics {
	meter := otel.Meter("campusfix")
	m := &DomainMetrics{}
	// Instrument creation only fails on invalid names, which are constant here
	m.IssuesCreated, _ = meter.Int64Counter("campusfix.issues.created",
		otelmetric.WithDescription("Issues reported"))
	m.IssueUpvotes, _ = meter.Int64Counter("campusfix.issues.upvotes",
		otelmetric.WithDescription("Upvotes applied to issues"))
	m.SafetyReportsCreated, _ = meter.Int64Counter("campusfix.safety_reports.created",
		otelmetric.WithDescription("Anonymous safety reports received"))
	m.MediaUploadFailures, _ = meter.Int64Counter("campusfix.media.upload_failures",
		otelmetric.WithDescription("Uploads dropped because the media sink failed"))

	domainMetricsMu.Lock()
	domainMetrics = m
	domainMetricsMu.Unlock()
	return m
}

// Metrics returns the domain counters, creating them lazily
func Metrics() *DomainMetrics {
	domainMetricsMu.RLock()
	m := domainMetrics
	domainMetricsMu.RUnlock()
	if m != nil {
		return m
	}
	return InitDomainMetrics()
}

// RecordIssueCreated counts a new issue by category and severity
func RecordIssueCreated(ctx context.Context, category, severity string) {
	Metrics().IssuesCreated.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("category", category),
		attribute.String("severity", severity),
	))
}

// RecordIssueUpvote counts one upvote
func RecordIssueUpvote(ctx context.Context) {
	Metrics().IssueUpvotes.Add(ctx, 1)
}

// RecordSafetyReportCreated counts a new safety report
func RecordSafetyReportCreated(ctx context.Context, nsfw bool) {
	Metrics().SafetyReportsCreated.Add(ctx, 1, otelmetric.WithAttributes(attribute.Bool("nsfw", nsfw)))
}

// RecordMediaUploadFailure counts a dropped upload for the given backend
func RecordMediaUploadFailure(ctx context.Context, backend string) {
	Metrics().MediaUploadFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("backend", backend)))
}
