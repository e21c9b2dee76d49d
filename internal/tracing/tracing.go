// Package tracing configures OpenTelemetry tracing for the probe scheduler.
//
// Spans cover the three durable activities (fetch/probe/record) and the
// control-plane mutations; custom span attributes use the `probescheduler.`
// prefix.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "probesched.io/probe-scheduler"

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initializes the OTel trace provider with an OTLP gRPC
// exporter. If endpoint is empty, tracing is disabled: no provider is
// installed, so otel's default no-op provider stays in effect. The returned
// function must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("probe-scheduler"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartWorkflowSpan creates the parent span for one workflow execution tick
// (a single durable loop iteration of an interval or window schedule).
func StartWorkflowSpan(ctx context.Context, scheduleID string, kind string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("probescheduler.schedule_id", scheduleID),
			attribute.String("probescheduler.schedule_kind", kind),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartFetchSpan creates a child span for the Fetch activity.
func StartFetchSpan(ctx context.Context, scheduleID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "activity.fetch",
		trace.WithAttributes(attribute.String("probescheduler.schedule_id", scheduleID)),
	)
}

// StartProbeSpan creates a child span for the Probe activity, following HTTP
// client semantic conventions where practical.
func StartProbeSpan(ctx context.Context, method, url string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "activity.probe",
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", url),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndProbeSpan enriches the probe span with the outcome of the HTTP attempt.
func EndProbeSpan(span trace.Span, status string, statusCode int, attempts int) {
	span.SetAttributes(
		attribute.String("probescheduler.status", status),
		attribute.Int("http.response.status_code", statusCode),
		attribute.Int("probescheduler.attempt_count", attempts),
	)
	span.End()
}

// StartRecordSpan creates a child span for the Record activity.
func StartRecordSpan(ctx context.Context, scheduleID string, runNumber int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "activity.record",
		trace.WithAttributes(
			attribute.String("probescheduler.schedule_id", scheduleID),
			attribute.Int("probescheduler.run_number", runNumber),
		),
	)
}

// StartControlPlaneSpan creates a span for a control-plane mutation
// (create/update/pause/resume/delete on a Target or Schedule).
func StartControlPlaneSpan(ctx context.Context, operation, resourceID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "controlplane."+operation,
		trace.WithAttributes(attribute.String("probescheduler.resource_id", resourceID)),
	)
}
