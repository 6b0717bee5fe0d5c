package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every span created here.
const TracerName = "github.com/teemow/inboxtriage"

// Span attribute keys.
const (
	SpanAttrTool         = "mcp.tool"
	SpanAttrService      = "google.service"
	SpanAttrOperation    = "google.operation"
	SpanAttrRunID        = "triage.run_id"
	SpanAttrResume       = "triage.resume"
	SpanAttrMessageCount = "triage.message_count"
	SpanAttrOutcome      = "triage.outcome"
	SpanAttrModel        = "oracle.model"
)

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartSpan starts an internal span. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartRunSpan starts the root span of a pipeline run.
func StartRunSpan(ctx context.Context, runID string, resume bool) (context.Context, trace.Span) {
	return tracer().Start(ctx, "triage.run", trace.WithAttributes(
		attribute.String(SpanAttrRunID, runID),
		attribute.Bool(SpanAttrResume, resume),
	))
}

// StartOracleSpan starts a client span for one classification request.
func StartOracleSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "oracle.classify",
		trace.WithAttributes(attribute.String(SpanAttrModel, model)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return tracer().Start(ctx, "tool."+toolName,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return tracer().Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records err on span. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// EndSpan sets the status from err and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		SetSpanError(span, err)
	} else {
		SetSpanSuccess(span)
	}
	span.End()
}

// GetTraceID returns the trace id of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
