package instrumentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(span sdktrace.ReadOnlySpan) map[string]interface{} {
	out := make(map[string]interface{})
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestStartGoogleAPISpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	ctx, span := StartGoogleAPISpan(context.Background(), ServiceGmail, OperationListMessages)
	assert.NotEmpty(t, GetTraceID(ctx))
	EndSpan(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "google.gmail.messages.list", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, ServiceGmail, attrMap(spans[0])[SpanAttrService])
}

func TestStartRunSpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	_, span := StartRunSpan(context.Background(), "run-42", true)
	EndSpan(span, errors.New("gateway down"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "triage.run", spans[0].Name())
	attrs := attrMap(spans[0])
	assert.Equal(t, "run-42", attrs[SpanAttrRunID])
	assert.Equal(t, true, attrs[SpanAttrResume])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "gateway down", spans[0].Status().Description)
}

func TestStartToolAndOracleSpans(t *testing.T) {
	recorder := withSpanRecorder(t)

	_, tool := StartToolSpan(context.Background(), "triage_status")
	tool.End()
	_, oracle := StartOracleSpan(context.Background(), "qwen2.5-coder:14b")
	oracle.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "tool.triage_status", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, "oracle.classify", spans[1].Name())
	assert.Equal(t, "qwen2.5-coder:14b", attrMap(spans[1])[SpanAttrModel])
}

func TestSetSpanError_NilIsIgnored(t *testing.T) {
	recorder := withSpanRecorder(t)

	_, span := StartSpan(context.Background(), "noop")
	SetSpanError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
