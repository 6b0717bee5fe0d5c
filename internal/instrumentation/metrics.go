package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrStatus         = "status"
	attrOperation      = "operation"
	attrService        = "service"
	attrTool           = "tool"
	attrOutcome        = "outcome"
	attrClassification = "classification"
	attrSource         = "source"
	attrLabel          = "label"
)

var (
	fastBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	// Local model inference is slow; the oracle times out at two minutes.
	oracleBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0}
)

// Metrics records pipeline, Google API and MCP tool measurements. The zero
// value is a valid recorder that drops everything.
type Metrics struct {
	runsTotal             metric.Int64Counter
	messagesClassified    metric.Int64Counter
	oracleRequestsTotal   metric.Int64Counter
	oracleDuration        metric.Float64Histogram
	checkpointSavesTotal  metric.Int64Counter
	labelsAppliedTotal    metric.Int64Counter
	googleAPIOperations   metric.Int64Counter
	googleAPIDuration     metric.Float64Histogram
	toolInvocationsTotal  metric.Int64Counter
	toolInvocationSeconds metric.Float64Histogram
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.runsTotal, "triage_runs_total", "Pipeline runs by outcome", "{run}"},
		{&m.messagesClassified, "triage_messages_classified_total", "Messages classified by classification and source", "{message}"},
		{&m.oracleRequestsTotal, "triage_oracle_requests_total", "Classification oracle requests by status", "{request}"},
		{&m.checkpointSavesTotal, "triage_checkpoint_saves_total", "Checkpoint writes by status", "{save}"},
		{&m.labelsAppliedTotal, "triage_labels_applied_total", "Messages a label-apply call was issued for", "{message}"},
		{&m.googleAPIOperations, "google_api_operations_total", "Total number of Google API operations", "{operation}"},
		{&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst     *metric.Float64Histogram
		name    string
		desc    string
		buckets []float64
	}{
		{&m.oracleDuration, "triage_oracle_duration_seconds", "Classification oracle latency in seconds", oracleBuckets},
		{&m.googleAPIDuration, "google_api_operation_duration_seconds", "Google API operation duration in seconds", fastBuckets},
		{&m.toolInvocationSeconds, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds", fastBuckets},
	}
	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(h.buckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
	}

	return m, nil
}

// RecordRun counts a finished pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, outcome string) {
	if m == nil || m.runsTotal == nil {
		return
	}
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, OutcomeValue(outcome))))
}

// RecordClassification counts one recorded classification. source is
// SourceOracle when the oracle answered and SourceFallback when the message
// was marked important without one.
func (m *Metrics) RecordClassification(ctx context.Context, classification, source string) {
	if m == nil || m.messagesClassified == nil {
		return
	}
	m.messagesClassified.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrClassification, classification),
		attribute.String(attrSource, source),
	))
}

// RecordOracleRequest records one oracle call and its latency.
func (m *Metrics) RecordOracleRequest(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.oracleRequestsTotal == nil || m.oracleDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.oracleRequestsTotal.Add(ctx, 1, attrs)
	m.oracleDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) RecordCheckpointSave(ctx context.Context, status string) {
	if m == nil || m.checkpointSavesTotal == nil {
		return
	}
	m.checkpointSavesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordLabelsApplied adds n to the labeled-message counter for label.
func (m *Metrics) RecordLabelsApplied(ctx context.Context, label string, n int) {
	if m == nil || m.labelsAppliedTotal == nil || n <= 0 {
		return
	}
	m.labelsAppliedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrLabel, LabelValue(label))))
}

// RecordGoogleAPIOperation records a Google API call.
//
// Parameters:
//   - service: ServiceGmail
//   - operation: one of the Operation* constants
//   - status: StatusSuccess or StatusError
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperations == nil || m.googleAPIDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperations.Add(ctx, 1, attrs)
	m.googleAPIDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordToolInvocation records an MCP tool call.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolInvocationSeconds == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolInvocationSeconds.Record(ctx, duration.Seconds(), attrs)
}
