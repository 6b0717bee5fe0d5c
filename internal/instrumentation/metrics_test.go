package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilAndZeroValueAreNoOps(t *testing.T) {
	ctx := context.Background()

	for name, m := range map[string]*Metrics{"nil": nil, "zero": {}} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				m.RecordRun(ctx, "completed")
				m.RecordClassification(ctx, "important", SourceOracle)
				m.RecordOracleRequest(ctx, StatusSuccess, time.Second)
				m.RecordCheckpointSave(ctx, StatusError)
				m.RecordLabelsApplied(ctx, "AI/Important", 2)
				m.RecordGoogleAPIOperation(ctx, ServiceGmail, OperationListMessages, StatusSuccess, time.Millisecond)
				m.RecordToolInvocation(ctx, "triage_status", StatusSuccess, time.Millisecond)
			})
		})
	}
}

func TestMetrics_RecordedSeriesAreExported(t *testing.T) {
	provider := newPrometheusProvider(t)
	m := provider.Metrics()
	ctx := context.Background()

	m.RecordOracleRequest(ctx, StatusRejected, 2*time.Second)
	m.RecordGoogleAPIOperation(ctx, ServiceGmail, OperationBatchModify, StatusError, 300*time.Millisecond)
	m.RecordToolInvocation(ctx, "triage_start", StatusSuccess, 10*time.Millisecond)

	body := scrape(t, provider)
	assert.Contains(t, body, "triage_oracle_requests_total")
	assert.Contains(t, body, `status="rejected"`)
	assert.Contains(t, body, "triage_oracle_duration_seconds")
	assert.Contains(t, body, "google_api_operations_total")
	assert.Contains(t, body, `operation="messages.batchModify"`)
	assert.Contains(t, body, "mcp_tool_invocations_total")
	assert.Contains(t, body, `tool="triage_start"`)
}

func TestMetrics_LabelsAppliedIgnoresEmptyBatches(t *testing.T) {
	provider := newPrometheusProvider(t)
	provider.Metrics().RecordLabelsApplied(context.Background(), "AI/Important", 0)

	assert.NotContains(t, scrape(t, provider), "triage_labels_applied_total")
}
