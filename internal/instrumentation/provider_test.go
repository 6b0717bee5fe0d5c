package instrumentation

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrometheusProvider(t *testing.T) *Provider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	handler := provider.PrometheusHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test-service"})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	assert.NotNil(t, provider.Metrics())
	assert.Nil(t, provider.PrometheusHandler())
	assert.NotNil(t, provider.Tracer("test"))
	assert.NoError(t, provider.Shutdown(context.Background()))

	// The disabled recorder accepts measurements.
	provider.Metrics().RecordRun(context.Background(), "completed")
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	provider := newPrometheusProvider(t)

	assert.True(t, provider.Enabled())
	assert.NotNil(t, provider.Tracer("test"))

	ctx := context.Background()
	provider.Metrics().RecordRun(ctx, "completed")
	provider.Metrics().RecordClassification(ctx, "important", SourceOracle)
	provider.Metrics().RecordLabelsApplied(ctx, "AI/Important", 3)

	body := scrape(t, provider)
	assert.Contains(t, body, "triage_runs_total")
	assert.Contains(t, body, "triage_messages_classified_total")
	assert.Contains(t, body, "triage_labels_applied_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewProvider_TwoProvidersDoNotCollide(t *testing.T) {
	first := newPrometheusProvider(t)
	second := newPrometheusProvider(t)

	first.Metrics().RecordCheckpointSave(context.Background(), StatusSuccess)

	assert.Contains(t, scrape(t, first), "triage_checkpoint_saves_total")
	assert.NotContains(t, scrape(t, second), "triage_checkpoint_saves_total")
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		Enabled:         true,
		MetricsExporter: ExporterStdout,
		TracingExporter: ExporterStdout,
	})
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(ctx) }()

	assert.True(t, provider.Enabled())
	assert.Nil(t, provider.PrometheusHandler())
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "metrics exporter", config: Config{Enabled: true, MetricsExporter: "invalid", TracingExporter: ExporterNone}},
		{name: "tracing exporter", config: Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: "invalid"}},
		{name: "otlp without endpoint", config: Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			assert.Error(t, err)
		})
	}
}
