package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is reported as service.name (default: inboxtriage).
	ServiceName string

	ServiceVersion string

	// ServiceInstanceID defaults to the hostname when empty.
	ServiceInstanceID string

	// Enabled turns metrics and tracing on. A disabled provider hands out a
	// no-op recorder and tracer.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio sampler argument, 0.0 to 1.0.
	TraceSamplingRate float64

	// PrometheusEndpoint is the scrape path served by the metrics server.
	PrometheusEndpoint string
}

// DefaultConfig returns the configuration described by the environment.
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "inboxtriage"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:            getEnvBoolOrDefault("INBOXTRIAGE_INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    getEnvOrDefault("INBOXTRIAGE_METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    getEnvOrDefault("INBOXTRIAGE_TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: getEnvOrDefault("INBOXTRIAGE_PROMETHEUS_ENDPOINT", "/metrics"),
	}
}

// Validate checks exporter names, the sampling rate and the OTLP endpoint.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Label values shared by metrics and spans.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	// StatusRejected marks oracle calls short-circuited by the circuit breaker.
	StatusRejected = "rejected"

	ServiceGmail = "gmail"

	// Classification sources.
	SourceOracle   = "oracle"
	SourceFallback = "fallback"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
