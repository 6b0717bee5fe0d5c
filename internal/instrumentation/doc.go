// Package instrumentation wires OpenTelemetry metrics and tracing into
// inboxtriage.
//
// A Provider owns the meter and tracer providers and a Metrics recorder. The
// recorder is nil-safe: a zero Metrics value (as returned by a disabled
// Provider) silently drops every measurement, so library code can record
// unconditionally.
//
// # Metrics
//
// Pipeline:
//   - triage_runs_total{outcome}
//   - triage_messages_classified_total{classification,source}
//   - triage_oracle_requests_total{status}
//   - triage_oracle_duration_seconds{status}
//   - triage_checkpoint_saves_total{status}
//   - triage_labels_applied_total{label}
//
// Google API:
//   - google_api_operations_total{service,operation,status}
//   - google_api_operation_duration_seconds{service,operation,status}
//
// MCP:
//   - mcp_tool_invocations_total{tool,status}
//   - mcp_tool_duration_seconds{tool,status}
//
// # Tracing
//
// Spans are created per pipeline run (triage.run), per oracle call
// (oracle.classify), per Gmail call (google.gmail.<operation>) and per MCP tool
// call (tool.<name>).
//
// # Configuration
//
// DefaultConfig reads the environment:
//   - INBOXTRIAGE_INSTRUMENTATION_ENABLED (default: true)
//   - INBOXTRIAGE_METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - INBOXTRIAGE_TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: inboxtriage)
package instrumentation
