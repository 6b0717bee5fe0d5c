// Package server holds the long-lived state behind the MCP server and the
// HTTP endpoints exposed next to it.
//
// # Key Components
//
// ServerContext owns the triage engine shared by all MCP tool calls, the
// checkpoint store it writes to and a LogBuffer that records the engine's
// progress and log events so that tools can report them on request.
//
// MetricsServer serves Prometheus metrics from the instrumentation
// provider's registry on a dedicated port, together with the health
// endpoints of HealthChecker:
//   - /healthz: liveness
//   - /readyz: readiness, failing while shutting down or draining an
//     active run, and when the saved checkpoint cannot be read
//   - /healthz/detailed: uptime and the state of the triage engine
package server
