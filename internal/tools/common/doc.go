// Package common provides shared utilities for MCP tool implementations:
// instrumentation of tool handlers and JSON result encoding.
package common
