// Package resources provides MCP resources for the triage output. Resources
// are read-only data sources that MCP clients can fetch: the HTML report of
// the last completed run and the raw checkpoint of an interrupted one.
package resources
