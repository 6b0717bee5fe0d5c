// Package cmd implements the command-line interface for inboxtriage.
//
// This package provides the following commands:
//   - run: Classify and label the messages matching the query (default)
//   - check: Verify credentials and the Ollama model
//   - auth: Authorize access to Gmail and store the OAuth token
//   - checkpoint show|clear: Inspect or discard an interrupted run
//   - serve: Start the MCP server to let AI assistants drive runs
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The run command is the default command when no subcommand is specified.
package cmd
