// Package triage_tools exposes the triage engine as MCP tools.
//
// Tools:
//   - triage_start: start a run, optionally resuming from the checkpoint
//   - triage_stop: request a cooperative stop of the active run
//   - triage_status: engine state, progress and recent log lines
//   - triage_checkpoint: summary of the saved checkpoint
//   - triage_clear: delete the checkpoint (refused while a run is active)
package triage_tools
