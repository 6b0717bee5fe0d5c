// Package tui renders a triage run in the terminal with bubbletea: a progress
// bar, per-class counters and a scrolling log. Pressing q or ctrl+c asks the
// engine to stop; the run saves its checkpoint and the UI exits once the
// engine has finished.
package tui
