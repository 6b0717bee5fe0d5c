// Package engine implements the resumable triage pipeline.
//
// A run enumerates the messages matching a query, classifies every message
// that has not been classified yet, applies one Gmail label per
// classification and writes an HTML report. Progress is checkpointed after
// every unit of work so that a stopped, failed or crashed run resumes exactly
// where it left off without repeating oracle calls or label changes.
//
// The engine has a single worker slot. Start launches a run in the
// background; Stop requests cooperative cancellation which is observed
// before the next chunk (or the next message in sequential mode). Progress
// and log events are delivered to an Observer in production order without
// ever blocking the worker.
package engine
