// Package checkpoint persists the progress of a triage run so that an
// interrupted run can be resumed exactly where it stopped.
//
// A single checkpoint is live at a time. It is written as one JSON document:
//
//	{"all_message_ids": [...], "processed": {"id": "important"}, "labeled": [...]}
//
// Writes go to a temporary file in the same directory which is then renamed
// over the canonical path, so readers never observe a partial document.
package checkpoint
