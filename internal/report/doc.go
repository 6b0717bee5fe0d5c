// Package report renders the HTML summary written at the end of a triage
// run: a summary block with per-classification counts followed by one table
// of messages per classification.
package report
