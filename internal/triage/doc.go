// Package triage holds the domain types shared by the triage pipeline: the
// two-valued Classification and the transient MessageDetail fetched from the
// mail gateway.
package triage
