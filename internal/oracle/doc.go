// Package oracle classifies messages with a local Ollama model.
//
// Classify never fails: transport errors, timeouts, an open circuit breaker
// and unrecognized answers all resolve to triage.Important, so a message is
// only ever demoted on an explicit UNIMPORTANT answer. See Decide.
package oracle
