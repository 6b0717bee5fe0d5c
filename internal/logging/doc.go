// Package logging sets up structured logging for inboxtriage and keeps the
// attribute names used across packages consistent.
//
// Library packages depend on the small Logger interface so that tests can
// substitute a recording logger; the command layer builds a *slog.Logger with
// New and hands it down wrapped in a SlogAdapter.
//
//	logger, err := logging.New(logging.Options{Level: "debug", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	logger = logging.WithRun(logger, runID)
//	logger.Info("labels applied", logging.Label("AI/Important"), logging.Count(12))
//
// Sender addresses are personal data. Structured logs carry them only through
// Sender, which hashes the address and keeps the domain.
package logging
