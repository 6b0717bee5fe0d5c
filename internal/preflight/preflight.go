// Package preflight verifies that a triage run can start: the OAuth client
// secret and a usable token are present, and the oracle serves the
// configured model.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/inboxtriage/internal/google"
)

// Check names.
const (
	CheckClientSecret = "client secret"
	CheckToken        = "token"
	CheckOracle       = "oracle"
)

// AvailabilityChecker probes the classification backend.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context) (bool, string)
}

// Options lists what to verify. Nil or empty fields skip their check.
type Options struct {
	ClientSecretPath string
	Tokens           google.TokenStore
	Oracle           AvailabilityChecker
}

// Result is the outcome of one check.
type Result struct {
	Name    string
	OK      bool
	Message string
}

// Report collects the results of Run in check order.
type Report struct {
	Results []Result
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	for _, res := range r.Results {
		if !res.OK {
			return false
		}
	}
	return true
}

// Err returns nil when every check passed and otherwise an error naming the
// failed checks.
func (r Report) Err() error {
	var failed []string
	for _, res := range r.Results {
		if !res.OK {
			failed = append(failed, fmt.Sprintf("%s: %s", res.Name, res.Message))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failed, "; "))
}

// Run performs every configured check. It does not stop at the first
// failure so that all problems are reported at once.
func Run(ctx context.Context, opts Options) Report {
	var report Report
	if opts.ClientSecretPath != "" {
		report.Results = append(report.Results, checkClientSecret(opts.ClientSecretPath))
	}
	if opts.Tokens != nil {
		report.Results = append(report.Results, checkToken(opts.Tokens))
	}
	if opts.Oracle != nil {
		ok, msg := opts.Oracle.CheckAvailability(ctx)
		report.Results = append(report.Results, Result{Name: CheckOracle, OK: ok, Message: msg})
	}
	return report
}

func checkClientSecret(path string) Result {
	res := Result{Name: CheckClientSecret}
	if _, err := google.LoadConfig(path); err != nil {
		if errors.Is(err, google.ErrNoClientSecret) {
			res.Message = fmt.Sprintf("not found at %s; download an OAuth client for a desktop app from the Google Cloud console", path)
			return res
		}
		res.Message = err.Error()
		return res
	}
	res.OK = true
	res.Message = path
	return res
}

func checkToken(store google.TokenStore) Result {
	res := Result{Name: CheckToken}
	tok, err := store.Load()
	switch {
	case errors.Is(err, google.ErrNoToken):
		res.Message = err.Error()
		return res
	case err != nil:
		res.Message = fmt.Sprintf("failed to read token from %s: %v", store.Location(), err)
		return res
	}

	if !tok.Valid() && tok.RefreshToken == "" {
		res.Message = "token expired and cannot be refreshed; run `inboxtriage auth` again"
		return res
	}
	res.OK = true
	res.Message = store.Location()
	return res
}
