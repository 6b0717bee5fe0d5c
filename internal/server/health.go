package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/teemow/inboxtriage/internal/checkpoint"
)

const (
	healthOK           = "ok"
	healthNotReady     = "not ready"
	healthShuttingDown = "shutting down"
	// healthDraining is reported while shutdown waits for the active run to
	// save its checkpoint.
	healthDraining = "draining"
)

// HealthChecker serves the liveness and readiness endpoints. Readiness
// follows the server context and the triage engine: the server stops being
// ready once shutdown begins or when the saved checkpoint cannot be read.
type HealthChecker struct {
	sc      *ServerContext
	started time.Time
}

func NewHealthChecker(sc *ServerContext) *HealthChecker {
	return &HealthChecker{sc: sc, started: time.Now()}
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
	Triage *TriageState      `json:"triage,omitempty"`
}

// TriageState summarizes the engine in health responses.
type TriageState struct {
	State     string `json:"state"`
	RunID     string `json:"run_id,omitempty"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	LastError string `json:"last_error,omitempty"`
}

func (h *HealthChecker) triageState() *TriageState {
	if h.sc == nil {
		return nil
	}
	st := h.sc.Engine().Status()
	return &TriageState{
		State:     string(st.State),
		RunID:     st.RunID,
		Done:      st.Done,
		Total:     st.Total,
		LastError: st.LastError,
	}
}

// readiness evaluates every check and returns the overall status. A failed
// run does not affect readiness; it is visible in the detailed response.
func (h *HealthChecker) readiness() (string, map[string]string) {
	if h.sc == nil {
		return healthOK, nil
	}

	checks := map[string]string{
		"server":     healthOK,
		"checkpoint": checkCheckpoint(h.sc.Checkpoint()),
	}
	status := healthOK

	if h.sc.IsShutdown() {
		status = healthShuttingDown
		checks["server"] = healthShuttingDown
		if h.sc.Engine().IsRunning() {
			status = healthDraining
			checks["server"] = healthDraining
		}
	}
	if checks["checkpoint"] != healthOK && status == healthOK {
		status = healthNotReady
	}
	return status, checks
}

// checkCheckpoint reports whether a saved checkpoint can be resumed. A
// missing checkpoint is fine.
func checkCheckpoint(store *checkpoint.Store) string {
	if store == nil {
		return healthOK
	}
	if _, err := store.Load(); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		return "unreadable: " + err.Error()
	}
	return healthOK
}

func writeHealth(w http.ResponseWriter, status string, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if status == healthOK {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// LivenessHandler serves /healthz. It only reports that the process answers.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, healthOK, HealthResponse{Status: healthOK})
	})
}

// ReadinessHandler serves /readyz.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, checks := h.readiness()
		writeHealth(w, status, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler serves /healthz/detailed.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, checks := h.readiness()
		writeHealth(w, status, DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.started).Truncate(time.Second).String(),
			Checks: checks,
			Triage: h.triageState(),
		})
	})
}

// RegisterHealthEndpoints mounts the health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
