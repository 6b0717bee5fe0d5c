package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/engine"
)

// fakeEngine runs until Stop is called.
type fakeEngine struct {
	mu      sync.Mutex
	running bool
	stopped chan struct{}
	status  engine.Status
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{status: engine.Status{State: engine.StateIdle}}
}

func (f *fakeEngine) Start(context.Context, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return engine.ErrAlreadyRunning
	}
	f.running = true
	f.stopped = make(chan struct{})
	f.status = engine.Status{State: engine.StateRunning, RunID: "run-1", Done: 2, Total: 9}
	return nil
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		f.running = false
		f.status.State = engine.StateStopped
		close(f.stopped)
	}
}

func (f *fakeEngine) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeEngine) Wait() engine.Result {
	f.mu.Lock()
	stopped := f.stopped
	f.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
	return engine.Result{Outcome: engine.OutcomeStopped}
}

func (f *fakeEngine) Status() engine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func newTestContext(t *testing.T, eng Engine) *ServerContext {
	t.Helper()
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	sc, err := NewServerContext(context.Background(), eng, store, nil, "report.html")
	require.NoError(t, err)
	return sc
}

func TestNewServerContext_RequiresDependencies(t *testing.T) {
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	_, err := NewServerContext(context.Background(), nil, store, nil, "")
	require.Error(t, err)
	_, err = NewServerContext(context.Background(), newFakeEngine(), nil, nil, "")
	require.Error(t, err)
}

func TestServerContext_ShutdownStopsRun(t *testing.T) {
	eng := newFakeEngine()
	sc := newTestContext(t, eng)
	require.NotNil(t, sc.Logs())
	assert.Equal(t, "report.html", sc.ReportPath())

	require.NoError(t, eng.Start(context.Background(), false))
	require.NoError(t, sc.Shutdown())

	assert.True(t, sc.IsShutdown())
	assert.False(t, eng.IsRunning())
	assert.Error(t, sc.Context().Err())

	// Idempotent.
	require.NoError(t, sc.Shutdown())
}

func serveReadiness(t *testing.T, h *HealthChecker) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHealthChecker_Readiness(t *testing.T) {
	sc := newTestContext(t, newFakeEngine())
	h := NewHealthChecker(sc)

	code, resp := serveReadiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"server": healthOK, "checkpoint": healthOK}, resp.Checks)

	require.NoError(t, sc.Shutdown())
	code, resp = serveReadiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthShuttingDown, resp.Status)
	assert.Equal(t, healthShuttingDown, resp.Checks["server"])
}

func TestHealthChecker_DrainingWhileRunSaves(t *testing.T) {
	eng := newFakeEngine()
	sc := newTestContext(t, eng)
	require.NoError(t, eng.Start(context.Background(), false))
	t.Cleanup(eng.Stop)

	// Shutdown has begun but the run has not finished yet.
	sc.mu.Lock()
	sc.shutdown = true
	sc.mu.Unlock()

	code, resp := serveReadiness(t, NewHealthChecker(sc))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthDraining, resp.Status)
	assert.Equal(t, healthDraining, resp.Checks["server"])
}

func TestHealthChecker_UnreadableCheckpoint(t *testing.T) {
	sc := newTestContext(t, newFakeEngine())
	require.NoError(t, os.WriteFile(sc.Checkpoint().Path(), []byte("{not json"), 0o600))

	code, resp := serveReadiness(t, NewHealthChecker(sc))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthNotReady, resp.Status)
	assert.True(t, strings.HasPrefix(resp.Checks["checkpoint"], "unreadable: "), resp.Checks["checkpoint"])
	assert.Equal(t, healthOK, resp.Checks["server"])
}

func TestHealthChecker_DetailedIncludesEngine(t *testing.T) {
	eng := newFakeEngine()
	sc := newTestContext(t, eng)
	require.NoError(t, eng.Start(context.Background(), false))
	t.Cleanup(eng.Stop)

	rec := httptest.NewRecorder()
	NewHealthChecker(sc).DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DetailedHealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Triage)
	assert.Equal(t, "running", resp.Triage.State)
	assert.Equal(t, "run-1", resp.Triage.RunID)
	assert.Equal(t, 2, resp.Triage.Done)
	assert.Equal(t, 9, resp.Triage.Total)
}

func TestHealthChecker_Liveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthChecker(nil).LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
