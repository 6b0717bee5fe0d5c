package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
)

// Engine is the part of *engine.Engine the server drives.
type Engine interface {
	Start(ctx context.Context, resume bool) error
	Stop()
	IsRunning() bool
	Wait() engine.Result
	Status() engine.Status
}

// ServerContext holds the state shared by all MCP tool handlers.
type ServerContext struct {
	ctx        context.Context
	cancel     context.CancelFunc
	engine     Engine
	checkpoint *checkpoint.Store
	logs       *LogBuffer
	reportPath string
	metrics    *instrumentation.Metrics
	logger     logging.Logger
	mu         sync.RWMutex
	shutdown   bool
}

// NewServerContext creates a server context around an engine whose observer
// is logs.
func NewServerContext(ctx context.Context, eng Engine, store *checkpoint.Store, logs *LogBuffer, reportPath string) (*ServerContext, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if logs == nil {
		logs = NewLogBuffer(DefaultLogBufferSize)
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		engine:     eng,
		checkpoint: store,
		logs:       logs,
		reportPath: reportPath,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

func (sc *ServerContext) Engine() Engine {
	return sc.engine
}

func (sc *ServerContext) Checkpoint() *checkpoint.Store {
	return sc.checkpoint
}

func (sc *ServerContext) Logs() *LogBuffer {
	return sc.logs
}

// SetMetrics sets the recorder used for tool invocations.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the tool metrics recorder, or nil when none is set.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

func (sc *ServerContext) SetLogger(l logging.Logger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.logger = l
}

// Logger returns the configured logger or the slog default.
func (sc *ServerContext) Logger() logging.Logger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return logging.OrDefault(sc.logger)
}

// ReportPath is where completed runs write their report.
func (sc *ServerContext) ReportPath() string {
	return sc.reportPath
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops an active run, waits for it to save its checkpoint and
// cancels the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	sc.mu.Unlock()

	if sc.engine.IsRunning() {
		sc.engine.Stop()
		sc.engine.Wait()
	}
	sc.cancel()
	return nil
}
