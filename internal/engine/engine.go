package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/triage"
)

// ErrAlreadyRunning is returned when a run is requested while another one is
// active.
var ErrAlreadyRunning = errors.New("a triage run is already in progress")

// Gateway is the mail provider surface the pipeline needs.
type Gateway interface {
	EnsureLabels(ctx context.Context, names ...string) error
	ListMessageIDs(ctx context.Context, query string) ([]string, error)
	FetchDetails(ctx context.Context, ids []string) (map[string]triage.MessageDetail, error)
	LabelID(name string) (string, error)
	ApplyLabel(ctx context.Context, ids []string, labelID string) error
}

// Classifier assigns a classification to one message. It never fails.
type Classifier interface {
	Classify(ctx context.Context, d triage.MessageDetail) triage.Classification
}

// Store persists the run state between runs.
type Store interface {
	Load() (*checkpoint.RunState, error)
	Save(state *checkpoint.RunState) error
	Clear() error
}

// State is the lifecycle state of the engine.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
	// OutcomeEmpty is a completed run whose query matched no messages.
	OutcomeEmpty Outcome = "empty"
)

func (o Outcome) state() State {
	switch o {
	case OutcomeStopped:
		return StateStopped
	case OutcomeFailed:
		return StateFailed
	}
	return StateCompleted
}

// Result summarizes a finished run.
type Result struct {
	RunID   string
	Outcome Outcome
	Done    int
	Total   int
	Counts  map[triage.Classification]int
	// ReportPath is set when a report was written.
	ReportPath string
	Err        error
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	State     State
	RunID     string
	Resume    bool
	Done      int
	Total     int
	StartedAt time.Time
	LastError string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithObserver sets the observer notified by every run.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine runs the triage pipeline. It is safe for concurrent use; at most one
// run is active at a time.
type Engine struct {
	cfg        Config
	gateway    Gateway
	classifier Classifier
	store      Store

	observer Observer
	metrics  *instrumentation.Metrics
	logger   logging.Logger

	now      func() time.Time
	newRunID func() string

	stop atomic.Bool

	mu      sync.Mutex
	running bool
	done    chan struct{}
	result  Result
	status  Status
}

// New returns an idle engine.
func New(cfg Config, gateway Gateway, classifier Classifier, store Store, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	if gateway == nil || classifier == nil || store == nil {
		return nil, fmt.Errorf("gateway, classifier and store are required")
	}

	e := &Engine{
		cfg:        cfg,
		gateway:    gateway,
		classifier: classifier,
		store:      store,
		now:        time.Now,
		newRunID:   uuid.NewString,
		status:     Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	e.logger = logging.OrDefault(e.logger)
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start launches a run in the background and returns immediately. The run
// does not inherit the cancellation of ctx; use Stop to end it early.
func (e *Engine) Start(ctx context.Context, resume bool) error {
	if err := e.acquire(resume); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	go e.execute(ctx, resume)
	return nil
}

// Run executes a run synchronously. Cancelling ctx stops the run like Stop
// does, and additionally aborts in-flight calls. Classifications from aborted
// calls are discarded.
func (e *Engine) Run(ctx context.Context, resume bool) Result {
	if err := e.acquire(resume); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return e.execute(ctx, resume)
}

// Stop asks the active run to stop at its next checkpoint. In-flight calls
// are not interrupted.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// IsRunning reports whether a run is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Wait blocks until the current or most recent run has finished and all of
// its events have been delivered, and returns its result. It returns a zero
// Result if no run was ever started.
func (e *Engine) Wait() Result {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return Result{}
	}
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) acquire(resume bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.done = make(chan struct{})
	e.stop.Store(false)
	e.status = Status{
		State:     StateRunning,
		Resume:    resume,
		StartedAt: e.now(),
	}
	return nil
}

func (e *Engine) release(res Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = res
	e.running = false
	e.status.State = res.Outcome.state()
	e.status.Done = res.Done
	e.status.Total = res.Total
	if res.Err != nil {
		e.status.LastError = res.Err.Error()
	}
	close(e.done)
}

func (e *Engine) setRunID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.RunID = id
}

func (e *Engine) setProgress(done, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Done = done
	e.status.Total = total
}

func (e *Engine) stopRequested(ctx context.Context) bool {
	return e.stop.Load() || ctx.Err() != nil
}

// execute runs the pipeline in the acquired worker slot.
func (e *Engine) execute(ctx context.Context, resume bool) Result {
	id := e.newRunID()
	e.setRunID(id)

	ctx, span := instrumentation.StartRunSpan(ctx, id, resume)
	events := newDispatcher(e.observer)

	r := &run{
		engine: e,
		id:     id,
		resume: resume,
		events: events,
		cache:  newDetailCache(),
	}
	start := time.Now()
	outcome, err := r.pipeline(ctx)
	if err != nil {
		outcome = OutcomeFailed
		e.logger.Error("triage run failed", logging.Run(id), logging.Err(err))
		events.log("ERROR: " + err.Error())
	}

	res := Result{
		RunID:      id,
		Outcome:    outcome,
		Err:        err,
		ReportPath: r.reportPath,
	}
	if r.state != nil {
		res.Done = r.state.Done()
		res.Total = r.state.Total()
		res.Counts = r.state.Counts()
	}

	e.metrics.RecordRun(ctx, string(outcome))
	span.SetAttributes(
		attribute.String(instrumentation.SpanAttrOutcome, string(outcome)),
		attribute.Int(instrumentation.SpanAttrMessageCount, res.Total),
	)
	instrumentation.EndSpan(span, err)
	e.logger.Info("triage run finished",
		logging.Run(id),
		slog.String("outcome", string(outcome)),
		logging.Count(res.Done),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	events.close()
	e.release(res)
	return res
}
