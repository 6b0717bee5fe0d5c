package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/report"
	"github.com/teemow/inboxtriage/internal/triage"
)

const subjectLogLimit = 60

// run holds the state owned by the worker for the duration of one run.
type run struct {
	engine *Engine
	id     string
	resume bool
	events *dispatcher

	state *checkpoint.RunState
	cache *detailCache
	// unsaved counts classifications recorded since the last save.
	unsaved int

	reportPath string
}

func (r *run) log(format string, args ...interface{}) {
	r.events.log(fmt.Sprintf(format, args...))
}

func (r *run) pipeline(ctx context.Context) (Outcome, error) {
	e := r.engine
	cfg := e.cfg

	if err := r.acquireState(); err != nil {
		return "", err
	}

	r.log("Ensuring Gmail labels exist...")
	if err := e.gateway.EnsureLabels(ctx, cfg.Labels.Important, cfg.Labels.LowPriority); err != nil {
		return "", fmt.Errorf("failed to ensure labels: %w", err)
	}

	if !r.state.HasUniverse() {
		r.log("Fetching message IDs (query: %s)...", cfg.Query)
		ids, err := e.gateway.ListMessageIDs(ctx, cfg.Query)
		if err != nil {
			return "", fmt.Errorf("failed to list messages: %w", err)
		}
		r.state.SetMessageIDs(ids)
		if err := r.save(ctx); err != nil {
			return "", err
		}
		r.log("Found %d messages.", r.state.Total())
	}

	total := r.state.Total()
	e.setProgress(r.state.Done(), total)
	if total == 0 {
		r.log("No messages found.")
		if err := e.store.Clear(); err != nil {
			return "", fmt.Errorf("failed to clear checkpoint: %w", err)
		}
		return OutcomeEmpty, nil
	}

	remaining := r.state.Remaining()
	r.log("Classifying %d remaining messages...", len(remaining))

	stopped, err := r.classifyAll(ctx, chunk(remaining, cfg.BatchSize))
	if err != nil {
		return "", err
	}
	if stopped || e.stopRequested(ctx) {
		return r.stopRun(ctx)
	}

	if err := r.save(ctx); err != nil {
		return "", err
	}
	r.log("Classification complete. Applying labels...")

	if err := r.applyLabels(ctx); err != nil {
		return "", err
	}
	if err := r.writeReport(ctx); err != nil {
		return "", err
	}

	if err := e.store.Clear(); err != nil {
		return "", fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	r.log("Done!")
	return OutcomeCompleted, nil
}

func (r *run) acquireState() error {
	store := r.engine.store

	if !r.resume {
		r.state = checkpoint.NewRunState()
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
		return nil
	}

	state, err := store.Load()
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		r.log("No checkpoint found. Starting fresh.")
		r.state = checkpoint.NewRunState()
	case err != nil:
		return fmt.Errorf("failed to load checkpoint: %w", err)
	default:
		r.state = state
		r.log("Resumed: %d/%d already done.", state.Done(), state.Total())
	}
	return nil
}

func (r *run) save(ctx context.Context) error {
	err := r.engine.store.Save(r.state)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	r.engine.metrics.RecordCheckpointSave(ctx, status)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	r.unsaved = 0
	return nil
}

func (r *run) stopRun(ctx context.Context) (Outcome, error) {
	if err := r.save(ctx); err != nil {
		return "", err
	}
	r.log("Stopped by user. Checkpoint saved.")
	return OutcomeStopped, nil
}

// classifyAll processes the chunks in order. It reports whether the run was
// stopped before all chunks were classified.
func (r *run) classifyAll(ctx context.Context, chunks [][]string) (bool, error) {
	e := r.engine

	var next *prefetch
	defer func() {
		if next != nil {
			next.cancel()
		}
	}()

	for k, ids := range chunks {
		if e.stopRequested(ctx) {
			return true, nil
		}

		var (
			details map[string]triage.MessageDetail
			err     error
		)
		if next != nil {
			details, err = next.wait()
			next = nil
		} else {
			details, err = e.gateway.FetchDetails(ctx, ids)
		}
		if err != nil {
			return false, fmt.Errorf("failed to fetch message details: %w", err)
		}
		r.cache.merge(ids, details)

		if e.cfg.Prefetch && k+1 < len(chunks) {
			next = startPrefetch(ctx, e.gateway, chunks[k+1])
		}

		if e.cfg.Mode == ModeSequential {
			stopped, err := r.classifySequential(ctx, ids, details)
			if stopped || err != nil {
				return stopped, err
			}
			continue
		}

		if r.classifyConcurrent(ctx, ids, details) {
			return true, nil
		}
		if err := r.save(ctx); err != nil {
			return false, err
		}
	}
	return false, nil
}

// classifyConcurrent classifies one chunk on a bounded pool and records the
// results in chunk order once every call has returned. If ctx was cancelled
// while the calls were in flight, nothing from the chunk is recorded and it
// reports true.
func (r *run) classifyConcurrent(ctx context.Context, ids []string, details map[string]triage.MessageDetail) bool {
	results := make([]triage.Classification, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(r.engine.cfg.Concurrency)
	for i, id := range ids {
		d, ok := details[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			results[i] = r.engine.classifier.Classify(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	// Aborted oracle calls fail safe to important and must not be persisted.
	if ctx.Err() != nil {
		return true
	}

	for i, id := range ids {
		if results[i] == "" {
			r.recordFallback(ctx, id)
			continue
		}
		r.record(ctx, id, results[i], details[id].Subject, instrumentation.SourceOracle)
	}
	return false
}

// classifySequential classifies one message at a time, checking for a stop
// request before each one.
func (r *run) classifySequential(ctx context.Context, ids []string, details map[string]triage.MessageDetail) (bool, error) {
	e := r.engine
	for _, id := range ids {
		if e.stopRequested(ctx) {
			return true, nil
		}

		d, ok := details[id]
		if ok {
			c := e.classifier.Classify(ctx, d)
			if ctx.Err() != nil {
				return true, nil
			}
			r.record(ctx, id, c, d.Subject, instrumentation.SourceOracle)
		} else {
			r.recordFallback(ctx, id)
		}

		if r.unsaved >= e.cfg.CheckpointInterval {
			if err := r.save(ctx); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// recordFallback marks a message whose details could not be fetched as
// important without consulting the oracle.
func (r *run) recordFallback(ctx context.Context, id string) {
	r.engine.logger.Warn("message details unavailable, defaulting to important",
		logging.Run(r.id), logging.Message(id))
	r.log("Could not fetch details for %s, marking as important.", id)
	r.record(ctx, id, triage.Important, "", instrumentation.SourceFallback)
}

func (r *run) record(ctx context.Context, id string, c triage.Classification, subject, source string) {
	if !r.state.Record(id, c) {
		return
	}
	r.unsaved++

	done, total := r.state.Done(), r.state.Total()
	r.engine.setProgress(done, total)
	r.engine.metrics.RecordClassification(ctx, string(c), source)
	r.events.progress(done, total, c)
	r.log("[%d/%d] %s: %s", done, total, strings.ToUpper(string(c)), triage.Truncate(subject, subjectLogLimit))
}

func (r *run) applyLabels(ctx context.Context) error {
	e := r.engine
	for _, c := range triage.Classifications {
		ids := r.state.Unlabeled(c)
		if len(ids) == 0 {
			continue
		}

		name := e.cfg.Labels.For(c)
		labelID, err := e.gateway.LabelID(name)
		if err != nil {
			return fmt.Errorf("failed to resolve label %q: %w", name, err)
		}

		r.log("Applying '%s' to %d messages...", name, len(ids))
		if err := e.gateway.ApplyLabel(ctx, ids, labelID); err != nil {
			return fmt.Errorf("failed to apply label %q: %w", name, err)
		}
		r.state.MarkLabeled(ids)
		e.metrics.RecordLabelsApplied(ctx, name, len(ids))

		if err := r.save(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) writeReport(ctx context.Context) error {
	e := r.engine
	if e.cfg.ReportPath == "" {
		return nil
	}

	var missing []string
	for _, id := range r.state.AllMessageIDs {
		if _, ok := r.state.Processed[id]; ok && !r.cache.has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		r.log("Fetching details for report...")
		details, err := e.gateway.FetchDetails(ctx, missing)
		if err != nil {
			return fmt.Errorf("failed to fetch details for report: %w", err)
		}
		r.cache.merge(missing, details)
	}

	err := report.WriteFile(e.cfg.ReportPath, report.Data{
		RunID:       r.id,
		GeneratedAt: e.now(),
		Processed:   r.state.Processed,
		Details:     r.cache.ordered(),
	})
	if err != nil {
		return err
	}
	r.reportPath = e.cfg.ReportPath
	r.log("Report saved to %s", e.cfg.ReportPath)
	return nil
}

// chunk splits ids into consecutive slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for size < len(ids) {
		ids, chunks = ids[size:], append(chunks, ids[:size:size])
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// prefetch is the single outstanding detail fetch for the next chunk.
type prefetch struct {
	cancel  context.CancelFunc
	done    chan struct{}
	details map[string]triage.MessageDetail
	err     error
}

func startPrefetch(ctx context.Context, gw Gateway, ids []string) *prefetch {
	ctx, cancel := context.WithCancel(ctx)
	p := &prefetch{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.details, p.err = gw.FetchDetails(ctx, ids)
	}()
	return p
}

func (p *prefetch) wait() (map[string]triage.MessageDetail, error) {
	<-p.done
	p.cancel()
	return p.details, p.err
}

// detailCache keeps fetched details in insertion order.
type detailCache struct {
	order []string
	byID  map[string]triage.MessageDetail
}

func newDetailCache() *detailCache {
	return &detailCache{byID: make(map[string]triage.MessageDetail)}
}

// merge adds the details of ids, in the order of ids, skipping ids that are
// absent from details or already cached.
func (c *detailCache) merge(ids []string, details map[string]triage.MessageDetail) {
	for _, id := range ids {
		d, ok := details[id]
		if !ok || c.has(id) {
			continue
		}
		c.order = append(c.order, id)
		c.byID[id] = d
	}
}

func (c *detailCache) has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *detailCache) ordered() []triage.MessageDetail {
	out := make([]triage.MessageDetail, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
