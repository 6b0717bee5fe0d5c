package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/triage"
)

var quiet = logging.NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))

type applyCall struct {
	labelID string
	ids     []string
}

// fakeGateway serves a fixed mailbox and records every call.
type fakeGateway struct {
	mu sync.Mutex

	ids     []string
	details map[string]triage.MessageDetail
	labels  map[string]string

	listErr   error
	fetchErr  error
	ensureErr error

	ensureCalls [][]string
	listCalls   int
	fetchCalls  [][]string
	applyCalls  []applyCall
}

func newFakeGateway(n int) *fakeGateway {
	g := &fakeGateway{
		details: make(map[string]triage.MessageDetail),
		labels:  make(map[string]string),
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("m%02d", i)
		subject := fmt.Sprintf("Message %d", i)
		if i%3 == 0 {
			subject = fmt.Sprintf("Big sale %d", i)
		}
		g.ids = append(g.ids, id)
		g.details[id] = triage.MessageDetail{ID: id, From: "sender@example.com", Subject: subject, Date: "today"}
	}
	return g
}

func (g *fakeGateway) EnsureLabels(_ context.Context, names ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureCalls = append(g.ensureCalls, names)
	if g.ensureErr != nil {
		return g.ensureErr
	}
	for _, name := range names {
		if _, ok := g.labels[name]; !ok {
			g.labels[name] = "Label_" + strings.ReplaceAll(name, " ", "_")
		}
	}
	return nil
}

func (g *fakeGateway) ListMessageIDs(context.Context, string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]string(nil), g.ids...), nil
}

func (g *fakeGateway) FetchDetails(_ context.Context, ids []string) (map[string]triage.MessageDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls = append(g.fetchCalls, append([]string(nil), ids...))
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make(map[string]triage.MessageDetail, len(ids))
	for _, id := range ids {
		if d, ok := g.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (g *fakeGateway) LabelID(name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.labels[name]
	if !ok {
		return "", fmt.Errorf("label %q not found", name)
	}
	return id, nil
}

func (g *fakeGateway) ApplyLabel(_ context.Context, ids []string, labelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applyCalls = append(g.applyCalls, applyCall{labelID: labelID, ids: append([]string(nil), ids...)})
	return nil
}

func (g *fakeGateway) fetches() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]string(nil), g.fetchCalls...)
}

func (g *fakeGateway) applied() []applyCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]applyCall(nil), g.applyCalls...)
}

// fakeClassifier marks subjects containing "sale" as low priority.
type fakeClassifier struct {
	mu    sync.Mutex
	calls map[string]int
	// hook runs after every classification with the total call count.
	hook func(n int)
	n    int
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{calls: make(map[string]int)}
}

func (c *fakeClassifier) Classify(_ context.Context, d triage.MessageDetail) triage.Classification {
	c.mu.Lock()
	c.calls[d.ID]++
	c.n++
	n, hook := c.n, c.hook
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if strings.Contains(strings.ToLower(d.Subject), "sale") {
		return triage.LowPriority
	}
	return triage.Important
}

func (c *fakeClassifier) classified() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.calls))
	for k, v := range c.calls {
		out[k] = v
	}
	return out
}

func (c *fakeClassifier) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// memStore keeps the encoded checkpoint in memory.
type memStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

func (s *memStore) Load() (*checkpoint.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, checkpoint.ErrNotFound
	}
	state := checkpoint.NewRunState()
	if err := json.Unmarshal(s.data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *memStore) Save(state *checkpoint.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

func (s *memStore) exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data != nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) put(state *checkpoint.RunState) {
	if err := s.Save(state); err != nil {
		panic(err)
	}
}

var errBoom = errors.New("boom")

type progressEvent struct {
	done, total int
	class       triage.Classification
}

// recorder is an Observer that keeps every event.
type recorder struct {
	mu       sync.Mutex
	progress []progressEvent
	logs     []string
}

func (r *recorder) OnProgress(done, total int, c triage.Classification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progressEvent{done, total, c})
}

func (r *recorder) OnLog(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, msg)
}

func (r *recorder) events() ([]progressEvent, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progressEvent(nil), r.progress...), append([]string(nil), r.logs...)
}
