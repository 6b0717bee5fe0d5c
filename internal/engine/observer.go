package engine

import (
	"sync"

	"github.com/teemow/inboxtriage/internal/triage"
)

// Observer receives the side-channel notifications of a run.
type Observer interface {
	// OnProgress is called once per newly classified message with the
	// cumulative number of classified messages.
	OnProgress(done, total int, c triage.Classification)
	// OnLog is called with a human readable line for every milestone.
	OnLog(msg string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnProgress(int, int, triage.Classification) {}
func (NopObserver) OnLog(string)                               {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(done, total int, c triage.Classification)
	Log      func(msg string)
}

func (o ObserverFuncs) OnProgress(done, total int, c triage.Classification) {
	if o.Progress != nil {
		o.Progress(done, total, c)
	}
}

func (o ObserverFuncs) OnLog(msg string) {
	if o.Log != nil {
		o.Log(msg)
	}
}

// MultiObserver forwards every event to each observer in turn.
type MultiObserver []Observer

func (m MultiObserver) OnProgress(done, total int, c triage.Classification) {
	for _, o := range m {
		o.OnProgress(done, total, c)
	}
}

func (m MultiObserver) OnLog(msg string) {
	for _, o := range m {
		o.OnLog(msg)
	}
}

type event struct {
	log      string
	progress bool
	done     int
	total    int
	class    triage.Classification
}

// dispatcher delivers events to an observer on its own goroutine. The queue
// is unbounded so emitting never blocks, and a single consumer keeps events
// in the order they were emitted.
type dispatcher struct {
	observer Observer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []event
	closed bool

	drained chan struct{}
}

func newDispatcher(o Observer) *dispatcher {
	if o == nil {
		o = NopObserver{}
	}
	d := &dispatcher{
		observer: o,
		drained:  make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *dispatcher) progress(done, total int, c triage.Classification) {
	d.push(event{progress: true, done: done, total: total, class: c})
}

func (d *dispatcher) log(msg string) {
	d.push(event{log: msg})
}

func (d *dispatcher) push(ev event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, ev)
	d.cond.Signal()
}

func (d *dispatcher) loop() {
	defer close(d.drained)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, ev := range batch {
			if ev.progress {
				d.observer.OnProgress(ev.done, ev.total, ev.class)
			} else {
				d.observer.OnLog(ev.log)
			}
		}
	}
}

// close stops accepting events and waits until the queued ones have been
// delivered.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.drained
}
