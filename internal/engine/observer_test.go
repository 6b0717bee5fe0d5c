package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxtriage/internal/triage"
)

// slowObserver blocks on every event until unblocked.
type slowObserver struct {
	recorder
	gate chan struct{}
}

func (s *slowObserver) OnLog(msg string) {
	<-s.gate
	s.recorder.OnLog(msg)
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	obs := &recorder{}
	d := newDispatcher(obs)

	for i := 1; i <= 500; i++ {
		d.progress(i, 500, triage.Important)
		d.log(fmt.Sprintf("line %d", i))
	}
	d.close()

	progress, logs := obs.events()
	require.Len(t, progress, 500)
	require.Len(t, logs, 500)
	for i := range progress {
		assert.Equal(t, i+1, progress[i].done)
		assert.Equal(t, fmt.Sprintf("line %d", i+1), logs[i])
	}
}

func TestDispatcher_DoesNotBlockProducer(t *testing.T) {
	obs := &slowObserver{gate: make(chan struct{})}
	d := newDispatcher(obs)

	emitted := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.log("x")
		}
		close(emitted)
	}()

	select {
	case <-emitted:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked on a stalled observer")
	}

	close(obs.gate)
	d.close()
	_, logs := obs.events()
	assert.Len(t, logs, 100)
}

func TestDispatcher_DropsAfterClose(t *testing.T) {
	obs := &recorder{}
	d := newDispatcher(obs)
	d.log("before")
	d.close()
	d.log("after")

	_, logs := obs.events()
	assert.Equal(t, []string{"before"}, logs)
}

func TestDispatcher_NilObserver(t *testing.T) {
	d := newDispatcher(nil)
	d.log("ignored")
	d.close()
}

func TestObserverAdapters(t *testing.T) {
	var mu sync.Mutex
	var got []string
	funcs := ObserverFuncs{Log: func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	}}
	rec := &recorder{}

	m := MultiObserver{funcs, rec, NopObserver{}}
	m.OnLog("hello")
	m.OnProgress(1, 2, triage.LowPriority)

	assert.Equal(t, []string{"hello"}, got)
	progress, logs := rec.events()
	assert.Equal(t, []string{"hello"}, logs)
	assert.Equal(t, []progressEvent{{done: 1, total: 2, class: triage.LowPriority}}, progress)
}
