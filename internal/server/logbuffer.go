package server

import (
	"sync"

	"github.com/teemow/inboxtriage/internal/triage"
)

// DefaultLogBufferSize is the number of log lines kept by a LogBuffer.
const DefaultLogBufferSize = 200

// Progress is the most recent progress event of a run.
type Progress struct {
	Done           int                   `json:"done"`
	Total          int                   `json:"total"`
	Classification triage.Classification `json:"last_classification,omitempty"`
}

// LogBuffer is an engine observer that keeps the latest log lines in a ring
// and the latest progress event.
type LogBuffer struct {
	mu       sync.Mutex
	lines    []string
	next     int
	full     bool
	progress Progress
}

// NewLogBuffer returns a buffer holding up to size lines.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = DefaultLogBufferSize
	}
	return &LogBuffer{lines: make([]string, size)}
}

func (b *LogBuffer) OnProgress(done, total int, c triage.Classification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress = Progress{Done: done, Total: total, Classification: c}
}

func (b *LogBuffer) OnLog(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[b.next] = msg
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
}

// Tail returns up to n of the most recent lines, oldest first. n <= 0
// returns everything buffered.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var all []string
	if b.full {
		all = append(all, b.lines[b.next:]...)
	}
	all = append(all, b.lines[:b.next]...)

	if n > 0 && n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}

// Progress returns the latest progress event.
func (b *LogBuffer) Progress() Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

// Reset drops all buffered lines and progress.
func (b *LogBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.lines {
		b.lines[i] = ""
	}
	b.next = 0
	b.full = false
	b.progress = Progress{}
}
