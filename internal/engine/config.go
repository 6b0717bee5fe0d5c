package engine

import (
	"fmt"

	"github.com/teemow/inboxtriage/internal/triage"
)

// Mode selects how the messages of one chunk are classified.
type Mode string

const (
	// ModeChunked classifies a chunk on a bounded worker pool and persists
	// progress after every chunk.
	ModeChunked Mode = "chunked"
	// ModeSequential classifies one message at a time, checks for a stop
	// request before every message and persists progress every
	// CheckpointInterval messages.
	ModeSequential Mode = "sequential"
)

const (
	DefaultQuery              = "is:unread"
	DefaultImportantLabel     = "AI/Important"
	DefaultLowPriorityLabel   = "AI/Low Priority"
	DefaultBatchSize          = 25
	DefaultConcurrency        = 4
	DefaultCheckpointInterval = 10
)

// Labels names the Gmail label applied for each classification.
type Labels struct {
	Important   string
	LowPriority string
}

// For returns the label name for c.
func (l Labels) For(c triage.Classification) string {
	if c == triage.LowPriority {
		return l.LowPriority
	}
	return l.Important
}

// Config controls a pipeline run.
type Config struct {
	Query  string
	Labels Labels

	// BatchSize is the number of messages fetched and classified per chunk.
	BatchSize int
	// Concurrency bounds the oracle calls in flight in chunked mode.
	Concurrency int
	Mode        Mode
	// CheckpointInterval is the save cadence of sequential mode.
	CheckpointInterval int
	// Prefetch fetches the details of the next chunk while the current one
	// is being classified.
	Prefetch bool

	// ReportPath is where the HTML report is written. No report is written
	// when empty.
	ReportPath string
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Query: DefaultQuery,
		Labels: Labels{
			Important:   DefaultImportantLabel,
			LowPriority: DefaultLowPriorityLabel,
		},
		BatchSize:          DefaultBatchSize,
		Concurrency:        DefaultConcurrency,
		Mode:               ModeChunked,
		CheckpointInterval: DefaultCheckpointInterval,
		Prefetch:           true,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Query == "" {
		return fmt.Errorf("query must not be empty")
	}
	if c.Labels.Important == "" || c.Labels.LowPriority == "" {
		return fmt.Errorf("both label names must be set")
	}
	if c.Labels.Important == c.Labels.LowPriority {
		return fmt.Errorf("label names must differ, got %q twice", c.Labels.Important)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint interval must be positive, got %d", c.CheckpointInterval)
	}
	switch c.Mode {
	case ModeChunked, ModeSequential:
	default:
		return fmt.Errorf("unknown pipeline mode %q (want %q or %q)", c.Mode, ModeChunked, ModeSequential)
	}
	return nil
}
