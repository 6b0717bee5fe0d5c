package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/teemow/inboxtriage/internal/triage"
)

// RunState is the durable progress of one run.
type RunState struct {
	// AllMessageIDs is the message universe, pinned at first fetch.
	AllMessageIDs []string
	// Processed maps message id to its classification.
	Processed map[string]triage.Classification
	// Labeled holds ids whose label-apply call has been issued.
	Labeled map[string]struct{}
}

// NewRunState returns an empty state.
func NewRunState() *RunState {
	return &RunState{
		Processed: make(map[string]triage.Classification),
		Labeled:   make(map[string]struct{}),
	}
}

// HasUniverse reports whether message ids have been fetched for this run.
func (s *RunState) HasUniverse() bool {
	return len(s.AllMessageIDs) > 0
}

// SetMessageIDs pins the message universe. Duplicate ids are dropped, keeping
// the first occurrence.
func (s *RunState) SetMessageIDs(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	s.AllMessageIDs = out
}

// Total is the size of the message universe.
func (s *RunState) Total() int {
	return len(s.AllMessageIDs)
}

// Done is the number of classified messages.
func (s *RunState) Done() int {
	return len(s.Processed)
}

// Remaining returns the ids of the universe that have not been classified
// yet, in universe order.
func (s *RunState) Remaining() []string {
	var ids []string
	for _, id := range s.AllMessageIDs {
		if _, ok := s.Processed[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Record stores the classification of id. An existing entry is never
// overwritten; the return value reports whether the entry is new.
func (s *RunState) Record(id string, c triage.Classification) bool {
	if _, ok := s.Processed[id]; ok {
		return false
	}
	s.Processed[id] = c
	return true
}

// Unlabeled returns the ids classified as c that have no label applied yet,
// in universe order.
func (s *RunState) Unlabeled(c triage.Classification) []string {
	var ids []string
	for _, id := range s.AllMessageIDs {
		if s.Processed[id] != c {
			continue
		}
		if _, ok := s.Labeled[id]; ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// MarkLabeled records that the label-apply call for ids has been issued.
func (s *RunState) MarkLabeled(ids []string) {
	for _, id := range ids {
		s.Labeled[id] = struct{}{}
	}
}

// IsLabeled reports whether id has been labeled.
func (s *RunState) IsLabeled(id string) bool {
	_, ok := s.Labeled[id]
	return ok
}

// Counts returns the number of processed messages per classification.
func (s *RunState) Counts() map[triage.Classification]int {
	counts := make(map[triage.Classification]int, len(triage.Classifications))
	for _, c := range s.Processed {
		counts[c]++
	}
	return counts
}

// Validate checks the subset invariants between the universe, the processed
// map and the labeled set.
func (s *RunState) Validate() error {
	universe := make(map[string]struct{}, len(s.AllMessageIDs))
	for _, id := range s.AllMessageIDs {
		universe[id] = struct{}{}
	}
	for id, c := range s.Processed {
		if !c.Valid() {
			return fmt.Errorf("message %s has invalid classification %q", id, c)
		}
		if _, ok := universe[id]; !ok {
			return fmt.Errorf("processed message %s is not part of the message universe", id)
		}
	}
	for id := range s.Labeled {
		if _, ok := s.Processed[id]; !ok {
			return fmt.Errorf("labeled message %s has not been processed", id)
		}
	}
	return nil
}

// document is the on-disk shape of a checkpoint.
type document struct {
	AllMessageIDs []string          `json:"all_message_ids"`
	Processed     map[string]string `json:"processed"`
	Labeled       []string          `json:"labeled"`
}

// MarshalJSON encodes the state in the checkpoint layout. Labeled ids are
// written in universe order so that repeated saves are byte-stable.
func (s *RunState) MarshalJSON() ([]byte, error) {
	doc := document{
		AllMessageIDs: s.AllMessageIDs,
		Processed:     make(map[string]string, len(s.Processed)),
		Labeled:       make([]string, 0, len(s.Labeled)),
	}
	if doc.AllMessageIDs == nil {
		doc.AllMessageIDs = []string{}
	}
	for id, c := range s.Processed {
		doc.Processed[id] = string(c)
	}
	for _, id := range s.AllMessageIDs {
		if _, ok := s.Labeled[id]; ok {
			doc.Labeled = append(doc.Labeled, id)
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a checkpoint document. Absent optional fields yield
// the same empty values as NewRunState.
func (s *RunState) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	fresh := NewRunState()
	fresh.AllMessageIDs = doc.AllMessageIDs
	for id, v := range doc.Processed {
		c, err := triage.ParseClassification(v)
		if err != nil {
			return fmt.Errorf("message %s: %w", id, err)
		}
		fresh.Processed[id] = c
	}
	fresh.MarkLabeled(doc.Labeled)

	*s = *fresh
	return nil
}
