package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Load when no checkpoint exists.
var ErrNotFound = errors.New("checkpoint not found")

// Store reads and writes the single live checkpoint at a fixed path.
type Store struct {
	path string

	// rename is os.Rename outside of tests.
	rename func(oldpath, newpath string) error
}

// NewStore returns a store for the checkpoint file at path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		rename: os.Rename,
	}
}

// Path returns the canonical checkpoint path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a checkpoint file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save durably replaces the checkpoint with state.
func (s *Store) Save(state *RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temporary checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary checkpoint: %w", err)
	}

	if err := s.rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Load returns the last saved state, or ErrNotFound.
func (s *Store) Load() (*RunState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	state := NewRunState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", s.path, err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", s.path, err)
	}
	return state, nil
}

// Clear deletes the checkpoint. A missing checkpoint is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}
