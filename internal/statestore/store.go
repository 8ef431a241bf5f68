// Package statestore persists PipelineState atomically under a project's
// .orchestrator directory, guarded by a cross-process file lock.
package statestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long Load/Save wait to acquire the
// cross-process lock before giving up.
const DefaultLockTimeout = 5 * time.Second

const stateFileName = "state.json"

// Store persists PipelineState documents under dir (conventionally
// <project>/.orchestrator).
type Store struct {
	dir           string
	lockTimeout   time.Duration
	lastVersion   int
	lastVersionOK bool
}

// New returns a Store rooted at dir. dir is created if it does not exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating state dir %s: %v", ErrIoError, dir, err)
	}
	return &Store{dir: dir, lockTimeout: DefaultLockTimeout}, nil
}

func (s *Store) statePath() string {
	return filepath.Join(s.dir, stateFileName)
}

// Load reads and validates the current PipelineState. A missing file is
// not an error: callers get a freshly initialised state so `run` can
// bootstrap a new project from nothing.
func (s *Store) Load() (*PipelineState, error) {
	var out *PipelineState
	err := s.withLock(false, func() error {
		path := s.statePath()
		s.sweepOrphanTemp()

		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			out = NewState()
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrIoError, path, err)
		}

		var state PipelineState
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&state); err != nil {
			return fmt.Errorf("%w: decoding %s: %v", ErrStateCorruption, path, err)
		}
		if err := state.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrStateCorruption, err)
		}
		s.lastVersion, s.lastVersionOK = state.Version, true
		out = &state
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save validates and atomically persists state: write to a temp file in
// the same directory, fsync it, then rename over the canonical path.
// Rejects saves whose Version is behind the version last observed on
// disk by this Store (optimistic concurrency).
func (s *Store) Save(state *PipelineState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: refusing to save invalid state: %v", ErrStateCorruption, err)
	}
	return s.withLock(true, func() error {
		if s.lastVersionOK && state.Version < s.lastVersion {
			return fmt.Errorf("%w: save version %d behind observed version %d", ErrVersionConflict, state.Version, s.lastVersion)
		}
		state.UpdatedAt = time.Now()
		if err := s.atomicWrite(s.statePath(), state); err != nil {
			return err
		}
		s.lastVersion, s.lastVersionOK = state.Version, true
		return nil
	})
}

// Snapshot writes a labelled, point-in-time copy of state into the
// snapshots subdirectory of the state directory (e.g.
// snapshots/snapshot-fatal-20260730T120000.json) without touching the
// canonical state or its version bookkeeping. Used before exiting on
// state corruption or an unreadable store.
func (s *Store) Snapshot(state *PipelineState, label string) (string, error) {
	dir := filepath.Join(s.dir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating snapshot dir %s: %v", ErrIoError, dir, err)
	}
	name := fmt.Sprintf("snapshot-%s-%s.json", label, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)
	if err := s.atomicWrite(path, state); err != nil {
		return "", err
	}
	return path, nil
}

// atomicWrite marshals v to temp+rename at path. Save calls it with the
// store's lock held; Snapshot calls it without the lock, writing to a
// file name of its own.
func (s *Store) atomicWrite(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling: %v", ErrIoError, err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating temp file %s: %v", ErrIoError, tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: writing temp file %s: %v", ErrIoError, tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: fsyncing temp file %s: %v", ErrIoError, tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: closing temp file %s: %v", ErrIoError, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: renaming %s to %s: %v", ErrIoError, tmp, path, err)
	}
	return nil
}

// sweepOrphanTemp removes a leftover <state>.tmp file from a process
// killed between write and rename (I4: the canonical file is never
// touched by a partial write, so the orphan is simply garbage).
func (s *Store) sweepOrphanTemp() {
	os.Remove(s.statePath() + ".tmp")
}

// withLock runs fn under the store's cross-process file lock, exclusive
// when write is true, shared otherwise.
func (s *Store) withLock(write bool, fn func() error) error {
	lockPath := s.statePath() + ".lock"
	fl := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()

	var locked bool
	var err error
	if write {
		locked, err = fl.TryLockContext(ctx, 100*time.Millisecond)
	} else {
		locked, err = fl.TryRLockContext(ctx, 100*time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("%w: acquiring lock on %s: %v", ErrIoError, lockPath, err)
	}
	if !locked {
		return fmt.Errorf("%w: timed out acquiring lock on %s", ErrIoError, lockPath)
	}
	defer fl.Unlock()

	return fn()
}
