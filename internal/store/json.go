package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
)

// stateFile is the on-disk format of state.json.
type stateFile struct {
	Version int                  `json:"version"`
	Units   map[string]UnitState `json:"units"`
}

// JSONStore keeps all unit state in a single JSON file. Each mutation is a
// locked read-modify-write followed by an atomic rename, so concurrent
// workers in one or many processes never lose each other's updates.
type JSONStore struct {
	FS   fs.FS
	Path string
	// Warn receives non-fatal notices such as a corrupt state file.
	Warn func(format string, args ...any)

	m mutator
}

// NewJSONStore returns a store persisting to path for the declared stage list.
func NewJSONStore(filesystem fs.FS, path string, stages []string, now func() time.Time) *JSONStore {
	if now == nil {
		now = time.Now
	}
	return &JSONStore{
		FS:   filesystem,
		Path: path,
		m:    mutator{stages: append([]string(nil), stages...), now: now},
	}
}

// read reads the state file. A missing or corrupt file yields an empty map;
// any other read failure is E_PERSIST_FAILED so a mutation never overwrites
// state it could not see.
func (s *JSONStore) read() (map[string]UnitState, error) {
	data, err := s.FS.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]UnitState{}, nil
		}
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to read state", err,
			map[string]string{"path": s.Path})
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.warn("state file %s is corrupt, treating as empty: %v", s.Path, err)
		return map[string]UnitState{}, nil
	}
	if f.Units == nil {
		f.Units = map[string]UnitState{}
	}
	return f.Units, nil
}

// load is the tolerant read used by lookups: an unreadable file is empty.
func (s *JSONStore) load() map[string]UnitState {
	units, err := s.read()
	if err != nil {
		s.warn("state file unreadable, treating as empty: %v", err)
		return map[string]UnitState{}
	}
	return units
}

func (s *JSONStore) save(units map[string]UnitState) error {
	data, err := json.MarshalIndent(stateFile{Version: 1, Units: units}, "", "  ")
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to marshal state", err)
	}
	data = append(data, '\n')
	if err := fs.WriteFileAtomic(s.FS, s.Path, data, 0o644); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write state", err,
			map[string]string{"path": s.Path})
	}
	return nil
}

// mutate runs fn over the current state under the exclusive lock and
// persists the result when fn reports a change.
func (s *JSONStore) mutate(fn func(units map[string]UnitState) bool) error {
	return s.locked(func() error {
		units, err := s.read()
		if err != nil {
			return err
		}
		if !fn(units) {
			return nil
		}
		return s.save(units)
	})
}

func (s *JSONStore) locked(fn func() error) error {
	if err := s.FS.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to create state dir", err,
			map[string]string{"path": s.Path})
	}
	return lock.With(s.Path, fn)
}

func (s *JSONStore) Initialize(unitIDs []string) (int, error) {
	added := 0
	err := s.mutate(func(units map[string]UnitState) bool {
		for _, id := range unitIDs {
			if _, ok := units[id]; ok {
				continue
			}
			units[id] = s.m.newUnit()
			added++
		}
		return added > 0
	})
	return added, err
}

func (s *JSONStore) MarkStageDone(unitID, stage string) error {
	return s.mutate(func(units map[string]UnitState) bool {
		u, ok := units[unitID]
		if !ok {
			u = s.m.newUnit()
		}
		units[unitID] = s.m.markDone(u, stage)
		return true
	})
}

func (s *JSONStore) IsStageDone(unitID, stage string) bool {
	u, ok := s.load()[unitID]
	return ok && u.StageDone(stage)
}

func (s *JSONStore) UpdateStatus(unitID string, status Status, stage, message string) error {
	return s.mutate(func(units map[string]UnitState) bool {
		u, ok := units[unitID]
		if !ok {
			u = s.m.newUnit()
		}
		units[unitID] = s.m.update(u, status, stage, message)
		return true
	})
}

func (s *JSONStore) Get(unitID string) (UnitState, bool) {
	u, ok := s.load()[unitID]
	return u, ok
}

func (s *JSONStore) Units() []string {
	return sortedKeys(s.load())
}

func (s *JSONStore) Snapshot() map[string]UnitState {
	return s.load()
}

// Reset wipes all unit state.
func (s *JSONStore) Reset() error {
	return s.locked(func() error {
		if err := s.FS.Remove(s.Path); err != nil && !os.IsNotExist(err) {
			return errors.WrapWithDetails(errors.EPersistFailed, "failed to remove state", err,
				map[string]string{"path": s.Path})
		}
		return nil
	})
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) warn(format string, args ...any) {
	if s.Warn != nil {
		s.Warn(format, args...)
	}
}
