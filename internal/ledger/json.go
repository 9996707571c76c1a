package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
)

// JSONLedger stores every unit's scores in one JSON object keyed by unit id.
// The critical section is parse, set one key, serialize, rename.
type JSONLedger struct {
	FS   fs.FS
	Path string
	Warn func(format string, args ...any)
}

// NewJSONLedger returns a ledger persisting to path.
func NewJSONLedger(filesystem fs.FS, path string) *JSONLedger {
	return &JSONLedger{FS: filesystem, Path: path}
}

// read parses the ledger. A missing or corrupt file is empty; any other read
// failure is E_PERSIST_FAILED.
func (l *JSONLedger) read() (map[string]Scores, error) {
	data, err := l.FS.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Scores{}, nil
		}
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to read score ledger", err,
			map[string]string{"path": l.Path})
	}
	var all map[string]Scores
	if err := json.Unmarshal(data, &all); err != nil {
		l.warn("score ledger %s is corrupt, treating as empty: %v", l.Path, err)
		return map[string]Scores{}, nil
	}
	if all == nil {
		all = map[string]Scores{}
	}
	return all, nil
}

func (l *JSONLedger) load() map[string]Scores {
	all, err := l.read()
	if err != nil {
		l.warn("score ledger unreadable, treating as empty: %v", err)
		return map[string]Scores{}
	}
	return all
}

func (l *JSONLedger) warn(format string, args ...any) {
	if l.Warn != nil {
		l.Warn(format, args...)
	}
}

func (l *JSONLedger) UpdateScore(unitID, metric string, value float64) error {
	if err := l.FS.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to create ledger dir", err,
			map[string]string{"path": l.Path})
	}
	return lock.With(l.Path, func() error {
		all, err := l.read()
		if err != nil {
			return err
		}
		s := all[unitID]
		if s == nil {
			s = Scores{}
			all[unitID] = s
		}
		s[metric] = Clamp(value)

		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return errors.Wrap(errors.EInternal, "failed to marshal ledger", err)
		}
		if err := fs.WriteFileAtomic(l.FS, l.Path, append(data, '\n'), 0o644); err != nil {
			return errors.WrapWithDetails(errors.EPersistFailed, "failed to write ledger", err,
				map[string]string{"path": l.Path, "unit": unitID, "metric": metric})
		}
		return nil
	})
}

func (l *JSONLedger) Scores(unitID string) Scores {
	s := l.load()[unitID]
	if s == nil {
		return Scores{}
	}
	return s
}

func (l *JSONLedger) All() map[string]Scores { return l.load() }

func (l *JSONLedger) Reset() error {
	if err := l.FS.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to create ledger dir", err,
			map[string]string{"path": l.Path})
	}
	return lock.With(l.Path, func() error {
		if err := l.FS.Remove(l.Path); err != nil && !os.IsNotExist(err) {
			return errors.WrapWithDetails(errors.EPersistFailed, "failed to remove ledger", err,
				map[string]string{"path": l.Path})
		}
		return nil
	})
}

func (l *JSONLedger) Close() error { return nil }
