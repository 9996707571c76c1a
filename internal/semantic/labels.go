// Package semantic holds per-unit semantic labels and the classifier that
// derives them from transcripts.
package semantic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
)

// Attribution records how a category was derived.
type Attribution string

const (
	AttributionRegex    Attribution = "regex"
	AttributionLLM      Attribution = "llm"
	AttributionFallback Attribution = "fallback"
	AttributionManual   Attribution = "manual"
)

// Valid reports whether a is a known attribution.
func (a Attribution) Valid() bool {
	switch a {
	case AttributionRegex, AttributionLLM, AttributionFallback, AttributionManual:
		return true
	}
	return false
}

// Label is the semantic label of one unit.
type Label struct {
	Category    string      `json:"category"`
	Transcript  string      `json:"transcript"`
	Attribution Attribution `json:"attribution"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
}

// Labels persists labels in labels.json keyed by unit id.
type Labels struct {
	FS   fs.FS
	Path string
	Now  func() time.Time
	Warn func(format string, args ...any)
}

// NewLabels returns a label store persisting to path.
func NewLabels(filesystem fs.FS, path string) *Labels {
	return &Labels{FS: filesystem, Path: path, Now: time.Now}
}

// read parses the labels file. A missing or corrupt file is empty; any other
// read failure is E_PERSIST_FAILED.
func (l *Labels) read() (map[string]Label, error) {
	data, err := l.FS.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Label{}, nil
		}
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to read labels", err,
			map[string]string{"path": l.Path})
	}
	var all map[string]Label
	if err := json.Unmarshal(data, &all); err != nil {
		l.warn("labels file %s is corrupt, treating as empty: %v", l.Path, err)
		return map[string]Label{}, nil
	}
	if all == nil {
		all = map[string]Label{}
	}
	return all, nil
}

func (l *Labels) load() map[string]Label {
	all, err := l.read()
	if err != nil {
		l.warn("labels file unreadable, treating as empty: %v", err)
		return map[string]Label{}
	}
	return all
}

func (l *Labels) warn(format string, args ...any) {
	if l.Warn != nil {
		l.Warn(format, args...)
	}
}

// Put stores the label for unitID, replacing any previous one.
func (l *Labels) Put(unitID string, label Label) error {
	if err := l.FS.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to create labels dir", err,
			map[string]string{"path": l.Path})
	}
	if l.Now != nil {
		label.UpdatedAt = l.Now().UTC().Format(time.RFC3339)
	}
	return lock.With(l.Path, func() error {
		all, err := l.read()
		if err != nil {
			return err
		}
		all[unitID] = label
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return errors.Wrap(errors.EInternal, "failed to marshal labels", err)
		}
		if err := fs.WriteFileAtomic(l.FS, l.Path, append(data, '\n'), 0o644); err != nil {
			return errors.WrapWithDetails(errors.EPersistFailed, "failed to write labels", err,
				map[string]string{"path": l.Path, "unit": unitID})
		}
		return nil
	})
}

// Get returns the label for unitID. A missing label is valid input to the
// decision engine and yields ok=false.
func (l *Labels) Get(unitID string) (Label, bool) {
	label, ok := l.load()[unitID]
	return label, ok
}

// All returns every stored label.
func (l *Labels) All() map[string]Label {
	return l.load()
}

// Units returns the labelled unit ids, sorted.
func (l *Labels) Units() []string {
	all := l.load()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset removes every label.
func (l *Labels) Reset() error {
	if err := l.FS.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to remove labels", err,
			map[string]string{"path": l.Path})
	}
	return nil
}
