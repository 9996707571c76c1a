// Package execute applies an action plan to the filesystem and records an
// append-only audit trail. Units are copied, never moved, so the processing
// directory stays intact and re-running a plan is safe.
package execute

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NielsdaWheelz/clipsift/internal/decide"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/events"
	clipfs "github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/logging"
	"github.com/NielsdaWheelz/clipsift/internal/plan"
)

// AuditEntry is one line of audit.jsonl.
type AuditEntry struct {
	ID          string         `json:"id"`
	UnitID      string         `json:"unit_id"`
	Action      decide.Verdict `json:"action"`
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Bytes       int64          `json:"bytes"`
	ExecutedAt  string         `json:"executed_at"`
	RunID       string         `json:"run_id,omitempty"`
}

// Result counts what Execute did.
type Result struct {
	Copied  int      `json:"copied"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Missing []string `json:"missing,omitempty"`
}

// Executor copies planned units from ProcessingRoot to their destinations.
type Executor struct {
	ProcessingRoot string
	AuditPath      string
	RunID          string
	Log            *logging.Logger
	Now            func() time.Time
	NewID          func() string

	// OutputRoot and Folders name every folder a plan can target. After a
	// unit is copied, its copies in the other folders are removed so the
	// output tree matches the latest plan. Empty OutputRoot disables this.
	OutputRoot string
	Folders    []string

	index map[string][]string // unit id without extension -> paths, built on first fallback lookup
}

// New returns an Executor with production clock and ids.
func New(processingRoot, auditPath string, log *logging.Logger) *Executor {
	return &Executor{
		ProcessingRoot: processingRoot,
		AuditPath:      auditPath,
		Log:            log,
		Now:            time.Now,
		NewID:          func() string { return uuid.NewString() },
	}
}

// OutputName flattens a unit id into a single file name.
func OutputName(unitID string) string {
	return strings.ReplaceAll(filepath.ToSlash(unitID), "/", "_")
}

// Execute applies items in order. Missing sources and failed copies are
// counted and logged; the returned error is reserved for a failed audit
// write (E_PERSIST_FAILED) or a stop request between items (E_STOPPED).
func (e *Executor) Execute(ctx context.Context, items []plan.Item) (Result, error) {
	var res Result
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(errors.EStopped, "execute stopped before all items were applied", err)
		}

		src, ok := e.locate(item.UnitID)
		if !ok {
			e.Log.Warn("source not found for %s, skipping", item.UnitID)
			res.Skipped++
			res.Missing = append(res.Missing, item.UnitID)
			continue
		}

		dst := filepath.Join(item.Destination, OutputName(item.UnitID))
		n, err := clipfs.CopyFileAtomic(src, dst)
		if err != nil {
			e.Log.Error("copy %s -> %s failed: %v", src, dst, err)
			res.Failed++
			continue
		}

		entry := AuditEntry{
			ID:          e.NewID(),
			UnitID:      item.UnitID,
			Action:      item.Action,
			Source:      src,
			Destination: dst,
			Bytes:       n,
			ExecutedAt:  e.Now().UTC().Format(time.RFC3339Nano),
			RunID:       e.RunID,
		}
		if err := events.AppendJSONL(e.AuditPath, entry); err != nil {
			return res, errors.WrapWithDetails(errors.EPersistFailed, "failed to append audit entry", err,
				map[string]string{"path": e.AuditPath, "unit": item.UnitID})
		}
		res.Copied++
		e.Log.Debug("%s %s -> %s", item.Action, item.UnitID, dst)
		e.pruneStale(item)
	}
	return res, nil
}

// locate finds the unit's source file at ProcessingRoot/unitID. Unit ids
// recorded without an extension match the one file whose relative path minus
// extension equals the id; zero or several such files mean missing.
func (e *Executor) locate(unitID string) (string, bool) {
	direct := filepath.Join(e.ProcessingRoot, filepath.FromSlash(unitID))
	if info, err := os.Stat(direct); err == nil && info.Mode().IsRegular() {
		return direct, true
	}
	if e.index == nil {
		e.index = indexByStem(e.ProcessingRoot, e.OutputRoot)
	}
	paths := e.index[filepath.ToSlash(unitID)]
	if len(paths) != 1 {
		if len(paths) > 1 {
			e.Log.Warn("%s matches %d files, treating as missing", unitID, len(paths))
		}
		return "", false
	}
	return paths[0], true
}

// indexByStem maps each regular file's slash-separated relative path without
// extension to its paths. The output root is pruned when nested under root.
func indexByStem(root, outputRoot string) map[string][]string {
	idx := map[string][]string{}
	skip := ""
	if outputRoot != "" {
		skip = filepath.Clean(outputRoot)
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skip != "" && filepath.Clean(path) == skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		stem := strings.TrimSuffix(rel, filepath.Ext(rel))
		idx[stem] = append(idx[stem], path)
		return nil
	})
	return idx
}

// pruneStale removes item's earlier copies from every other plan folder.
// Failures are logged; the new copy is already in place.
func (e *Executor) pruneStale(item plan.Item) {
	if e.OutputRoot == "" {
		return
	}
	name := OutputName(item.UnitID)
	keep := filepath.Clean(item.Destination)
	for _, folder := range e.Folders {
		dir := filepath.Join(e.OutputRoot, folder)
		if filepath.Clean(dir) == keep {
			continue
		}
		stale := filepath.Join(dir, name)
		if _, err := os.Lstat(stale); err != nil {
			continue
		}
		if err := clipfs.SafeRemoveAll(stale, e.OutputRoot); err != nil {
			e.Log.Warn("failed to remove stale copy %s: %v", stale, err)
			continue
		}
		e.Log.Debug("removed stale copy %s", stale)
	}
}

// ReadAudit returns every audit entry. Torn lines are skipped.
func ReadAudit(path string) ([]AuditEntry, error) {
	entries, _, err := events.ReadJSONL[AuditEntry](path)
	return entries, err
}
