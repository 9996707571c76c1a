// Package events provides append-only JSONL logs for clipsift:
// the per-namespace run event stream, the executor audit trail and the
// decision log all share this writer.
package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SchemaVersion is written on every run event.
const SchemaVersion = "1.0"

// Event represents a single event in events.jsonl.
// This is the public contract for the events file format.
type Event struct {
	SchemaVersion string         `json:"schema_version"`
	Timestamp     string         `json:"timestamp"` // RFC3339
	Namespace     string         `json:"namespace"`
	RunID         string         `json:"run_id"`
	Event         string         `json:"event"` // "run_started", "stage_finished", ...
	Data          map[string]any `json:"data,omitempty"`
}

// Event names.
const (
	RunStarted    = "run_started"
	RunFinished   = "run_finished"
	RunStopped    = "run_stopped"
	StageStarted  = "stage_started"
	StageSkipped  = "stage_skipped"
	StageFinished = "stage_finished"
	StageFailed   = "stage_failed"
	UnitFailed    = "unit_failed"
	Reset         = "reset"
)

var appendMu sync.Mutex

// AppendEvent appends a single event to the events.jsonl file.
// The file is created lazily if it doesn't exist.
//
// Best-effort: errors are returned but callers should typically ignore them
// and continue with the main operation.
func AppendEvent(path string, e Event) error {
	return AppendJSONL(path, e)
}

// AppendJSONL appends v as one compact JSON line to path, creating the file
// and its parent directory if needed.
func AppendJSONL(path string, v any) (err error) {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	appendMu.Lock()
	defer appendMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}

// ReadJSONL reads every line of path into a T. A missing file yields nil.
// Lines that fail to parse (e.g. a torn final write) are skipped and counted.
func ReadJSONL[T any](path string) (items []T, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped, sc.Err()
}

// Recorder stamps and appends run events for one namespace and run.
type Recorder struct {
	Path      string
	Namespace string
	RunID     string
	Now       func() time.Time
}

// Record appends an event. Errors are swallowed; events are observability only.
func (r *Recorder) Record(name string, data map[string]any) {
	if r == nil || r.Path == "" {
		return
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	_ = AppendEvent(r.Path, Event{
		SchemaVersion: SchemaVersion,
		Timestamp:     now().UTC().Format(time.RFC3339),
		Namespace:     r.Namespace,
		RunID:         r.RunID,
		Event:         name,
		Data:          data,
	})
}

// StageData returns the data map for stage_* events.
func StageData(stage string, units int) map[string]any {
	return map[string]any{
		"stage": stage,
		"units": units,
	}
}

// StageFailedData returns the data map for a stage_failed event.
func StageFailedData(stage string, errorCode, message string) map[string]any {
	data := map[string]any{
		"stage":   stage,
		"message": message,
	}
	if errorCode != "" {
		data["error_code"] = errorCode
	}
	return data
}

// UnitFailedData returns the data map for a unit_failed event.
func UnitFailedData(stage, unitID, message string) map[string]any {
	return map[string]any{
		"stage":   stage,
		"unit":    unitID,
		"message": message,
	}
}

// RunFinishedData returns the data map for run_finished / run_stopped events.
func RunFinishedData(stagesRun, stagesSkipped int, durationMs int64) map[string]any {
	return map[string]any{
		"stages_run":     stagesRun,
		"stages_skipped": stagesSkipped,
		"duration_ms":    durationMs,
	}
}

// LastEvent returns the last readable event in the events file at path.
// A missing file yields ok=false and no error.
func LastEvent(path string) (e Event, ok bool, err error) {
	all, _, err := ReadJSONL[Event](path)
	if err != nil {
		if os.IsNotExist(err) {
			return Event{}, false, nil
		}
		return Event{}, false, err
	}
	if len(all) == 0 {
		return Event{}, false, nil
	}
	return all[len(all)-1], true, nil
}
