// Package status derives the user-visible state of a namespace's pipeline
// from local signals. No filesystem or process calls are made in this package.
package status

import (
	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/store"
	"github.com/NielsdaWheelz/clipsift/internal/watchdog"
)

// Derived status string constants (user-visible contract).
const (
	StatusStopping    = "stopping"
	StatusStalled     = "stalled"
	StatusRunning     = "running"
	StatusFailed      = "failed"
	StatusStopped     = "stopped"
	StatusInterrupted = "interrupted"
	StatusCompleted   = "completed"
	StatusPartial     = "partial"
	StatusIdle        = "idle"
)

// Snapshot contains the inputs for status derivation.
// The caller computes them from the run lock, stop marker, events log and
// State Store.
type Snapshot struct {
	// RunActive is true iff some process holds the namespace run lock.
	RunActive bool

	// StopRequested is true iff the stop marker exists.
	StopRequested bool

	// StallResult contains the result of stall detection, or nil if not computed.
	StallResult *watchdog.StallResult

	// LastRunEvent is the name of the last run-level event in events.jsonl,
	// or "" if none was recorded.
	LastRunEvent string

	// Counts tallies tracked units by status.
	Counts map[store.Status]int
}

// Derive computes the namespace status from a snapshot.
//
// Precedence (highest to lowest):
//  1. stopping     → run active and stop marker present
//  2. stalled      → run active and no state change within the stall threshold
//  3. running      → run active
//  4. failed       → last run ended with stage_failed
//  5. stopped      → last run ended with run_stopped
//  6. interrupted  → last run started but recorded no end (process died)
//  7. completed    → every tracked unit COMPLETED
//  8. partial      → some tracked unit not COMPLETED
//  9. idle         → nothing tracked
func Derive(in Snapshot) string {
	if in.RunActive {
		switch {
		case in.StopRequested:
			return StatusStopping
		case in.StallResult != nil && in.StallResult.IsStalled:
			return StatusStalled
		default:
			return StatusRunning
		}
	}

	switch in.LastRunEvent {
	case events.StageFailed:
		return StatusFailed
	case events.RunStopped:
		return StatusStopped
	case events.RunStarted, events.StageStarted, events.StageFinished, events.StageSkipped, events.UnitFailed:
		return StatusInterrupted
	}

	total := 0
	for _, n := range in.Counts {
		total += n
	}
	switch {
	case total == 0:
		return StatusIdle
	case in.Counts[store.StatusCompleted] == total:
		return StatusCompleted
	default:
		return StatusPartial
	}
}
