// Package watchdog watches a running pipeline from the outside: it carries
// stop requests into the run and detects runs that stopped making progress.
//
// A run is considered stalled if its run lock is still held but the unit
// state has not been updated within the configured threshold.
package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// DefaultStallThreshold is the default duration after which a run is considered stalled.
const DefaultStallThreshold = 15 * time.Minute

// DefaultPollInterval is how often Watch checks for a stop request.
const DefaultPollInterval = 250 * time.Millisecond

// ActivitySignals contains signals used to determine if a run is stalled.
type ActivitySignals struct {
	// StateModTime is the modification time of the unit state store.
	// Nil if the store does not exist yet.
	StateModTime *time.Time

	// RunActive is true if some process holds the namespace run lock.
	RunActive bool
}

// StallResult contains the result of a stall check.
type StallResult struct {
	// IsStalled is true if the run is considered stalled.
	IsStalled bool

	// StalledDuration is the duration since the last activity signal.
	// Only meaningful when IsStalled is true.
	StalledDuration time.Duration
}

// CheckStall determines if a run is stalled based on activity signals.
//
// A run is considered stalled if:
// - a run holds the namespace lock
// - the state store exists and hasn't been modified within the threshold
func CheckStall(signals ActivitySignals, threshold time.Duration) StallResult {
	if !signals.RunActive {
		return StallResult{IsStalled: false}
	}

	// No state yet = run is still initializing
	if signals.StateModTime == nil {
		return StallResult{IsStalled: false}
	}

	stalledDuration := time.Since(*signals.StateModTime)
	if stalledDuration >= threshold {
		return StallResult{
			IsStalled:       true,
			StalledDuration: stalledDuration,
		}
	}

	return StallResult{IsStalled: false}
}

// CheckStallWithDefault calls CheckStall with the DefaultStallThreshold.
func CheckStallWithDefault(signals ActivitySignals) StallResult {
	return CheckStall(signals, DefaultStallThreshold)
}

// ModTime returns the modification time of path, or nil if it does not exist.
func ModTime(path string) *time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	t := info.ModTime()
	return &t
}

// RequestStop writes the stop marker at path. A running pipeline that
// watches path stops launching new work once it sees the marker.
func RequestStop(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0o644)
}

// StopRequested reports whether the stop marker exists.
func StopRequested(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ClearStop removes the stop marker. A missing marker is not an error.
func ClearStop(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch polls for the stop marker at path every interval and calls onStop
// once when it appears. Watch returns when ctx ends or after onStop ran.
func Watch(ctx context.Context, path string, interval time.Duration, onStop func()) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if StopRequested(path) {
				onStop()
				return
			}
		}
	}
}
