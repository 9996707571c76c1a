// Package store is the unit registry: durable per-unit, per-stage completion
// and lifecycle status. Two backends share one contract: a JSON file guarded
// by a file lock, and a bbolt database.
package store

import (
	"sort"
	"time"
)

// Status is a unit's lifecycle status.
type Status string

// Unit statuses.
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// UnitState is the persisted state of one unit.
type UnitState struct {
	Status          Status   `json:"status"`
	CurrentStage    string   `json:"current_stage"`
	CompletedStages []string `json:"completed_stages"`
	LastMessage     string   `json:"last_message"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// HasStage reports whether stage is recorded as completed.
func (u UnitState) HasStage(stage string) bool {
	for _, s := range u.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}

// StageDone reports whether stage counts as done for this unit:
// a COMPLETED unit has every stage implicitly done.
func (u UnitState) StageDone(stage string) bool {
	return u.Status == StatusCompleted || u.HasStage(stage)
}

// Store is the unit registry contract.
//
// Lookups of unknown units return "not done" or ok=false, never an error.
// Every mutating call persists the full state before returning.
type Store interface {
	// Initialize creates PENDING entries for unit ids not yet tracked and
	// returns how many were added. Existing entries are never touched.
	Initialize(unitIDs []string) (int, error)
	MarkStageDone(unitID, stage string) error
	IsStageDone(unitID, stage string) bool
	// UpdateStatus is a best-effort progress update. Empty stage or
	// message leave the stored value unchanged.
	UpdateStatus(unitID string, status Status, stage, message string) error
	Get(unitID string) (UnitState, bool)
	Units() []string
	Snapshot() map[string]UnitState
	Reset() error
	Close() error
}

// mutator applies the shared state transitions for both backends.
type mutator struct {
	stages []string
	now    func() time.Time
}

func (m mutator) stamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

func (m mutator) newUnit() UnitState {
	return UnitState{Status: StatusPending, CompletedStages: []string{}, UpdatedAt: m.stamp()}
}

// markDone adds stage to the unit. The unit becomes COMPLETED once the
// last declared stage is marked and every declared stage is recorded.
func (m mutator) markDone(u UnitState, stage string) UnitState {
	prevStage := u.CurrentStage
	if !u.HasStage(stage) {
		u.CompletedStages = append(u.CompletedStages, stage)
	}
	u.CurrentStage = stage
	u.LastMessage = stage + " done"
	u.UpdatedAt = m.stamp()

	if len(m.stages) > 0 && stage == m.stages[len(m.stages)-1] && m.allDone(u) {
		u.Status = StatusCompleted
		return u
	}
	if u.Status == StatusCompleted {
		return u
	}
	if u.Status == StatusFailed && prevStage != stage {
		return u
	}
	u.Status = StatusProcessing
	return u
}

func (m mutator) allDone(u UnitState) bool {
	for _, s := range m.stages {
		if !u.HasStage(s) {
			return false
		}
	}
	return true
}

// update applies a progress update. COMPLETED never regresses.
func (m mutator) update(u UnitState, status Status, stage, message string) UnitState {
	if u.Status != StatusCompleted {
		u.Status = status
	}
	if stage != "" {
		u.CurrentStage = stage
	}
	if message != "" {
		u.LastMessage = message
	}
	u.UpdatedAt = m.stamp()
	return u
}

func sortedKeys(units map[string]UnitState) []string {
	ids := make([]string, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
