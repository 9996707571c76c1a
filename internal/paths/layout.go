package paths

import "path/filepath"

// Layout is the on-disk layout of one namespace.
// Format: ${CLIPSIFT_DATA_DIR}/namespaces/<namespace>/
type Layout struct {
	DataDir   string
	Namespace string
}

// NewLayout returns the layout for namespace under dataDir.
func NewLayout(dataDir, namespace string) Layout {
	return Layout{DataDir: dataDir, Namespace: namespace}
}

// NamespacesDir returns the parent of all namespace directories.
func (l Layout) NamespacesDir() string {
	return filepath.Join(l.DataDir, "namespaces")
}

// Root returns the namespace directory.
func (l Layout) Root() string {
	return filepath.Join(l.NamespacesDir(), l.Namespace)
}

func (l Layout) StatePath() string     { return filepath.Join(l.Root(), "state.json") }
func (l Layout) StateBoltPath() string { return filepath.Join(l.Root(), "state.db") }
func (l Layout) ScoresPath() string    { return filepath.Join(l.Root(), "scores.json") }
func (l Layout) ScoresBoltPath() string {
	return filepath.Join(l.Root(), "scores.db")
}
func (l Layout) LabelsPath() string       { return filepath.Join(l.Root(), "labels.json") }
func (l Layout) DecisionsPath() string    { return filepath.Join(l.Root(), "decisions.json") }
func (l Layout) ActionPlanPath() string   { return filepath.Join(l.Root(), "action_plan.json") }
func (l Layout) AuditPath() string        { return filepath.Join(l.Root(), "audit.jsonl") }
func (l Layout) DecisionLogPath() string  { return filepath.Join(l.Root(), "decision_log.jsonl") }
func (l Layout) SummaryPath() string      { return filepath.Join(l.Root(), "run_summary.json") }
func (l Layout) ExplanationsPath() string { return filepath.Join(l.Root(), "clip_explanations.json") }
func (l Layout) EventsPath() string       { return filepath.Join(l.Root(), "events.jsonl") }
func (l Layout) StopPath() string         { return filepath.Join(l.Root(), "stop.request") }
func (l Layout) RunLockPath() string      { return filepath.Join(l.Root(), "run") }
func (l Layout) LogsDir() string          { return filepath.Join(l.Root(), "logs") }
func (l Layout) LogPath() string          { return filepath.Join(l.LogsDir(), "clipsift.log") }

// OutputDir returns the default output root for materialized units.
func (l Layout) OutputDir() string { return filepath.Join(l.Root(), "output") }

// ProcessingDir returns the default processing root scanned for units.
func (l Layout) ProcessingDir() string { return filepath.Join(l.Root(), "processing") }
