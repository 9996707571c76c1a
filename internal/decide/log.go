package decide

import (
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
)

// LogEntry is one line of decision_log.jsonl.
type LogEntry struct {
	Timestamp  string     `json:"timestamp"`
	Module     string     `json:"module"`
	UnitID     string     `json:"unit_id"`
	Decision   Verdict    `json:"decision"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
	Metrics    LogMetrics `json:"metrics"`
}

// LogMetrics records the inputs behind a decision.
type LogMetrics struct {
	FinalScore       float64            `json:"final_score"`
	QualityScore     float64            `json:"quality_score"`
	SemanticCategory string             `json:"semantic_category"`
	SemanticWeight   float64            `json:"semantic_weight"`
	RawInputs        ledger.Scores      `json:"raw_inputs"`
	Weights          map[string]float64 `json:"weights"`
}

// NewLogEntry builds the decision log line for d.
func NewLogEntry(d Decision, scores ledger.Scores, weights map[string]float64, now time.Time) LogEntry {
	if scores == nil {
		scores = ledger.Scores{}
	}
	return LogEntry{
		Timestamp:  now.UTC().Format(time.RFC3339),
		Module:     "decider",
		UnitID:     d.UnitID,
		Decision:   d.Decision,
		Confidence: d.FinalScore,
		Reason:     "weighted_score_semantic",
		Metrics: LogMetrics{
			FinalScore:       d.FinalScore,
			QualityScore:     d.QualityScore,
			SemanticCategory: d.SemanticCategory,
			SemanticWeight:   d.SemanticWeight,
			RawInputs:        scores,
			Weights:          weights,
		},
	}
}

// AppendLog appends one entry per decision to the decision log at path.
func AppendLog(path string, decisions []Decision, scores map[string]ledger.Scores, weights map[string]float64, now time.Time) error {
	for _, d := range decisions {
		if err := events.AppendJSONL(path, NewLogEntry(d, scores[d.UnitID], weights, now)); err != nil {
			return err
		}
	}
	return nil
}
