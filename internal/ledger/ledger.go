// Package ledger is the shared score ledger: unit -> metric -> score in [0,1].
// Many scorer workers write concurrently, each to a different unit.
package ledger

import (
	"math"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/paths"
)

// Scores maps metric name to a normalized score.
type Scores map[string]float64

// Ledger is the score ledger contract.
type Ledger interface {
	// UpdateScore clamps value to [0,1] and merges it into the unit's metrics.
	UpdateScore(unitID, metric string, value float64) error
	// Scores returns the unit's metrics, or an empty map if none are recorded.
	Scores(unitID string) Scores
	All() map[string]Scores
	Reset() error
	Close() error
}

// Clamp limits v to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Open returns the ledger for layout using the configured backend.
func Open(backend string, layout paths.Layout, warn func(string, ...any)) (Ledger, error) {
	if backend == config.BackendBolt {
		return OpenBolt(layout.ScoresBoltPath(), warn)
	}
	l := NewJSONLedger(fs.NewRealFS(), layout.ScoresPath())
	l.Warn = warn
	return l, nil
}
