// Package decide converts a unit's scores and semantic label into a
// keep/discard/quarantine verdict with an explanation. It is pure.
package decide

import (
	"math"
	"sort"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
)

// Verdict is the decision outcome.
type Verdict string

const (
	Keep       Verdict = "keep"
	Discard    Verdict = "discard"
	Quarantine Verdict = "quarantine"
)

// NeutralSemanticWeight applies when a unit has no semantic label yet.
const NeutralSemanticWeight = 1.0

// maxTopFactors is how many contributing factors a decision reports.
const maxTopFactors = 3

// Decision is the verdict for one unit.
type Decision struct {
	UnitID           string   `json:"unit_id"`
	FinalScore       float64  `json:"final_score"`
	QualityScore     float64  `json:"quality_score"`
	Decision         Verdict  `json:"decision"`
	TopFactors       []string `json:"top_factors"`
	SemanticCategory string   `json:"semantic_category"`
	SemanticWeight   float64  `json:"semantic_weight"`
}

// Factor is one weighted term of the score.
type Factor struct {
	Label        string
	Metric       string // empty for the semantic term
	Contribution float64
}

// Quality returns the raw weighted sum over the policy's metrics.
// Missing metrics count as zero.
func Quality(scores ledger.Scores, p config.Policy) float64 {
	q := 0.0
	for _, m := range sortedMetrics(p.Weights) {
		q += p.Weights[m] * scores[m]
	}
	return q
}

// SemanticWeight returns the multiplier for label. An absent label is
// neutral; any present category, including "unknown", uses the configured
// weight or the default weight.
func SemanticWeight(label *semantic.Label, p config.Policy) float64 {
	if label == nil {
		return NeutralSemanticWeight
	}
	if w, ok := p.SemanticWeights[label.Category]; ok {
		return w
	}
	return p.SemanticDefaultWeight
}

// Decide computes the verdict for one unit. label may be nil.
func Decide(unitID string, scores ledger.Scores, label *semantic.Label, p config.Policy) Decision {
	quality := Quality(scores, p)
	sw := SemanticWeight(label, p)
	final := ledger.Clamp(quality * sw)

	category := config.CategoryUnknown
	if label != nil && label.Category != "" {
		category = label.Category
	}

	return Decision{
		UnitID:           unitID,
		FinalScore:       round3(final),
		QualityScore:     round3(quality),
		Decision:         verdict(final, p),
		TopFactors:       TopFactors(Factors(scores, label, p)),
		SemanticCategory: category,
		SemanticWeight:   sw,
	}
}

func verdict(final float64, p config.Policy) Verdict {
	switch {
	case final >= p.KeepThreshold:
		return Keep
	case p.BorderlineThreshold > 0 && final >= p.BorderlineThreshold:
		return Quarantine
	default:
		return Discard
	}
}

// Factors returns every contributing term: one per policy metric plus a
// semantic term when a label is present. The semantic term is
// weight-0.5 for non-neutral weights and a small constant otherwise.
func Factors(scores ledger.Scores, label *semantic.Label, p config.Policy) []Factor {
	metrics := sortedMetrics(p.Weights)
	out := make([]Factor, 0, len(metrics)+1)
	for _, m := range metrics {
		out = append(out, Factor{
			Label:        p.MetricLabel(m),
			Metric:       m,
			Contribution: p.Weights[m] * scores[m],
		})
	}
	if label != nil {
		sw := SemanticWeight(label, p)
		c := 0.1
		if sw != NeutralSemanticWeight {
			c = sw - 0.5
		}
		out = append(out, Factor{Label: "Topic: " + label.Category, Contribution: c})
	}
	return out
}

// TopFactors returns the labels of up to three positive factors, largest
// first. Ties keep factor order.
func TopFactors(factors []Factor) []string {
	sorted := append([]Factor(nil), factors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Contribution > sorted[j].Contribution
	})
	top := []string{}
	for _, f := range sorted {
		if len(top) == maxTopFactors {
			break
		}
		if f.Contribution > 0 {
			top = append(top, f.Label)
		}
	}
	return top
}

// All decides every unit in scores, in unit id order. Units that are tracked
// but unscored should be present in scores with an empty map.
func All(scores map[string]ledger.Scores, labels map[string]semantic.Label, p config.Policy) []Decision {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Decision, 0, len(ids))
	for _, id := range ids {
		var label *semantic.Label
		if l, ok := labels[id]; ok {
			label = &l
		}
		out = append(out, Decide(id, scores[id], label, p))
	}
	return out
}

func sortedMetrics(weights map[string]float64) []string {
	ms := make([]string, 0, len(weights))
	for m := range weights {
		ms = append(ms, m)
	}
	sort.Strings(ms)
	return ms
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
