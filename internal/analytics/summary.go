// Package analytics aggregates decisions, scores and the audit trail into a
// run summary, per-unit explanations and a short narrative.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/decide"
	"github.com/NielsdaWheelz/clipsift/internal/execute"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
)

// Score distribution buckets.
const (
	BucketLow  = "0.0-0.3"
	BucketMid  = "0.3-0.6"
	BucketHigh = "0.6-1.0"
)

const maxRejectionReasons = 3

// Summary is the content of run_summary.json.
type Summary struct {
	GeneratedAt       string         `json:"generated_at"`
	RunID             string         `json:"run_id,omitempty"`
	Overview          Overview       `json:"overview"`
	ScoreDistribution map[string]int `json:"score_distribution"`
	QualityInsights   Insights       `json:"quality_insights"`
	ActionCounts      map[string]int `json:"action_counts"`
	ConfigSnapshot    config.Policy  `json:"config_snapshot"`
}

// Overview holds run-level counts.
type Overview struct {
	TotalClips    int     `json:"total_clips"`
	Kept          int     `json:"kept"`
	Discarded     int     `json:"discarded"`
	Quarantined   int     `json:"quarantined"`
	KeepRate      float64 `json:"keep_rate"`
	AvgFinalScore float64 `json:"avg_final_score"`
	ThresholdUsed float64 `json:"threshold_used"`
}

// Insights explains what drove rejections.
type Insights struct {
	TopRejectionReasons []ReasonCount `json:"top_rejection_reasons"`
	BorderlineClips     int           `json:"borderline_clips"`
	DominantWeights     []string      `json:"dominant_weights"`
}

// ReasonCount is one rejection reason and how many units it explains.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Summarize builds the run summary. audit may span several runs; only the
// latest entry per unit counts towards ActionCounts.
func Summarize(decisions []decide.Decision, scores map[string]ledger.Scores, audit []execute.AuditEntry, p config.Policy, now time.Time) Summary {
	s := Summary{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		ScoreDistribution: map[string]int{
			BucketLow:  0,
			BucketMid:  0,
			BucketHigh: 0,
		},
		ActionCounts:   ActionCounts(audit),
		ConfigSnapshot: p,
	}

	var reasons []string
	for _, d := range decisions {
		switch d.Decision {
		case decide.Keep:
			s.Overview.Kept++
		case decide.Quarantine:
			s.Overview.Quarantined++
		default:
			s.Overview.Discarded++
			reasons = append(reasons, RejectionReason(scores[d.UnitID], p))
		}
		s.ScoreDistribution[bucket(d.FinalScore)]++
		if math.Abs(d.FinalScore-p.KeepThreshold) <= p.BorderlineRange+1e-9 {
			s.QualityInsights.BorderlineClips++
		}
	}

	total := len(decisions)
	s.Overview.TotalClips = total
	s.Overview.ThresholdUsed = p.KeepThreshold
	if total > 0 {
		s.Overview.KeepRate = round2(float64(s.Overview.Kept) / float64(total))
		s.Overview.AvgFinalScore = round2(lo.SumBy(decisions, func(d decide.Decision) float64 {
			return d.FinalScore
		}) / float64(total))
	}
	s.QualityInsights.TopRejectionReasons = topReasons(reasons, maxRejectionReasons)
	s.QualityInsights.DominantWeights = DominantWeights(p.Weights)
	return s
}

func bucket(score float64) string {
	switch {
	case score < 0.3:
		return BucketLow
	case score < 0.6:
		return BucketMid
	default:
		return BucketHigh
	}
}

// RejectionReason names the metric with the lowest weighted contribution.
// Ties resolve in metric order: face, motion, speech, then others by name.
func RejectionReason(scores ledger.Scores, p config.Policy) string {
	metrics := orderedMetrics(p.Weights)
	if len(metrics) == 0 {
		return "low_score"
	}
	best := metrics[0]
	bestVal := p.Weights[best] * scores[best]
	for _, m := range metrics[1:] {
		if v := p.Weights[m] * scores[m]; v < bestVal {
			best, bestVal = m, v
		}
	}
	return reasonName(best)
}

func reasonName(metric string) string {
	switch metric {
	case "face":
		return "poor_face_visibility"
	case "motion":
		return "low_motion_interest"
	case "speech":
		return "low_speech"
	}
	return "low_" + metric
}

var wellKnownMetrics = []string{"face", "motion", "speech"}

func orderedMetrics(weights map[string]float64) []string {
	var out []string
	for _, m := range wellKnownMetrics {
		if _, ok := weights[m]; ok {
			out = append(out, m)
		}
	}
	rest := lo.Filter(lo.Keys(weights), func(m string, _ int) bool {
		return !lo.Contains(wellKnownMetrics, m)
	})
	sort.Strings(rest)
	return append(out, rest...)
}

func topReasons(reasons []string, n int) []ReasonCount {
	counts := lo.CountValues(reasons)
	out := make([]ReasonCount, 0, len(counts))
	for r, c := range counts {
		out = append(out, ReasonCount{Reason: r, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// DominantWeights returns metric names by descending weight, ties by name.
func DominantWeights(weights map[string]float64) []string {
	keys := lo.Keys(weights)
	sort.Slice(keys, func(i, j int) bool {
		if weights[keys[i]] != weights[keys[j]] {
			return weights[keys[i]] > weights[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// ActionCounts counts the latest audited action of each unit.
func ActionCounts(audit []execute.AuditEntry) map[string]int {
	latest := map[string]string{}
	for _, e := range audit {
		latest[e.UnitID] = string(e.Action)
	}
	return lo.CountValues(lo.Values(latest))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
