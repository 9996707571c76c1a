package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/analytics"
)

// scoreBuckets is the display order of the score distribution.
var scoreBuckets = []string{analytics.BucketLow, analytics.BucketMid, analytics.BucketHigh}

// WriteSummaryHuman writes a run summary followed by its narrative.
func WriteSummaryHuman(w io.Writer, s analytics.Summary) error {
	o := s.Overview
	if _, err := fmt.Fprintf(w, "generated_at: %s\n", orNone(s.GeneratedAt)); err != nil {
		return err
	}
	if s.RunID != "" {
		_, _ = fmt.Fprintf(w, "run_id: %s\n", s.RunID)
	}
	_, _ = fmt.Fprintf(w, "clips: %d (kept %d, quarantined %d, discarded %d)\n",
		o.TotalClips, o.Kept, o.Quarantined, o.Discarded)
	_, _ = fmt.Fprintf(w, "keep_rate: %.2f\n", o.KeepRate)
	_, _ = fmt.Fprintf(w, "avg_final_score: %.2f (threshold %.2f)\n", o.AvgFinalScore, o.ThresholdUsed)

	_, _ = fmt.Fprintln(w, "\ndistribution:")
	for _, b := range scoreBuckets {
		_, _ = fmt.Fprintf(w, "  %s  %d\n", b, s.ScoreDistribution[b])
	}

	if len(s.ActionCounts) > 0 {
		actions := make([]string, 0, len(s.ActionCounts))
		for a := range s.ActionCounts {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		parts := make([]string, len(actions))
		for i, a := range actions {
			parts[i] = fmt.Sprintf("%s=%d", a, s.ActionCounts[a])
		}
		_, _ = fmt.Fprintf(w, "\nactions: %s\n", strings.Join(parts, " "))
	}

	if reasons := s.QualityInsights.TopRejectionReasons; len(reasons) > 0 {
		_, _ = fmt.Fprintln(w, "\ntop rejection reasons:")
		for _, r := range reasons {
			_, _ = fmt.Fprintf(w, "  %s  %d\n", r.Reason, r.Count)
		}
	}
	_, _ = fmt.Fprintf(w, "borderline: %d\n", s.QualityInsights.BorderlineClips)
	_, _ = fmt.Fprintf(w, "dominant weights: %s\n", orNone(strings.Join(s.QualityInsights.DominantWeights, ", ")))

	_, err := fmt.Fprintf(w, "\n%s\n", analytics.Narrative(s))
	return err
}
