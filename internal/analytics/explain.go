package analytics

import (
	"fmt"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/decide"
)

// Explanation is one entry of clip_explanations.json.
type Explanation struct {
	UnitID      string         `json:"unit_id"`
	Decision    decide.Verdict `json:"decision"`
	FinalScore  float64        `json:"final_score"`
	Why         []string       `json:"why"`
	SemanticTag string         `json:"semantic_tag"`
}

// Explain lists each decision with the factors behind it.
func Explain(decisions []decide.Decision) []Explanation {
	out := make([]Explanation, 0, len(decisions))
	for _, d := range decisions {
		why := d.TopFactors
		if why == nil {
			why = []string{}
		}
		out = append(out, Explanation{
			UnitID:      d.UnitID,
			Decision:    d.Decision,
			FinalScore:  d.FinalScore,
			Why:         why,
			SemanticTag: d.SemanticCategory,
		})
	}
	return out
}

// Narrative renders a short human-readable account of the run.
func Narrative(s Summary) string {
	total := s.Overview.TotalClips
	if total == 0 && len(s.ActionCounts) == 0 {
		return "No run data found."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Analysis Complete. %d clips were analyzed.", total))

	if kept := s.ActionCounts[string(decide.Keep)]; kept > 0 {
		lines = append(lines, fmt.Sprintf("%d clips were selected with high confidence.", kept))
	} else {
		lines = append(lines, "No clips met the high confidence threshold.")
	}
	if q := s.ActionCounts[string(decide.Quarantine)]; q > 0 {
		lines = append(lines, fmt.Sprintf("%d clips were borderline and moved to quarantine for review.", q))
	}
	if reasons := s.QualityInsights.TopRejectionReasons; len(reasons) > 0 {
		names := make([]string, len(reasons))
		for i, r := range reasons {
			names[i] = strings.ReplaceAll(r.Reason, "_", " ")
		}
		lines = append(lines, fmt.Sprintf("Most rejections were due to: %s.", strings.Join(names, ", ")))
	}
	lines = append(lines, fmt.Sprintf("The average quality score across all clips was %.2f.", s.Overview.AvgFinalScore))
	return strings.Join(lines, "\n")
}
