package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/decide"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
	"github.com/NielsdaWheelz/clipsift/internal/plan"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
	"github.com/NielsdaWheelz/clipsift/internal/store"
)

// ShowData holds everything known about one unit.
type ShowData struct {
	UnitID   string          `json:"unit_id"`
	State    store.UnitState `json:"state"`
	Scores   ledger.Scores   `json:"scores"`
	Label    *semantic.Label `json:"label,omitempty"`
	Decision decide.Decision `json:"decision"`
	Factors  []decide.Factor `json:"factors"`
	Plan     plan.Item       `json:"plan"`
}

// WriteShowHuman writes human-readable show output as key/value lines
// followed by the score and factor breakdown.
func WriteShowHuman(w io.Writer, data ShowData) error {
	lines := []struct {
		key   string
		value string
	}{
		{"unit", data.UnitID},
		{"status", string(data.State.Status)},
		{"current_stage", orNone(data.State.CurrentStage)},
		{"completed_stages", orNone(strings.Join(data.State.CompletedStages, ", "))},
		{"last_message", orNone(data.State.LastMessage)},
		{"updated_at", orNone(data.State.UpdatedAt)},
	}
	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%s: %s\n", line.key, line.value); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(w, "\nscores:")
	if len(data.Scores) == 0 {
		_, _ = fmt.Fprintln(w, "  none")
	}
	metrics := make([]string, 0, len(data.Scores))
	for m := range data.Scores {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	for _, m := range metrics {
		_, _ = fmt.Fprintf(w, "  %s: %.3f\n", m, data.Scores[m])
	}

	_, _ = fmt.Fprintln(w, "\nlabel:")
	if data.Label == nil {
		_, _ = fmt.Fprintln(w, "  none")
	} else {
		_, _ = fmt.Fprintf(w, "  category: %s (%s)\n", data.Label.Category, data.Label.Attribution)
		if data.Label.Transcript != "" {
			_, _ = fmt.Fprintf(w, "  transcript: %s\n", TruncateForDisplay(data.Label.Transcript, 120))
		}
	}

	d := data.Decision
	_, _ = fmt.Fprintln(w, "\ndecision:")
	_, _ = fmt.Fprintf(w, "  verdict: %s\n", d.Decision)
	_, _ = fmt.Fprintf(w, "  final_score: %.3f\n", d.FinalScore)
	_, _ = fmt.Fprintf(w, "  quality_score: %.3f\n", d.QualityScore)
	_, _ = fmt.Fprintf(w, "  semantic: %s (weight %.2f)\n", d.SemanticCategory, d.SemanticWeight)
	_, _ = fmt.Fprintf(w, "  top_factors: %s\n", orNone(strings.Join(d.TopFactors, ", ")))
	_, _ = fmt.Fprintf(w, "  destination: %s\n", data.Plan.Destination)
	_, err := fmt.Fprintf(w, "  reason: %s\n", data.Plan.Reason)
	if err != nil {
		return err
	}

	if len(data.Factors) > 0 {
		_, _ = fmt.Fprintln(w, "\nfactors:")
		for _, f := range data.Factors {
			_, _ = fmt.Fprintf(w, "  %-24s %+.3f\n", f.Label, f.Contribution)
		}
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
