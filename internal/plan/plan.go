// Package plan maps decisions to concrete file actions.
package plan

import (
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/decide"
)

// Output folder names for non-category destinations.
const (
	FolderSelected   = "selected"
	FolderQuarantine = "quarantine"
	FolderDiscarded  = "discarded"
)

// Item is one planned action.
type Item struct {
	UnitID      string         `json:"unit_id"`
	Action      decide.Verdict `json:"action"`
	Destination string         `json:"destination"`
	Reason      string         `json:"reason"`
	Score       float64        `json:"score"`
}

// Plan maps each decision to an action under outputRoot. Kept units go to
// their category folder when the category is in the vocabulary, else to
// "selected".
func Plan(decisions []decide.Decision, outputRoot string, p config.Policy) []Item {
	items := make([]Item, 0, len(decisions))
	for _, d := range decisions {
		items = append(items, planOne(d, outputRoot, p))
	}
	return items
}

func planOne(d decide.Decision, outputRoot string, p config.Policy) Item {
	item := Item{
		UnitID: d.UnitID,
		Action: d.Decision,
		Reason: Reason(d.TopFactors),
		Score:  d.FinalScore,
	}
	switch d.Decision {
	case decide.Keep:
		folder := FolderSelected
		if p.IsKnownCategory(d.SemanticCategory) {
			folder = d.SemanticCategory
		}
		item.Destination = filepath.Join(outputRoot, folder)
	case decide.Quarantine:
		item.Destination = filepath.Join(outputRoot, FolderQuarantine)
		item.Reason += " (Borderline)"
	default:
		item.Action = decide.Discard
		item.Destination = filepath.Join(outputRoot, FolderDiscarded)
	}
	return item
}

// Reason renders top factors as a readable string.
func Reason(topFactors []string) string {
	if len(topFactors) == 0 {
		return "low score"
	}
	return strings.Join(topFactors, ", ")
}

// Folders returns every destination folder a plan can target, for reset
// and summary listings.
func Folders(p config.Policy) []string {
	out := append([]string(nil), p.Categories...)
	return append(out, FolderSelected, FolderQuarantine, FolderDiscarded)
}
