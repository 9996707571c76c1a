// Package render provides output formatting for clipsift commands.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/store"
)

// Constants for human output formatting.
const (
	// UnitMaxLen is the maximum display length for a unit id in human output.
	UnitMaxLen = 50

	// MessageMaxLen is the maximum display length for the last message.
	MessageMaxLen = 60
)

// StatusRow holds the fields for a single human-output row.
type StatusRow struct {
	UnitID   string
	Status   string
	Stage    string
	Progress string // "<done>/<total>"
	Updated  string
	Message  string
}

// StatusData holds everything status prints.
type StatusData struct {
	Namespace     string
	Backend       string
	Stages        []string
	Counts        map[store.Status]int
	Rows          []StatusRow
	Run           string // derived namespace status, see package status
	RunActive     bool
	Stalled       time.Duration // zero when not stalled
	StopRequested bool
}

// WriteStatusHuman writes the status output in human-readable format.
// Fields are separated by whitespace columns for easy scanning.
func WriteStatusHuman(w io.Writer, data StatusData) error {
	if _, err := fmt.Fprintf(w, "namespace: %s\n", data.Namespace); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "backend: %s\n", data.Backend)
	_, _ = fmt.Fprintf(w, "stages: %s\n", strings.Join(data.Stages, " -> "))
	_, _ = fmt.Fprintf(w, "run: %s\n", runLine(data))
	_, _ = fmt.Fprintf(w, "units: %d (pending %d, processing %d, completed %d, failed %d)\n",
		len(data.Rows),
		data.Counts[store.StatusPending],
		data.Counts[store.StatusProcessing],
		data.Counts[store.StatusCompleted],
		data.Counts[store.StatusFailed],
	)

	if len(data.Rows) == 0 {
		_, err := fmt.Fprintln(w, "\nno units tracked (run 'clipsift run' to start)")
		return err
	}

	widths := columnWidths(data.Rows)
	_, _ = fmt.Fprintln(w)
	header := formatRow(widths, StatusRow{
		UnitID:   "UNIT",
		Status:   "STATUS",
		Stage:    "STAGE",
		Progress: "DONE",
		Updated:  "UPDATED",
		Message:  "MESSAGE",
	})
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, row := range data.Rows {
		if _, err := fmt.Fprintln(w, formatRow(widths, row)); err != nil {
			return err
		}
	}
	return nil
}

func runLine(data StatusData) string {
	line := data.Run
	if line == "" {
		line = "idle"
		if data.RunActive {
			line = "running"
		}
	}
	if data.Stalled > 0 {
		line += fmt.Sprintf(" (no progress for %s)", data.Stalled.Round(time.Minute))
	}
	if data.StopRequested && line != "stopping" {
		line += ", stop requested"
	}
	return line
}

// colWidths holds the calculated column widths. The message column is last
// and unpadded.
type colWidths struct {
	unit     int
	status   int
	stage    int
	progress int
	updated  int
}

// columnWidths calculates the maximum width for each column.
func columnWidths(rows []StatusRow) colWidths {
	widths := colWidths{
		unit:     len("UNIT"),
		status:   len("STATUS"),
		stage:    len("STAGE"),
		progress: len("DONE"),
		updated:  len("UPDATED"),
	}

	for _, row := range rows {
		widths.unit = max(widths.unit, len(row.UnitID))
		widths.status = max(widths.status, len(row.Status))
		widths.stage = max(widths.stage, len(row.Stage))
		widths.progress = max(widths.progress, len(row.Progress))
		widths.updated = max(widths.updated, len(row.Updated))
	}

	return widths
}

// formatRow formats a row with the given column widths.
func formatRow(w colWidths, row StatusRow) string {
	line := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %-*s  %s",
		w.unit, row.UnitID,
		w.status, row.Status,
		w.stage, row.Stage,
		w.progress, row.Progress,
		w.updated, row.Updated,
		row.Message,
	)
	return strings.TrimRight(line, " ")
}

// FormatStatusRows converts a state snapshot to rows sorted by unit id.
func FormatStatusRows(units map[string]store.UnitState, totalStages int, now time.Time) []StatusRow {
	ids := make([]string, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]StatusRow, len(ids))
	for i, id := range ids {
		rows[i] = FormatStatusRow(id, units[id], totalStages, now)
	}
	return rows
}

// FormatStatusRow converts a unit state to a StatusRow for display.
func FormatStatusRow(unitID string, u store.UnitState, totalStages int, now time.Time) StatusRow {
	row := StatusRow{
		UnitID:   TruncateForDisplay(unitID, UnitMaxLen),
		Status:   string(u.Status),
		Stage:    u.CurrentStage,
		Progress: fmt.Sprintf("%d/%d", len(u.CompletedStages), totalStages),
		Message:  TruncateForDisplay(u.LastMessage, MessageMaxLen),
	}
	if u.Status == store.StatusCompleted {
		row.Progress = fmt.Sprintf("%d/%d", totalStages, totalStages)
	}
	if row.Stage == "" {
		row.Stage = "-"
	}
	if t, err := time.Parse(time.RFC3339, u.UpdatedAt); err == nil {
		row.Updated = formatRelativeTime(t, now)
	}
	return row
}

// CountStatuses tallies units by status.
func CountStatuses(units map[string]store.UnitState) map[store.Status]int {
	counts := map[store.Status]int{}
	for _, u := range units {
		counts[u.Status]++
	}
	return counts
}

// formatRelativeTime formats a time as a human-friendly relative string.
func formatRelativeTime(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// TruncateForDisplay is a helper to safely truncate any string for display.
func TruncateForDisplay(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
