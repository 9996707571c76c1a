package scorer

import (
	"context"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/tty"
)

// Environment variables passed to every stage command.
const (
	EnvUnitID   = "CLIPSIFT_UNIT_ID"
	EnvUnitPath = "CLIPSIFT_UNIT_PATH"
	EnvMetric   = "CLIPSIFT_METRIC"
	EnvStage    = "CLIPSIFT_STAGE"
)

// Scorer runs score and transcribe stage commands against units under Root.
type Scorer struct {
	Runner Runner
	Root   string // processing root; unit ids are relative to it
}

// New returns a Scorer that executes real processes.
func New(root string) *Scorer {
	return &Scorer{Runner: ExecRunner{}, Root: root}
}

// UnitPath returns the absolute media path of unitID.
func (s *Scorer) UnitPath(unitID string) string {
	return filepath.Join(s.Root, filepath.FromSlash(unitID))
}

// Score runs a score stage for unitID and parses the metric value from the
// last non-empty line of stdout.
//
// The value is returned as printed; the ledger clamps it into [0,1].
func (s *Scorer) Score(ctx context.Context, stage config.Stage, unitID string) (float64, error) {
	out, err := s.invoke(ctx, stage, unitID)
	if err != nil {
		return 0, err
	}
	line := lastLine(string(out.Stdout))
	v, perr := strconv.ParseFloat(line, 64)
	if perr != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NewWithDetails(errors.EScorerFailed,
			"scorer printed no numeric value", details(stage, unitID, map[string]string{
				"stdout": line,
			}))
	}
	return v, nil
}

// invoke runs the stage command and converts unsuccessful outcomes into
// E_SCORER_FAILED.
func (s *Scorer) invoke(ctx context.Context, stage config.Stage, unitID string) (Output, error) {
	inv := Invocation{
		Argv:    stage.Command,
		Dir:     s.Root,
		Timeout: stage.TimeoutDuration(),
		Env: []string{
			EnvUnitID + "=" + unitID,
			EnvUnitPath + "=" + s.UnitPath(unitID),
			EnvMetric + "=" + stage.Metric,
			EnvStage + "=" + stage.Name,
		},
	}
	out, err := s.Runner.Run(ctx, inv)
	if err != nil {
		return out, errors.WrapWithDetails(errors.EScorerFailed, "failed to run stage command", err,
			details(stage, unitID, nil))
	}
	switch {
	case out.TimedOut:
		return out, errors.NewWithDetails(errors.EScorerFailed,
			"stage command timed out after "+inv.Timeout.String(), details(stage, unitID, nil))
	case out.Cancelled:
		return out, errors.NewWithDetails(errors.EScorerFailed, "stage command cancelled",
			details(stage, unitID, nil))
	case out.ExitCode != 0:
		return out, errors.NewWithDetails(errors.EScorerFailed, "stage command failed",
			details(stage, unitID, map[string]string{
				"exit_code": strconv.Itoa(out.ExitCode),
				"stderr":    tty.StripANSI(out.Stderr),
			}))
	}
	return out, nil
}

func details(stage config.Stage, unitID string, extra map[string]string) map[string]string {
	d := map[string]string{
		"stage":   stage.Name,
		"unit":    unitID,
		"command": strings.Join(stage.Command, " "),
	}
	if stage.Metric != "" {
		d["metric"] = stage.Metric
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(tty.StripANSI(s)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
