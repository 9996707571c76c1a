package pipeline

import (
	"context"
	"os"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/analytics"
	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/decide"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/execute"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
	"github.com/NielsdaWheelz/clipsift/internal/plan"
)

// runBatchStage runs one reserved stage over all tracked units at once and
// marks it done for every one of them.
//
// Decisions are recomputed from the ledger and labels by every stage that
// needs them; decisions.json and action_plan.json are artifacts, not inputs.
func (o *Orchestrator) runBatchStage(ctx context.Context, name string, tracked []string, res *Result) (StageResult, error) {
	sr := StageResult{Name: name, Units: len(tracked)}
	p := o.Config.Policy

	var err error
	switch name {
	case config.StageDecide:
		scores := o.trackedScores(tracked)
		decisions := decide.All(scores, o.Labels.All(), p)
		if err = o.writeJSON(o.Layout.DecisionsPath(), decisions); err == nil {
			err = decide.AppendLog(o.Layout.DecisionLogPath(), decisions, scores, p.Weights, o.now())
			if err != nil {
				err = errors.WrapWithDetails(errors.EPersistFailed, "failed to append decision log", err,
					map[string]string{"path": o.Layout.DecisionLogPath()})
			}
		}
		if err == nil {
			o.Log.Info("decided %d units", len(decisions))
		}

	case config.StagePlan:
		items := plan.Plan(o.decisions(tracked), o.OutputDir, p)
		err = o.writeJSON(o.Layout.ActionPlanPath(), items)

	case config.StageExecute:
		items := plan.Plan(o.decisions(tracked), o.OutputDir, p)
		ex := execute.New(o.ProcessingDir, o.Layout.AuditPath(), o.Log)
		ex.RunID = o.RunID
		ex.OutputRoot = o.OutputDir
		ex.Folders = plan.Folders(p)
		var er execute.Result
		er, err = ex.Execute(ctx, items)
		res.Execute = &er
		sr.Failed = er.Failed
		if err == nil {
			o.Log.Info("copied %d, skipped %d, failed %d", er.Copied, er.Skipped, er.Failed)
		}

	case config.StageReport:
		var s analytics.Summary
		s, err = o.report(tracked)
		if err == nil {
			res.Summary = &s
		}

	default:
		err = errors.NewWithDetails(errors.EInternal, "unknown batch stage "+name,
			map[string]string{"stage": name})
	}
	if err != nil {
		return sr, err
	}

	for _, id := range tracked {
		if err := o.Store.MarkStageDone(id, name); err != nil {
			return sr, persistErr(err, "failed to record stage completion", id)
		}
	}
	return sr, nil
}

func (o *Orchestrator) report(tracked []string) (analytics.Summary, error) {
	scores := o.trackedScores(tracked)
	decisions := decide.All(scores, o.Labels.All(), o.Config.Policy)
	audit, err := execute.ReadAudit(o.Layout.AuditPath())
	if err != nil && !os.IsNotExist(err) {
		o.Log.Warn("failed to read audit log: %v", err)
	}

	s := analytics.Summarize(decisions, scores, audit, o.Config.Policy, o.now())
	s.RunID = o.RunID
	if err := o.writeJSON(o.Layout.SummaryPath(), s); err != nil {
		return s, err
	}
	if err := o.writeJSON(o.Layout.ExplanationsPath(), analytics.Explain(decisions)); err != nil {
		return s, err
	}
	for _, line := range strings.Split(analytics.Narrative(s), "\n") {
		o.Log.Info("%s", line)
	}
	return s, nil
}

// decisions decides every tracked unit from the current ledger and labels.
func (o *Orchestrator) decisions(tracked []string) []decide.Decision {
	return decide.All(o.trackedScores(tracked), o.Labels.All(), o.Config.Policy)
}

// trackedScores returns the scores of every tracked unit; unscored units
// map to an empty set.
func (o *Orchestrator) trackedScores(tracked []string) map[string]ledger.Scores {
	all := o.Ledger.All()
	out := make(map[string]ledger.Scores, len(tracked))
	for _, id := range tracked {
		s := all[id]
		if s == nil {
			s = ledger.Scores{}
		}
		out[id] = s
	}
	return out
}

func (o *Orchestrator) writeJSON(path string, v any) error {
	if err := fs.WriteJSONAtomic(o.FS, path, v); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write artifact", err,
			map[string]string{"path": path})
	}
	return nil
}
