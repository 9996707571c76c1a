package commands

import (
	"io"
	"os"

	"github.com/NielsdaWheelz/clipsift/internal/analytics"
	"github.com/NielsdaWheelz/clipsift/internal/decide"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/execute"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
	"github.com/NielsdaWheelz/clipsift/internal/render"
)

// SummaryOpts holds options for the summary command.
type SummaryOpts struct {
	// Live recomputes the summary from current scores and labels instead of
	// reading the last run's report.
	Live bool

	JSON bool
}

// Summary prints the run summary. Without a report on disk (or with Live)
// it is computed from the current ledger, labels and audit log.
func Summary(env *Env, opts SummaryOpts, stdout io.Writer) error {
	var s analytics.Summary
	err := fs.ReadJSON(env.FS, env.Layout.SummaryPath(), &s)
	switch {
	case err == nil && !opts.Live:
	case err == nil || os.IsNotExist(err):
		if s, err = liveSummary(env); err != nil {
			return err
		}
	default:
		env.Log.Warn("run summary unreadable, recomputing: %v", err)
		if s, err = liveSummary(env); err != nil {
			return err
		}
	}

	if opts.JSON {
		return render.WriteJSON(stdout, s)
	}
	return render.WriteSummaryHuman(stdout, s)
}

func liveSummary(env *Env) (analytics.Summary, error) {
	st, err := env.openStore()
	if err != nil {
		return analytics.Summary{}, err
	}
	units := st.Units()
	_ = st.Close()

	led, err := env.openLedger()
	if err != nil {
		return analytics.Summary{}, err
	}
	all := led.All()
	_ = led.Close()

	scores := make(map[string]ledger.Scores, len(units))
	for _, id := range units {
		s := all[id]
		if s == nil {
			s = ledger.Scores{}
		}
		scores[id] = s
	}

	p := env.Config.Policy
	decisions := decide.All(scores, env.labels().All(), p)
	audit, err := execute.ReadAudit(env.Layout.AuditPath())
	if err != nil && !os.IsNotExist(err) {
		return analytics.Summary{}, errors.WrapWithDetails(errors.EStoreCorrupt, "failed to read audit log", err,
			map[string]string{"path": env.Layout.AuditPath()})
	}
	return analytics.Summarize(decisions, scores, audit, p, env.Now()), nil
}
