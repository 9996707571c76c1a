package commands

import (
	"io"

	"github.com/samber/lo"

	"github.com/NielsdaWheelz/clipsift/internal/decide"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/ids"
	"github.com/NielsdaWheelz/clipsift/internal/plan"
	"github.com/NielsdaWheelz/clipsift/internal/render"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
)

// ShowOpts holds options for the show command.
type ShowOpts struct {
	// UnitID is the unit to show (required).
	UnitID string

	// OutputDir overrides the configured output root for the planned destination.
	OutputDir string

	JSON bool
}

// Show prints one unit's state, scores, label and the decision the current
// policy makes for it. A unit is known when it is tracked, scored or labelled;
// it may be named by a unique id prefix or base name.
func Show(env *Env, opts ShowOpts, stdout io.Writer) error {
	if opts.UnitID == "" {
		return errors.New(errors.EUsage, "unit is required")
	}

	st, err := env.openStore()
	if err != nil {
		return err
	}
	led, err := env.openLedger()
	if err != nil {
		_ = st.Close()
		return err
	}
	labels := env.labels()

	unitID, err := ids.ResolveUnit(opts.UnitID, ids.Merge(st.Units(), lo.Keys(led.All()), labels.Units()))
	if err != nil {
		_ = st.Close()
		_ = led.Close()
		return ids.ToClipError(err, env.Layout.Namespace)
	}
	state, _ := st.Get(unitID)
	scores := led.Scores(unitID)
	_ = st.Close()
	_ = led.Close()

	var label *semantic.Label
	if l, ok := labels.Get(unitID); ok {
		label = &l
	}

	p := env.Config.Policy
	d := decide.Decide(unitID, scores, label, p)
	data := render.ShowData{
		UnitID:   unitID,
		State:    state,
		Scores:   scores,
		Label:    label,
		Decision: d,
		Factors:  decide.Factors(scores, label, p),
		Plan:     plan.Plan([]decide.Decision{d}, env.OutputDir(opts.OutputDir), p)[0],
	}
	if data.State.Status == "" {
		data.State.Status = "UNTRACKED"
	}

	if opts.JSON {
		return render.WriteJSON(stdout, data)
	}
	return render.WriteShowHuman(stdout, data)
}
