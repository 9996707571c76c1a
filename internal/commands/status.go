package commands

import (
	"io"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
	"github.com/NielsdaWheelz/clipsift/internal/render"
	"github.com/NielsdaWheelz/clipsift/internal/status"
	"github.com/NielsdaWheelz/clipsift/internal/store"
	"github.com/NielsdaWheelz/clipsift/internal/watchdog"
)

// StatusOpts holds options for the status command.
type StatusOpts struct {
	JSON bool
}

// statusJSON is the stable JSON shape of status output.
type statusJSON struct {
	Namespace     string                     `json:"namespace"`
	Backend       string                     `json:"backend"`
	Stages        []string                   `json:"stages"`
	Run           string                     `json:"run_status"`
	RunActive     bool                       `json:"run_active"`
	Stalled       bool                       `json:"stalled"`
	StopRequested bool                       `json:"stop_requested"`
	Counts        map[store.Status]int       `json:"counts"`
	Units         map[string]store.UnitState `json:"units"`
}

// Status prints the lifecycle status of every tracked unit and whether a
// run is active, stalled or asked to stop.
func Status(env *Env, opts StatusOpts, stdout io.Writer) error {
	runActive := lock.Held(env.Layout.RunLockPath())

	units := map[string]store.UnitState{}
	if runActive && env.Config.Backend == config.BackendBolt {
		// The active run holds the bolt file for its whole lifetime.
		env.Log.Warn("state database is held by the active run; unit rows unavailable")
	} else {
		st, err := env.openStore()
		if err != nil {
			return err
		}
		units = st.Snapshot()
		_ = st.Close()
	}

	statePath := env.Layout.StatePath()
	if env.Config.Backend == config.BackendBolt {
		statePath = env.Layout.StateBoltPath()
	}
	stall := watchdog.CheckStallWithDefault(watchdog.ActivitySignals{
		StateModTime: watchdog.ModTime(statePath),
		RunActive:    runActive,
	})
	stopRequested := watchdog.StopRequested(env.Layout.StopPath())
	counts := render.CountStatuses(units)
	stages := env.Config.StageNames()

	last, _, err := events.LastEvent(env.Layout.EventsPath())
	if err != nil {
		env.Log.Debug("events log unreadable: %v", err)
	}
	run := status.Derive(status.Snapshot{
		RunActive:     runActive,
		StopRequested: stopRequested,
		StallResult:   &stall,
		LastRunEvent:  last.Event,
		Counts:        counts,
	})

	if opts.JSON {
		return render.WriteJSON(stdout, statusJSON{
			Namespace:     env.Layout.Namespace,
			Backend:       env.Config.Backend,
			Stages:        stages,
			Run:           run,
			RunActive:     runActive,
			Stalled:       stall.IsStalled,
			StopRequested: stopRequested,
			Counts:        counts,
			Units:         units,
		})
	}

	data := render.StatusData{
		Namespace:     env.Layout.Namespace,
		Backend:       env.Config.Backend,
		Stages:        stages,
		Counts:        counts,
		Rows:          render.FormatStatusRows(units, len(stages), env.Now()),
		Run:           run,
		RunActive:     runActive,
		StopRequested: stopRequested,
	}
	if stall.IsStalled {
		data.Stalled = stall.StalledDuration.Round(time.Second)
	}
	return render.WriteStatusHuman(stdout, data)
}
