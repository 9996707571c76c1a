// Package pipeline drives a namespace run: the configured per-unit stages
// through a bounded worker pool, then the decide, plan, execute and report
// batch stages.
//
// Stages run strictly in order. A stage is skipped as a whole when every
// tracked unit already completed it. A stage-fatal error halts the run and
// leaves all persisted state in place for the next run to resume from.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/NielsdaWheelz/clipsift/internal/analytics"
	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/execute"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
	"github.com/NielsdaWheelz/clipsift/internal/logging"
	"github.com/NielsdaWheelz/clipsift/internal/paths"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
	"github.com/NielsdaWheelz/clipsift/internal/store"
	"github.com/NielsdaWheelz/clipsift/internal/watchdog"
)

// StageState is the lifecycle state of one stage within a run.
type StageState string

const (
	StateNotStarted StageState = "not_started"
	StateRunning    StageState = "running"
	StateDone       StageState = "done"
	StateFailed     StageState = "failed"
	StateSkipped    StageState = "skipped"
)

// runLockTimeout bounds the wait for another run in the same namespace.
const runLockTimeout = 200 * time.Millisecond

// UnitScorer runs the external commands of per-unit stages.
type UnitScorer interface {
	Score(ctx context.Context, stage config.Stage, unitID string) (float64, error)
	Transcribe(ctx context.Context, stage config.Stage, unitID string) (string, error)
}

// Progress reports one finished unit of a per-unit stage.
type Progress struct {
	Stage  string
	Unit   string
	Done   int
	Total  int
	Failed bool
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name       string     `json:"name"`
	State      StageState `json:"state"`
	Units      int        `json:"units"`
	Failed     int        `json:"failed,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// Result is the outcome of a run.
type Result struct {
	RunID   string             `json:"run_id"`
	Units   int                `json:"units"`
	Added   int                `json:"added"`
	Stages  []StageResult      `json:"stages"`
	Execute *execute.Result    `json:"execute,omitempty"`
	Summary *analytics.Summary `json:"summary,omitempty"`
	Stopped bool               `json:"stopped,omitempty"`
}

// Orchestrator runs the pipeline for one namespace.
type Orchestrator struct {
	Config        config.Config
	Layout        paths.Layout
	FS            fs.FS
	Store         store.Store
	Ledger        ledger.Ledger
	Labels        *semantic.Labels
	Scorer        UnitScorer
	Classifier    *semantic.Classifier
	Log           *logging.Logger
	Events        *events.Recorder // optional
	Progress      func(Progress)   // optional
	Now           func() time.Time
	RunID         string
	ProcessingDir string
	OutputDir     string

	// Redecide runs the batch stages even when every unit already completed
	// them, e.g. after scores or labels were set by hand.
	Redecide bool

	// PollInterval is how often the stop marker is checked.
	PollInterval time.Duration

	progressMu sync.Mutex
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes every declared stage over units, which are registered in
// the State Store first. Units tracked from earlier runs take part too.
//
// Run returns E_STOPPED when a stop was requested (stop marker or ctx) and
// E_STAGE_FAILED when a stage hit a fatal error. In both cases the partial
// Result is returned along with the error.
func (o *Orchestrator) Run(ctx context.Context, units []string) (Result, error) {
	start := o.now()
	res := Result{RunID: o.RunID}
	stageNames := o.Config.StageNames()
	for _, name := range stageNames {
		res.Stages = append(res.Stages, StageResult{Name: name, State: StateNotStarted})
	}

	if len(units) == 0 {
		return res, errors.NewWithDetails(errors.ENoUnits, "no media units found",
			map[string]string{"path": o.ProcessingDir, "namespace": o.Layout.Namespace})
	}

	lockCtx, cancelLock := context.WithTimeout(ctx, runLockTimeout)
	unlock, err := lock.ExclusiveContext(lockCtx, o.Layout.RunLockPath())
	cancelLock()
	if err != nil {
		return res, errors.WrapWithDetails(errors.ELockFailed, "another run is active in this namespace", err,
			map[string]string{"namespace": o.Layout.Namespace})
	}
	defer unlock()

	stopPath := o.Layout.StopPath()
	if err := watchdog.ClearStop(stopPath); err != nil {
		o.Log.Warn("failed to clear stale stop request: %v", err)
	}
	defer func() { _ = watchdog.ClearStop(stopPath) }()

	launchCtx, stop := context.WithCancel(ctx)
	defer stop()
	go watchdog.Watch(launchCtx, stopPath, o.PollInterval, func() {
		o.Log.Warn("stop requested; finishing in-flight units")
		stop()
	})

	added, err := o.Store.Initialize(units)
	if err != nil {
		return res, err
	}
	res.Added = added
	res.Units = len(o.Store.Units())
	o.Events.Record(events.RunStarted, map[string]any{
		"units":  res.Units,
		"added":  added,
		"stages": stageNames,
	})
	o.Log.Info("run %s: %d units (%d new), %d stages", o.RunID, res.Units, added, len(stageNames))

	stageCfg := make(map[string]config.Stage, len(o.Config.Stages))
	for _, s := range o.Config.Stages {
		stageCfg[s.Name] = s
	}

	var ran, skipped int
	dirty := false
	for i, name := range stageNames {
		if launchCtx.Err() != nil {
			return o.stopped(res, start, ran, skipped)
		}

		tracked := o.Store.Units()
		_, perUnit := stageCfg[name]
		force := !perUnit && (dirty || o.Redecide)
		if !force && o.allDone(tracked, name) {
			res.Stages[i].State = StateSkipped
			res.Stages[i].Units = len(tracked)
			skipped++
			o.Events.Record(events.StageSkipped, events.StageData(name, len(tracked)))
			o.Log.Info("skip %s: all %d units done", name, len(tracked))
			continue
		}

		res.Stages[i].State = StateRunning
		stageStart := o.now()
		o.Events.Record(events.StageStarted, events.StageData(name, len(tracked)))
		o.Log.Info("stage %s", name)

		var sr StageResult
		if perUnit {
			sr, err = o.runUnitStage(launchCtx, stageCfg[name], tracked)
			if sr.Units > 0 {
				dirty = true
			}
		} else {
			sr, err = o.runBatchStage(launchCtx, name, tracked, &res)
		}
		sr.Name = name
		sr.DurationMS = o.now().Sub(stageStart).Milliseconds()
		res.Stages[i] = sr
		ran++

		if err != nil {
			if errors.GetCode(err) == errors.EStopped {
				// Stopped mid-stage; the stage stays incomplete.
				res.Stages[i].State = StateRunning
				return o.stoppedWith(res, start, ran, skipped, err)
			}
			res.Stages[i].State = StateFailed
			o.Events.Record(events.StageFailed, events.StageFailedData(name, string(errors.GetCode(err)), err.Error()))
			o.Log.Error("stage %s failed: %v", name, err)
			return res, errors.WrapWithDetails(errors.EStageFailed, "stage "+name+" failed", err,
				map[string]string{"stage": name, "namespace": o.Layout.Namespace, "run_id": o.RunID})
		}
		res.Stages[i].State = StateDone
		o.Events.Record(events.StageFinished, events.StageData(name, sr.Units))
		if sr.Failed > 0 {
			o.Log.Warn("stage %s finished: %d units, %d failed", name, sr.Units, sr.Failed)
		} else {
			o.Log.Success("stage %s finished: %d units", name, sr.Units)
		}
	}

	durMs := o.now().Sub(start).Milliseconds()
	o.Events.Record(events.RunFinished, events.RunFinishedData(ran, skipped, durMs))
	o.Log.Success("run %s finished in %s", o.RunID, time.Duration(durMs)*time.Millisecond)
	return res, nil
}

func (o *Orchestrator) stopped(res Result, start time.Time, ran, skipped int) (Result, error) {
	return o.stoppedWith(res, start, ran, skipped,
		errors.NewWithDetails(errors.EStopped, "run stopped before all stages completed",
			map[string]string{"namespace": o.Layout.Namespace}))
}

func (o *Orchestrator) stoppedWith(res Result, start time.Time, ran, skipped int, err error) (Result, error) {
	res.Stopped = true
	durMs := o.now().Sub(start).Milliseconds()
	o.Events.Record(events.RunStopped, events.RunFinishedData(ran, skipped, durMs))
	o.Log.Warn("run %s stopped; progress is saved, run again to resume", o.RunID)
	return res, err
}

// allDone reports whether every tracked unit completed stage.
func (o *Orchestrator) allDone(tracked []string, stage string) bool {
	return len(o.pending(tracked, stage)) == 0
}

// pending returns the tracked units that have not completed stage, checked
// against one snapshot of the store.
func (o *Orchestrator) pending(tracked []string, stage string) []string {
	snap := o.Store.Snapshot()
	return lo.Filter(tracked, func(id string, _ int) bool {
		u, ok := snap[id]
		return !ok || !u.StageDone(stage)
	})
}

func (o *Orchestrator) progress(p Progress) {
	if o.Progress == nil {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.Progress(p)
}

// advisory records a best-effort status update. Failures are logged only.
func (o *Orchestrator) advisory(unitID string, status store.Status, stage, message string) {
	if err := o.Store.UpdateStatus(unitID, status, stage, message); err != nil {
		o.Log.Debug("status update for %s failed: %v", unitID, err)
	}
}
