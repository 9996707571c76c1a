package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/decide"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
	"github.com/NielsdaWheelz/clipsift/internal/store"
)

// runUnitStage processes every tracked unit that has not completed stage
// on a pool of Config.WorkerCount() workers.
//
// Per-unit failures are recovered locally: the unit is marked FAILED and
// keeps the stage pending for the next run. A fatal error cancels the pool
// and is returned once in-flight units drain. When launchCtx ends before
// all units were launched, E_STOPPED is returned.
func (o *Orchestrator) runUnitStage(launchCtx context.Context, stage config.Stage, tracked []string) (StageResult, error) {
	pending := o.pending(tracked, stage.Name)
	sr := StageResult{Name: stage.Name, Units: len(pending)}

	// In-flight units finish even after a stop request.
	workCtx := context.WithoutCancel(launchCtx)

	g, gctx := errgroup.WithContext(launchCtx)
	g.SetLimit(o.Config.WorkerCount())

	var (
		mu       sync.Mutex
		done     int
		failed   int
		launched int
	)
	for _, id := range pending {
		id := id
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			mu.Lock()
			launched++
			mu.Unlock()

			ok, err := o.processUnit(workCtx, stage, id)
			if err != nil {
				return err
			}

			mu.Lock()
			done++
			if !ok {
				failed++
			}
			p := Progress{Stage: stage.Name, Unit: id, Done: done, Total: len(pending), Failed: !ok}
			mu.Unlock()

			o.progress(p)
			o.Log.Debug("[%s] %d/%d %s", stage.Name, p.Done, p.Total, id)
			return nil
		})
	}
	err := g.Wait()
	sr.Failed = failed
	if err != nil {
		return sr, err
	}
	if launched < len(pending) && launchCtx.Err() != nil {
		return sr, errors.NewWithDetails(errors.EStopped, "stopped during stage "+stage.Name,
			map[string]string{"stage": stage.Name, "namespace": o.Layout.Namespace})
	}
	return sr, nil
}

// processUnit runs one stage for one unit. It reports ok=false for a
// recovered per-unit failure and returns an error only when it is fatal.
func (o *Orchestrator) processUnit(ctx context.Context, stage config.Stage, unitID string) (bool, error) {
	// A FAILED unit stays visible as failed until it completes.
	if u, ok := o.Store.Get(unitID); !ok || u.Status != store.StatusFailed {
		o.advisory(unitID, store.StatusProcessing, stage.Name, "")
	}

	var err error
	switch stage.Kind {
	case config.KindScore:
		err = o.scoreUnit(ctx, stage, unitID)
	case config.KindTranscribe:
		err = o.labelUnit(ctx, stage, unitID)
	default:
		err = errors.NewWithDetails(errors.EInternal, "unknown stage kind "+stage.Kind,
			map[string]string{"stage": stage.Name})
	}
	if err != nil {
		if errors.IsFatal(err) {
			return false, err
		}
		o.Log.Warn("%s: %s failed: %v", stage.Name, unitID, err)
		o.Events.Record(events.UnitFailed, events.UnitFailedData(stage.Name, unitID, err.Error()))
		o.advisory(unitID, store.StatusFailed, stage.Name, err.Error())
		return false, nil
	}

	if err := o.Store.MarkStageDone(unitID, stage.Name); err != nil {
		return false, persistErr(err, "failed to record stage completion", unitID)
	}
	return true, nil
}

func (o *Orchestrator) scoreUnit(ctx context.Context, stage config.Stage, unitID string) error {
	v, err := o.Scorer.Score(ctx, stage, unitID)
	if err != nil {
		return err
	}
	if err := o.Ledger.UpdateScore(unitID, stage.Metric, v); err != nil {
		return persistErr(err, "failed to record score", unitID)
	}
	return nil
}

// labelUnit transcribes and classifies a unit. Manual labels are kept as
// they are, and units below the policy's minimum quality are labelled
// low_quality without transcription.
func (o *Orchestrator) labelUnit(ctx context.Context, stage config.Stage, unitID string) error {
	if existing, ok := o.Labels.Get(unitID); ok && existing.Attribution == semantic.AttributionManual {
		o.Log.Debug("%s: keeping manual label %s", unitID, existing.Category)
		return nil
	}

	var label semantic.Label
	if q := decide.Quality(o.Ledger.Scores(unitID), o.Config.Policy); q < o.Config.Policy.MinSemanticQuality {
		label = semantic.Label{Category: config.CategoryLowQuality, Attribution: semantic.AttributionFallback}
	} else {
		text, err := o.Scorer.Transcribe(ctx, stage, unitID)
		if err != nil {
			return err
		}
		label = o.Classifier.Classify(ctx, text)
	}

	if err := o.Labels.Put(unitID, label); err != nil {
		return persistErr(err, "failed to record label", unitID)
	}
	return nil
}

// persistErr makes sure a storage failure carries a fatal code.
func persistErr(err error, msg, unitID string) error {
	if errors.IsFatal(err) {
		return err
	}
	return errors.WrapWithDetails(errors.EPersistFailed, msg, err, map[string]string{"unit": unitID})
}
