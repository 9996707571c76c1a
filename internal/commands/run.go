package commands

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/NielsdaWheelz/clipsift/internal/discover"
	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/pipeline"
	"github.com/NielsdaWheelz/clipsift/internal/render"
	"github.com/NielsdaWheelz/clipsift/internal/scorer"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
)

// progressEvery is how often (in units) per-unit progress is logged at info level.
const progressEvery = 25

// RunOpts holds options for the run command.
type RunOpts struct {
	// ProcessingDir overrides the configured processing root.
	ProcessingDir string

	// OutputDir overrides the configured output root.
	OutputDir string

	// Redecide reruns decide, plan, execute and report even when all
	// units completed them.
	Redecide bool

	// JSON prints the run result as JSON.
	JSON bool
}

// Run discovers units under the processing root and runs the pipeline over
// them. A run that was stopped or failed resumes from persisted state the
// next time it is started.
func Run(ctx context.Context, env *Env, opts RunOpts, stdout io.Writer) error {
	processing := env.ProcessingDir(opts.ProcessingDir)
	output := env.OutputDir(opts.OutputDir)

	units, err := discover.Units(processing, output)
	if err != nil {
		return err
	}

	st, err := env.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	led, err := env.openLedger()
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()

	llm, err := semantic.NewLLM(env.Config.Semantic)
	if err != nil {
		return err
	}

	classifier := semantic.NewClassifier(llm, env.Config.Policy.Categories)
	classifier.Warn = env.Log.Warn

	runID := uuid.NewString()
	o := &pipeline.Orchestrator{
		Config:     env.Config,
		Layout:     env.Layout,
		FS:         env.FS,
		Store:      st,
		Ledger:     led,
		Labels:     env.labels(),
		Scorer:     scorer.New(processing),
		Classifier: classifier,
		Log:        env.Log,
		Events: &events.Recorder{
			Path:      env.Layout.EventsPath(),
			Namespace: env.Layout.Namespace,
			RunID:     runID,
			Now:       env.Now,
		},
		Now:           env.Now,
		RunID:         runID,
		ProcessingDir: processing,
		OutputDir:     output,
		Redecide:      opts.Redecide,
	}
	if !opts.JSON {
		o.Progress = func(p pipeline.Progress) {
			if p.Done == p.Total || p.Done%progressEvery == 0 {
				env.Log.Info("[%s] %d/%d", p.Stage, p.Done, p.Total)
			}
		}
	}

	env.Log.Debug("processing %s, output %s, config %s", processing, output, orDefault(env.ConfigPath))
	res, runErr := o.Run(ctx, units)
	if opts.JSON {
		if err := render.WriteJSON(stdout, res); err != nil && runErr == nil {
			return err
		}
	}
	return runErr
}

func orDefault(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
