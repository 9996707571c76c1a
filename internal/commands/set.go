package commands

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
)

// SetScoreOpts holds options for score set.
type SetScoreOpts struct {
	UnitID string
	Metric string
	Value  string
}

// SetScore records a metric score for a unit, the way a perception stage
// would. Values are clamped to [0,1].
func SetScore(env *Env, opts SetScoreOpts, stdout io.Writer) error {
	if opts.UnitID == "" || opts.Metric == "" {
		return errors.New(errors.EUsage, "unit and metric are required")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(opts.Value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NewWithDetails(errors.EInvalidValue, "score must be a finite number: "+opts.Value,
			map[string]string{"unit": opts.UnitID, "metric": opts.Metric})
	}
	if _, ok := env.Config.Policy.Weights[opts.Metric]; !ok {
		env.Log.Warn("metric %s has no weight in the policy and will not affect decisions", opts.Metric)
	}

	led, err := env.openLedger()
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()
	if err := led.UpdateScore(opts.UnitID, opts.Metric, v); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "%s %s = %.3f\n", opts.UnitID, opts.Metric, ledger.Clamp(v))
	return nil
}

// SetLabelOpts holds options for label set.
type SetLabelOpts struct {
	UnitID      string
	Category    string
	Transcript  string
	Attribution string // defaults to manual
}

// SetLabel records a semantic label for a unit. Manual labels survive later
// transcribe stages.
func SetLabel(env *Env, opts SetLabelOpts, stdout io.Writer) error {
	if opts.UnitID == "" || opts.Category == "" {
		return errors.New(errors.EUsage, "unit and category are required")
	}
	p := env.Config.Policy
	switch {
	case p.IsKnownCategory(opts.Category),
		opts.Category == config.CategoryUnknown,
		opts.Category == config.CategoryLowQuality:
	default:
		return errors.NewWithDetails(errors.EInvalidValue, "unknown category: "+opts.Category,
			map[string]string{"unit": opts.UnitID, "hint": "one of " + strings.Join(p.Categories, ", ")})
	}

	attr := semantic.Attribution(opts.Attribution)
	if attr == "" {
		attr = semantic.AttributionManual
	}
	if !attr.Valid() {
		return errors.NewWithDetails(errors.EInvalidValue, "unknown attribution: "+opts.Attribution,
			map[string]string{"unit": opts.UnitID, "hint": "one of regex, llm, fallback, manual"})
	}

	label := semantic.Label{Category: opts.Category, Transcript: opts.Transcript, Attribution: attr}
	if err := env.labels().Put(opts.UnitID, label); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "%s labelled %s (%s)\n", opts.UnitID, opts.Category, attr)
	return nil
}
