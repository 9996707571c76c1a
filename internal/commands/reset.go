package commands

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
)

// resetLockTimeout bounds the wait for an active run to release the namespace.
const resetLockTimeout = 200 * time.Millisecond

// ResetOpts holds options for the reset command.
type ResetOpts struct {
	// Yes skips the confirmation prompt.
	Yes bool

	// OutputDir overrides the configured output root.
	OutputDir string
}

// Reset wipes the namespace: unit state, scores, labels, artifacts and the
// output tree. The events log is kept and gets a reset event.
//
// Without --yes an interactive terminal must confirm by typing 'reset'.
// Everything removed must resolve inside the namespace directory; an output
// root configured elsewhere is left alone.
func Reset(ctx context.Context, env *Env, opts ResetOpts, stdin io.Reader, stderr io.Writer) error {
	ns := env.Layout.Namespace
	root := env.Layout.Root()

	if !opts.Yes {
		if !isInteractive() {
			return errors.NewWithDetails(errors.EConfirmationRequired,
				"reset deletes all state for the namespace; pass --yes to confirm",
				map[string]string{"namespace": ns})
		}
		_, _ = fmt.Fprintf(stderr, "reset wipes state, scores, labels and output of namespace %s\n", ns)
		_, _ = fmt.Fprint(stderr, "confirm: type 'reset' to proceed: ")
		input, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && input == "" {
			return errors.WrapWithDetails(errors.EConfirmationRequired, "failed to read confirmation", err,
				map[string]string{"namespace": ns})
		}
		if strings.TrimSpace(input) != "reset" {
			return errors.NewWithDetails(errors.EConfirmationRequired, "confirmation failed; expected 'reset'",
				map[string]string{"namespace": ns})
		}
	}

	lockCtx, cancel := context.WithTimeout(ctx, resetLockTimeout)
	unlock, err := lock.ExclusiveContext(lockCtx, env.Layout.RunLockPath())
	cancel()
	if err != nil {
		return errors.WrapWithDetails(errors.ELockFailed, "a run is active in this namespace; stop it first", err,
			map[string]string{"namespace": ns, "hint": "clipsift stop --namespace " + ns})
	}
	defer unlock()

	st, err := env.openStore()
	if err != nil {
		return err
	}
	err = st.Reset()
	_ = st.Close()
	if err != nil {
		return err
	}

	led, err := env.openLedger()
	if err != nil {
		return err
	}
	err = led.Reset()
	_ = led.Close()
	if err != nil {
		return err
	}

	if err := env.labels().Reset(); err != nil {
		return err
	}

	artifacts := []string{
		env.Layout.DecisionsPath(),
		env.Layout.ActionPlanPath(),
		env.Layout.AuditPath(),
		env.Layout.DecisionLogPath(),
		env.Layout.SummaryPath(),
		env.Layout.ExplanationsPath(),
		env.Layout.StopPath(),
	}
	for _, p := range artifacts {
		if err := removeUnder(p, root); err != nil {
			return err
		}
	}

	output := env.OutputDir(opts.OutputDir)
	outputCleared := false
	if fs.IsSubpath(filepath.Clean(output), filepath.Clean(root)) {
		if err := fs.ClearDir(output, root); err != nil {
			return unsafeOrPersist(err, output, ns)
		}
		outputCleared = true
	} else {
		env.Log.Warn("output %s is outside the namespace directory; left untouched", output)
	}

	rec := &events.Recorder{Path: env.Layout.EventsPath(), Namespace: ns, Now: env.Now}
	rec.Record(events.Reset, map[string]any{"output_cleared": outputCleared})
	env.Log.Success("namespace %s reset", ns)
	return nil
}

func removeUnder(path, root string) error {
	if err := fs.SafeRemoveAll(path, root); err != nil {
		return unsafeOrPersist(err, path, "")
	}
	return nil
}

// unsafeOrPersist maps a guarded removal failure to E_UNSAFE_PATH or
// E_PERSIST_FAILED.
func unsafeOrPersist(err error, path, ns string) error {
	details := map[string]string{"path": path}
	if ns != "" {
		details["namespace"] = ns
	}
	var notUnder *fs.ErrNotUnderPrefix
	if stderrors.As(err, &notUnder) {
		return errors.WrapWithDetails(errors.EUnsafePath, "refusing to remove path outside the namespace", err, details)
	}
	return errors.WrapWithDetails(errors.EPersistFailed, "failed to remove", err, details)
}
