package commands

import (
	"fmt"
	"io"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
	"github.com/NielsdaWheelz/clipsift/internal/watchdog"
)

// Stop asks the active run in the namespace to stop. Units already being
// processed finish; no further units or stages are launched.
// Without an active run Stop is a no-op.
func Stop(env *Env, stdout io.Writer) error {
	if !lock.Held(env.Layout.RunLockPath()) {
		_, _ = fmt.Fprintf(stdout, "no active run in namespace %s\n", env.Layout.Namespace)
		return nil
	}
	path := env.Layout.StopPath()
	if err := watchdog.RequestStop(path, env.Now()); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write stop request", err,
			map[string]string{"path": path, "namespace": env.Layout.Namespace})
	}
	_, _ = fmt.Fprintln(stdout, "stop requested; in-flight units will finish")
	return nil
}
