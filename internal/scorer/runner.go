// Package scorer runs the external perception commands that produce a unit's
// metric scores and transcripts.
package scorer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	osexec "os/exec"
	"syscall"
	"time"
)

// GracePeriod is the duration to wait between SIGINT and SIGKILL when
// terminating a command (timeout or cancellation).
const GracePeriod = 2 * time.Second

// maxStderr bounds how much stderr is kept for error messages.
const maxStderr = 2048

// Invocation describes one external command run.
type Invocation struct {
	// Argv is the command and its arguments. Argv[0] is resolved via PATH.
	Argv []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// Timeout bounds the run. Zero means no timeout.
	Timeout time.Duration
}

// Output is the outcome of a command run.
type Output struct {
	Stdout    []byte
	Stderr    string // last maxStderr bytes
	ExitCode  int    // -1 when killed by a signal or never started
	TimedOut  bool
	Cancelled bool
	Duration  time.Duration
}

// OK reports whether the command exited zero on its own.
func (o Output) OK() bool {
	return o.ExitCode == 0 && !o.TimedOut && !o.Cancelled
}

// Runner executes an Invocation.
//
// A non-zero exit, timeout or cancellation is reported in Output, not as an
// error. The error is reserved for failures to start the command at all.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner runs commands as child processes in their own process group.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	out := Output{ExitCode: -1}
	if len(inv.Argv) == 0 || inv.Argv[0] == "" {
		return out, fmt.Errorf("empty command")
	}

	runCtx := ctx
	cancelTimeout := func() {}
	if inv.Timeout > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancelTimeout()

	var stdout bytes.Buffer
	stderr := &tailBuffer{max: maxStderr}

	cmd := osexec.Command(inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return out, fmt.Errorf("failed to open /dev/null: %w", err)
	}
	defer func() { _ = devnull.Close() }()
	cmd.Stdin = devnull

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return out, fmt.Errorf("failed to start %s: %w", inv.Argv[0], err)
	}
	pgid := cmd.Process.Pid

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var runErr error
	select {
	case runErr = <-waitDone:
	case <-runCtx.Done():
		if ctx.Err() != nil {
			out.Cancelled = true
		} else {
			out.TimedOut = true
		}
		killProcessGroup(pgid, waitDone)
		runErr = <-waitDone
	}

	out.Duration = time.Since(start)
	out.Stdout = stdout.Bytes()
	out.Stderr = stderr.String()

	if runErr == nil {
		out.ExitCode = 0
		return out, nil
	}
	var exitErr *osexec.ExitError
	if stderrors.As(runErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			out.ExitCode = -1
		} else {
			out.ExitCode = exitErr.ExitCode()
		}
	}
	return out, nil
}

// killProcessGroup sends SIGINT to the process group, waits up to GracePeriod
// for the leader to exit, then sends SIGKILL to the group.
func killProcessGroup(pgid int, waitDone chan error) {
	_ = syscall.Kill(-pgid, syscall.SIGINT)

	select {
	case err := <-waitDone:
		// Leader exited; put the result back for the caller and sweep stragglers.
		waitDone <- err
	case <-time.After(GracePeriod):
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(bytes.TrimSpace(t.buf))
}
