// Package engine runs the external analysis engine as one-shot commands and
// normalizes whatever comes back (output, exit status, or failure to run)
// into a single Outcome value.
//
// The engine is a black box behind {command, argv, stdout/stderr, exit code}:
// arguments are always passed as a discrete vector, never through a shell,
// and one task serves exactly one request.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

const (
	defaultTimeout        = 5 * time.Minute
	defaultMaxOutputBytes = 10 << 20 // per stream

	// waitDelay bounds how long Wait keeps draining pipes after the
	// process itself is gone, so an inherited fd held open by a stray
	// grandchild cannot park the request forever.
	waitDelay = 5 * time.Second
)

// Limits caps one task's wall-clock time and collected output.
type Limits struct {
	Timeout        time.Duration
	MaxOutputBytes int
}

// Invoker starts external tasks and runs each one to a terminal Outcome.
// The zero limits fall back to package defaults. Safe for concurrent use;
// every Run owns its process, pipes, and buffers exclusively.
type Invoker struct {
	limits Limits
}

func NewInvoker(limits Limits) *Invoker {
	if limits.Timeout <= 0 {
		limits.Timeout = defaultTimeout
	}
	if limits.MaxOutputBytes <= 0 {
		limits.MaxOutputBytes = defaultMaxOutputBytes
	}
	return &Invoker{limits: limits}
}

// Run starts cmd, waits for it to finish or hit the deadline, and decodes
// the result. It always returns exactly one Outcome: spawn errors surface as
// KindStartFailure, a deadline kill as KindTimedOut, everything else goes
// through Decode.
func (inv *Invoker) Run(ctx context.Context, cmd Command) Outcome {
	ctx, cancel := context.WithTimeout(ctx, inv.limits.Timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Bin, cmd.Args...)
	stdout := newCappedBuffer(inv.limits.MaxOutputBytes)
	stderr := newCappedBuffer(inv.limits.MaxOutputBytes)
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = waitDelay

	// Each task gets its own process group so a deadline kill takes the
	// engine's own children (git, pip) down with it.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}

	if err := c.Start(); err != nil {
		return startFailureOutcome(fmt.Errorf("engine: start %s task: %w", cmd.Op, err))
	}

	err := c.Wait()
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return timedOutOutcome(stderr.Bytes())
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Wait failed without an exit status (pipe copy error);
			// report it as a crash with the error in the excerpt.
			return processFailureOutcome(-1, []byte(err.Error()))
		}
	}

	out := Decode(exitCode, stdout.Bytes(), stderr.Bytes(), cmd.Required...)
	if stdout.Truncated() || stderr.Truncated() {
		out.Truncated = true
	}
	return out
}
