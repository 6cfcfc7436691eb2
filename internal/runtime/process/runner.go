// Package process runs programs under test as local child processes.
//
// Every child is started in its own process group so that a timeout can kill
// the program together with anything it spawned.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"tcrun/internal/domain/execution"
	"tcrun/internal/observability"
	"tcrun/internal/ports"
)

const (
	defaultKillGrace    = 2 * time.Second
	groupPollInterval   = 5 * time.Millisecond
	maxCapturedOutBytes = 64 << 20
)

// Config configures a local process Runner.
type Config struct {
	// KillGrace bounds how long the runner waits for a killed process tree to
	// disappear, and how long it waits for output pipes held open by
	// descendants after the main process exited.
	KillGrace time.Duration
	Logger    *slog.Logger
}

// Runner implements ports.ProcessRunner with os/exec.
type Runner struct {
	killGrace time.Duration
	logger    *slog.Logger
}

var _ ports.ProcessRunner = (*Runner)(nil)

// New constructs a Runner from the supplied configuration.
func New(cfg Config) *Runner {
	grace := cfg.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	return &Runner{killGrace: grace, logger: logger}
}

// Close implements ports.ProcessRunner. The local runner holds no resources.
func (r *Runner) Close() error {
	return nil
}

// Run launches the command and blocks until it exits, its timeout fires or
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context, command execution.Command) execution.Outcome {
	if command.Path == "" {
		return execution.LaunchFailed(errors.New("command path is empty"))
	}
	if err := ctx.Err(); err != nil {
		return execution.LaunchFailed(fmt.Errorf("run cancelled: %w", err))
	}

	cmd := exec.Command(command.Path, command.Args...)
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}

	stdout := &cappedBuffer{limit: maxCapturedOutBytes}
	stderr := &cappedBuffer{limit: maxCapturedOutBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.killGrace
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return execution.LaunchFailed(fmt.Errorf("start %s: %w", command.Path, err))
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if command.Timeout > 0 {
		timer := time.NewTimer(command.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-done:
		elapsed := time.Since(start)
		r.sweepGroup(cmd.Process)
		return completedOutcome(command, cmd, err, stdout.Bytes(), stderr.Bytes(), elapsed)

	case <-deadline:
		reaped, killErr := r.terminate(cmd, done)
		outcome := execution.TimedOut(time.Since(start))
		if reaped {
			outcome.Stdout = stdout.Bytes()
			outcome.Stderr = stderr.Bytes()
		}
		outcome.Err = killErr
		return outcome

	case <-ctx.Done():
		_, killErr := r.terminate(cmd, done)
		outcome := execution.LaunchFailed(fmt.Errorf("run cancelled: %w", errors.Join(ctx.Err(), killErr)))
		outcome.Elapsed = time.Since(start)
		return outcome
	}
}

// terminate kills the process group of cmd and returns once the group leader
// has been reaped and no member of the group is alive anymore. The bool reports
// whether Wait returned, only then are the output buffers safe to read.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error) (bool, error) {
	var errs []error
	reaped := false
	if err := killProcessTree(cmd.Process); err != nil {
		errs = append(errs, fmt.Errorf("kill process group: %w", err))
	}

	reapTimer := time.NewTimer(2 * r.killGrace)
	defer reapTimer.Stop()
	select {
	case <-done:
		reaped = true
	case <-reapTimer.C:
		errs = append(errs, fmt.Errorf("process %d was not reaped within %s", cmd.Process.Pid, 2*r.killGrace))
	}

	if err := waitGroupExit(cmd.Process.Pid, r.killGrace); err != nil {
		errs = append(errs, err)
	}

	return reaped, errors.Join(errs...)
}

// sweepGroup kills descendants left behind by a program that exited on its
// own. An empty group is not signalled since its id may have been reused.
func (r *Runner) sweepGroup(p *os.Process) {
	if !groupAlive(p.Pid) {
		return
	}
	if err := killProcessTree(p); err != nil {
		r.logger.Warn("kill leftover process group failed", "pgid", p.Pid, "error", err)
		return
	}
	r.logger.Debug("killed leftover process group", "pgid", p.Pid)
}

func completedOutcome(command execution.Command, cmd *exec.Cmd, waitErr error, stdout, stderr []byte, elapsed time.Duration) execution.Outcome {
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// The program exited but a descendant kept its output open.
		default:
			return execution.LaunchFailed(fmt.Errorf("wait for %s: %w", command.Path, waitErr))
		}
	}

	return execution.Completed(stdout, stderr, exitCode, elapsed)
}

// waitGroupExit blocks until no live process remains in group pgid or the
// grace period runs out.
func waitGroupExit(pgid int, grace time.Duration) error {
	deadline := time.Now().Add(grace)
	for groupAlive(pgid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("process group %d still alive after %s", pgid, grace)
		}
		time.Sleep(groupPollInterval)
	}
	return nil
}

// cappedBuffer keeps at most limit bytes and silently discards the rest so a
// runaway program cannot exhaust memory.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) <= room {
			b.buf.Write(p)
		} else {
			b.buf.Write(p[:room])
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}
