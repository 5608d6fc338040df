package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// pipeDrain bounds how long Wait keeps reading output after the process has
// exited while a forked descendant still holds stdout or stderr.
const pipeDrain = time.Second

// LocalRunner runs commands on this host. Each command leads its own process
// group; on timeout the group gets SIGTERM and, after Grace, SIGKILL.
type LocalRunner struct {
	Grace  time.Duration
	Logger *slog.Logger
}

func (r *LocalRunner) Run(ctx context.Context, c Command, timeout time.Duration) (Output, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Termination is managed here rather than by exec.CommandContext so the
	// process gets a grace period.
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// ansible forks workers; they join the group so one signal reaches all.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = pipeDrain

	logger.Debug("starting process", "name", c.Name, "args", c.Args, "timeout", timeout)
	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("start %s: %w", c.Name, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-waitErr:
		out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
		if errors.Is(err, exec.ErrWaitDelay) {
			logger.Debug("output pipes held open after exit", "name", c.Name)
			err = nil
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return out, fmt.Errorf("wait for %s: %w", c.Name, err)
			}
			out.ExitCode = exitErr.ExitCode()
		}
		return out, nil

	case <-deadline:
		logger.Warn("process timed out, sending SIGTERM", "name", c.Name)
		r.terminate(cmd, waitErr, logger)
		return Output{Stdout: stdout.String(), Stderr: stderr.String()}, fmt.Errorf("%w after %s", ErrTimedOut, timeout)

	case <-ctx.Done():
		logger.Warn("context cancelled, sending SIGTERM", "name", c.Name)
		r.terminate(cmd, waitErr, logger)
		return Output{Stdout: stdout.String(), Stderr: stderr.String()}, ctx.Err()
	}
}

// terminate signals the command's whole process group. A final SIGKILL also
// reaches descendants that outlived a leader which exited on SIGTERM.
func (r *LocalRunner) terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	signalGroup(pgid, syscall.SIGTERM, logger)

	grace := time.NewTimer(r.Grace)
	defer grace.Stop()

	select {
	case <-waitErr:
		logger.Info("process exited after SIGTERM")
		signalGroup(pgid, syscall.SIGKILL, logger)
	case <-grace.C:
		logger.Warn("process group did not exit after SIGTERM, sending SIGKILL")
		signalGroup(pgid, syscall.SIGKILL, logger)
		<-waitErr
	}
}

func signalGroup(pgid int, sig syscall.Signal, logger *slog.Logger) {
	if err := syscall.Kill(-pgid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		logger.Error("failed to signal process group", "pgid", pgid, "signal", sig.String(), "error", err)
	}
}
