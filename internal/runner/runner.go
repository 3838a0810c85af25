// Package runner executes external commands for provisioning steps. It
// supports buffered runs, live streaming of subprocess output, and ordered
// fallback across alternative command candidates.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/mlindqvist/groundwork/internal/log"
)

const (
	// maxCapturedBytes caps stdout/stderr captured from a subprocess.
	maxCapturedBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// Spec describes one external command invocation. Dir is mandatory: steps
// never rely on the ambient working directory.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the parent environment
	Timeout time.Duration
}

// Result is the outcome of a completed subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Chunk is one piece of streamed subprocess output. Boundaries are arbitrary;
// consumers must not assume line framing.
type Chunk struct {
	Data []byte
	Time time.Time
}

// Runner spawns subprocesses with capped capture and a SIGTERM/SIGKILL
// termination ladder on cancellation.
type Runner struct {
	logger *slog.Logger
}

// New creates a Runner.
func New() *Runner {
	return &Runner{logger: log.WithComponent("runner")}
}

// Run executes spec to completion with buffered output. A nonzero exit is
// returned as *ExitError; a command that cannot be started as *SpawnError.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Dir == "" {
		return nil, fmt.Errorf("working directory is empty")
	}

	ctx, cancel := r.applyTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("spawning", "command", spec.Command, "dir", spec.Dir)

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: spec.Command, Err: err}
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		r.terminate(cmd, waitErr)
		return nil, ctx.Err()

	case err := <-waitErr:
		res := &Result{
			Stdout:   truncate(stdout.String()),
			Stderr:   truncate(stderr.String()),
			Duration: time.Since(start),
		}
		if err != nil {
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return nil, fmt.Errorf("wait for process: %w", err)
			}
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Command: spec.Command, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		return res, nil
	}
}

// Stream executes spec with stdout and stderr joined into a single pipe so
// chunks arrive in emission order. onChunk is called from the read loop;
// it must not block for long.
func (r *Runner) Stream(ctx context.Context, spec Spec, onChunk func(Chunk)) (*Result, error) {
	if spec.Dir == "" {
		return nil, fmt.Errorf("working directory is empty")
	}

	ctx, cancel := r.applyTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	// One pipe for both streams preserves arrival order across them.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	r.logger.Debug("spawning (stream)", "command", spec.Command, "dir", spec.Dir)

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, &SpawnError{Command: spec.Command, Err: err}
	}
	// Parent must drop its write end or the read loop never sees EOF.
	_ = pw.Close()

	var captured bytes.Buffer
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4096)
		for {
			n, rerr := pr.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				if captured.Len() < maxCapturedBytes {
					captured.Write(data)
				}
				if onChunk != nil {
					onChunk(Chunk{Data: data, Time: time.Now()})
				}
			}
			if rerr != nil {
				return
			}
		}
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		r.terminate(cmd, waitErr)
		_ = pr.Close()
		<-readDone
		return nil, ctx.Err()

	case err := <-waitErr:
		<-readDone
		_ = pr.Close()
		res := &Result{
			Stdout:   truncate(captured.String()),
			Duration: time.Since(start),
		}
		if err != nil {
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return nil, fmt.Errorf("wait for process: %w", err)
			}
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Command: spec.Command, ExitCode: res.ExitCode, Stderr: res.Stdout}
		}
		return res, nil
	}
}

// terminate sends SIGTERM, waits a grace period, then SIGKILLs.
func (r *Runner) terminate(cmd *exec.Cmd, waitErr chan error) {
	if cmd.Process == nil {
		return
	}
	r.logger.Warn("terminating subprocess", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		r.logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		r.logger.Warn("subprocess did not exit after SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			r.logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
}

func (r *Runner) applyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func truncate(s string) string {
	if len(s) > maxCapturedBytes {
		return s[:maxCapturedBytes]
	}
	return s
}
