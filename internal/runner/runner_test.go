package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "ok.sh", "echo hello; echo oops >&2")

	res, err := New().Run(context.Background(), Spec{Command: script, Dir: dir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if got := strings.TrimSpace(res.Stdout); got != "hello" {
		t.Fatalf("stdout = %q, want %q", got, "hello")
	}
	if got := strings.TrimSpace(res.Stderr); got != "oops" {
		t.Fatalf("stderr = %q, want %q", got, "oops")
	}
}

func TestRunNonzeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", "echo broken >&2; exit 3")

	res, err := New().Run(context.Background(), Spec{Command: script, Dir: dir})
	if err == nil {
		t.Fatal("Run succeeded, want ExitError")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error type = %T, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", exitErr.ExitCode)
	}
	if !strings.Contains(exitErr.Stderr, "broken") {
		t.Fatalf("stderr %q missing captured output", exitErr.Stderr)
	}
	if res == nil || res.ExitCode != 3 {
		t.Fatal("partial result with exit code expected alongside ExitError")
	}
}

func TestRunMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	_, err := New().Run(context.Background(), Spec{Command: filepath.Join(dir, "nope"), Dir: dir})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error type = %T, want *SpawnError", err)
	}
}

func TestRunRequiresDir(t *testing.T) {
	if _, err := New().Run(context.Background(), Spec{Command: "true"}); err == nil {
		t.Fatal("Run without Dir succeeded, want error")
	}
}

func TestRunEnvInjection(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "env.sh", `printf '%s' "$GROUNDWORK_PROBE"`)

	res, err := New().Run(context.Background(), Spec{
		Command: script,
		Dir:     dir,
		Env:     []string{"GROUNDWORK_PROBE=lit"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "lit" {
		t.Fatalf("stdout = %q, want %q", res.Stdout, "lit")
	}
}

func TestStreamDeliversChunksInOrder(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "stream.sh", "echo one; sleep 0.05; echo two >&2; sleep 0.05; echo three")

	var mu strings.Builder
	res, err := New().Stream(context.Background(), Spec{Command: script, Dir: dir}, func(c Chunk) {
		mu.Write(c.Data)
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}

	got := mu.String()
	iOne := strings.Index(got, "one")
	iTwo := strings.Index(got, "two")
	iThree := strings.Index(got, "three")
	if iOne < 0 || iTwo < 0 || iThree < 0 {
		t.Fatalf("streamed output missing lines: %q", got)
	}
	if !(iOne < iTwo && iTwo < iThree) {
		t.Fatalf("chunks out of emission order: %q", got)
	}
}

func TestStreamNonzeroExitCarriesOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "streamfail.sh", "echo partial; exit 1")

	_, err := New().Stream(context.Background(), Spec{Command: script, Dir: dir}, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error type = %T, want *ExitError", err)
	}
	if !strings.Contains(exitErr.Stderr, "partial") {
		t.Fatalf("captured output %q missing subprocess output", exitErr.Stderr)
	}
}

func TestRunCancellation(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "hang.sh", "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := New().Run(ctx, Spec{Command: script, Dir: dir})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("cancellation did not terminate subprocess promptly")
	}
}

func TestRunTimeout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "slow.sh", "sleep 30")

	_, err := New().Run(context.Background(), Spec{Command: script, Dir: dir, Timeout: 100 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
}
