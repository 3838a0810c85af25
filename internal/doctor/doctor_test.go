package doctor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlindqvist/groundwork/internal/config"
	"github.com/mlindqvist/groundwork/internal/runner"
)

func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := config.Defaults()
	cfg.Workspaces.Dir = ""
	cfg.State.Path = ""
	cfg.Tooling.Package = ""

	r := New(cfg, nil).Validate(context.Background())
	if r.Valid {
		t.Fatal("missing required fields reported as valid")
	}
	if len(r.Errors) != 3 {
		t.Fatalf("got %d errors, want 3: %+v", len(r.Errors), r.Errors)
	}
}

func TestValidateAPIWarnsOnMissingKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.API.Enabled = true
	cfg.API.Auth.APIKey = ""

	r := New(cfg, nil).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("unexpected errors: %+v", r.Errors)
	}
	found := false
	for _, w := range r.Warnings {
		if w.Field == "api.auth.api_key" {
			found = true
		}
	}
	if !found {
		t.Fatal("missing API key did not produce a warning")
	}
}

func TestValidateEmptyCandidateList(t *testing.T) {
	cfg := config.Defaults()
	cfg.Commands.Lake = nil

	r := New(cfg, nil).Validate(context.Background())
	if r.Valid {
		t.Fatal("empty candidate list reported as valid")
	}
}

func TestToolProbeResolvesFallback(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "missing-git")
	working := writeTool(t, dir, "fake-git", `echo "git version 2.39.0"`)

	cfg := config.Defaults()
	cfg.Commands.Git = []string{broken, working}
	cfg.Commands.Python = []string{writeTool(t, dir, "fake-python", `echo "Python 3.11.4"`)}
	cfg.Commands.Elan = []string{writeTool(t, dir, "fake-elan", `echo "elan 3.0.0"`)}
	cfg.Commands.Lake = []string{writeTool(t, dir, "fake-lake", `echo "Lake version 5.0.0"`)}

	r := New(cfg, runner.New()).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("unexpected errors: %+v", r.Errors)
	}
	if len(r.Tools) != 4 {
		t.Fatalf("got %d tool statuses, want 4", len(r.Tools))
	}

	git := r.Tools[0]
	if !git.OK {
		t.Fatalf("git probe failed: %s", git.Detail)
	}
	if git.Resolved != working {
		t.Fatalf("git resolved to %q, want fallback %q", git.Resolved, working)
	}
	if !strings.Contains(git.Version, "2.39.0") {
		t.Fatalf("git version not captured: %q", git.Version)
	}
}

func TestToolProbeExhaustionWarns(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Commands.Git = []string{filepath.Join(dir, "nope-a"), filepath.Join(dir, "nope-b")}
	cfg.Commands.Python = []string{writeTool(t, dir, "fake-python", `echo ok`)}
	cfg.Commands.Elan = []string{writeTool(t, dir, "fake-elan", `echo ok`)}
	cfg.Commands.Lake = []string{writeTool(t, dir, "fake-lake", `echo ok`)}

	r := New(cfg, runner.New()).Validate(context.Background())
	if r.Tools[0].OK {
		t.Fatal("git probe succeeded with no working candidates")
	}
	warned := false
	for _, w := range r.Warnings {
		if w.Field == "commands.git" {
			warned = true
		}
	}
	if !warned {
		t.Fatal("unresolvable tool did not produce a warning")
	}
}

func TestFormatHuman(t *testing.T) {
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "service", Field: "state.path", Message: "state.path is required"}},
		Warnings: []Issue{{Category: "tools", Field: "commands.git", Message: "no working git candidate"}},
		Tools:    []ToolStatus{{Name: "python", OK: true, Resolved: "python3", Version: "Python 3.11.4"}},
	}
	out := FormatHuman(r)
	for _, want := range []string{"Configuration invalid", "ERROR [service]", "WARN  [tools]", "python3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
