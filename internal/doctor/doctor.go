// Package doctor validates groundwork configuration and probes the external
// tools provisioning depends on.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mlindqvist/groundwork/internal/config"
	"github.com/mlindqvist/groundwork/internal/runner"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool         `json:"valid"`
	Errors   []Issue      `json:"errors,omitempty"`
	Warnings []Issue      `json:"warnings,omitempty"`
	Tools    []ToolStatus `json:"tools,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// ToolStatus is the probe outcome for one external tool.
type ToolStatus struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Resolved string `json:"resolved,omitempty"`
	Version  string `json:"version,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Executor runs candidate lists. Satisfied by *runner.Runner.
type Executor interface {
	TryInOrder(ctx context.Context, candidates []runner.Candidate, dir string, env []string, timeout time.Duration) (*runner.Result, runner.Candidate, error)
}

// Doctor validates configuration and resolves tool candidates.
type Doctor struct {
	cfg  *config.Config
	exec Executor
}

// New creates a Doctor. exec may be nil to skip tool probing.
func New(cfg *config.Config, exec Executor) *Doctor {
	return &Doctor{cfg: cfg, exec: exec}
}

const probeTimeout = 10 * time.Second

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateAPIConfig(r)
	d.validateCommands(r)
	d.checkTools(ctx, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.Workspaces.Dir == "" {
		d.addError(r, "service", "workspaces.dir", "workspaces.dir is required")
	}
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	}
	if d.cfg.Tooling.Package == "" {
		d.addError(r, "service", "tooling.package", "tooling.package is required")
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" {
		d.addWarning(r, "api", "api.auth.api_key", "API enabled but no authentication configured")
	}
}

func (d *Doctor) validateCommands(r *Result) {
	for _, tool := range []struct {
		name  string
		cands []string
	}{
		{"git", d.cfg.Commands.Git},
		{"python", d.cfg.Commands.Python},
		{"elan", d.cfg.Commands.Elan},
		{"lake", d.cfg.Commands.Lake},
	} {
		if len(tool.cands) == 0 {
			d.addError(r, "commands", "commands."+tool.name,
				fmt.Sprintf("no candidates configured for %s", tool.name))
		}
	}
}

// checkTools resolves every candidate list by running the tool's version
// query. A tool that resolves to no working candidate is a warning, not an
// error: the operator may install it before the step that needs it.
func (d *Doctor) checkTools(ctx context.Context, r *Result) {
	if d.exec == nil {
		return
	}

	for _, tool := range []struct {
		name string
		cmds []string
		args []string
	}{
		{"git", d.cfg.Commands.Git, []string{"--version"}},
		{"python", d.cfg.Commands.Python, []string{"--version"}},
		{"elan", d.cfg.Commands.Elan, []string{"--version"}},
		{"lake", d.cfg.Commands.Lake, []string{"--version"}},
	} {
		r.Tools = append(r.Tools, d.probeTool(ctx, tool.name, tool.cmds, tool.args))
	}

	for _, ts := range r.Tools {
		if !ts.OK {
			d.addWarning(r, "tools", "commands."+ts.Name,
				fmt.Sprintf("no working %s candidate: %s", ts.Name, ts.Detail))
		}
	}
}

func (d *Doctor) probeTool(ctx context.Context, name string, cmds, args []string) ToolStatus {
	if len(cmds) == 0 {
		return ToolStatus{Name: name, Detail: "no candidates configured"}
	}

	cands := make([]runner.Candidate, 0, len(cmds))
	for _, cmd := range cmds {
		cands = append(cands, runner.Candidate{Command: cmd, Args: args})
	}

	res, winner, err := d.exec.TryInOrder(ctx, cands, ".", nil, probeTimeout)
	if err != nil {
		return ToolStatus{Name: name, Detail: err.Error()}
	}

	version := strings.TrimSpace(res.Stdout)
	if version == "" {
		version = strings.TrimSpace(res.Stderr)
	}
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = version[:i]
	}
	return ToolStatus{Name: name, OK: true, Resolved: winner.Command, Version: version}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	for _, ts := range r.Tools {
		if ts.OK {
			fmt.Fprintf(&b, "  TOOL  %-7s %s (%s)\n", ts.Name, ts.Resolved, ts.Version)
		} else {
			fmt.Fprintf(&b, "  TOOL  %-7s unavailable\n", ts.Name)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
