// Package view maps provisioning state to display markup. Render is a pure
// function: no I/O, and equal snapshots produce byte-identical output.
package view

import (
	"fmt"
	"html"
	"strings"

	"github.com/mlindqvist/groundwork/internal/probe"
	"github.com/mlindqvist/groundwork/internal/provision"
)

// Render produces the panel markup for snap. Every stage maps to exactly one
// screen; the switch is exhaustive over the stage sum type.
func Render(snap provision.Snapshot) string {
	var b strings.Builder
	b.WriteString("<div class=\"groundwork-panel\" data-stage=\"" + snap.Stage.String() + "\">\n")

	writeHeader(&b, snap)

	switch snap.Stage {
	case probe.NoWorkspace:
		writeCreateForm(&b)
	case probe.NeedsClone:
		b.WriteString("  <p>Workspace layout exists but the repository is not cloned. " +
			"Re-create the project to retry the clone.</p>\n")
		writeCreateForm(&b)
	case probe.NeedsRuntime:
		writeChecklist(&b, snap)
		writeAction(&b, snap, "installRuntime", "Install Python runtime")
	case probe.NeedsTooling:
		writeChecklist(&b, snap)
		writeAction(&b, snap, "installTooling", "Install tracing library")
	case probe.NeedsToolchain:
		writeChecklist(&b, snap)
		writeAction(&b, snap, "installToolchain", "Install Lean toolchain")
	case probe.NeedsBuild:
		writeChecklist(&b, snap)
		writeAction(&b, snap, "build", "Build project")
	case probe.ReadyToTrace:
		writeChecklist(&b, snap)
		writeToggle(&b, snap)
		writeAction(&b, snap, "runTrace", "Run trace")
	case probe.TraceArtifactsPresent:
		writeChecklist(&b, snap)
		b.WriteString("  <p class=\"done\">Trace artifacts are present in <code>out/</code>.</p>\n")
		writeAction(&b, snap, "cleanupOutput", "Clean up output")
	}

	writeStatus(&b, snap)

	b.WriteString("</div>\n")
	return b.String()
}

func writeHeader(b *strings.Builder, snap provision.Snapshot) {
	if snap.ProjectName == "" {
		b.WriteString("  <h2>New tracing project</h2>\n")
		return
	}
	fmt.Fprintf(b, "  <h2>%s</h2>\n", html.EscapeString(snap.ProjectName))
	fmt.Fprintf(b, "  <p class=\"meta\">%s @ %s (toolchain %s)</p>\n",
		html.EscapeString(snap.RepositoryURL),
		html.EscapeString(snap.CommitReference),
		html.EscapeString(snap.ToolchainVersion))
}

func writeCreateForm(b *strings.Builder) {
	b.WriteString("  <form data-command=\"createProject\">\n" +
		"    <input name=\"repoUrl\" placeholder=\"https://github.com/owner/repo\"/>\n" +
		"    <input name=\"commitHash\" placeholder=\"commit (7-40 hex chars)\"/>\n" +
		"    <input name=\"projectName\" placeholder=\"project name\"/>\n" +
		"    <input name=\"token\" type=\"password\" placeholder=\"access token (optional)\"/>\n" +
		"    <input name=\"leanVersion\" placeholder=\"toolchain version\"/>\n" +
		"    <button>Create project</button>\n" +
		"  </form>\n")
}

func writeChecklist(b *strings.Builder, snap provision.Snapshot) {
	b.WriteString("  <ul class=\"steps\">\n")
	item := func(label string, done bool) {
		mark := " "
		if done {
			mark = "x"
		}
		fmt.Fprintf(b, "    <li>[%s] %s</li>\n", mark, label)
	}
	item("Repository cloned", snap.Stage >= probe.NeedsRuntime)
	item("Python runtime", snap.Flags.RuntimeInstalled)
	item("Tracing library", snap.Flags.ToolingInstalled)
	item("Lean toolchain", snap.Flags.ToolchainInstalled)
	item("Project built", snap.Flags.Built)
	item("Trace completed", snap.Flags.TraceCompleted)
	b.WriteString("  </ul>\n")
}

func writeAction(b *strings.Builder, snap provision.Snapshot, command, label string) {
	if snap.Busy {
		fmt.Fprintf(b, "  <button disabled>%s</button>\n", html.EscapeString(label))
		return
	}
	fmt.Fprintf(b, "  <button data-command=%q>%s</button>\n", command, html.EscapeString(label))
}

func writeToggle(b *strings.Builder, snap provision.Snapshot) {
	checked := ""
	if snap.BuildDeps {
		checked = " checked"
	}
	fmt.Fprintf(b, "  <label><input type=\"checkbox\" data-command=\"toggleBuildDeps\"%s/> also build dependencies</label>\n", checked)
}

func writeStatus(b *strings.Builder, snap provision.Snapshot) {
	if snap.Busy {
		fmt.Fprintf(b, "  <p class=\"busy\">Running %s&hellip;</p>\n", html.EscapeString(snap.CurrentStep))
		if snap.Stage == probe.ReadyToTrace || snap.CurrentStep == "runTrace" {
			b.WriteString("  <button data-command=\"cancelTrace\">Cancel</button>\n")
		}
	}
	if snap.LastMessage != "" {
		fmt.Fprintf(b, "  <pre class=\"last-output\">%s</pre>\n", html.EscapeString(snap.LastMessage))
	}
	if snap.FailureReason != "" {
		fmt.Fprintf(b, "  <p class=\"error\">%s</p>\n", html.EscapeString(snap.FailureReason))
		b.WriteString("  <button data-command=\"openLog\">View full log</button>\n")
	}
}
