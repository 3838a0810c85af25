package panel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/mlindqvist/groundwork/internal/events"
	"github.com/mlindqvist/groundwork/internal/probe"
	"github.com/mlindqvist/groundwork/internal/provision"
)

func renderHeader(snap provision.Snapshot, project string, connected bool, spin spinner.Model, theme Theme, width int) string {
	innerWidth := width - 4

	title := " GROUNDWORK"
	if project != "" {
		title += "  " + theme.Highlight.Render(project)
	}

	status := theme.StatusOK.Render("CONNECTED")
	if !connected {
		status = theme.StatusFailed.Render("CONNECTING")
	}

	meta := theme.Dim.Render("no workspace yet")
	if snap.RepositoryURL != "" {
		meta = theme.Dim.Render(fmt.Sprintf("%s @ %s (toolchain %s)",
			snap.RepositoryURL, snap.CommitReference, snap.ToolchainVersion))
	}

	activity := " idle"
	if snap.Busy {
		activity = fmt.Sprintf(" %s running %s", spin.View(), theme.StatusRunning.Render(snap.CurrentStep))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title+"  "+status,
		" "+meta,
		activity,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func renderChecklist(snap provision.Snapshot, theme Theme, width int) string {
	innerWidth := width - 4

	item := func(label string, done bool) string {
		if done {
			return theme.StatusOK.Render(" ✓ ") + label
		}
		return theme.Dim.Render(" ○ ") + theme.Dim.Render(label)
	}

	lines := []string{
		item("Repository cloned", snap.Stage >= probe.NeedsRuntime),
		item("Python runtime", snap.Flags.RuntimeInstalled),
		item("Tracing library", snap.Flags.ToolingInstalled),
		item("Lean toolchain", snap.Flags.ToolchainInstalled),
		item("Project built", snap.Flags.Built),
		item("Trace completed", snap.Flags.TraceCompleted),
	}

	deps := " [ ] build dependencies"
	if snap.BuildDeps {
		deps = " [x] build dependencies"
	}
	lines = append(lines, theme.Dim.Render(deps))

	if snap.LastMessage != "" {
		lines = append(lines, "", " "+theme.Dim.Render(truncate(snap.LastMessage, innerWidth-4)))
	}
	if snap.FailureReason != "" {
		lines = append(lines, "", theme.StatusFailed.Render(" ✗ "+truncate(snap.FailureReason, innerWidth-6)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{theme.Title.Render("PROVISIONING")}, lines...)...,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENTS"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 8 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENTS"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch {
	case strings.HasSuffix(e.Type, ".completed"), e.Type == events.TypeRecordSaved:
		typeStyle = theme.StatusOK
	case strings.HasSuffix(e.Type, ".failed"):
		typeStyle = theme.StatusFailed
	case strings.HasSuffix(e.Type, ".started"):
		typeStyle = theme.StatusRunning
	default:
		typeStyle = theme.Dim
	}
	typeName := typeStyle.Render(fmt.Sprintf("%-16s", e.Type))

	return fmt.Sprintf("%s %s %s", ts, typeName, extractEventDesc(e))
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if step, ok := data["step"].(string); ok {
		parts = append(parts, step)
	}
	if line, ok := data["line"].(string); ok {
		parts = append(parts, truncate(line, 60))
	}
	if reason, ok := data["reason"].(string); ok {
		parts = append(parts, truncate(reason, 60))
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

func renderHelp(snap provision.Snapshot, theme Theme) string {
	_, label := nextCommand(snap.Stage)
	help := " [q] Quit • [n] New project"
	if label != "" && !snap.Busy {
		help += " • [enter] " + label
	}
	if snap.Busy {
		help += " • [c] Cancel trace"
	}
	if snap.Stage >= probe.ReadyToTrace && !snap.Busy {
		help += " • [d] Toggle build deps"
	}
	return theme.Dim.Render(help)
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
