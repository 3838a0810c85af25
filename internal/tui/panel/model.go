package panel

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mlindqvist/groundwork/internal/dispatch"
	"github.com/mlindqvist/groundwork/internal/events"
	"github.com/mlindqvist/groundwork/internal/probe"
	"github.com/mlindqvist/groundwork/internal/provision"
)

// Model is the main BubbleTea model for the provisioning panel.
type Model struct {
	apiURL  string
	apiKey  string
	project string

	width  int
	height int

	snap      provision.Snapshot
	eventLog  []events.Event
	connected bool
	lastError string

	theme Theme
	spin  spinner.Model
	form  *createForm

	hubEvents chan events.Event
}

const reconnectDelay = 3 * time.Second

// New creates a panel model bound to one workspace.
func New(apiURL, apiKey, project string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		project:   project,
		theme:     NewDefaultTheme(),
		spin:      sp,
		hubEvents: make(chan events.Event, 100),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		fetchView(m.apiURL, m.apiKey, m.project),
		m.spin.Tick,
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventMsg:
		e := events.Event(msg)
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > 50 {
			m.eventLog = m.eventLog[:50]
		}
		if e.Type == events.TypeViewUpdated {
			var payload struct {
				Snapshot provision.Snapshot `json:"snapshot"`
			}
			if err := json.Unmarshal(e.Data, &payload); err == nil {
				m.snap = payload.Snapshot
			}
		}
		m.connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case viewMsg:
		m.snap = msg.Snapshot
		m.connected = true
		m.lastError = ""

	case commandResultMsg:
		if msg.err != nil {
			m.lastError = msg.name + ": " + msg.err.Error()
		}

	case sseDisconnectedMsg:
		m.connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
	}

	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form != nil {
		switch msg.String() {
		case "esc":
			m.form = nil
			return m, nil
		case "enter":
			payload := m.form.payload()
			m.form = nil
			m.project = payload.ProjectName
			return m, postCommand(m.apiURL, m.apiKey, dispatch.CmdCreateProject, payload)
		case "ctrl+c":
			return m, tea.Quit
		}
		cmd := m.form.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "n":
		m.form = newCreateForm()
		return m, nil
	case "enter", "r":
		if m.snap.Busy {
			return m, nil
		}
		name, _ := nextCommand(m.snap.Stage)
		if name == dispatch.CmdCreateProject {
			m.form = newCreateForm()
			return m, nil
		}
		if name == "" {
			return m, nil
		}
		return m, postCommand(m.apiURL, m.apiKey, name, dispatch.ProjectPayload{Project: m.project})
	case "d":
		if !m.snap.Busy && m.snap.Stage >= probe.ReadyToTrace {
			return m, postCommand(m.apiURL, m.apiKey, dispatch.CmdToggleBuildDeps, dispatch.ProjectPayload{Project: m.project})
		}
	case "c":
		if m.snap.Busy {
			return m, postCommand(m.apiURL, m.apiKey, dispatch.CmdCancelTrace, dispatch.ProjectPayload{Project: m.project})
		}
	case "x":
		if !m.snap.Busy && m.snap.Stage == probe.TraceArtifactsPresent {
			return m, postCommand(m.apiURL, m.apiKey, dispatch.CmdCleanupOutput, dispatch.ProjectPayload{Project: m.project})
		}
	}
	return m, nil
}

// nextCommand maps a stage to the single command that advances it.
func nextCommand(stage probe.Stage) (name, label string) {
	switch stage {
	case probe.NoWorkspace, probe.NeedsClone:
		return dispatch.CmdCreateProject, "Create project"
	case probe.NeedsRuntime:
		return dispatch.CmdInstallRuntime, "Install Python runtime"
	case probe.NeedsTooling:
		return dispatch.CmdInstallTooling, "Install tracing library"
	case probe.NeedsToolchain:
		return dispatch.CmdInstallToolchain, "Install Lean toolchain"
	case probe.NeedsBuild:
		return dispatch.CmdBuild, "Build project"
	case probe.ReadyToTrace:
		return dispatch.CmdRunTrace, "Run trace"
	case probe.TraceArtifactsPresent:
		return dispatch.CmdCleanupOutput, "Clean up output"
	}
	return "", ""
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to groundwork..."
	}

	if m.form != nil {
		return lipgloss.NewStyle().Margin(1, 2).Render(
			m.theme.Border.Width(m.width - 4).Render(m.form.View(m.theme)),
		)
	}

	header := renderHeader(m.snap, m.project, m.connected, m.spin, m.theme, m.width)
	checklist := renderChecklist(m.snap, m.theme, m.width)
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(" ⚠ " + m.lastError)
	}

	parts := []string{header, checklist, eventStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, renderHelp(m.snap, m.theme))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
