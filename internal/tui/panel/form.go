package panel

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mlindqvist/groundwork/internal/dispatch"
)

// Field order matches the createProject payload.
const (
	fieldRepoURL = iota
	fieldCommit
	fieldProject
	fieldToken
	fieldVersion
	fieldCount
)

// createForm is the new-project input form.
type createForm struct {
	inputs []textinput.Model
	focus  int
}

func newCreateForm() *createForm {
	placeholders := [fieldCount]string{
		fieldRepoURL: "https://github.com/owner/repo",
		fieldCommit:  "commit (7-40 hex chars)",
		fieldProject: "project name",
		fieldToken:   "access token (optional)",
		fieldVersion: "toolchain version",
	}

	f := &createForm{inputs: make([]textinput.Model, fieldCount)}
	for i := range f.inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 256
		if i == fieldToken {
			in.EchoMode = textinput.EchoPassword
		}
		f.inputs[i] = in
	}
	f.inputs[0].Focus()
	return f
}

// Update cycles focus on tab/shift+tab and forwards everything else to the
// focused input. Submission is handled by the model, not here.
func (f *createForm) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.setFocus((f.focus + 1) % fieldCount)
			return nil
		case "shift+tab", "up":
			f.setFocus((f.focus + fieldCount - 1) % fieldCount)
			return nil
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *createForm) setFocus(i int) {
	f.inputs[f.focus].Blur()
	f.focus = i
	f.inputs[f.focus].Focus()
}

func (f *createForm) payload() dispatch.CreateProjectPayload {
	get := func(i int) string { return strings.TrimSpace(f.inputs[i].Value()) }
	return dispatch.CreateProjectPayload{
		RepoURL:     get(fieldRepoURL),
		CommitHash:  get(fieldCommit),
		ProjectName: get(fieldProject),
		Token:       get(fieldToken),
		LeanVersion: get(fieldVersion),
	}
}

func (f *createForm) View(theme Theme) string {
	labels := [fieldCount]string{"Repository", "Commit", "Project", "Token", "Toolchain"}
	var b strings.Builder
	b.WriteString(theme.Title.Render("NEW TRACING PROJECT") + "\n")
	for i, in := range f.inputs {
		marker := "  "
		if i == f.focus {
			marker = theme.Highlight.Render("> ")
		}
		b.WriteString(marker + theme.Dim.Render(labels[i]+": ") + in.View() + "\n")
	}
	b.WriteString(theme.Dim.Render("  [tab] next field • [enter] create • [esc] cancel"))
	return b.String()
}
