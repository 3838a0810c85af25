package provision

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mlindqvist/groundwork/internal/config"
	"github.com/mlindqvist/groundwork/internal/events"
	"github.com/mlindqvist/groundwork/internal/log"
	"github.com/mlindqvist/groundwork/internal/probe"
	"github.com/mlindqvist/groundwork/internal/runner"
	"github.com/mlindqvist/groundwork/internal/state"
	"github.com/mlindqvist/groundwork/internal/workspace"
)

// Step names, matching the inbound command vocabulary.
const (
	StepCreateProject    = "createProject"
	StepInstallRuntime   = "installRuntime"
	StepInstallTooling   = "installTooling"
	StepInstallToolchain = "installToolchain"
	StepBuild            = "build"
	StepRunTrace         = "runTrace"
	StepCleanupOutput    = "cleanupOutput"
	StepToggleBuildDeps  = "toggleBuildDeps"
)

// Deps wires the controller's collaborators. Hub, Records, Runs and Render
// are optional; a nil value disables that concern.
type Deps struct {
	Exec           Executor
	Hub            *events.Hub
	Records        *state.RecordStore
	Runs           *state.RunLog
	Render         func(Snapshot) string
	WorkspacesDir  string
	Commands       config.CommandsConfig
	ToolingPackage string
	Timeouts       config.TimeoutsConfig
}

// Controller is the provisioning state machine for one workspace. All record
// access is guarded by mu; the busy flag serializes steps so no two
// subprocesses ever mutate the same workspace concurrently.
type Controller struct {
	mu     sync.Mutex
	deps   Deps
	logger *slog.Logger

	rec         *Record
	layout      workspace.Layout
	traceCancel context.CancelFunc
}

// NewController creates a detached controller. Call Attach or CreateProject
// to bind it to a workspace.
func NewController(deps Deps) *Controller {
	return &Controller{
		deps:   deps,
		logger: log.WithComponent("provision"),
	}
}

// Attach binds the controller to an existing workspace, restoring the saved
// record when one exists and reconciling its flags against a fresh probe.
// Filesystem markers win over stored flags in both directions except for
// monotonic same-session flags with no marker (traceStarted).
func (c *Controller) Attach(ctx context.Context, project string) error {
	layout, err := workspace.NewLayout(c.deps.WorkspacesDir, project)
	if err != nil {
		return err
	}

	rec := &Record{ID: uuid.NewString(), ProjectName: project}
	if c.deps.Records != nil {
		snap, err := c.deps.Records.Load(ctx, project)
		if err != nil {
			return err
		}
		if snap != nil {
			rec.ID = snap.RecordID
			rec.RepositoryURL = snap.RepositoryURL
			rec.CommitReference = snap.CommitReference
			rec.ToolchainVersion = snap.ToolchainVersion
			rec.BuildDeps = snap.BuildDeps
			rec.LastMessage = snap.LastMessage
		}
	}

	rec.Flags = flagsFromMarkers(probe.Inspect(layout.Root))

	c.mu.Lock()
	c.layout = layout
	c.rec = rec
	c.publishViewLocked()
	c.mu.Unlock()
	return nil
}

// flagsFromMarkers derives step flags from marker presence. Used on attach;
// the in-memory flags are only a cache of what the markers already prove.
func flagsFromMarkers(m probe.Markers) StepFlags {
	return StepFlags{
		RuntimeInstalled:   m.Runtime,
		ToolingInstalled:   m.Tooling,
		ToolchainInstalled: m.Toolchain,
		Built:              m.Built,
		TraceStarted:       m.Completed,
		TraceCompleted:     m.Completed,
	}
}

// Snapshot returns the current view state. Stage is probed from the
// filesystem on every call rather than trusted from memory.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	if c.rec == nil {
		return Snapshot{Stage: probe.NoWorkspace}
	}
	return Snapshot{
		Stage:            probe.Probe(c.layout.Root),
		ProjectName:      c.rec.ProjectName,
		RepositoryURL:    c.rec.RepositoryURL,
		CommitReference:  c.rec.CommitReference,
		ToolchainVersion: c.rec.ToolchainVersion,
		BuildDeps:        c.rec.BuildDeps,
		Flags:            c.rec.Flags,
		Busy:             c.rec.Busy,
		CurrentStep:      c.rec.CurrentStep,
		LastMessage:      c.rec.LastMessage,
		FailureReason:    c.rec.FailureReason,
		HasToken:         c.rec.AccessToken != "",
	}
}

// CancelTrace requests termination of an in-flight trace subprocess. No-op
// when nothing is running.
func (c *Controller) CancelTrace() {
	c.mu.Lock()
	cancel := c.traceCancel
	c.mu.Unlock()
	if cancel != nil {
		c.logger.Info("trace cancellation requested")
		cancel()
	}
}

// begin acquires the busy gate for step. Duplicate dispatches while busy get
// ErrBusy; callers treat it as a silent drop, never a queue.
func (c *Controller) begin(step string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return ErrNoWorkspace
	}
	if c.rec.Busy {
		return ErrBusy
	}
	c.rec.Busy = true
	c.rec.CurrentStep = step
	c.rec.FailureReason = ""
	c.publish(events.TypeStepStarted, map[string]string{"project": c.rec.ProjectName, "step": step})
	c.publishViewLocked()
	return nil
}

// end releases the busy gate and surfaces the outcome.
func (c *Controller) end(step string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Busy = false
	c.rec.CurrentStep = ""
	if err != nil {
		c.rec.FailureReason = userMessage(err)
		c.publish(events.TypeStepFailed, map[string]string{
			"project": c.rec.ProjectName, "step": step, "reason": c.rec.FailureReason,
		})
	} else {
		c.publish(events.TypeStepCompleted, map[string]string{
			"project": c.rec.ProjectName, "step": step,
		})
	}
	c.publishViewLocked()
}

// runStep wraps a step body with the busy gate, the run log, persistence on
// success, and outcome publication.
func (c *Controller) runStep(ctx context.Context, step string, fn func(context.Context) error) error {
	if err := c.begin(step); err != nil {
		return err
	}

	var runID string
	if c.deps.Runs != nil {
		id, err := c.deps.Runs.Begin(ctx, c.project(), step)
		if err != nil {
			c.logger.Error("failed to record run start", "step", step, "error", err)
		} else {
			runID = id
		}
	}

	err := fn(ctx)

	if runID != "" {
		c.completeRun(ctx, runID, err)
	}
	c.end(step, err)
	if err == nil {
		c.save(ctx)
	}
	return err
}

func (c *Controller) completeRun(ctx context.Context, runID string, err error) {
	status := state.RunStatusSucceeded
	var exitCode *int
	stderr := ""
	if err != nil {
		status = state.RunStatusFailed
		if errors.Is(err, context.Canceled) {
			status = state.RunStatusCancelled
		}
		var exitErr *runner.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode
			exitCode = &code
			stderr = exitErr.Stderr
		}
	}
	if cerr := c.deps.Runs.Complete(ctx, runID, status, exitCode, stderr); cerr != nil {
		c.logger.Error("failed to record run completion", "run_id", runID, "error", cerr)
	}
}

// save persists the record snapshot. Best effort; the filesystem markers are
// the durable truth and a failed save only costs the UI cache.
func (c *Controller) save(ctx context.Context) {
	if c.deps.Records == nil {
		return
	}
	c.mu.Lock()
	digest, _ := c.scriptLocked().Digest()
	snap := state.RecordSnapshot{
		Project:          c.rec.ProjectName,
		RecordID:         c.rec.ID,
		RepositoryURL:    c.rec.RepositoryURL,
		CommitReference:  c.rec.CommitReference,
		ToolchainVersion: c.rec.ToolchainVersion,
		BuildDeps:        c.rec.BuildDeps,
		StepFlags:        c.rec.Flags.marshal(),
		LastMessage:      c.rec.LastMessage,
		ScriptDigest:     digest,
	}
	c.mu.Unlock()

	if err := c.deps.Records.Save(ctx, snap); err != nil {
		c.logger.Error("failed to save workspace record", "project", snap.Project, "error", err)
		return
	}
	c.publish(events.TypeRecordSaved, map[string]string{"project": snap.Project})
}

func (c *Controller) scriptLocked() workspace.Script {
	return workspace.Script{
		RepoURL:          c.rec.RepositoryURL,
		Commit:           c.rec.CommitReference,
		ToolchainVersion: c.rec.ToolchainVersion,
		BuildDeps:        c.rec.BuildDeps,
	}
}

func (c *Controller) project() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return ""
	}
	return c.rec.ProjectName
}

func (c *Controller) publish(eventType string, data any) {
	if c.deps.Hub != nil {
		c.deps.Hub.Publish(eventType, data)
	}
}

// publishViewLocked renders the current snapshot and pushes it to the hub.
// Called after every state transition so display surfaces stay live.
func (c *Controller) publishViewLocked() {
	if c.deps.Hub == nil {
		return
	}
	snap := c.snapshotLocked()
	payload := struct {
		Snapshot Snapshot `json:"snapshot"`
		Markup   string   `json:"markup,omitempty"`
	}{Snapshot: snap}
	if c.deps.Render != nil {
		payload.Markup = c.deps.Render(snap)
	}
	c.deps.Hub.Publish(events.TypeViewUpdated, payload)
}

// setLastMessage records the most recent completed output line and pushes a
// re-render. Called from streaming chunk callbacks.
func (c *Controller) setLastMessage(line string) {
	c.mu.Lock()
	c.rec.LastMessage = line
	c.publish(events.TypeStepOutput, map[string]string{
		"project": c.rec.ProjectName, "line": line,
	})
	c.publishViewLocked()
	c.mu.Unlock()
}

// candidates expands an ordered candidate list from config into runner
// candidates, resolving a leading ~ against the home directory.
func candidates(commands []string, args ...string) []runner.Candidate {
	out := make([]runner.Candidate, 0, len(commands))
	for _, cmd := range commands {
		out = append(out, runner.Candidate{Command: expandHome(cmd), Args: args})
	}
	return out
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// userMessage converts an internal error into the message surfaced on the
// panel. Full captured logs are available via the run log.
func userMessage(err error) string {
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		tail := strings.TrimSpace(exitErr.Stderr)
		if len(tail) > 400 {
			tail = tail[len(tail)-400:]
		}
		if tail != "" {
			return exitErr.Error() + ": " + tail
		}
		return exitErr.Error()
	}
	return err.Error()
}
