package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mlindqvist/groundwork/internal/log"
	"github.com/mlindqvist/groundwork/internal/provision"
	"github.com/mlindqvist/groundwork/internal/workspace"
)

// Inbound command names. These are the full vocabulary accepted from display
// surfaces; anything else is ignored.
const (
	CmdCreateProject    = "createProject"
	CmdInstallRuntime   = "installRuntime"
	CmdInstallTooling   = "installTooling"
	CmdInstallToolchain = "installToolchain"
	CmdBuild            = "build"
	CmdRunTrace         = "runTrace"
	CmdCancelTrace      = "cancelTrace"
	CmdCleanupOutput    = "cleanupOutput"
	CmdToggleBuildDeps  = "toggleBuildDeps"
)

// CreateProjectPayload carries the createProject fields as sent by the
// display surface.
type CreateProjectPayload struct {
	RepoURL     string `json:"repoUrl"`
	CommitHash  string `json:"commitHash"`
	ProjectName string `json:"projectName"`
	Token       string `json:"token"`
	LeanVersion string `json:"leanVersion"`
}

// ProjectPayload addresses a command at an existing workspace.
type ProjectPayload struct {
	Project string `json:"project"`
}

// ControllerFactory builds a fresh detached controller. The dispatcher calls
// it once per workspace.
type ControllerFactory func() *provision.Controller

// Dispatcher owns the per-workspace controller registry and routes commands.
type Dispatcher struct {
	mu          sync.Mutex
	controllers map[string]*provision.Controller
	factory     ControllerFactory
	logger      *slog.Logger
}

// New creates a Dispatcher.
func New(factory ControllerFactory) *Dispatcher {
	return &Dispatcher{
		controllers: make(map[string]*provision.Controller),
		factory:     factory,
		logger:      log.WithComponent("dispatch"),
	}
}

// Controller returns the controller for project, creating and attaching one
// on first use.
func (d *Dispatcher) Controller(ctx context.Context, project string) (*provision.Controller, error) {
	if err := workspace.ValidateProjectName(project); err != nil {
		return nil, err
	}

	d.mu.Lock()
	c, ok := d.controllers[project]
	if !ok {
		c = d.factory()
		d.controllers[project] = c
	}
	d.mu.Unlock()

	if !ok {
		if err := c.Attach(ctx, project); err != nil {
			d.mu.Lock()
			delete(d.controllers, project)
			d.mu.Unlock()
			return nil, err
		}
	}
	return c, nil
}

// Validate checks a command payload without dispatching. Used by transports
// that want to reject bad input synchronously before running the (possibly
// long) step in the background. The controller re-validates on dispatch;
// this duplication is deliberate defense in depth.
func (d *Dispatcher) Validate(name string, payload json.RawMessage) error {
	switch name {
	case CmdCreateProject:
		p, err := decodeCreate(payload)
		if err != nil {
			return err
		}
		return createParams(p).Validate()

	case CmdInstallRuntime, CmdInstallTooling, CmdInstallToolchain,
		CmdBuild, CmdRunTrace, CmdCancelTrace, CmdCleanupOutput, CmdToggleBuildDeps:
		p, err := decodeProject(payload)
		if err != nil {
			return err
		}
		return workspace.ValidateProjectName(p.Project)

	default:
		// Unknown commands are ignored, not rejected.
		return nil
	}
}

// Dispatch routes one command. Unknown command names are ignored without
// error; duplicate dispatches while a step is busy are silently dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload json.RawMessage) error {
	var err error
	switch name {
	case CmdCreateProject:
		err = d.dispatchCreate(ctx, payload)
	case CmdInstallRuntime:
		err = d.dispatchStep(ctx, payload, (*provision.Controller).InstallRuntime)
	case CmdInstallTooling:
		err = d.dispatchStep(ctx, payload, (*provision.Controller).InstallTooling)
	case CmdInstallToolchain:
		err = d.dispatchStep(ctx, payload, (*provision.Controller).InstallToolchain)
	case CmdBuild:
		err = d.dispatchStep(ctx, payload, (*provision.Controller).Build)
	case CmdRunTrace:
		err = d.dispatchStep(ctx, payload, (*provision.Controller).RunTrace)
	case CmdCleanupOutput:
		err = d.dispatchStep(ctx, payload, (*provision.Controller).CleanupOutput)
	case CmdToggleBuildDeps:
		err = d.dispatchStep(ctx, payload, (*provision.Controller).ToggleBuildDeps)
	case CmdCancelTrace:
		err = d.dispatchCancel(ctx, payload)
	default:
		d.logger.Warn("ignoring unknown command", "command", name)
		return nil
	}

	if errors.Is(err, provision.ErrBusy) {
		d.logger.Debug("dropping duplicate dispatch while busy", "command", name)
		return nil
	}
	return err
}

func (d *Dispatcher) dispatchCreate(ctx context.Context, payload json.RawMessage) error {
	p, err := decodeCreate(payload)
	if err != nil {
		return err
	}
	params := createParams(p)
	if err := params.Validate(); err != nil {
		return err
	}

	c, err := d.Controller(ctx, p.ProjectName)
	if err != nil {
		return err
	}
	return c.CreateProject(ctx, params)
}

func (d *Dispatcher) dispatchStep(ctx context.Context, payload json.RawMessage, step func(*provision.Controller, context.Context) error) error {
	p, err := decodeProject(payload)
	if err != nil {
		return err
	}
	c, err := d.Controller(ctx, p.Project)
	if err != nil {
		return err
	}
	return step(c, ctx)
}

func (d *Dispatcher) dispatchCancel(ctx context.Context, payload json.RawMessage) error {
	p, err := decodeProject(payload)
	if err != nil {
		return err
	}
	c, err := d.Controller(ctx, p.Project)
	if err != nil {
		return err
	}
	c.CancelTrace()
	return nil
}

func decodeCreate(payload json.RawMessage) (CreateProjectPayload, error) {
	var p CreateProjectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, fmt.Errorf("decode createProject payload: %w", err)
	}
	return p, nil
}

func decodeProject(payload json.RawMessage) (ProjectPayload, error) {
	var p ProjectPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return p, fmt.Errorf("decode command payload: %w", err)
		}
	}
	if strings.TrimSpace(p.Project) == "" {
		return p, fmt.Errorf("payload field %q is required", "project")
	}
	return p, nil
}

func createParams(p CreateProjectPayload) provision.CreateParams {
	return provision.CreateParams{
		RepositoryURL:    p.RepoURL,
		CommitReference:  p.CommitHash,
		ProjectName:      p.ProjectName,
		AccessToken:      p.Token,
		ToolchainVersion: p.LeanVersion,
	}
}
