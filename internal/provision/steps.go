package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mlindqvist/groundwork/internal/probe"
	"github.com/mlindqvist/groundwork/internal/runner"
	"github.com/mlindqvist/groundwork/internal/workspace"
)

// CreateProject validates inputs, binds the controller to a fresh record, and
// performs initial setup: directory layout, generated trace script, clone,
// checkout. Validation failures leave no state behind; a checkout failure
// after a successful clone leaves the workspace partially initialized and
// visible rather than rolled back.
func (c *Controller) CreateProject(ctx context.Context, p CreateParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	layout, err := workspace.NewLayout(c.deps.WorkspacesDir, p.ProjectName)
	if err != nil {
		return &ValidationError{Field: "projectName", Reason: err.Error()}
	}

	c.mu.Lock()
	if c.rec != nil && c.rec.Busy {
		c.mu.Unlock()
		return ErrBusy
	}
	// Re-creation resets all step flags; this is the one sanctioned reset.
	c.rec = &Record{
		ID:               uuid.NewString(),
		ProjectName:      p.ProjectName,
		RepositoryURL:    p.RepositoryURL,
		CommitReference:  p.CommitReference,
		ToolchainVersion: p.ToolchainVersion,
		AccessToken:      p.AccessToken,
	}
	c.layout = layout
	c.mu.Unlock()

	return c.runStep(ctx, StepCreateProject, c.doCreateProject)
}

func (c *Controller) doCreateProject(ctx context.Context) error {
	if err := c.layout.Create(); err != nil {
		return err
	}
	if _, err := c.layout.WriteScript(c.script()); err != nil {
		return err
	}

	repoURL, commit := c.cloneTarget()

	var gitCmd string
	if probe.Inspect(c.layout.Root).Cloned {
		// Re-create with the repo already on disk: still resolve a working
		// git through the candidate chain before the checkout.
		cands := candidates(c.deps.Commands.Git, "--version")
		_, winner, err := c.deps.Exec.TryInOrder(ctx, cands, c.layout.Root, nil, c.deps.Timeouts.Clone)
		if err != nil {
			return fmt.Errorf("resolve git: %w", err)
		}
		gitCmd = winner.Command
	} else {
		cands := candidates(c.deps.Commands.Git, "clone", "--recursive", repoURL, "repo")
		_, winner, err := c.deps.Exec.TryInOrder(ctx, cands, c.layout.Root, nil, c.deps.Timeouts.Clone)
		if err != nil {
			return fmt.Errorf("clone %s: %w", repoURL, err)
		}
		gitCmd = winner.Command
	}

	_, err := c.deps.Exec.Run(ctx, runner.Spec{
		Command: gitCmd,
		Args:    []string{"checkout", commit},
		Dir:     c.layout.RepoDir(),
		Timeout: c.deps.Timeouts.Clone,
	})
	if err != nil {
		var exitErr *runner.ExitError
		detail := err.Error()
		if errors.As(err, &exitErr) && strings.TrimSpace(exitErr.Stderr) != "" {
			detail = strings.TrimSpace(exitErr.Stderr)
		}
		return &PartialInitError{Step: "checkout", Detail: detail}
	}

	c.setLastMessage(fmt.Sprintf("cloned %s at %s", repoURL, commit))
	return nil
}

// InstallRuntime creates the Python virtual environment, trying interpreter
// candidates in order. Skipped when the environment marker already exists.
func (c *Controller) InstallRuntime(ctx context.Context) error {
	return c.runStep(ctx, StepInstallRuntime, func(ctx context.Context) error {
		if probe.Inspect(c.layout.Root).Runtime {
			c.setFlag(func(f *StepFlags) { f.RuntimeInstalled = true })
			c.setLastMessage("runtime already installed")
			return nil
		}

		cands := candidates(c.deps.Commands.Python, "-m", "venv", "env")
		_, winner, err := c.deps.Exec.TryInOrder(ctx, cands, c.layout.Root, nil, c.deps.Timeouts.Install)
		if err != nil {
			return fmt.Errorf("create virtual environment: %w", err)
		}

		c.setFlag(func(f *StepFlags) { f.RuntimeInstalled = true })
		c.setLastMessage("virtual environment created with " + winner.Command)
		return nil
	})
}

// InstallTooling installs the tracing library into the virtual environment.
func (c *Controller) InstallTooling(ctx context.Context) error {
	return c.runStep(ctx, StepInstallTooling, func(ctx context.Context) error {
		m := probe.Inspect(c.layout.Root)
		if m.Tooling {
			c.setFlag(func(f *StepFlags) { f.ToolingInstalled = true })
			c.setLastMessage("tooling already installed")
			return nil
		}
		if !m.Runtime {
			return fmt.Errorf("runtime is not installed yet")
		}

		pkg := c.deps.ToolingPackage
		_, err := c.deps.Exec.Run(ctx, runner.Spec{
			Command: c.layout.EnvBin("python"),
			Args:    []string{"-m", "pip", "install", pkg},
			Dir:     c.layout.Root,
			Timeout: c.deps.Timeouts.Install,
		})
		if err != nil {
			return fmt.Errorf("install %s: %w", pkg, err)
		}

		if err := c.layout.WriteMarker(probe.ToolingMarker); err != nil {
			return err
		}
		c.setFlag(func(f *StepFlags) { f.ToolingInstalled = true })
		c.setLastMessage(pkg + " installed")
		return nil
	})
}

// InstallToolchain installs the pinned toolchain version and overrides the
// repository to use it.
func (c *Controller) InstallToolchain(ctx context.Context) error {
	return c.runStep(ctx, StepInstallToolchain, func(ctx context.Context) error {
		if probe.Inspect(c.layout.Root).Toolchain {
			c.setFlag(func(f *StepFlags) { f.ToolchainInstalled = true })
			c.setLastMessage("toolchain already installed")
			return nil
		}

		version := c.toolchainVersion()
		cands := candidates(c.deps.Commands.Elan, "toolchain", "install", version)
		_, winner, err := c.deps.Exec.TryInOrder(ctx, cands, c.layout.Root, nil, c.deps.Timeouts.Install)
		if err != nil {
			return fmt.Errorf("install toolchain %s: %w", version, err)
		}

		_, err = c.deps.Exec.Run(ctx, runner.Spec{
			Command: winner.Command,
			Args:    []string{"override", "set", version},
			Dir:     c.layout.RepoDir(),
			Timeout: c.deps.Timeouts.Install,
		})
		if err != nil {
			return fmt.Errorf("override toolchain %s: %w", version, err)
		}

		if err := c.layout.WriteMarker(probe.ToolchainMarker); err != nil {
			return err
		}
		c.setFlag(func(f *StepFlags) { f.ToolchainInstalled = true })
		c.setLastMessage("toolchain " + version + " installed")
		return nil
	})
}

// Build runs the build tool inside the repository.
func (c *Controller) Build(ctx context.Context) error {
	return c.runStep(ctx, StepBuild, func(ctx context.Context) error {
		if probe.Inspect(c.layout.Root).Built {
			c.setFlag(func(f *StepFlags) { f.Built = true })
			c.setLastMessage("project already built")
			return nil
		}

		cands := candidates(c.deps.Commands.Lake, "build")
		_, _, err := c.deps.Exec.TryInOrder(ctx, cands, c.layout.RepoDir(), nil, c.deps.Timeouts.Build)
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}

		c.setFlag(func(f *StepFlags) { f.Built = true })
		c.setLastMessage("build finished")
		return nil
	})
}

// RunTrace executes the generated trace script with live output streaming.
// Every completed output line updates the record and pushes a re-render.
// Credentials and cache paths go in via the environment, never argv. On
// success, nested version-control metadata inside the output is scrubbed.
func (c *Controller) RunTrace(ctx context.Context) error {
	return c.runStep(ctx, StepRunTrace, func(ctx context.Context) error {
		if _, err := os.Stat(c.layout.ScriptPath()); err != nil {
			return fmt.Errorf("trace script is missing; re-create the project")
		}

		traceCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		c.mu.Lock()
		c.traceCancel = cancel
		c.rec.Flags.TraceStarted = true
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			c.traceCancel = nil
			c.mu.Unlock()
		}()

		env := []string{
			workspace.EnvCacheDir + "=" + c.layout.CacheDir(),
			workspace.EnvTmpDir + "=" + c.layout.TmpDir(),
		}
		if token := c.accessToken(); token != "" {
			env = append(env, workspace.EnvToken+"="+token)
		}

		assembler := newLineAssembler(c.setLastMessage)
		_, err := c.deps.Exec.Stream(traceCtx, runner.Spec{
			Command: c.layout.EnvBin("python"),
			Args:    []string{c.layout.ScriptPath()},
			Dir:     c.layout.TraceDir(),
			Env:     env,
			Timeout: c.deps.Timeouts.Trace,
		}, assembler.onChunk)
		assembler.flush()
		if err != nil {
			return fmt.Errorf("trace run: %w", err)
		}

		if removed, err := workspace.ScrubVCSDirs(c.layout.OutDir()); err != nil {
			c.logger.Warn("post-trace cleanup incomplete", "error", err)
		} else if removed > 0 {
			c.logger.Info("scrubbed nested version-control metadata", "removed", removed)
		}

		c.setFlag(func(f *StepFlags) { f.TraceCompleted = true })
		c.setLastMessage("trace completed")
		return nil
	})
}

// CleanupOutput removes nested version-control metadata from the trace
// output directory on explicit request.
func (c *Controller) CleanupOutput(ctx context.Context) error {
	return c.runStep(ctx, StepCleanupOutput, func(ctx context.Context) error {
		removed, err := workspace.ScrubVCSDirs(c.layout.OutDir())
		if err != nil {
			return err
		}
		c.setLastMessage(fmt.Sprintf("cleanup removed %d metadata directories", removed))
		return nil
	})
}

// ToggleBuildDeps flips the build-dependencies flag and rewrites the trace
// script so the next run picks it up. No subprocess is involved, but the step
// holds the busy gate for its whole duration: the script is rewritten in
// place and nothing else may touch the workspace mid-write.
func (c *Controller) ToggleBuildDeps(ctx context.Context) error {
	return c.runStep(ctx, StepToggleBuildDeps, func(ctx context.Context) error {
		c.mu.Lock()
		c.rec.BuildDeps = !c.rec.BuildDeps
		script := c.scriptLocked()
		newValue := c.rec.BuildDeps
		c.mu.Unlock()

		if _, err := c.layout.WriteScript(script); err != nil {
			// Keep flag and script consistent on failure.
			c.mu.Lock()
			c.rec.BuildDeps = !newValue
			c.mu.Unlock()
			return err
		}

		if newValue {
			c.setLastMessage("build dependencies enabled")
		} else {
			c.setLastMessage("build dependencies disabled")
		}
		return nil
	})
}

func (c *Controller) setFlag(mutate func(*StepFlags)) {
	c.mu.Lock()
	mutate(&c.rec.Flags)
	c.mu.Unlock()
}

func (c *Controller) script() workspace.Script {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scriptLocked()
}

func (c *Controller) cloneTarget() (url, commit string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.RepositoryURL, c.rec.CommitReference
}

func (c *Controller) toolchainVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.ToolchainVersion
}

func (c *Controller) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.AccessToken
}

// lineAssembler turns arbitrary output chunks into completed lines. The
// final partial line, if any, is emitted on flush.
type lineAssembler struct {
	emit    func(string)
	pending strings.Builder
}

func newLineAssembler(emit func(string)) *lineAssembler {
	return &lineAssembler{emit: emit}
}

func (a *lineAssembler) onChunk(chunk runner.Chunk) {
	data := string(chunk.Data)
	for {
		i := strings.IndexByte(data, '\n')
		if i < 0 {
			a.pending.WriteString(data)
			return
		}
		line := a.pending.String() + data[:i]
		a.pending.Reset()
		if trimmed := strings.TrimRight(line, "\r"); trimmed != "" {
			a.emit(trimmed)
		}
		data = data[i+1:]
	}
}

func (a *lineAssembler) flush() {
	if a.pending.Len() > 0 {
		a.emit(a.pending.String())
		a.pending.Reset()
	}
}
