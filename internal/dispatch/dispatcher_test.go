package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/mlindqvist/groundwork/internal/config"
	"github.com/mlindqvist/groundwork/internal/provision"
	"github.com/mlindqvist/groundwork/internal/provision/mocks"
	"github.com/mlindqvist/groundwork/internal/runner"
)

func newTestDispatcher(t *testing.T, exec provision.Executor) *Dispatcher {
	t.Helper()
	cfg := config.Defaults()
	dir := t.TempDir()
	return New(func() *provision.Controller {
		return provision.NewController(provision.Deps{
			Exec:           exec,
			WorkspacesDir:  dir,
			Commands:       cfg.Commands,
			ToolingPackage: cfg.Tooling.Package,
			Timeouts:       cfg.Timeouts,
		})
	})
}

func TestDispatchIgnoresUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t, nil)
	if err := d.Dispatch(context.Background(), "reticulateSplines", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("unknown command should be ignored, got %v", err)
	}
}

func TestDispatchRejectsMalformedPayload(t *testing.T) {
	d := newTestDispatcher(t, nil)
	if err := d.Dispatch(context.Background(), CmdInstallRuntime, json.RawMessage(`{broken`)); err == nil {
		t.Fatal("malformed payload accepted")
	}
	if err := d.Dispatch(context.Background(), CmdInstallRuntime, json.RawMessage(`{}`)); err == nil {
		t.Fatal("missing project field accepted")
	}
}

func TestValidateCreateProject(t *testing.T) {
	d := newTestDispatcher(t, nil)

	good := json.RawMessage(`{"repoUrl":"https://github.com/acme/demo","commitHash":"abc1234","projectName":"demo1","leanVersion":"v1"}`)
	if err := d.Validate(CmdCreateProject, good); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	bad := json.RawMessage(`{"repoUrl":"https://evil.example/acme/demo","commitHash":"abc1234","projectName":"demo1","leanVersion":"v1"}`)
	if err := d.Validate(CmdCreateProject, bad); err == nil {
		t.Fatal("unsupported host accepted")
	}

	// Unknown names validate clean; they are dropped at dispatch instead.
	if err := d.Validate("reticulateSplines", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("unknown command should validate clean, got %v", err)
	}
}

func TestControllerRegistryReuse(t *testing.T) {
	d := newTestDispatcher(t, nil)
	ctx := context.Background()

	a, err := d.Controller(ctx, "demo1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Controller(ctx, "demo1")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("same project produced distinct controllers")
	}

	other, err := d.Controller(ctx, "demo2")
	if err != nil {
		t.Fatal(err)
	}
	if other == a {
		t.Fatal("distinct projects share a controller")
	}

	if _, err := d.Controller(ctx, "../escape"); err == nil {
		t.Fatal("unsafe project name accepted")
	}
}

func TestDispatchDropsDuplicateWhileBusy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	started := make(chan struct{})
	release := make(chan struct{})

	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().
		TryInOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []runner.Candidate, string, []string, time.Duration) (*runner.Result, runner.Candidate, error) {
			close(started)
			<-release
			return &runner.Result{}, runner.Candidate{Command: "python3"}, nil
		}).
		Times(1)

	d := newTestDispatcher(t, exec)
	payload := json.RawMessage(`{"project":"demo1"}`)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.Dispatch(context.Background(), CmdInstallRuntime, payload); err != nil {
			t.Errorf("first dispatch failed: %v", err)
		}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first dispatch never reached the executor")
	}

	// Duplicate while busy is a silent drop; Times(1) above proves no
	// second subprocess was attempted.
	if err := d.Dispatch(context.Background(), CmdInstallRuntime, payload); err != nil {
		t.Fatalf("duplicate dispatch surfaced an error: %v", err)
	}

	close(release)
	wg.Wait()
}

func TestDispatchCancelWithoutRunningTrace(t *testing.T) {
	d := newTestDispatcher(t, nil)
	err := d.Dispatch(context.Background(), CmdCancelTrace, json.RawMessage(`{"project":"demo1"}`))
	if err != nil {
		t.Fatalf("cancel on idle controller should be a no-op, got %v", err)
	}
}
