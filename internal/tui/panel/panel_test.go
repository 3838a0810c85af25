package panel

import (
	"strings"
	"testing"
	"time"

	"github.com/mlindqvist/groundwork/internal/dispatch"
	"github.com/mlindqvist/groundwork/internal/events"
	"github.com/mlindqvist/groundwork/internal/probe"
)

func TestNextCommandPerStage(t *testing.T) {
	cases := []struct {
		stage probe.Stage
		want  string
	}{
		{probe.NoWorkspace, dispatch.CmdCreateProject},
		{probe.NeedsClone, dispatch.CmdCreateProject},
		{probe.NeedsRuntime, dispatch.CmdInstallRuntime},
		{probe.NeedsTooling, dispatch.CmdInstallTooling},
		{probe.NeedsToolchain, dispatch.CmdInstallToolchain},
		{probe.NeedsBuild, dispatch.CmdBuild},
		{probe.ReadyToTrace, dispatch.CmdRunTrace},
		{probe.TraceArtifactsPresent, dispatch.CmdCleanupOutput},
	}
	for _, tc := range cases {
		name, label := nextCommand(tc.stage)
		if name != tc.want {
			t.Errorf("stage %v: got command %q, want %q", tc.stage, name, tc.want)
		}
		if label == "" {
			t.Errorf("stage %v: empty label", tc.stage)
		}
	}
}

func TestFormPayloadTrimsInput(t *testing.T) {
	f := newCreateForm()
	f.inputs[fieldRepoURL].SetValue("  https://github.com/acme/demo ")
	f.inputs[fieldCommit].SetValue("abc1234")
	f.inputs[fieldProject].SetValue("demo1")
	f.inputs[fieldToken].SetValue("s3cret")
	f.inputs[fieldVersion].SetValue("v1")

	p := f.payload()
	if p.RepoURL != "https://github.com/acme/demo" {
		t.Errorf("repo url not trimmed: %q", p.RepoURL)
	}
	if p.CommitHash != "abc1234" || p.ProjectName != "demo1" || p.Token != "s3cret" || p.LeanVersion != "v1" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestFormTokenFieldMasked(t *testing.T) {
	f := newCreateForm()
	f.inputs[fieldToken].SetValue("s3cret")
	v := f.View(NewDefaultTheme())
	if v == "" {
		t.Fatal("empty form view")
	}
	if strings.Contains(v, "s3cret") {
		t.Fatal("token rendered in clear text")
	}
}

func TestExtractEventDesc(t *testing.T) {
	e := events.Event{
		Type: events.TypeStepFailed,
		At:   time.Now(),
		Data: []byte(`{"project":"demo1","step":"build","reason":"exit status 1"}`),
	}
	desc := extractEventDesc(e)
	if !strings.Contains(desc, "build") || !strings.Contains(desc, "exit status 1") {
		t.Fatalf("unexpected description %q", desc)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 60); got != "short" {
		t.Errorf("short string modified: %q", got)
	}
	long := truncate("abcdefghijklmnop", 10)
	if len(long) != 10 || long[7:] != "..." {
		t.Errorf("bad truncation: %q", long)
	}
}
