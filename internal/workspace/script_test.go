package workspace

import (
	"os"
	"strings"
	"testing"
)

func demoScript() Script {
	return Script{
		RepoURL:          "https://github.com/acme/demo",
		Commit:           "abc1234",
		ToolchainVersion: "v1",
		BuildDeps:        false,
	}
}

func TestScriptRenderEmbedsValues(t *testing.T) {
	data, err := demoScript().Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		`"https://github.com/acme/demo"`,
		`"abc1234"`,
		`"v1"`,
		"BUILD_DEPS = False",
		EnvToken,
		EnvCacheDir,
		EnvTmpDir,
		".trace-complete",
		"status.jsonl",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("rendered script missing %q", want)
		}
	}
}

func TestScriptRenderNeverEmbedsToken(t *testing.T) {
	data, err := demoScript().Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// Token is an environment lookup, not an interpolated literal. The only
	// place the variable name appears is inside os.environ.get.
	if !strings.Contains(string(data), `os.environ.get("`+EnvToken+`"`) {
		t.Fatal("token must be read from the environment")
	}
}

func TestScriptRenderDeterministic(t *testing.T) {
	a, err := demoScript().Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := demoScript().Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("two renders of equal input differ")
	}
}

func TestScriptBuildDepsToggle(t *testing.T) {
	s := demoScript()
	s.BuildDeps = true
	data, err := s.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(data), "BUILD_DEPS = True") {
		t.Fatal("toggled flag not reflected in script")
	}
}

func TestScriptDigestChangesWithContent(t *testing.T) {
	a := demoScript()
	b := demoScript()
	b.BuildDeps = true

	da, err := a.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	db, err := b.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !strings.HasPrefix(da, "blake3:") {
		t.Fatalf("digest %q missing blake3 prefix", da)
	}
	if da == db {
		t.Fatal("digests equal for different content")
	}
}

func TestWriteScriptSkipsUnchanged(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "demo1")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if err := l.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	wrote, err := l.WriteScript(demoScript())
	if err != nil {
		t.Fatalf("first WriteScript: %v", err)
	}
	if !wrote {
		t.Fatal("first write reported no change")
	}

	wrote, err = l.WriteScript(demoScript())
	if err != nil {
		t.Fatalf("second WriteScript: %v", err)
	}
	if wrote {
		t.Fatal("unchanged script was rewritten")
	}

	s := demoScript()
	s.BuildDeps = true
	wrote, err = l.WriteScript(s)
	if err != nil {
		t.Fatalf("third WriteScript: %v", err)
	}
	if !wrote {
		t.Fatal("changed script was not rewritten")
	}

	info, err := os.Stat(l.ScriptPath())
	if err != nil {
		t.Fatalf("stat script: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatal("script is not executable")
	}
}
