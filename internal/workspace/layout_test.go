package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLayoutValidation(t *testing.T) {
	base := t.TempDir()

	cases := []struct {
		name    string
		project string
		wantErr bool
	}{
		{"valid", "demo1", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"unclean", "a/../b", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLayout(base, tc.project)
			if tc.wantErr && err == nil {
				t.Fatalf("NewLayout(%q) succeeded, want error", tc.project)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("NewLayout(%q) failed: %v", tc.project, err)
			}
		})
	}
}

func TestLayoutCreate(t *testing.T) {
	base := t.TempDir()
	l, err := NewLayout(base, "demo1")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if err := l.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, d := range []string{"trace", "repo", "cache", "tmp"} {
		info, err := os.Stat(filepath.Join(base, "demo1", d))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: err=%v", d, err)
		}
	}
	if !l.Exists() {
		t.Fatal("Exists = false after Create")
	}
}

func TestLayoutCreateIdempotent(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "demo1")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if err := l.Create(); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := l.Create(); err != nil {
		t.Fatalf("second Create: %v", err)
	}
}

func TestWriteMarker(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "demo1")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if err := l.WriteMarker("env/.tooling-ok"); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}
	if _, err := os.Stat(l.MarkerPath("env/.tooling-ok")); err != nil {
		t.Fatalf("marker not on disk: %v", err)
	}
}
