// Package workspace owns the on-disk shape of a provisioning workspace: the
// fixed directory layout, the generated trace script, and cleanup of
// version-control metadata left inside trace output.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout is the fixed directory shape created at project-creation time.
// Marker entries inside it are how stage is rederived after a restart.
type Layout struct {
	Root string
}

// Subdirectories created eagerly. out/ is created by the trace script itself;
// env/ by the venv step.
var subdirs = []string{"trace", "repo", "cache", "tmp"}

// NewLayout resolves the layout for project under baseDir. The project name
// is used as a directory name and is validated accordingly.
func NewLayout(baseDir, project string) (Layout, error) {
	if strings.TrimSpace(baseDir) == "" {
		return Layout{}, fmt.Errorf("workspace base directory is empty")
	}
	if err := ValidateProjectName(project); err != nil {
		return Layout{}, err
	}
	return Layout{Root: filepath.Join(filepath.Clean(baseDir), project)}, nil
}

// Create makes the workspace root and its fixed subdirectories.
func (l Layout) Create() error {
	for _, d := range subdirs {
		if err := os.MkdirAll(filepath.Join(l.Root, d), 0o755); err != nil {
			return fmt.Errorf("create workspace directory %q: %w", d, err)
		}
	}
	return nil
}

// Exists reports whether the workspace root directory is present.
func (l Layout) Exists() bool {
	info, err := os.Stat(l.Root)
	return err == nil && info.IsDir()
}

func (l Layout) TraceDir() string   { return filepath.Join(l.Root, "trace") }
func (l Layout) RepoDir() string    { return filepath.Join(l.Root, "repo") }
func (l Layout) CacheDir() string   { return filepath.Join(l.Root, "cache") }
func (l Layout) TmpDir() string     { return filepath.Join(l.Root, "tmp") }
func (l Layout) OutDir() string     { return filepath.Join(l.Root, "out") }
func (l Layout) EnvDir() string     { return filepath.Join(l.Root, "env") }
func (l Layout) ScriptPath() string { return filepath.Join(l.Root, "trace", "trace.py") }

// EnvBin returns the path of an executable inside the virtual environment.
func (l Layout) EnvBin(name string) string {
	return filepath.Join(l.EnvDir(), "bin", name)
}

// MarkerPath returns the absolute path of a marker relative to the root.
func (l Layout) MarkerPath(rel string) string {
	return filepath.Join(l.Root, rel)
}

// WriteMarker creates an empty marker file, making parents as needed.
func (l Layout) WriteMarker(rel string) error {
	path := l.MarkerPath(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create marker directory for %q: %w", rel, err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("write marker %q: %w", rel, err)
	}
	return nil
}

// ValidateProjectName rejects names unusable as a single directory entry.
func ValidateProjectName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("project name is empty")
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("project name %q is invalid", name)
	}
	if strings.Contains(trimmed, "/") || strings.Contains(trimmed, `\`) {
		return fmt.Errorf("project name %q must not contain path separators", name)
	}
	if filepath.Clean(trimmed) != trimmed {
		return fmt.Errorf("project name %q is invalid", name)
	}
	return nil
}
