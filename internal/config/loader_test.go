package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groundwork.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
workspaces:
  dir: /tmp/gw
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "groundwork", cfg.Service.Name)
	assert.Equal(t, "/tmp/gw", cfg.Workspaces.Dir)
	assert.Equal(t, []string{"git"}, cfg.Commands.Git)
	assert.Contains(t, cfg.Commands.Python, "python3")
	assert.Equal(t, "lean-dojo", cfg.Tooling.Package)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Clone)
	assert.Equal(t, time.Duration(0), cfg.Timeouts.Trace)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
service:
  name: gw-test
  log_level: DEBUG
workspaces:
  dir: /data/ws
commands:
  python: ["/opt/python3.12/bin/python"]
timeouts:
  build: 30m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gw-test", cfg.Service.Name)
	assert.Equal(t, []string{"/opt/python3.12/bin/python"}, cfg.Commands.Python)
	assert.Equal(t, 30*time.Minute, cfg.Timeouts.Build)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("GW_TEST_KEY", "sekrit")
	path := writeConfig(t, `
api:
  enabled: true
  listen: 127.0.0.1:0
  auth:
    api_key: ${GW_TEST_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sekrit", cfg.API.Auth.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsEmptyCandidateList(t *testing.T) {
	path := writeConfig(t, `
commands:
  git: []
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commands.git")
}

func TestLockAndVerify(t *testing.T) {
	path := writeConfig(t, "workspaces:\n  dir: /tmp/gw\n")

	require.NoError(t, Lock(path))

	_, err := Load(path)
	require.NoError(t, err, "locked unmodified config must load")

	// Tamper after locking.
	require.NoError(t, os.WriteFile(path, []byte("workspaces:\n  dir: /tmp/evil\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity")
}

func TestVerifyLockAbsentChecksumPasses(t *testing.T) {
	path := writeConfig(t, "workspaces:\n  dir: /tmp/gw\n")
	require.NoError(t, VerifyLock(path))
}
