package workspace

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"text/template"

	"github.com/zeebo/blake3"
)

// Script holds the values embedded in the generated trace script. The access
// token and the cache/tmp paths are deliberately NOT template inputs: the
// script reads them from the environment at run time so credentials never
// land on disk.
type Script struct {
	RepoURL          string
	Commit           string
	ToolchainVersion string
	BuildDeps        bool
}

// Environment variable names the runner injects when executing the script.
const (
	EnvToken    = "GROUNDWORK_TOKEN"
	EnvCacheDir = "GROUNDWORK_CACHE_DIR"
	EnvTmpDir   = "GROUNDWORK_TMP_DIR"
)

var scriptTmpl = template.Must(template.New("trace.py").Parse(`#!/usr/bin/env python3
import datetime
import json
import os
import pathlib
import sys

REPO_URL = {{printf "%q" .RepoURL}}
COMMIT = {{printf "%q" .Commit}}
TOOLCHAIN_VERSION = {{printf "%q" .ToolchainVersion}}
BUILD_DEPS = {{if .BuildDeps}}True{{else}}False{{end}}

ACCESS_TOKEN = os.environ.get({{printf "%q" .EnvTokenName}}, "")
CACHE_DIR = os.environ.get({{printf "%q" .EnvCacheDirName}}, "")
TMP_DIR = os.environ.get({{printf "%q" .EnvTmpDirName}}, "")

HERE = pathlib.Path(__file__).resolve().parent
OUT_DIR = HERE.parent / "out"
STATUS_FILE = HERE / "status.jsonl"


def report(message, severity="info"):
    record = {
        "message": message,
        "severity": severity,
        "timestamp": datetime.datetime.now(datetime.timezone.utc).isoformat(),
    }
    with STATUS_FILE.open("a", encoding="utf-8") as f:
        f.write(json.dumps(record) + "\n")
    print(message, flush=True)


def main():
    if CACHE_DIR:
        os.environ["CACHE_DIR"] = CACHE_DIR
    if TMP_DIR:
        os.environ["TMPDIR"] = TMP_DIR
    if ACCESS_TOKEN:
        os.environ["GITHUB_ACCESS_TOKEN"] = ACCESS_TOKEN

    report("trace starting for %s at %s" % (REPO_URL, COMMIT))

    from lean_dojo import LeanGitRepo, trace

    repo = LeanGitRepo(REPO_URL, COMMIT)
    report("tracing repository (toolchain %s)" % TOOLCHAIN_VERSION)
    traced = trace(repo, dst_dir=str(OUT_DIR), build_deps=BUILD_DEPS)

    report("trace finished, writing completion marker")
    OUT_DIR.mkdir(parents=True, exist_ok=True)
    (OUT_DIR / ".trace-complete").touch()
    report("done", severity="info")


if __name__ == "__main__":
    try:
        main()
    except Exception as exc:  # noqa: BLE001
        report("trace failed: %s" % exc, severity="error")
        sys.exit(1)
`))

type scriptTmplInput struct {
	Script
	EnvTokenName    string
	EnvCacheDirName string
	EnvTmpDirName   string
}

// Render produces the script content. Deterministic for equal inputs.
func (s Script) Render() ([]byte, error) {
	var buf bytes.Buffer
	in := scriptTmplInput{
		Script:          s,
		EnvTokenName:    EnvToken,
		EnvCacheDirName: EnvCacheDir,
		EnvTmpDirName:   EnvTmpDir,
	}
	if err := scriptTmpl.Execute(&buf, in); err != nil {
		return nil, fmt.Errorf("render trace script: %w", err)
	}
	return buf.Bytes(), nil
}

// Digest returns the BLAKE3 digest of the rendered script content.
func (s Script) Digest() (string, error) {
	data, err := s.Render()
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:]), nil
}

// WriteScript renders the script into the layout's trace directory. When the
// on-disk content already matches the rendered content the write is skipped;
// the return value reports whether the file changed.
func (l Layout) WriteScript(s Script) (bool, error) {
	data, err := s.Render()
	if err != nil {
		return false, err
	}

	path := l.ScriptPath()
	if existing, err := os.ReadFile(path); err == nil {
		if blake3.Sum256(existing) == blake3.Sum256(data) {
			return false, nil
		}
	}

	if err := os.MkdirAll(l.TraceDir(), 0o755); err != nil {
		return false, fmt.Errorf("create trace directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o755); err != nil {
		return false, fmt.Errorf("write trace script: %w", err)
	}
	return true, nil
}
