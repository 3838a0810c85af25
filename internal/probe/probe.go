// Package probe derives the provisioning stage of a workspace from marker
// files on disk. The filesystem is the authoritative record of completed
// steps; in-memory flags are only a same-session cache layered on top.
package probe

import (
	"os"
	"path/filepath"
)

// Stage is one point in the linear provisioning sequence.
type Stage int

const (
	NoWorkspace Stage = iota
	NeedsClone
	NeedsRuntime
	NeedsTooling
	NeedsToolchain
	NeedsBuild
	ReadyToTrace
	TraceArtifactsPresent
)

func (s Stage) String() string {
	switch s {
	case NoWorkspace:
		return "no-workspace"
	case NeedsClone:
		return "needs-clone"
	case NeedsRuntime:
		return "needs-runtime"
	case NeedsTooling:
		return "needs-tooling"
	case NeedsToolchain:
		return "needs-toolchain"
	case NeedsBuild:
		return "needs-build"
	case ReadyToTrace:
		return "ready-to-trace"
	case TraceArtifactsPresent:
		return "trace-artifacts-present"
	default:
		return "unknown"
	}
}

// Marker paths relative to the workspace root. repo/.git is the
// version-control marker, env/pyvenv.cfg the environment marker, repo/.lake
// (or legacy repo/build) the build-output marker, and out/.trace-complete the
// completion flag left by the trace script.
const (
	CloneMarker      = "repo/.git"
	RuntimeMarker    = "env/pyvenv.cfg"
	ToolingMarker    = "env/.tooling-ok"
	ToolchainMarker  = "env/.toolchain-ok"
	BuildMarker      = "repo/.lake"
	BuildMarkerOld   = "repo/build"
	CompletionMarker = "out/.trace-complete"
	LayoutMarker     = "trace"
)

// Markers is the raw marker presence snapshot backing a Probe call.
type Markers struct {
	Layout    bool
	Cloned    bool
	Runtime   bool
	Tooling   bool
	Toolchain bool
	Built     bool
	Completed bool
}

// Inspect reports which markers exist under root.
func Inspect(root string) Markers {
	return Markers{
		Layout:    exists(filepath.Join(root, LayoutMarker)),
		Cloned:    exists(filepath.Join(root, CloneMarker)),
		Runtime:   exists(filepath.Join(root, RuntimeMarker)),
		Tooling:   exists(filepath.Join(root, ToolingMarker)),
		Toolchain: exists(filepath.Join(root, ToolchainMarker)),
		Built:     exists(filepath.Join(root, BuildMarker)) || exists(filepath.Join(root, BuildMarkerOld)),
		Completed: exists(filepath.Join(root, CompletionMarker)),
	}
}

// Probe derives the current stage from markers under root. Checks run from
// most complete to least complete so coexisting markers still yield exactly
// one stage. Pure read; safe to call repeatedly.
func Probe(root string) Stage {
	m := Inspect(root)
	switch {
	case m.Completed:
		return TraceArtifactsPresent
	case m.Built:
		return ReadyToTrace
	case m.Toolchain:
		return NeedsBuild
	case m.Tooling:
		return NeedsToolchain
	case m.Runtime:
		return NeedsTooling
	case m.Cloned:
		return NeedsRuntime
	case m.Layout:
		return NeedsClone
	default:
		return NoWorkspace
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
