// Package provision owns the stateful controller that drives a workspace
// through the provisioning sequence: clone, runtime, tooling, toolchain,
// build, trace. One Controller per workspace; steps are serialized by a busy
// gate and derive ground truth from filesystem markers via the prober.
package provision

import (
	"encoding/json"

	"github.com/mlindqvist/groundwork/internal/probe"
)

// StepFlags tracks completed steps for the current session. Monotonic: once
// set, a flag is never cleared except by explicit project re-creation. The
// prober, not these flags, is authoritative after a restart.
type StepFlags struct {
	RuntimeInstalled   bool `json:"runtimeInstalled"`
	ToolingInstalled   bool `json:"toolingInstalled"`
	ToolchainInstalled bool `json:"toolchainInstalled"`
	Built              bool `json:"built"`
	TraceStarted       bool `json:"traceStarted"`
	TraceCompleted     bool `json:"traceCompleted"`
}

func (f StepFlags) marshal() json.RawMessage {
	b, _ := json.Marshal(f)
	return b
}

// Record is the in-memory provisioning state for one workspace. Owned
// exclusively by its Controller; access goes through the controller mutex.
type Record struct {
	ID               string
	ProjectName      string
	RepositoryURL    string
	CommitReference  string
	ToolchainVersion string
	BuildDeps        bool

	// AccessToken is held in memory only. It is injected into subprocess
	// environments at spawn time and must never be logged or persisted.
	AccessToken string

	Flags         StepFlags
	Busy          bool
	CurrentStep   string
	LastMessage   string
	FailureReason string
}

// CreateParams are the validated inputs to project creation.
type CreateParams struct {
	RepositoryURL    string
	CommitReference  string
	ProjectName      string
	AccessToken      string
	ToolchainVersion string
}

// Snapshot is an immutable view of controller state handed to renderers and
// display surfaces. It never carries the access token.
type Snapshot struct {
	Stage            probe.Stage `json:"stage"`
	ProjectName      string      `json:"projectName"`
	RepositoryURL    string      `json:"repositoryUrl"`
	CommitReference  string      `json:"commitReference"`
	ToolchainVersion string      `json:"toolchainVersion"`
	BuildDeps        bool        `json:"buildDeps"`
	Flags            StepFlags   `json:"stepFlags"`
	Busy             bool        `json:"busy"`
	CurrentStep      string      `json:"currentStep,omitempty"`
	LastMessage      string      `json:"lastMessage,omitempty"`
	FailureReason    string      `json:"failureReason,omitempty"`
	HasToken         bool        `json:"hasToken"`
}
