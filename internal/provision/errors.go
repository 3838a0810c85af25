package provision

import (
	"errors"
	"fmt"
)

// ErrBusy means a step is already in flight for this record. Dispatchers
// drop the duplicate request; nothing is queued.
var ErrBusy = errors.New("a provisioning step is already running")

// ErrNoWorkspace means no record is attached to the controller yet.
var ErrNoWorkspace = errors.New("no workspace attached")

// ValidationError is rejected user input, caught before any subprocess or
// filesystem mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PartialInitError means project creation got partway: the clone succeeded
// but a later sub-step failed. The workspace is left as-is for the user to
// inspect rather than rolled back.
type PartialInitError struct {
	Step   string
	Detail string
}

func (e *PartialInitError) Error() string {
	return fmt.Sprintf("project partially initialized: %s failed: %s", e.Step, e.Detail)
}
