package runner

import (
	"fmt"
	"strings"
)

// SpawnError means the executable could not be located or started. The
// fallback resolver treats it the same as any other candidate failure.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the subprocess ran and exited nonzero. Stderr carries the
// capped capture for user-facing failure messages.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%q exited with status %d", e.Command, e.ExitCode)
}

// AllFailedError means every fallback candidate failed. Individual candidate
// errors are not carried; only the fact of exhaustion.
type AllFailedError struct {
	Tried []string
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all candidates failed: %s", strings.Join(e.Tried, ", "))
}
