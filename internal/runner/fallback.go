package runner

import (
	"context"
	"time"
)

// Candidate is one alternative command for the same logical operation.
// Different hosts expose interpreter and toolchain binaries under different
// names or paths; candidates are tried strictly in the given order.
type Candidate struct {
	Command string
	Args    []string
}

// TryInOrder runs candidates one at a time in dir until the first succeeds.
// Any failure, including a missing executable, advances to the next candidate
// without surfacing the intermediate error. When every candidate has failed
// the returned error is *AllFailedError.
func (r *Runner) TryInOrder(ctx context.Context, candidates []Candidate, dir string, env []string, timeout time.Duration) (*Result, Candidate, error) {
	tried := make([]string, 0, len(candidates))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, Candidate{}, err
		}
		tried = append(tried, c.Command)

		res, err := r.Run(ctx, Spec{
			Command: c.Command,
			Args:    c.Args,
			Dir:     dir,
			Env:     env,
			Timeout: timeout,
		})
		if err == nil {
			return res, c, nil
		}
		if ctx.Err() != nil {
			return nil, Candidate{}, ctx.Err()
		}
		r.logger.Debug("candidate failed, trying next", "command", c.Command, "error", err)
	}

	return nil, Candidate{}, &AllFailedError{Tried: tried}
}
