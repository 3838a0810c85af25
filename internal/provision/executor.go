package provision

import (
	"context"
	"time"

	"github.com/mlindqvist/groundwork/internal/runner"
)

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks github.com/mlindqvist/groundwork/internal/provision Executor

// Executor is the subprocess surface the controller depends on. Satisfied by
// *runner.Runner; mocked in controller tests.
type Executor interface {
	Run(ctx context.Context, spec runner.Spec) (*runner.Result, error)
	Stream(ctx context.Context, spec runner.Spec, onChunk func(runner.Chunk)) (*runner.Result, error)
	TryInOrder(ctx context.Context, candidates []runner.Candidate, dir string, env []string, timeout time.Duration) (*runner.Result, runner.Candidate, error)
}

var _ Executor = (*runner.Runner)(nil)
