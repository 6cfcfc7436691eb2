package ports

import (
	"context"

	"tcrun/internal/domain/execution"
)

// ProcessRunner launches a single process and reports how it ended.
//
// Run never returns an error: failures to launch are reported as
// execution.OutcomeLaunchFailed. When Run returns, the process and its
// descendants are no longer running.
type ProcessRunner interface {
	Run(ctx context.Context, cmd execution.Command) execution.Outcome
	Close() error
}
