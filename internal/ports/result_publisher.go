package ports

import (
	"context"

	"tcrun/internal/domain/execution"
)

// ResultPublisher publishes test results to an external system.
type ResultPublisher interface {
	// PublishResult is called once per test as soon as its result is known.
	PublishResult(ctx context.Context, runID string, result execution.Result) error
	// PublishRunFinished is called once after every result of the run was published.
	PublishRunFinished(ctx context.Context, report execution.RunReport) error
	Close() error
}
