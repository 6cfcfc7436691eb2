package ports

import (
	"context"

	"tcrun/internal/domain/execution"
)

// TestCaseSource enumerates the test cases of a run in discovery order.
type TestCaseSource interface {
	TestCases(ctx context.Context) ([]execution.TestCase, error)
}
