package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"tcrun/internal/domain/execution"
	"tcrun/internal/observability"
)

var (
	// ErrDuplicateTestID is returned when two test cases share an id.
	ErrDuplicateTestID = errors.New("duplicate test id")
	// ErrEmptyTestID is returned when a test case has no id.
	ErrEmptyTestID = errors.New("empty test id")
)

// Executor runs one test case to completion.
type Executor interface {
	Execute(ctx context.Context, tc execution.TestCase) execution.Result
}

// SchedulerConfig tunes a Scheduler.
type SchedulerConfig struct {
	// Workers bounds concurrent executions. Zero selects runtime.NumCPU().
	Workers int
	Logger  *slog.Logger
}

// Scheduler fans test cases out over a bounded pool of workers.
type Scheduler struct {
	exec    Executor
	workers int
	logger  *slog.Logger
}

// NewScheduler constructs a scheduler around exec.
func NewScheduler(exec Executor, cfg SchedulerConfig) (*Scheduler, error) {
	if exec == nil {
		return nil, errors.New("executor must be provided")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	return &Scheduler{exec: exec, workers: workers, logger: logger}, nil
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// RunAll executes every test case and returns one Result per case in the
// order the cases were given. onResult, when set, is invoked from the worker
// goroutines as each result completes and must be safe for concurrent use.
func (s *Scheduler) RunAll(ctx context.Context, cases []execution.TestCase, onResult func(execution.Result)) ([]execution.Result, error) {
	if err := checkIDs(cases); err != nil {
		return nil, err
	}

	completed := make(chan execution.Result, len(cases))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, tc := range cases {
		g.Go(func() error {
			res := s.executeIsolated(ctx, tc)
			s.logger.Debug("test finished",
				"test", res.TestID,
				"verdict", res.Verdict.Kind,
				"elapsed", res.Outcome.Elapsed,
			)
			if onResult != nil {
				s.deliver(onResult, res)
			}
			completed <- res
			return nil
		})
	}
	_ = g.Wait()
	close(completed)

	byID := make(map[string]execution.Result, len(cases))
	for res := range completed {
		byID[res.TestID] = res
	}

	ordered := make([]execution.Result, 0, len(cases))
	for _, tc := range cases {
		res, ok := byID[tc.ID]
		if !ok {
			res = execution.Result{
				TestID:  tc.ID,
				Outcome: execution.LaunchFailed(errors.New("no result produced")),
				Verdict: execution.RuntimeError("", "no result produced"),
			}
		}
		ordered = append(ordered, res)
	}
	return ordered, nil
}

func (s *Scheduler) executeIsolated(ctx context.Context, tc execution.TestCase) (res execution.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("test executor panicked", "test", tc.ID, "panic", r, "stack", string(debug.Stack()))
			cause := fmt.Errorf("executor panic: %v", r)
			res = execution.Result{
				TestID:  tc.ID,
				Outcome: execution.LaunchFailed(cause),
				Verdict: execution.RuntimeError("", cause.Error()),
			}
		}
	}()

	res = s.exec.Execute(ctx, tc)
	res.TestID = tc.ID
	return res
}

// deliver hands res to onResult. A panicking callback is logged and does not
// affect the result or the other workers.
func (s *Scheduler) deliver(onResult func(execution.Result), res execution.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("result callback panicked", "test", res.TestID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	onResult(res)
}

func checkIDs(cases []execution.TestCase) error {
	seen := make(map[string]struct{}, len(cases))
	for i, tc := range cases {
		if tc.ID == "" {
			return fmt.Errorf("test case %d: %w", i, ErrEmptyTestID)
		}
		if _, ok := seen[tc.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateTestID, tc.ID)
		}
		seen[tc.ID] = struct{}{}
	}
	return nil
}
