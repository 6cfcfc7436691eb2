package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tcrun/internal/domain/execution"
	"tcrun/internal/observability"
	"tcrun/internal/ports"
)

// Service coordinates one harness run: it resets the work areas, discovers
// the test cases, schedules them and optionally publishes every result.
type Service struct {
	source    ports.TestCaseSource
	areas     *WorkAreas
	scheduler *Scheduler
	runner    ports.ProcessRunner
	publisher ports.ResultPublisher
	logger    *slog.Logger
}

// ServiceConfig wires the dependencies of a Service. Runner and Publisher are
// optional and only used to release resources on Close and to publish.
type ServiceConfig struct {
	Source    ports.TestCaseSource
	Areas     *WorkAreas
	Scheduler *Scheduler
	Runner    ports.ProcessRunner
	Publisher ports.ResultPublisher
	Logger    *slog.Logger
}

// NewService constructs a Service from cfg.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("test case source must be provided")
	}
	if cfg.Areas == nil {
		return nil, errors.New("work areas must be provided")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("scheduler must be provided")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	return &Service{
		source:    cfg.Source,
		areas:     cfg.Areas,
		scheduler: cfg.Scheduler,
		runner:    cfg.Runner,
		publisher: cfg.Publisher,
		logger:    logger,
	}, nil
}

// Run executes every discovered test case once.
//
// onResult, when provided, is invoked for every result as soon as it
// completes, possibly concurrently.
func (s *Service) Run(ctx context.Context, onResult func(execution.Result)) (execution.RunReport, error) {
	runID, err := execution.NewRunID()
	if err != nil {
		return execution.RunReport{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := s.logger.With("run", runID)

	if err := s.areas.Reset(); err != nil {
		return execution.RunReport{}, fmt.Errorf("reset work areas: %w", err)
	}

	cases, err := s.source.TestCases(ctx)
	if err != nil {
		return execution.RunReport{}, fmt.Errorf("discover test cases: %w", err)
	}
	logger.Info("starting run", "tests", len(cases), "workers", s.scheduler.Workers())

	started := time.Now()
	results, err := s.scheduler.RunAll(ctx, cases, func(res execution.Result) {
		if s.publisher != nil {
			if err := s.publisher.PublishResult(ctx, runID, res); err != nil {
				logger.Warn("publish result failed", "test", res.TestID, "error", err)
			}
		}
		if onResult != nil {
			onResult(res)
		}
	})
	if err != nil {
		return execution.RunReport{}, fmt.Errorf("run test cases: %w", err)
	}

	report := execution.RunReport{
		RunID:     runID,
		StartedAt: started,
		Duration:  time.Since(started),
		Results:   results,
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRunFinished(ctx, report); err != nil {
			logger.Warn("publish run summary failed", "error", err)
		}
	}

	summary := report.Summarize()
	logger.Info("run finished",
		"total", summary.Total,
		"correct", summary.Correct,
		"incorrect", summary.Incorrect,
		"runtime_error", summary.RuntimeError,
		"timeout", summary.Timeout,
		"duration", report.Duration,
	)
	return report, nil
}

// Close releases the runner and publisher.
func (s *Service) Close() error {
	var errs []error
	if s.runner != nil {
		if err := s.runner.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close runner: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
