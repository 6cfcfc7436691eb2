package main

import (
	"context"
	"fmt"
	"log/slog"

	"tcrun/internal/app/build"
	"tcrun/internal/app/executor"
	"tcrun/internal/config"
	"tcrun/internal/infra/fixtures"
	"tcrun/internal/infra/kafka"
	"tcrun/internal/ports"
	"tcrun/internal/runtime/docker"
	"tcrun/internal/runtime/process"
)

func newProcessRunner(cfg config.Config, logger *slog.Logger) (ports.ProcessRunner, error) {
	switch cfg.Runtime.Kind {
	case config.RuntimeDocker:
		runner, err := docker.New(docker.Config{
			Image:       cfg.Runtime.Docker.Image,
			Workdir:     cfg.Runtime.Docker.Workdir,
			User:        cfg.Runtime.Docker.User,
			NetworkMode: cfg.Runtime.Docker.Network,
			SkipPull:    cfg.Runtime.Docker.SkipPull,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize docker runtime: %w", err)
		}
		return runner, nil
	default:
		return process.New(process.Config{KillGrace: cfg.Runtime.KillGrace, Logger: logger}), nil
	}
}

func newTestSource(cfg config.Config, logger *slog.Logger) (*fixtures.Source, error) {
	return fixtures.NewSource(fixtures.Config{
		Dir:             cfg.Tests.Dir,
		InputPattern:    cfg.Tests.Input,
		ExpectedPattern: cfg.Tests.Expected,
		Logger:          logger,
	})
}

// buildArtifact runs the configured build step, if any, and returns the
// artifact to stage into every work area.
func buildArtifact(ctx context.Context, cfg config.Config, runner ports.ProcessRunner, logger *slog.Logger) (string, error) {
	if !cfg.Build.Enabled() {
		return cfg.Run.Artifact, nil
	}
	builder, err := build.NewBuilder(runner, build.Config{
		Source:      cfg.Build.Source,
		SourceName:  cfg.Build.SourceName,
		IgnoreMatch: cfg.Build.IgnoreMatch,
		Command:     cfg.Build.Command,
		Args:        cfg.Build.Args,
		Env:         cfg.Build.Env,
		Dir:         cfg.Build.Dir,
		Artifact:    cfg.Run.Artifact,
		Timeout:     cfg.Build.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return "", err
	}
	return builder.Build(ctx)
}

// newService wires a harness run around runner. The returned service owns
// runner and closes it.
func newService(cfg config.Config, runner ports.ProcessRunner, artifact string, logger *slog.Logger) (*executor.Service, error) {
	areas, err := executor.NewWorkAreas(cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	exec, err := executor.NewTestExecutor(runner, areas, executor.RunSpec{
		Command:    cfg.Run.Command,
		Args:       cfg.Run.Args,
		Env:        cfg.Run.Env,
		Artifact:   artifact,
		InputName:  cfg.Run.InputName,
		OutputName: cfg.Run.OutputName,
		Timeout:    cfg.Run.Timeout,
	})
	if err != nil {
		return nil, err
	}
	scheduler, err := executor.NewScheduler(exec, executor.SchedulerConfig{
		Workers: cfg.Run.Workers,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	source, err := newTestSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	svcCfg := executor.ServiceConfig{
		Source:    source,
		Areas:     areas,
		Scheduler: scheduler,
		Runner:    runner,
		Logger:    logger,
	}
	if cfg.Kafka.Enabled() {
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize kafka publisher: %w", err)
		}
		svcCfg.Publisher = publisher
	}
	return executor.NewService(svcCfg)
}
