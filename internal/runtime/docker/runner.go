// Package docker runs programs under test inside Docker containers.
//
// The host working directory of a command is bind-mounted into the container,
// so files the program writes land in the same work area a local run would use.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"tcrun/internal/domain/execution"
	"tcrun/internal/ports"
)

// Runner implements ports.ProcessRunner by running each command in a fresh container.
type Runner struct {
	cli dockerClient
	cfg Config

	pullMu sync.Mutex
	pulled bool
}

var _ ports.ProcessRunner = (*Runner)(nil)

// New creates a Runner connected to the Docker daemon described by the environment.
func New(cfg Config) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker runtime: create client: %w", err)
	}

	runner, err := newRunnerWithClient(cli, cfg)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	return runner, nil
}

func newRunnerWithClient(cli dockerClient, cfg Config) (*Runner, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("docker runtime: image must be configured")
	}
	if cfg.Workdir == "" {
		cfg.Workdir = defaultWorkdir
	}
	if cfg.NetworkMode == "" {
		cfg.NetworkMode = defaultNetworkMode
	}
	return &Runner{cli: cli, cfg: cfg}, nil
}

// Close releases the underlying Docker client resources.
func (r *Runner) Close() error {
	if r.cli == nil {
		return nil
	}
	return r.cli.Close()
}

// Run executes the command in a new container and removes the container afterwards.
func (r *Runner) Run(ctx context.Context, cmd execution.Command) execution.Outcome {
	if cmd.Path == "" {
		return execution.LaunchFailed(errors.New("command path is empty"))
	}

	hostDir := cmd.Dir
	if hostDir == "" {
		hostDir = "."
	}
	hostDir, err := filepath.Abs(hostDir)
	if err != nil {
		return execution.LaunchFailed(fmt.Errorf("resolve working dir: %w", err))
	}

	if err := r.ensureImage(ctx); err != nil {
		return execution.LaunchFailed(err)
	}

	argv := append([]string{cmd.Path}, cmd.Args...)
	containerID, cleanup, err := r.createContainer(ctx, hostDir, argv, cmd.Env)
	if err != nil {
		return execution.LaunchFailed(err)
	}
	defer cleanup()

	start := time.Now()
	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return execution.LaunchFailed(fmt.Errorf("start container: %w", err))
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if cmd.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
	}
	status, err := r.waitForExit(waitCtx, containerID)
	if cancel != nil {
		cancel()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && cmd.Timeout > 0 && ctx.Err() == nil {
			return r.handleTimeLimit(containerID, start)
		}
		if ctx.Err() != nil {
			killed := r.handleTimeLimit(containerID, start)
			return execution.LaunchFailed(fmt.Errorf("run cancelled: %w", errors.Join(ctx.Err(), killed.Err)))
		}
		return execution.LaunchFailed(err)
	}

	logCtx := ctx
	if logCtx.Err() != nil {
		logCtx = context.Background()
	}
	stdout, stderr, err := r.fetchLogs(logCtx, containerID)
	if err != nil {
		return execution.LaunchFailed(fmt.Errorf("fetch logs: %w", err))
	}

	return execution.Completed(stdout, stderr, int(status.StatusCode), time.Since(start))
}

// ensureImage pulls the image the first time it succeeds. A failed or
// cancelled pull is not remembered, the next command tries again.
func (r *Runner) ensureImage(ctx context.Context) error {
	if r.cfg.SkipPull {
		return nil
	}
	r.pullMu.Lock()
	defer r.pullMu.Unlock()
	if r.pulled {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()
	reader, err := r.cli.ImagePull(ctx, r.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", r.cfg.Image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("consume pull output for %s: %w", r.cfg.Image, err)
	}
	r.pulled = true
	return nil
}
