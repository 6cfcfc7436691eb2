package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"tcrun/internal/domain/execution"
)

const (
	stopTimeout = 5 * time.Second
	exitTimeout = 15 * time.Second
)

func (r *Runner) createContainer(ctx context.Context, hostDir string, cmd []string, env []string) (string, func(), error) {
	hostConfig := &container.HostConfig{
		Binds:       []string{hostDir + ":" + r.cfg.Workdir},
		NetworkMode: container.NetworkMode(r.cfg.NetworkMode),
	}

	resp, err := r.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:        r.cfg.Image,
			Cmd:          cmd,
			Env:          env,
			User:         r.cfg.User,
			AttachStdout: true,
			AttachStderr: true,
			WorkingDir:   r.cfg.Workdir,
		},
		hostConfig,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}

	cleanup := func() {
		_ = r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}

	return resp.ID, cleanup, nil
}

// handleTimeLimit kills the container and waits until it is no longer running.
// The returned outcome carries a termination error when that cannot be confirmed.
func (r *Runner) handleTimeLimit(containerID string, start time.Time) execution.Outcome {
	var errs []error

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()

	immediate := 0
	if err := r.cli.ContainerStop(stopCtx, containerID, container.StopOptions{Signal: "SIGKILL", Timeout: &immediate}); err != nil && !client.IsErrNotFound(err) {
		errs = append(errs, fmt.Errorf("stop container after time limit: %w", err))
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), exitTimeout)
	defer cancelWait()

	if _, err := r.waitForExit(waitCtx, containerID); err != nil && !client.IsErrNotFound(err) {
		errs = append(errs, fmt.Errorf("wait for container after time limit: %w", err))
	}

	outcome := execution.TimedOut(time.Since(start))
	if stdout, stderr, err := r.fetchLogs(context.Background(), containerID); err == nil {
		outcome.Stdout = stdout
		outcome.Stderr = stderr
	}
	outcome.Err = errors.Join(errs...)
	return outcome
}

func (r *Runner) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

func (r *Runner) fetchLogs(ctx context.Context, containerID string) (stdout, stderr []byte, err error) {
	logs, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, nil, err
	}
	defer logs.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, logs); err != nil {
		return nil, nil, err
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), nil
}
