// Package build turns a source file into the artifact run by the harness.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tcrun/internal/domain/execution"
	"tcrun/internal/observability"
	"tcrun/internal/ports"
)

// DefaultTimeout bounds a build when Config.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// ErrBuildFailed is matched by every *Error.
var ErrBuildFailed = errors.New("build failed")

// Error describes a failed build.
type Error struct {
	Reason string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := "build failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += "\n" + stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrBuildFailed as a match.
func (e *Error) Is(target error) bool {
	return target == ErrBuildFailed
}

// Config describes one build.
type Config struct {
	// Source is the source file to build.
	Source string
	// SourceName is the file name the filtered source is written under.
	// Defaults to the base name of Source.
	SourceName string
	// IgnoreMatch lists substrings whose lines are removed before building.
	IgnoreMatch []string
	// Command and Args run the compiler inside Dir. {source} expands to
	// SourceName and {out} to ".", so the same command works when Dir is
	// mounted into a container.
	Command string
	Args    []string
	Env     []string
	// Dir receives the filtered source and the build output.
	Dir string
	// Artifact is the path produced by the build, relative to Dir.
	Artifact string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Builder compiles the program under test through a ProcessRunner.
type Builder struct {
	runner ports.ProcessRunner
	cfg    Config
	logger *slog.Logger
}

// NewBuilder validates cfg and returns a Builder.
func NewBuilder(runner ports.ProcessRunner, cfg Config) (*Builder, error) {
	if runner == nil {
		return nil, errors.New("process runner must be provided")
	}
	if cfg.Source == "" {
		return nil, errors.New("build source must be provided")
	}
	if cfg.Command == "" {
		return nil, errors.New("build command must be provided")
	}
	if cfg.Dir == "" {
		return nil, errors.New("build directory must be provided")
	}
	if cfg.Artifact == "" {
		return nil, errors.New("build artifact must be provided")
	}
	if filepath.IsAbs(cfg.Artifact) {
		return nil, fmt.Errorf("build artifact %q must be relative to the build directory", cfg.Artifact)
	}
	if cfg.SourceName == "" {
		cfg.SourceName = filepath.Base(cfg.Source)
	}
	if cfg.SourceName != filepath.Base(cfg.SourceName) {
		return nil, fmt.Errorf("source name %q must be a plain file name", cfg.SourceName)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("build timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	return &Builder{runner: runner, cfg: cfg, logger: logger}, nil
}

// Build filters and writes the source, runs the compiler and returns the
// absolute artifact path.
func (b *Builder) Build(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(b.cfg.Source)
	if err != nil {
		return "", fmt.Errorf("read build source: %w", err)
	}

	dir, err := filepath.Abs(b.cfg.Dir)
	if err != nil {
		return "", fmt.Errorf("resolve build directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create build directory: %w", err)
	}
	source := filepath.Join(dir, b.cfg.SourceName)
	if err := os.WriteFile(source, []byte(FilterSource(string(raw), b.cfg.IgnoreMatch)), 0o644); err != nil {
		return "", fmt.Errorf("write filtered source: %w", err)
	}

	expand := strings.NewReplacer("{source}", b.cfg.SourceName, "{out}", ".").Replace
	args := make([]string, len(b.cfg.Args))
	for i, arg := range b.cfg.Args {
		args[i] = expand(arg)
	}
	cmd := execution.Command{
		Path:    expand(b.cfg.Command),
		Args:    args,
		Dir:     dir,
		Env:     append([]string(nil), b.cfg.Env...),
		Timeout: b.cfg.Timeout,
	}

	b.logger.Info("building program", "source", b.cfg.Source, "command", cmd.Path)
	outcome := b.runner.Run(ctx, cmd)
	switch {
	case outcome.Kind == execution.OutcomeTimedOut:
		return "", &Error{Reason: fmt.Sprintf("timed out after %s", b.cfg.Timeout), Stderr: string(outcome.Stderr), Err: outcome.Err}
	case outcome.Kind == execution.OutcomeLaunchFailed:
		return "", &Error{Reason: "compiler could not be started", Err: outcome.Err}
	case outcome.ExitCode != 0:
		return "", &Error{Reason: fmt.Sprintf("compiler exited with code %d", outcome.ExitCode), Stderr: string(outcome.Stderr)}
	}

	artifact := filepath.Join(dir, b.cfg.Artifact)
	if _, err := os.Stat(artifact); err != nil {
		return "", &Error{Reason: "artifact missing", Err: err}
	}
	b.logger.Info("build finished", "artifact", artifact, "elapsed", outcome.Elapsed)
	return artifact, nil
}
