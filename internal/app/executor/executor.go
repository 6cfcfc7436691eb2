package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tcrun/internal/domain/compare"
	"tcrun/internal/domain/execution"
	"tcrun/internal/ports"
)

const (
	// DefaultInputName is the file name the input is staged under.
	DefaultInputName = "input.in"
	// DefaultOutputName is the file name the program is expected to write.
	DefaultOutputName = "input.out"
)

// RunSpec describes how the program under test is invoked inside a work area.
//
// Command and Args may reference {artifact}, {input} and {output}, which expand
// to the artifact base name, InputName and OutputName.
type RunSpec struct {
	Command string
	Args    []string
	Env     []string
	// Artifact is the compiled program, a file or a directory. Directory
	// contents are copied into the root of every work area.
	Artifact   string
	InputName  string
	OutputName string
	Timeout    time.Duration
}

// TestExecutor runs a single test case in its own work area.
type TestExecutor struct {
	runner ports.ProcessRunner
	areas  *WorkAreas
	spec   RunSpec
}

// NewTestExecutor validates spec and returns an executor bound to runner.
func NewTestExecutor(runner ports.ProcessRunner, areas *WorkAreas, spec RunSpec) (*TestExecutor, error) {
	if runner == nil {
		return nil, errors.New("process runner must be provided")
	}
	if areas == nil {
		return nil, errors.New("work areas must be provided")
	}
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("run command must be provided")
	}
	if spec.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", spec.Timeout)
	}
	if spec.InputName == "" {
		spec.InputName = DefaultInputName
	}
	if spec.OutputName == "" {
		spec.OutputName = DefaultOutputName
	}
	for _, name := range []string{spec.InputName, spec.OutputName} {
		if name != filepath.Base(name) || name == "." || name == ".." {
			return nil, fmt.Errorf("staged file name %q must be a plain file name", name)
		}
	}
	if spec.InputName == spec.OutputName {
		return nil, fmt.Errorf("input and output names must differ, both are %q", spec.InputName)
	}
	if spec.Artifact != "" {
		if _, err := os.Stat(spec.Artifact); err != nil {
			return nil, fmt.Errorf("stat artifact: %w", err)
		}
	}
	return &TestExecutor{runner: runner, areas: areas, spec: spec}, nil
}

// Execute stages tc, runs the program and judges its output. Failures of any
// step are reported through the returned Result.
func (e *TestExecutor) Execute(ctx context.Context, tc execution.TestCase) execution.Result {
	result := execution.Result{TestID: tc.ID}

	dir, err := e.stage(tc)
	if err != nil {
		result.Outcome = execution.LaunchFailed(err)
		result.Verdict = execution.RuntimeError("", err.Error())
		return result
	}

	result.Outcome = e.runner.Run(ctx, e.command(dir))
	result.Verdict = e.judge(tc, dir, result.Outcome)
	return result
}

func (e *TestExecutor) stage(tc execution.TestCase) (string, error) {
	dir, err := e.areas.Create(tc.ID)
	if err != nil {
		return "", fmt.Errorf("stage work area: %w", err)
	}
	if e.spec.Artifact != "" {
		target := dir
		if info, err := os.Stat(e.spec.Artifact); err == nil && !info.IsDir() {
			target = filepath.Join(dir, filepath.Base(e.spec.Artifact))
		}
		if err := copyPath(e.spec.Artifact, target); err != nil {
			return "", fmt.Errorf("stage artifact: %w", err)
		}
	}
	if err := copyPath(tc.InputPath, filepath.Join(dir, e.spec.InputName)); err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}
	return dir, nil
}

func (e *TestExecutor) command(dir string) execution.Command {
	artifact := ""
	if e.spec.Artifact != "" {
		artifact = filepath.Base(e.spec.Artifact)
	}
	expand := strings.NewReplacer(
		"{artifact}", artifact,
		"{input}", e.spec.InputName,
		"{output}", e.spec.OutputName,
	).Replace

	args := make([]string, len(e.spec.Args))
	for i, arg := range e.spec.Args {
		args[i] = expand(arg)
	}
	return execution.Command{
		Path:    expand(e.spec.Command),
		Args:    args,
		Dir:     dir,
		Env:     append([]string(nil), e.spec.Env...),
		Timeout: e.spec.Timeout,
	}
}

func (e *TestExecutor) judge(tc execution.TestCase, dir string, outcome execution.Outcome) execution.Verdict {
	switch outcome.Kind {
	case execution.OutcomeTimedOut:
		return execution.Timeout()
	case execution.OutcomeLaunchFailed:
		cause := "launch failed"
		if outcome.Err != nil {
			cause = outcome.Err.Error()
		}
		return execution.RuntimeError(string(outcome.Stderr), cause)
	}
	if len(outcome.Stderr) > 0 {
		return execution.RuntimeError(string(outcome.Stderr), "")
	}

	actual, err := os.ReadFile(filepath.Join(dir, e.spec.OutputName))
	if err != nil {
		return execution.RuntimeError("", fmt.Sprintf("read program output: %v", err))
	}
	expected, err := os.ReadFile(tc.ExpectedOutputPath)
	if err != nil {
		return execution.RuntimeError("", fmt.Sprintf("read expected output: %v", err))
	}
	if compare.Equal(string(expected), string(actual)) {
		return execution.Correct()
	}
	return execution.Incorrect(compare.Strip(string(expected)), compare.Strip(string(actual)))
}
