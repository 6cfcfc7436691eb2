// Package fixtures discovers test cases laid out as one directory per test.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"tcrun/internal/domain/execution"
	"tcrun/internal/observability"
	"tcrun/internal/ports"
)

const (
	DefaultInputPattern    = "*.in"
	DefaultExpectedPattern = "*.out"
)

// ErrNoTests is returned when the tests directory holds no valid test case.
var ErrNoTests = errors.New("no test cases found")

// Config describes where and how test cases are discovered.
type Config struct {
	// Dir holds one sub-directory per test case. The sub-directory name is
	// the test id.
	Dir string
	// InputPattern and ExpectedPattern are doublestar patterns matched
	// against file names inside each test directory.
	InputPattern    string
	ExpectedPattern string
	Logger          *slog.Logger
}

// Source implements ports.TestCaseSource over a fixtures directory.
type Source struct {
	dir      string
	input    string
	expected string
	logger   *slog.Logger
}

var _ ports.TestCaseSource = (*Source)(nil)

// NewSource validates cfg and returns a Source.
func NewSource(cfg Config) (*Source, error) {
	if cfg.Dir == "" {
		return nil, errors.New("tests directory must be provided")
	}
	input := cfg.InputPattern
	if input == "" {
		input = DefaultInputPattern
	}
	expected := cfg.ExpectedPattern
	if expected == "" {
		expected = DefaultExpectedPattern
	}
	for _, pattern := range []string{input, expected} {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid fixture pattern %q", pattern)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	return &Source{dir: cfg.Dir, input: input, expected: expected, logger: logger}, nil
}

// TestCases lists every valid test directory, sorted by id. Directories that
// do not hold exactly one input and one expected output are skipped.
func (s *Source) TestCases(ctx context.Context) ([]execution.TestCase, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read tests directory: %w", err)
	}

	var cases []execution.TestCase
	for _, entry := range entries {
		dir := filepath.Join(s.dir, entry.Name())
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		tc, err := s.testCase(entry.Name(), dir)
		if err != nil {
			s.logger.Warn("skipping test directory", "dir", dir, "reason", err)
			continue
		}
		cases = append(cases, tc)
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTests, s.dir)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases, nil
}

func (s *Source) testCase(id, dir string) (execution.TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return execution.TestCase{}, fmt.Errorf("read test directory: %w", err)
	}

	var inputs, expected []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// Patterns are validated in NewSource, so Match cannot fail here.
		isInput, _ := doublestar.Match(s.input, name)
		isExpected, _ := doublestar.Match(s.expected, name)
		switch {
		case isInput && isExpected:
			return execution.TestCase{}, fmt.Errorf("file %s matches both input and expected patterns", name)
		case isInput:
			inputs = append(inputs, name)
		case isExpected:
			expected = append(expected, name)
		}
	}

	if len(inputs) != 1 {
		return execution.TestCase{}, fmt.Errorf("expected one file matching %q, found %d", s.input, len(inputs))
	}
	if len(expected) != 1 {
		return execution.TestCase{}, fmt.Errorf("expected one file matching %q, found %d", s.expected, len(expected))
	}
	return execution.TestCase{
		ID:                 id,
		InputPath:          filepath.Join(dir, inputs[0]),
		ExpectedOutputPath: filepath.Join(dir, expected[0]),
	}, nil
}
