package fixtures

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func TestTestCasesDiscoversValidDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b/input.in":       "1 1",
		"b/input.out":      "2",
		"a/case.in":        "2 2",
		"a/case.out":       "4",
		"a/notes.txt":      "ignored",
		"missing/input.in": "x",
		"double/one.in":    "1",
		"double/two.in":    "2",
		"double/x.out":     "3",
		"stray.in":         "not a directory",
	})

	source, err := NewSource(Config{Dir: root})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	cases, err := source.TestCases(context.Background())
	if err != nil {
		t.Fatalf("TestCases: %v", err)
	}

	if len(cases) != 2 {
		t.Fatalf("expected 2 test cases, got %d: %+v", len(cases), cases)
	}
	if cases[0].ID != "a" || cases[1].ID != "b" {
		t.Fatalf("expected ids a and b in order, got %s and %s", cases[0].ID, cases[1].ID)
	}
	if cases[0].InputPath != filepath.Join(root, "a", "case.in") {
		t.Fatalf("unexpected input path %s", cases[0].InputPath)
	}
	if cases[0].ExpectedOutputPath != filepath.Join(root, "a", "case.out") {
		t.Fatalf("unexpected expected path %s", cases[0].ExpectedOutputPath)
	}
}

func TestTestCasesCustomPatterns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"t1/stdin.txt":  "hi",
		"t1/stdout.txt": "hi",
		"t1/extra.in":   "ignored",
	})

	source, err := NewSource(Config{Dir: root, InputPattern: "stdin.txt", ExpectedPattern: "stdout.{txt,ans}"})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	cases, err := source.TestCases(context.Background())
	if err != nil {
		t.Fatalf("TestCases: %v", err)
	}
	if len(cases) != 1 || cases[0].InputPath != filepath.Join(root, "t1", "stdin.txt") {
		t.Fatalf("unexpected cases %+v", cases)
	}
}

func TestTestCasesSkipsOverlappingPatterns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"t1/data.txt": "x",
		"t2/in.txt":   "x",
		"t2/out.dat":  "x",
	})

	source, err := NewSource(Config{Dir: root, InputPattern: "*.txt", ExpectedPattern: "*"})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if _, err := source.TestCases(context.Background()); !errors.Is(err, ErrNoTests) {
		t.Fatalf("expected ErrNoTests, got %v", err)
	}
}

func TestTestCasesEmptyDirectory(t *testing.T) {
	t.Parallel()

	source, err := NewSource(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if _, err := source.TestCases(context.Background()); !errors.Is(err, ErrNoTests) {
		t.Fatalf("expected ErrNoTests, got %v", err)
	}
}

func TestTestCasesMissingDirectory(t *testing.T) {
	t.Parallel()

	source, err := NewSource(Config{Dir: filepath.Join(t.TempDir(), "nope")})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	_, err = source.TestCases(context.Background())
	if err == nil || errors.Is(err, ErrNoTests) {
		t.Fatalf("expected read error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestTestCasesContextCancellation(t *testing.T) {
	t.Parallel()

	source, err := NewSource(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.TestCases(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSourceRejectsInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewSource(Config{Dir: "tests", InputPattern: "[unclosed"}); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
	if _, err := NewSource(Config{}); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
