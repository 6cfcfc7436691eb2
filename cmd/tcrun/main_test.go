package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tcrun/internal/domain/execution"
	"tcrun/internal/infra/kafka"
	"tcrun/internal/infra/report"
	"tcrun/internal/observability"
	"tcrun/internal/testhelpers"
)

func TestMain(m *testing.M) {
	testhelpers.RunProgramIfRequested()
	os.Exit(m.Run())
}

type harness struct {
	dir   string
	tests string
}

func newHarness(t *testing.T) harness {
	t.Helper()

	dir := t.TempDir()
	return harness{dir: dir, tests: filepath.Join(dir, "tests")}
}

func (h harness) addTest(t *testing.T, id, input, expected string) {
	t.Helper()

	caseDir := filepath.Join(h.tests, id)
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, id+".in"), []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, id+".out"), []byte(expected), 0o644); err != nil {
		t.Fatalf("write expected: %v", err)
	}
}

// writeConfig writes a JSON config that runs the test binary in the given
// helper mode and returns its path.
func (h harness) writeConfig(t *testing.T, mode string, args []string, extra map[string]any) string {
	t.Helper()

	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	run := map[string]any{
		"command": self,
		"env":     []string{"TCRUN_TEST_PROGRAM=" + mode},
		"timeout": "10s",
	}
	if len(args) > 0 {
		run["args"] = args
	}
	cfg := map[string]any{
		"workdir": filepath.Join(h.dir, "work"),
		"tests":   map[string]any{"dir": h.tests},
		"run":     run,
		"report": map[string]any{"color": "never"},
		"log":    map[string]any{"level": "error"},
	}
	for key, value := range extra {
		section, ok := value.(map[string]any)
		existing, exists := cfg[key].(map[string]any)
		if ok && exists {
			for k, v := range section {
				existing[k] = v
			}
			continue
		}
		cfg[key] = value
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(h.dir, "tcrun.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunAllCorrect(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addTest(t, "add2", "1 1\n", "2\n")
	h.addTest(t, "add3", "1 1 1", "3")
	path := h.writeConfig(t, "sum", []string{"{input}", "{output}"}, nil)

	code, stdout, stderr := runCLI("run", "--config", path)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	for _, want := range []string{"add2: Correct (", "add3: Correct (", "PASS 2/2 correct"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, stdout)
		}
	}
	if strings.Index(stdout, "add2") > strings.Index(stdout, "add3") {
		t.Fatalf("expected results in discovery order, got:\n%s", stdout)
	}
}

func TestRunFailingTestExitsOne(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addTest(t, "good", "2 2", "4")
	h.addTest(t, "bad", "2 2", "5")
	path := h.writeConfig(t, "sum", []string{"{input}", "{output}"}, nil)

	code, stdout, stderr := runCLI("run", "--config", path, "--format", "json", "--workers", "1")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d\nstderr: %s", code, stderr)
	}

	var doc struct {
		RunID   string `json:"run_id"`
		Passed  bool   `json:"passed"`
		Results []struct {
			TestID   string `json:"test_id"`
			Verdict  string `json:"verdict"`
			Expected string `json:"expected"`
			Actual   string `json:"actual"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("decode json report: %v\n%s", err, stdout)
	}
	if doc.Passed || doc.RunID == "" || len(doc.Results) != 2 {
		t.Fatalf("unexpected report %+v", doc)
	}
	if doc.Results[0].TestID != "bad" || doc.Results[0].Verdict != "incorrect" {
		t.Fatalf("unexpected first result %+v", doc.Results[0])
	}
	if doc.Results[0].Expected != "5" || doc.Results[0].Actual != "4" {
		t.Fatalf("expected both sides of the mismatch, got %+v", doc.Results[0])
	}
}

func TestRunTimeoutFlagOverridesConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addTest(t, "slow", "", "")
	path := h.writeConfig(t, "sleep", []string{"200ms"}, nil)

	code, stdout, stderr := runCLI("run", "--config", path, "--timeout", "50")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "slow: Timeout after 50 ms.") {
		t.Fatalf("expected timeout line, got:\n%s", stdout)
	}
}

func TestRunRejectsZeroTimeoutFlag(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addTest(t, "slow", "", "")
	path := h.writeConfig(t, "sleep", []string{"1m"}, nil)

	code, _, stderr := runCLI("run", "--config", path, "--timeout", "0")
	if code != 2 || !strings.Contains(stderr, "run.timeout must be positive") {
		t.Fatalf("expected exit code 2 with timeout error, got %d: %q", code, stderr)
	}
}

func TestRunBuildsBeforeTesting(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addTest(t, "answer", "", "42")
	source := filepath.Join(h.dir, "answer.src")
	if err := os.WriteFile(source, []byte("42\nDEBUG remove me\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	path := h.writeConfig(t, "copy", []string{"{artifact}", "{output}"}, map[string]any{
		"run": map[string]any{"artifact": "answer.txt"},
		"build": map[string]any{
			"source":       source,
			"ignore_match": []string{"DEBUG"},
			"command":      self,
			"args":         []string{"{source}", "{out}/answer.txt"},
			"env":          []string{"TCRUN_TEST_PROGRAM=copy"},
			"dir":          filepath.Join(h.dir, "build"),
		},
	})

	code, stdout, stderr := runCLI("run", "--config", path)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	built, err := os.ReadFile(filepath.Join(h.dir, "build", "answer.txt"))
	if err != nil {
		t.Fatalf("read build output: %v", err)
	}
	if string(built) != "42\n" {
		t.Fatalf("expected filtered build output, got %q", built)
	}
}

func TestRunBuildFailureExitsTwo(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addTest(t, "any", "", "")
	source := filepath.Join(h.dir, "Main.java")
	if err := os.WriteFile(source, []byte("broken"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	path := h.writeConfig(t, "sum", []string{"{input}", "{output}"}, map[string]any{
		"run": map[string]any{"artifact": "Main.class"},
		"build": map[string]any{
			"source":  source,
			"command": self,
			"args":    []string{"Main.java:1: error: ';' expected", "1"},
			"env":     []string{"TCRUN_TEST_PROGRAM=stderr"},
			"dir":     filepath.Join(h.dir, "build"),
		},
	})

	code, _, stderr := runCLI("run", "--config", path)
	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(stderr, "build failed") || !strings.Contains(stderr, "';' expected") {
		t.Fatalf("expected compiler error in stderr, got %q", stderr)
	}
}

func TestRunWithoutTestsExitsTwo(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := os.MkdirAll(h.tests, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := h.writeConfig(t, "sum", nil, nil)

	code, _, stderr := runCLI("run", "--config", path)
	if code != 2 || !strings.Contains(stderr, "no test cases found") {
		t.Fatalf("expected exit code 2 with no tests error, got %d: %q", code, stderr)
	}
}

func TestInvalidConfigExitsTwo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tcrun.yaml")
	if err := os.WriteFile(path, []byte("run:\n  command: x\n  memory_limit: 64\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, _, stderr := runCLI("run", "--config", path)
	if code != 2 || !strings.Contains(stderr, "tcrun: validate config") {
		t.Fatalf("expected schema failure, got %d: %q", code, stderr)
	}
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addTest(t, "b", "", "")
	h.addTest(t, "a", "", "")
	path := h.writeConfig(t, "sum", nil, nil)

	code, stdout, stderr := runCLI("list", "--config", path)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr)
	}
	if stdout != "a\nb\n" {
		t.Fatalf("unexpected list output %q", stdout)
	}

	code, stdout, _ = runCLI("list", "--config", path, "--paths")
	if code != 0 || !strings.Contains(stdout, filepath.Join(h.tests, "a", "a.in")) {
		t.Fatalf("expected paths in output, got %q", stdout)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	code, stdout, _ := runCLI("version")
	if code != 0 || stdout != fmt.Sprintf("tcrun %s\n", version) {
		t.Fatalf("unexpected version output %d %q", code, stdout)
	}
}

type fakeEvents struct {
	events []kafka.Event
	errs   []error
	index  int
}

func (f *fakeEvents) Next(ctx context.Context) (kafka.Event, error) {
	if f.index >= len(f.events) {
		return kafka.Event{}, context.Canceled
	}
	i := f.index
	f.index++
	if f.errs[i] != nil {
		return kafka.Event{}, f.errs[i]
	}
	return f.events[i], nil
}

func TestWatchPrintsRunUntilFinished(t *testing.T) {
	t.Parallel()

	correct := execution.Result{TestID: "add2", Outcome: execution.Completed(nil, nil, 0, 5*time.Millisecond), Verdict: execution.Correct()}
	other := execution.Result{TestID: "other", Verdict: execution.Timeout()}
	summary := execution.Summary{Total: 1, Correct: 1}

	events := &fakeEvents{
		events: []kafka.Event{
			{Type: "result", RunID: "OTHER", Result: &other},
			{},
			{Type: "result", RunID: "RUN", Result: &correct},
			{Type: "run_finished", RunID: "RUN", Summary: &summary, Duration: time.Second},
			{Type: "result", RunID: "RUN", Result: &other},
		},
		errs: []error{nil, fmt.Errorf("%w: junk", kafka.ErrMalformedMessage), nil, nil, nil},
	}

	var stdout bytes.Buffer
	c := &cli{stdout: &stdout}
	err := c.watch(context.Background(), events, "RUN", observability.Discard(), report.NewTextWriter(&stdout, report.Options{}))
	if err != nil {
		t.Fatalf("watch returned error: %v", err)
	}

	want := "add2: Correct (5 ms).\nPASS 1/1 correct (0 incorrect, 0 errors, 0 timeouts) in 1000 ms, run RUN.\n"
	if stdout.String() != want {
		t.Fatalf("expected %q, got %q", want, stdout.String())
	}
	if events.index != 4 {
		t.Fatalf("expected watch to stop after the run finished, consumed %d events", events.index)
	}
}
