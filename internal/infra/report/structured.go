package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"tcrun/internal/domain/execution"
)

type reportDocument struct {
	RunID      string           `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	DurationMs int64            `json:"duration_ms" yaml:"duration_ms"`
	Passed     bool             `json:"passed" yaml:"passed"`
	Summary    summaryDocument  `json:"summary" yaml:"summary"`
	Results    []resultDocument `json:"results" yaml:"results"`
}

type summaryDocument struct {
	Total        int `json:"total" yaml:"total"`
	Correct      int `json:"correct" yaml:"correct"`
	Incorrect    int `json:"incorrect" yaml:"incorrect"`
	RuntimeError int `json:"runtime_error" yaml:"runtime_error"`
	Timeout      int `json:"timeout" yaml:"timeout"`
}

type resultDocument struct {
	TestID    string `json:"test_id" yaml:"test_id"`
	Verdict   string `json:"verdict" yaml:"verdict"`
	Outcome   string `json:"outcome" yaml:"outcome"`
	ExitCode  int    `json:"exit_code" yaml:"exit_code"`
	ElapsedMs int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
	Stdout    string `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Expected  string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual    string `json:"actual,omitempty" yaml:"actual,omitempty"`
	Cause     string `json:"cause,omitempty" yaml:"cause,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newReportDocument(report execution.RunReport) reportDocument {
	s := report.Summarize()
	doc := reportDocument{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt.UTC(),
		DurationMs: report.Duration.Milliseconds(),
		Passed:     report.Passed(),
		Summary: summaryDocument{
			Total:        s.Total,
			Correct:      s.Correct,
			Incorrect:    s.Incorrect,
			RuntimeError: s.RuntimeError,
			Timeout:      s.Timeout,
		},
		Results: make([]resultDocument, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		rd := resultDocument{
			TestID:    res.TestID,
			Verdict:   string(res.Verdict.Kind),
			Outcome:   string(res.Outcome.Kind),
			ExitCode:  res.Outcome.ExitCode,
			ElapsedMs: res.Outcome.Elapsed.Milliseconds(),
			Stdout:    string(res.Outcome.Stdout),
			Stderr:    string(res.Outcome.Stderr),
			Expected:  res.Verdict.Expected,
			Actual:    res.Verdict.Actual,
			Cause:     res.Verdict.Cause,
		}
		if res.Outcome.Err != nil {
			rd.Error = res.Outcome.Err.Error()
		}
		doc.Results = append(doc.Results, rd)
	}
	return doc
}

// WriteJSON renders report as indented JSON.
func WriteJSON(w io.Writer, report execution.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newReportDocument(report)); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

// WriteYAML renders report as YAML.
func WriteYAML(w io.Writer, report execution.RunReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newReportDocument(report)); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return nil
}
