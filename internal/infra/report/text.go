package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"tcrun/internal/domain/execution"
)

const indent = "    "

// TextWriter renders results as human readable lines.
type TextWriter struct {
	w    io.Writer
	opts Options

	pass   *color.Color
	fail   *color.Color
	stdout *color.Color
	stderr *color.Color
	added  *color.Color
	gone   *color.Color
}

// NewTextWriter returns a TextWriter writing to w.
func NewTextWriter(w io.Writer, opts Options) *TextWriter {
	t := &TextWriter{
		w:      w,
		opts:   opts,
		pass:   color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		stdout: color.New(color.FgYellow),
		stderr: color.New(color.FgRed),
		added:  color.New(color.FgBlack, color.BgGreen),
		gone:   color.New(color.FgBlack, color.BgRed),
	}
	for _, c := range []*color.Color{t.pass, t.fail, t.stdout, t.stderr, t.added, t.gone} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

// WriteReport renders every result followed by the summary line.
func (t *TextWriter) WriteReport(report execution.RunReport) error {
	for _, res := range report.Results {
		if err := t.WriteResult(res); err != nil {
			return err
		}
	}
	return t.WriteSummary(report.RunID, report.Summarize(), report.Duration)
}

// WriteResult renders a single result.
func (t *TextWriter) WriteResult(res execution.Result) error {
	var b strings.Builder
	elapsed := res.Outcome.Elapsed.Milliseconds()

	switch res.Verdict.Kind {
	case execution.VerdictCorrect:
		fmt.Fprintf(&b, "%s: %s (%d ms).\n", res.TestID, t.pass.Sprint("Correct"), elapsed)
	case execution.VerdictIncorrect:
		fmt.Fprintf(&b, "%s: %s (%d ms).\n", res.TestID, t.fail.Sprint("Incorrect"), elapsed)
	case execution.VerdictTimeout:
		limit := t.opts.Timeout
		if limit <= 0 {
			limit = res.Outcome.Elapsed
		}
		fmt.Fprintf(&b, "%s: %s\n", res.TestID, t.fail.Sprintf("Timeout after %d ms.", limit.Milliseconds()))
	case execution.VerdictRuntimeError:
		fmt.Fprintf(&b, "%s: %s\n", res.TestID, t.fail.Sprint("Error."))
	default:
		fmt.Fprintf(&b, "%s: %s\n", res.TestID, res.Verdict.Kind)
	}

	if len(res.Outcome.Stdout) > 0 {
		b.WriteString(t.stdout.Sprint(indentBlock(string(res.Outcome.Stdout))))
	}

	switch res.Verdict.Kind {
	case execution.VerdictIncorrect:
		b.WriteString(indent + "Expected output:\n")
		b.WriteString(nestedBlock(res.Verdict.Expected))
		b.WriteString(indent + "Actual output:\n")
		b.WriteString(nestedBlock(res.Verdict.Actual))
		b.WriteString(indent + "Difference:\n")
		b.WriteString(nestedBlock(t.diff(res.Verdict.Expected, res.Verdict.Actual)))
	case execution.VerdictRuntimeError:
		if res.Verdict.Stderr != "" {
			b.WriteString(t.stderr.Sprint(indentBlock(res.Verdict.Stderr)))
		}
		if res.Verdict.Cause != "" {
			b.WriteString(t.stderr.Sprint(indentBlock("cause: " + res.Verdict.Cause)))
		}
	case execution.VerdictTimeout:
		if len(res.Outcome.Stderr) > 0 {
			b.WriteString(t.stderr.Sprint(indentBlock(string(res.Outcome.Stderr))))
		}
		if res.Outcome.Err != nil {
			b.WriteString(t.stderr.Sprint(indentBlock("termination: " + res.Outcome.Err.Error())))
		}
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

// WriteSummary renders the closing summary line.
func (t *TextWriter) WriteSummary(runID string, s execution.Summary, duration time.Duration) error {
	status := t.pass.Sprint("PASS")
	if s.Correct != s.Total {
		status = t.fail.Sprint("FAIL")
	}
	line := fmt.Sprintf("%s %d/%d correct (%d incorrect, %d errors, %d timeouts) in %d ms",
		status, s.Correct, s.Total, s.Incorrect, s.RuntimeError, s.Timeout, duration.Milliseconds())
	if runID != "" {
		line += ", run " + runID
	}
	_, err := fmt.Fprintln(t.w, line+".")
	return err
}

// diff renders a character level difference between expected and actual.
// Without color, removed text is shown as [-text-] and added text as {+text+}.
func (t *TextWriter) diff(expected, actual string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(expected, actual, false))

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			if t.opts.Color {
				b.WriteString(t.gone.Sprint(d.Text))
			} else {
				b.WriteString("[-" + d.Text + "-]")
			}
		case diffmatchpatch.DiffInsert:
			if t.opts.Color {
				b.WriteString(t.added.Sprint(d.Text))
			} else {
				b.WriteString("{+" + d.Text + "+}")
			}
		}
	}
	return b.String()
}

func indentBlock(text string) string {
	return prefixLines(text, indent)
}

// nestedBlock indents text one level below a heading that is itself indented.
func nestedBlock(text string) string {
	return prefixLines(text, indent+indent)
}

func prefixLines(text, prefix string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return prefix + "\n"
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}
