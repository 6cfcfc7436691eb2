// Package report renders run reports for people and machines.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"tcrun/internal/domain/execution"
)

// Format selects a report renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user supplied name onto a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", name)
	}
}

// Options tunes the text renderer. Structured formats ignore it.
type Options struct {
	Color bool
	// Timeout is the configured per-test limit shown for timed out tests.
	// When zero the measured elapsed time is shown instead.
	Timeout time.Duration
}

// Write renders report to w in the requested format.
func Write(w io.Writer, format Format, report execution.RunReport, opts Options) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, report)
	case FormatYAML:
		return WriteYAML(w, report)
	case FormatText, "":
		return NewTextWriter(w, opts).WriteReport(report)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// ColorEnabled reports whether colored output suits f.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
