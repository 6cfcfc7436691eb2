package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"tcrun/internal/domain/execution"
)

// ErrMalformedMessage marks a message that could not be decoded into an Event.
var ErrMalformedMessage = errors.New("malformed message")

const (
	messageTypeResult      = "result"
	messageTypeRunFinished = "run_finished"
)

// Event is a decoded message from the results topic. Exactly one of Result
// and Summary is set, depending on Type.
type Event struct {
	Type      string
	RunID     string
	Result    *execution.Result
	Summary   *execution.Summary
	// Duration is the run's wall-clock time, set for run finished events.
	Duration  time.Duration
	Timestamp time.Time
}

// Finished reports whether the event marks the end of a run.
func (e Event) Finished() bool {
	return e.Type == messageTypeRunFinished
}

type resultEnvelope struct {
	Type      string                `json:"type"`
	RunID     string                `json:"run_id"`
	TestID    string                `json:"test_id,omitempty"`
	Verdict   execution.VerdictKind `json:"verdict,omitempty"`
	Outcome   execution.OutcomeKind `json:"outcome,omitempty"`
	ExitCode  *int                  `json:"exit_code,omitempty"`
	ElapsedMs *int64                `json:"elapsed_ms,omitempty"`
	Stdout    string                `json:"stdout,omitempty"`
	Stderr    string                `json:"stderr,omitempty"`
	Expected  string                `json:"expected,omitempty"`
	Actual    string                `json:"actual,omitempty"`
	Cause     string                `json:"cause,omitempty"`
	Error     string                `json:"error,omitempty"`
	Summary   *summaryEnvelope      `json:"summary,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

type summaryEnvelope struct {
	Total        int   `json:"total"`
	Correct      int   `json:"correct"`
	Incorrect    int   `json:"incorrect"`
	RuntimeError int   `json:"runtime_error"`
	Timeout      int   `json:"timeout"`
	DurationMs   int64 `json:"duration_ms"`
}

func messageKey(runID, testID string) []byte {
	if testID == "" {
		return []byte(runID)
	}
	return []byte(runID + "/" + testID)
}

func encodeResult(runID string, result execution.Result) ([]byte, error) {
	exitCode := result.Outcome.ExitCode
	elapsed := result.Outcome.Elapsed.Milliseconds()
	envelope := resultEnvelope{
		Type:      messageTypeResult,
		RunID:     runID,
		TestID:    result.TestID,
		Verdict:   result.Verdict.Kind,
		Outcome:   result.Outcome.Kind,
		ExitCode:  &exitCode,
		ElapsedMs: &elapsed,
		Stdout:    string(result.Outcome.Stdout),
		Stderr:    string(result.Outcome.Stderr),
		Expected:  result.Verdict.Expected,
		Actual:    result.Verdict.Actual,
		Cause:     result.Verdict.Cause,
		Timestamp: time.Now().UTC(),
	}
	if result.Outcome.Err != nil {
		envelope.Error = result.Outcome.Err.Error()
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return payload, nil
}

func encodeRunFinished(report execution.RunReport) ([]byte, error) {
	summary := report.Summarize()
	payload, err := json.Marshal(resultEnvelope{
		Type:  messageTypeRunFinished,
		RunID: report.RunID,
		Summary: &summaryEnvelope{
			Total:        summary.Total,
			Correct:      summary.Correct,
			Incorrect:    summary.Incorrect,
			RuntimeError: summary.RuntimeError,
			Timeout:      summary.Timeout,
			DurationMs:   report.Duration.Milliseconds(),
		},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal run summary: %w", err)
	}
	return payload, nil
}

func decodeMessage(msg kafkago.Message) (Event, error) {
	event, err := decodeEnvelope(msg)
	if err != nil {
		return Event{}, fmt.Errorf("%w at offset %d: %w", ErrMalformedMessage, msg.Offset, err)
	}
	return event, nil
}

func decodeEnvelope(msg kafkago.Message) (Event, error) {
	var envelope resultEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return Event{}, fmt.Errorf("decode message: %w", err)
	}
	if envelope.RunID == "" {
		return Event{}, fmt.Errorf("message missing run id")
	}

	event := Event{Type: envelope.Type, RunID: envelope.RunID, Timestamp: envelope.Timestamp}
	switch envelope.Type {
	case messageTypeResult:
		if envelope.TestID == "" {
			return Event{}, fmt.Errorf("result message missing test id")
		}
		result := envelope.toResult()
		event.Result = &result
	case messageTypeRunFinished:
		if envelope.Summary == nil {
			return Event{}, fmt.Errorf("run finished message missing summary")
		}
		event.Summary = &execution.Summary{
			Total:        envelope.Summary.Total,
			Correct:      envelope.Summary.Correct,
			Incorrect:    envelope.Summary.Incorrect,
			RuntimeError: envelope.Summary.RuntimeError,
			Timeout:      envelope.Summary.Timeout,
		}
		event.Duration = time.Duration(envelope.Summary.DurationMs) * time.Millisecond
	default:
		return Event{}, fmt.Errorf("unknown message type %q", envelope.Type)
	}
	return event, nil
}

func (e resultEnvelope) toResult() execution.Result {
	outcome := execution.Outcome{
		Kind:   e.Outcome,
		Stdout: []byte(e.Stdout),
		Stderr: []byte(e.Stderr),
	}
	if e.ExitCode != nil {
		outcome.ExitCode = *e.ExitCode
	}
	if e.ElapsedMs != nil {
		outcome.Elapsed = time.Duration(*e.ElapsedMs) * time.Millisecond
	}
	if e.Error != "" {
		outcome.Err = errors.New(e.Error)
	}

	return execution.Result{
		TestID:  e.TestID,
		Outcome: outcome,
		Verdict: execution.Verdict{
			Kind:     e.Verdict,
			Expected: e.Expected,
			Actual:   e.Actual,
			Stderr:   e.Stderr,
			Cause:    e.Cause,
		},
	}
}
