package execution

import (
	"fmt"
	"time"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind string

const (
	// OutcomeCompleted means the process exited on its own before the timeout.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeTimedOut means the process was killed after exceeding its timeout.
	OutcomeTimedOut OutcomeKind = "timed_out"
	// OutcomeLaunchFailed means the process never ran to completion because it
	// could not be started or waited on.
	OutcomeLaunchFailed OutcomeKind = "launch_failed"
)

// Outcome captures what happened to one process launch.
//
// Stdout and Stderr are populated for completed runs and hold whatever was
// captured before the kill for timed out runs. Err carries the launch failure
// for OutcomeLaunchFailed and, for OutcomeTimedOut, a termination error when
// the process tree could not be confirmed dead.
type Outcome struct {
	Kind     OutcomeKind
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
	Err      error
}

// Completed builds a completed outcome.
func Completed(stdout, stderr []byte, exitCode int, elapsed time.Duration) Outcome {
	return Outcome{
		Kind:     OutcomeCompleted,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Elapsed:  elapsed,
	}
}

// TimedOut builds a timed out outcome.
func TimedOut(elapsed time.Duration) Outcome {
	return Outcome{Kind: OutcomeTimedOut, ExitCode: -1, Elapsed: elapsed}
}

// LaunchFailed builds a launch failure outcome.
func LaunchFailed(cause error) Outcome {
	return Outcome{Kind: OutcomeLaunchFailed, ExitCode: -1, Err: cause}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCompleted:
		return fmt.Sprintf("completed (exit %d) in %s", o.ExitCode, o.Elapsed)
	case OutcomeTimedOut:
		return fmt.Sprintf("timed out after %s", o.Elapsed)
	case OutcomeLaunchFailed:
		return fmt.Sprintf("launch failed: %v", o.Err)
	default:
		return string(o.Kind)
	}
}
