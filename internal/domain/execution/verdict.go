package execution

// VerdictKind classifies the result of one test case.
type VerdictKind string

const (
	VerdictCorrect      VerdictKind = "correct"
	VerdictIncorrect    VerdictKind = "incorrect"
	VerdictRuntimeError VerdictKind = "runtime_error"
	VerdictTimeout      VerdictKind = "timeout"
)

// Verdict is the classified result of one test case.
//
// Expected and Actual are set for VerdictIncorrect. Stderr and Cause are set
// for VerdictRuntimeError; Cause is empty when the error is the program's own
// stderr output.
type Verdict struct {
	Kind     VerdictKind
	Expected string
	Actual   string
	Stderr   string
	Cause    string
}

// Correct reports a matching output.
func Correct() Verdict {
	return Verdict{Kind: VerdictCorrect}
}

// Incorrect reports a mismatching output together with both sides.
func Incorrect(expected, actual string) Verdict {
	return Verdict{Kind: VerdictIncorrect, Expected: expected, Actual: actual}
}

// RuntimeError reports a failed run. stderr is the captured error stream and
// cause the harness-side failure, either may be empty.
func RuntimeError(stderr, cause string) Verdict {
	return Verdict{Kind: VerdictRuntimeError, Stderr: stderr, Cause: cause}
}

// Timeout reports a run that exceeded its time limit.
func Timeout() Verdict {
	return Verdict{Kind: VerdictTimeout}
}

// Passed reports whether the verdict counts as a passing test.
func (v Verdict) Passed() bool {
	return v.Kind == VerdictCorrect
}
