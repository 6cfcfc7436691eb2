package execution

import "time"

// Result is the outcome of executing a single TestCase.
type Result struct {
	TestID  string
	Outcome Outcome
	Verdict Verdict
}

// RunReport aggregates every Result produced by one harness run.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Results   []Result
}

// Summary counts results per verdict kind.
type Summary struct {
	Total        int
	Correct      int
	Incorrect    int
	RuntimeError int
	Timeout      int
}

// Summarize counts the verdicts held by the report.
func (r RunReport) Summarize() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Verdict.Kind {
		case VerdictCorrect:
			s.Correct++
		case VerdictIncorrect:
			s.Incorrect++
		case VerdictRuntimeError:
			s.RuntimeError++
		case VerdictTimeout:
			s.Timeout++
		}
	}
	return s
}

// Passed reports whether every result in the run is correct.
func (r RunReport) Passed() bool {
	for _, res := range r.Results {
		if !res.Verdict.Passed() {
			return false
		}
	}
	return true
}
