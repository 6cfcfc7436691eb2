package execution

// TestCase describes a single input/expected-output fixture pair.
//
// ID identifies the test within a run and must be unique across it.
type TestCase struct {
	ID                 string
	InputPath          string
	ExpectedOutputPath string
}
