// Package compare decides whether a program's output matches a fixture.
//
// Both sides are stripped of leading and trailing whitespace; everything in
// between, including line endings, has to match exactly.
package compare

import "strings"

// Strip removes leading and trailing whitespace.
func Strip(s string) string {
	return strings.TrimSpace(s)
}

// Equal reports whether expected and actual match after stripping.
func Equal(expected, actual string) bool {
	return Strip(expected) == Strip(actual)
}
