package build

import "strings"

// FilterSource drops every line of source that contains one of the ignore
// substrings. Lines are split and re-joined on "\n".
func FilterSource(source string, ignore []string) string {
	if len(ignore) == 0 {
		return source
	}

	lines := strings.Split(source, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !containsAny(line, ignore) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func containsAny(line string, substrings []string) bool {
	for _, sub := range substrings {
		if sub != "" && strings.Contains(line, sub) {
			return true
		}
	}
	return false
}
