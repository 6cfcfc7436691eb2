package execution

import "time"

// Command describes a single process launch.
type Command struct {
	// Path is the executable to run. It is resolved through PATH when it has no separator.
	Path string
	Args []string
	// Dir is the working directory of the child process.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string
	// Timeout caps the wall-clock run time. Zero means no limit.
	Timeout time.Duration
}
