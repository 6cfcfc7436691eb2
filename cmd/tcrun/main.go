package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// errTestsFailed signals a completed run in which some test was not correct.
var errTestsFailed = errors.New("some tests did not pass")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps its outcome onto a process exit code:
// 0 when every test passed, 1 when some test failed, 2 on any other error.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errTestsFailed):
		return 1
	default:
		fmt.Fprintf(stderr, "tcrun: %v\n", err)
		return 2
	}
}
