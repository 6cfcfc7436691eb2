package testhelpers

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"tcrun/internal/domain/execution"
)

const programEnv = "TCRUN_TEST_PROGRAM"

// ProgramCommand returns a command that re-executes the running test binary
// as a small fake program under test. Packages using it must call
// RunProgramIfRequested from TestMain.
//
// Modes:
//
//	sum <in> <out>            write the sum of the integers in <in> to <out>
//	copy <in> <out>           copy <in> to <out>
//	write <out> <text>        write <text> to <out>
//	stderr <text> <code>      print <text> to stderr and exit with <code>
//	exit <code> <out> <text>  write <text> to <out> and exit with <code>
//	stdout <text>             print <text> to stdout
//	sleep <duration>          sleep, then exit 0
//	spawn <pidfile>           start a sleeping child, record its pid, sleep
//	orphan <pidfile>          start a sleeping child, record its pid, exit 0
func ProgramCommand(mode string, args ...string) execution.Command {
	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}
	return execution.Command{
		Path: path,
		Args: args,
		Env:  []string{programEnv + "=" + mode},
	}
}

// RunProgramIfRequested turns the current process into the fake program when
// it was started through ProgramCommand. It never returns in that case.
func RunProgramIfRequested() {
	mode := os.Getenv(programEnv)
	if mode == "" {
		return
	}
	if err := runProgram(mode, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
	os.Exit(0)
}

func runProgram(mode string, args []string) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch mode {
	case "sum":
		data, err := os.ReadFile(arg(0))
		if err != nil {
			return err
		}
		total := 0
		for _, field := range strings.Fields(string(data)) {
			n, err := strconv.Atoi(field)
			if err != nil {
				return err
			}
			total += n
		}
		return os.WriteFile(arg(1), []byte(strconv.Itoa(total)+"\n"), 0o644)
	case "copy":
		data, err := os.ReadFile(arg(0))
		if err != nil {
			return err
		}
		return os.WriteFile(arg(1), data, 0o644)
	case "write":
		return os.WriteFile(arg(0), []byte(arg(1)), 0o644)
	case "stderr":
		fmt.Fprint(os.Stdout, "ok")
		fmt.Fprint(os.Stderr, arg(0))
		code, _ := strconv.Atoi(arg(1))
		os.Exit(code)
	case "exit":
		if err := os.WriteFile(arg(1), []byte(arg(2)), 0o644); err != nil {
			return err
		}
		code, _ := strconv.Atoi(arg(0))
		os.Exit(code)
	case "stdout":
		fmt.Fprint(os.Stdout, arg(0))
	case "sleep":
		d, err := time.ParseDuration(arg(0))
		if err != nil {
			return err
		}
		time.Sleep(d)
	case "spawn", "orphan":
		self, err := os.Executable()
		if err != nil {
			return err
		}
		child := exec.Command(self, "1m")
		child.Env = append(os.Environ(), programEnv+"=sleep")
		if err := child.Start(); err != nil {
			return err
		}
		if err := os.WriteFile(arg(0), []byte(strconv.Itoa(child.Process.Pid)), 0o644); err != nil {
			return err
		}
		if mode == "spawn" {
			time.Sleep(time.Minute)
		}
	default:
		return fmt.Errorf("unknown test program mode %q", mode)
	}
	return nil
}
