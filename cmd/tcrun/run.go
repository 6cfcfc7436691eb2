package main

import (
	"github.com/spf13/cobra"

	"tcrun/internal/infra/report"
)

var runFlagKeys = map[string]string{
	"timeout": "run.timeout",
	"workers": "run.workers",
	"format":  "report.format",
	"color":   "report.color",
	"tests":   "tests.dir",
	"runtime": "runtime.kind",
}

func (c *cli) newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the program if configured, then run every test case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd)
		},
	}
	flags := cmd.Flags()
	flags.String("timeout", "", "per-test timeout, a duration (50ms) or milliseconds")
	flags.Int("workers", 0, "parallel test executions (0 = number of CPUs)")
	flags.String("format", "", "report format: text, json or yaml")
	flags.String("color", "", "colored text report: auto, always or never")
	flags.String("tests", "", "directory holding one sub-directory per test case")
	flags.String("runtime", "", "process runtime: process or docker")
	return cmd
}

func (c *cli) run(cmd *cobra.Command) error {
	cfg, err := c.loadConfig(cmd, runFlagKeys)
	if err != nil {
		return err
	}
	logger := c.logger(cfg)
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runner, err := newProcessRunner(cfg, logger)
	if err != nil {
		return err
	}
	closeRunner := func() {
		if cerr := runner.Close(); cerr != nil {
			logger.Warn("close runner failed", "error", cerr)
		}
	}

	artifact, err := buildArtifact(ctx, cfg, runner, logger)
	if err != nil {
		closeRunner()
		return err
	}
	service, err := newService(cfg, runner, artifact, logger)
	if err != nil {
		closeRunner()
		return err
	}
	defer func() {
		if cerr := service.Close(); cerr != nil {
			logger.Warn("close service failed", "error", cerr)
		}
	}()

	result, err := service.Run(ctx, nil)
	if err != nil {
		return err
	}
	if err := report.Write(c.stdout, format, result, report.Options{
		Color:   c.useColor(cfg.Report.Color),
		Timeout: cfg.Run.Timeout,
	}); err != nil {
		return err
	}
	if !result.Passed() {
		return errTestsFailed
	}
	return nil
}
