package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tcrun/internal/config"
	"tcrun/internal/infra/report"
	"tcrun/internal/observability"
)

// version is replaced at build time with -ldflags "-X main.version=...".
var version = "dev"

type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "tcrun",
		Short:         "Run a compiled program against a directory of test cases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: tcrun.yaml, tcrun.yml or tcrun.json in the working directory)")

	root.AddCommand(
		c.newRunCommand(),
		c.newListCommand(),
		c.newWatchCommand(),
		c.newVersionCommand(),
	)
	return root
}

// loadConfig reads the configuration, letting the named flags of cmd
// override the matching config keys.
func (c *cli) loadConfig(cmd *cobra.Command, flagKeys map[string]string) (config.Config, error) {
	loader := config.NewLoader()
	for flag, key := range flagKeys {
		if err := loader.BindFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return config.Config{}, err
		}
	}
	return loader.Load(c.configPath)
}

func (c *cli) logger(cfg config.Config) *slog.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.stderr,
	})
}

// useColor resolves report.color against the output stream.
func (c *cli) useColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if f, ok := c.stdout.(*os.File); ok {
		return report.ColorEnabled(f)
	}
	return false
}

func (c *cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tcrun version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(c.stdout, "tcrun %s\n", version)
			return err
		},
	}
}
