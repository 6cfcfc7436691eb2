package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newListCommand() *cobra.Command {
	var showPaths bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the discovered test cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd, map[string]string{"tests": "tests.dir"})
			if err != nil {
				return err
			}
			source, err := newTestSource(cfg, c.logger(cfg))
			if err != nil {
				return err
			}
			cases, err := source.TestCases(cmd.Context())
			if err != nil {
				return err
			}
			for _, tc := range cases {
				if showPaths {
					_, err = fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", tc.ID, tc.InputPath, tc.ExpectedOutputPath)
				} else {
					_, err = fmt.Fprintln(c.stdout, tc.ID)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("tests", "", "directory holding one sub-directory per test case")
	cmd.Flags().BoolVar(&showPaths, "paths", false, "also print input and expected output paths")
	return cmd
}
