package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"convoy/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the engine binaries and configured directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failed := false

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			depRows := [][]string{}
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				state := "ok"
				if !status.Available {
					state = "missing"
					if !status.Optional {
						failed = true
					}
				}
				depRows = append(depRows, []string{status.Name, status.Command, state, yesNo(status.Optional), status.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Command", "Status", "Optional", "Detail"}, depRows, nil))

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed = true
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Backend: %s, max concurrent jobs: %d\n", cfg.Engine.Backend, cfg.Concurrency.MaxJobs)
			if failed {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
