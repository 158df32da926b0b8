package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reeler/internal/deps"
	"reeler/internal/preflight"
	"reeler/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools and directories before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, "Tools")
			statuses := deps.CheckBinaries(deps.ForConfig(cfg))
			for _, status := range statuses {
				kind := statusOK
				message := status.Path
				if !status.Available {
					kind = statusError
					if status.Optional {
						kind = statusWarn
					}
					message = status.Detail
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			fmt.Fprintln(out, "Directories")
			results := preflight.RunAll(cfg)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out, "Settings")
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Parallelism", statusInfo,
				fmt.Sprintf("download %d, encode %d", cfg.Downloader.Parallelism, cfg.Encoder.Parallelism), colorize))
			fmt.Fprintln(out, renderStatusLine("History", statusInfo, yesNo(cfg.History.Enabled), colorize))

			var errs []error
			if err := deps.Missing(statuses); err != nil {
				errs = append(errs, err)
			}
			if err := preflight.Failures(results); err != nil {
				errs = append(errs, err)
			}
			if len(errs) > 0 {
				return services.Wrap(services.ErrConfiguration, "check", "", fmt.Sprintf("%d check(s) failed", len(errs)), nil)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
