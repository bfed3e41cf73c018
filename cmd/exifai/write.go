package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"exifai/internal/domain"
	"exifai/internal/presentation"
)

var writeCmd = &cobra.Command{
	Use:   "write <image>...",
	Short: "Generate and write metadata for the given images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipeline, _, err := newPipeline()
		if err != nil {
			return err
		}
		printer := newPrinter(cmd.OutOrStdout())

		results := make([]domain.ProcessResult, 0, len(args))
		for _, path := range args {
			res := pipeline.Process(ctx, path)
			results = append(results, res)
			if !jsonOutput {
				printer.PrintResult(res)
			}
		}
		return report(printer, results, len(results) > 1)
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
}

// report prints the final output and turns any failed image into a non-zero
// exit status.
func report(printer presentation.Printer, results []domain.ProcessResult, withSummary bool) error {
	summary := domain.Summarize(results)
	if jsonOutput {
		if err := printer.PrintJSON(results); err != nil {
			return err
		}
	} else if withSummary {
		printer.PrintSummary(summary, cfg.Output.DryRun)
	}
	if summary.Failed > 0 {
		return errImagesFailed
	}
	return nil
}
