package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appErrors "exifai/internal/errors"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear <image>...",
	Short: "Remove EXIF, XMP, IPTC and text metadata from images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes && !cfg.Output.DryRun {
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Remove metadata from %d files?", len(args)))
			if err != nil {
				return appErrors.Wrap(appErrors.Internal, "prompt", "", err)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}

		pipeline := newCodecPipeline()
		printer := newPrinter(cmd.OutOrStdout())
		failed := 0
		for _, path := range args {
			out, err := pipeline.Clear(cmd.Context(), path)
			if err != nil {
				failed++
				fmt.Fprintln(cmd.ErrOrStderr(), appErrors.UserMessage(err))
				continue
			}
			if jsonOutput {
				if err := printer.PrintJSON(map[string]any{"path": path, "dry_run": cfg.Output.DryRun, "outcome": out}); err != nil {
					return err
				}
				continue
			}
			printer.PrintClear(path, out, cfg.Output.DryRun)
		}
		if failed > 0 {
			return errImagesFailed
		}
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(clearCmd)
}
