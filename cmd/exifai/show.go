package main

import (
	"github.com/spf13/cobra"
)

var showAll bool

var showCmd = &cobra.Command{
	Use:   "show <image>",
	Short: "Print the metadata an image already carries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := newCodecPipeline().Inspect(cmd.Context(), args[0], showAll)
		if err != nil {
			return err
		}
		printer := newPrinter(cmd.OutOrStdout())
		if jsonOutput {
			return printer.PrintJSON(report)
		}
		printer.PrintInspection(report)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVarP(&showAll, "all", "a", false, "dump every EXIF tag, including unknown ones")
	rootCmd.AddCommand(showCmd)
}
