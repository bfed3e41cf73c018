package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"exifai/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Add your API keys and enable the services you want to use.\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
