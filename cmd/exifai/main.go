package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exifai/internal/config"
	appErrors "exifai/internal/errors"
	"exifai/internal/logging"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	configPath  string
	verbose     bool
	jsonOutput  bool
	dryRun      bool
	noBackup    bool
	overwrite   bool
	services    []string
	concurrency int
)

var rootCmd = &cobra.Command{
	Use:           "exifai",
	Short:         "Write AI-generated titles, descriptions and tags into image metadata",
	Long:          "Sends images to an ordered chain of vision backends and writes the first usable result into EXIF, XMP, IPTC, PNG text chunks or an XMP sidecar.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, c)
		cfg = c

		l, err := logging.Init(cfg.Log, cfg.Output.LogFile)
		if err != nil {
			return appErrors.Wrap(appErrors.InvalidConfig, "init logger", "", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging and detailed output")
	flags.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	flags.BoolVarP(&dryRun, "dry-run", "n", false, "generate metadata but do not modify files")
	flags.BoolVar(&noBackup, "no-backup", false, "do not keep a .bak copy of modified files")
	flags.BoolVar(&overwrite, "overwrite", false, "replace metadata fields that already have a value")
	flags.StringSliceVar(&services, "services", nil, "backend failover order, e.g. openai,gemini")
	flags.IntVarP(&concurrency, "concurrency", "j", 0, "images processed in parallel")
}

// applyFlags lets explicit command-line flags win over the config file.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if verbose {
		c.Log.Level = "debug"
	}
	if flags.Changed("dry-run") {
		c.Output.DryRun = dryRun
	}
	if flags.Changed("no-backup") {
		c.Output.BackupOriginals = !noBackup
	}
	if flags.Changed("overwrite") {
		c.ExifFields.OverwriteExisting = overwrite
	}
	if flags.Changed("services") {
		c.ServiceOrder = services
	}
	if flags.Changed("concurrency") {
		c.Processing.Concurrency = concurrency
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	if err != errImagesFailed {
		fmt.Fprintln(os.Stderr, appErrors.UserMessage(err))
	}
	os.Exit(1)
}
