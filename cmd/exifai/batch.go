package main

import (
	"context"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exifai/internal/app"
	"exifai/internal/domain"
	"exifai/internal/infra/fs"
	"exifai/internal/tui"
)

var (
	batchTUI bool
	batchYes bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir|image>...",
	Short: "Process every recognized image under the given directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipeline, order, err := newPipeline()
		if err != nil {
			return err
		}
		collector := &app.Collector{FS: fs.NewOSFS(), Logger: logger}

		if batchTUI {
			return runBatchTUI(ctx, pipeline, collector, args, order)
		}

		paths, err := collector.Collect(ctx, args)
		if err != nil {
			return err
		}
		logger.Info("batch collected", zap.Int("images", len(paths)), zap.Strings("backends", order))

		printer := newPrinter(cmd.OutOrStdout())
		results := pipeline.ProcessBatch(ctx, paths, func(done, total int, r domain.ProcessResult) {
			if !jsonOutput {
				printer.PrintResult(r)
			}
		})
		return report(printer, results, true)
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchTUI, "tui", false, "interactive progress view")
	batchCmd.Flags().BoolVarP(&batchYes, "yes", "y", false, "do not ask for confirmation in the progress view")
	rootCmd.AddCommand(batchCmd)
}

func runBatchTUI(ctx context.Context, pipeline *app.Pipeline, collector *app.Collector, roots, order []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Log lines would tear the full-screen view.
	pipeline.Logger = zap.NewNop()
	collector.Logger = nil

	var program *tea.Program
	model := tui.NewModel(tui.Config{
		Roots:    roots,
		Backends: order,
		DryRun:   cfg.Output.DryRun,
		Verbose:  verbose,
		Confirm:  !batchYes,
		StartBatch: func(paths []string) tea.Cmd {
			return func() tea.Msg {
				results := pipeline.ProcessBatch(ctx, paths, func(done, total int, r domain.ProcessResult) {
					program.Send(tui.ResultMsg{Done: done, Total: total, Result: r})
				})
				return tui.BatchDoneMsg{Results: results}
			}
		},
	})
	program = tea.NewProgram(model)

	go func() {
		paths, err := collector.Collect(ctx, roots)
		if err != nil {
			program.Send(tui.ErrorMsg{Err: err})
			return
		}
		program.Send(tui.PathsReadyMsg{Paths: paths})
	}()

	final, err := program.Run()
	if err != nil {
		return eris.Wrap(err, "batch: run progress view")
	}
	m, ok := final.(tui.Model)
	if !ok {
		return nil
	}
	switch {
	case m.Err != nil:
		return m.Err
	case m.Summary.Failed > 0:
		return errImagesFailed
	case m.Quitting && m.Phase == tui.PhaseProcessing:
		return errImagesFailed
	}
	return nil
}
