package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"exifai/internal/app"
	"exifai/internal/infra/ai"
	"exifai/internal/infra/container"
	"exifai/internal/infra/fs"
	"exifai/internal/presentation"
)

// errImagesFailed makes the process exit non-zero after per-image failures
// were already reported.
var errImagesFailed = errors.New("one or more images failed")

// newCodecPipeline wires the container codec without any backend, for
// commands that never generate metadata.
func newCodecPipeline() *app.Pipeline {
	files := fs.NewOSFS()
	return &app.Pipeline{
		FS:       files,
		Detector: app.DetectFunc(container.Detect),
		Reader:   container.NewReader(files),
		Writer:   container.NewWriter(files, fs.NewBackupManager(files, logger), logger),
		Options:  options(),
		Logger:   logger,
	}
}

// newPipeline validates the configuration and adds the backend chain.
func newPipeline() (*app.Pipeline, []string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	order := cfg.EnabledServices()
	registry := ai.FromConfig(cfg, logger)

	chain := registry.Chain(order)
	backends := make([]app.Backend, 0, len(chain))
	for _, b := range chain {
		backends = append(backends, b)
	}

	p := newCodecPipeline()
	p.Generator = app.NewOrchestrator(backends, cfg.Timeout(), logger)
	return p, order, nil
}

func options() app.Options {
	return app.Options{
		Fields:  cfg.Selection(),
		DryRun:  cfg.Output.DryRun,
		Backup:  cfg.Output.BackupOriginals,
		Workers: cfg.Workers(),
	}
}

func newPrinter(w io.Writer) presentation.Printer {
	return presentation.Printer{Writer: w, Verbose: verbose}
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}
