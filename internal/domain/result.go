package domain

import (
	"path/filepath"
	"time"
)

// ProcessResult is the terminal record for one image.
type ProcessResult struct {
	Path       string
	Kind       ContainerKind
	Backend    string
	Generated  *GeneratedMetadata
	Outcome    WriteOutcome
	BackupPath string
	DryRun     bool
	Duration   time.Duration
	Err        error
}

func (r ProcessResult) OK() bool {
	return r.Err == nil
}

type BatchSummary struct {
	Results   []ProcessResult
	Succeeded int
	Failed    int
	Written   int
	Warnings  []string
}

func Summarize(results []ProcessResult) BatchSummary {
	summary := BatchSummary{Results: results}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		for _, skipped := range r.Outcome.Skipped {
			summary.Warnings = append(summary.Warnings, filepath.Base(r.Path)+": skipped "+skipped)
		}
		if r.Outcome.Any() {
			summary.Written++
		}
	}
	return summary
}
