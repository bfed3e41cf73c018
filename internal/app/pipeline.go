package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
)

// Generator produces metadata for an image; Orchestrator is the production
// implementation.
type Generator interface {
	Generate(ctx context.Context, image []byte, mimeType string) (Generation, error)
}

// Options is the read-only configuration shared by every image of a run.
type Options struct {
	Fields  domain.FieldSelection
	DryRun  bool
	Backup  bool
	Workers int
}

// Pipeline runs one image through detect, read, generate, plan and write.
type Pipeline struct {
	FS        FileSystem
	Detector  Detector
	Reader    MetadataReader
	Writer    MetadataWriter
	Generator Generator
	Options   Options
	Logger    *zap.Logger

	writes targetLocks
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) check() error {
	switch {
	case p.FS == nil:
		return errMissingPort("FS")
	case p.Detector == nil:
		return errMissingPort("Detector")
	case p.Reader == nil:
		return errMissingPort("Reader")
	case p.Writer == nil:
		return errMissingPort("Writer")
	case p.Generator == nil:
		return errMissingPort("Generator")
	}
	return nil
}

// Process never returns an error: every failure is recorded in the result.
func (p *Pipeline) Process(ctx context.Context, path string) domain.ProcessResult {
	start := time.Now()
	res := domain.ProcessResult{Path: path, DryRun: p.Options.DryRun}
	logger := p.logger().With(zap.String("path", path))

	fail := func(err error) domain.ProcessResult {
		res.Err = err
		res.Duration = time.Since(start)
		logger.Warn("image failed", zap.String("kind", string(appErrors.KindOf(err))), zap.Error(err))
		return res
	}

	if err := p.check(); err != nil {
		return fail(appErrors.Wrap(appErrors.Internal, "process", path, err))
	}

	kind, err := p.Detector.Detect(path)
	if err != nil {
		return fail(err)
	}
	res.Kind = kind

	existing, err := p.Reader.Read(ctx, path, kind)
	if err != nil {
		return fail(err)
	}

	image, err := p.FS.ReadFile(path)
	if err != nil {
		return fail(appErrors.Wrap(appErrors.NotFound, "process", path, err))
	}

	gen, err := p.Generator.Generate(ctx, image, domain.MimeType(path))
	if err != nil {
		return fail(err)
	}
	res.Backend = gen.Backend
	generated := gen.Metadata
	res.Generated = &generated

	plan := domain.PlanFields(existing, generated, p.Options.Fields)
	release := p.writes.lock(writeTarget(path, kind))
	outcome, err := p.Writer.Write(ctx, domain.WriteRequest{
		Path:      path,
		Kind:      kind,
		Existing:  existing,
		Generated: generated,
		Plan:      plan,
		Overwrite: p.Options.Fields.OverwriteExisting,
		DryRun:    p.Options.DryRun,
		Backup:    p.Options.Backup,
	})
	release()
	if err != nil {
		return fail(err)
	}
	res.Outcome = outcome
	res.BackupPath = outcome.BackupPath
	res.Duration = time.Since(start)

	logger.Info("image processed",
		zap.String("backend", res.Backend),
		zap.Strings("fields", outcome.Fields()),
		zap.Strings("skipped", outcome.Skipped),
		zap.Bool("dry_run", res.DryRun),
		zap.Duration("took", res.Duration))
	return res
}

// Inspect is the read-only query behind `show`.
func (p *Pipeline) Inspect(ctx context.Context, path string, allTags bool) (domain.Inspection, error) {
	if p.Detector == nil || p.Reader == nil {
		return domain.Inspection{}, appErrors.Wrap(appErrors.Internal, "inspect", path, errMissingPort("Reader"))
	}
	kind, err := p.Detector.Detect(path)
	if err != nil {
		return domain.Inspection{}, err
	}
	return p.Reader.Inspect(ctx, path, kind, allTags)
}

// Clear strips every tracked metadata block from one image, honouring the
// dry-run and backup options.
func (p *Pipeline) Clear(ctx context.Context, path string) (domain.ClearOutcome, error) {
	if p.Detector == nil || p.Writer == nil {
		return domain.ClearOutcome{}, appErrors.Wrap(appErrors.Internal, "clear", path, errMissingPort("Writer"))
	}
	kind, err := p.Detector.Detect(path)
	if err != nil {
		return domain.ClearOutcome{}, err
	}
	release := p.writes.lock(writeTarget(path, kind))
	out, err := p.Writer.Clear(ctx, domain.ClearRequest{
		Path:   path,
		Kind:   kind,
		DryRun: p.Options.DryRun,
		Backup: p.Options.Backup,
	})
	release()
	if err != nil {
		return domain.ClearOutcome{}, err
	}
	p.logger().Info("metadata cleared",
		zap.String("path", path),
		zap.Strings("removed", out.Removed),
		zap.Bool("dry_run", p.Options.DryRun))
	return out, nil
}
