package container

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
)

var errClearTIFF = errors.New("metadata in a bare TIFF is inseparable from the image data")

// Backuper snapshots a file before it is replaced.
type Backuper interface {
	Backup(ctx context.Context, path string) (string, error)
}

type Writer struct {
	Files   Files
	Backups Backuper
	Logger  *zap.Logger
}

func NewWriter(files Files, backups Backuper, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{Files: files, Backups: backups, Logger: logger}
}

type rewriteFunc func(data []byte, p payload) ([]byte, error)

func rewriterFor(format domain.Format) rewriteFunc {
	switch format {
	case domain.FormatJPEG:
		return writeJPEG
	case domain.FormatPNG:
		return writePNG
	case domain.FormatWebP:
		return writeWebP
	case domain.FormatTIFF:
		return writeTIFF
	}
	return nil
}

// Write emits the planned fields. The outcome lists exactly the fields whose
// bytes were written, or would be in a dry run.
func (w *Writer) Write(ctx context.Context, req domain.WriteRequest) (domain.WriteOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.WriteOutcome{}, err
	}
	p := payloadFor(req)
	if req.Kind.IsSidecar() {
		return w.writeSidecar(req, p)
	}

	rewrite := rewriterFor(req.Kind.Format)
	if rewrite == nil {
		return domain.WriteOutcome{}, appErrors.Wrap(appErrors.UnsupportedFormat, "write", req.Path, errUnrecognized(req.Kind.String()))
	}
	outcome := p.outcome(req.Plan.Skipped)
	if p.empty() {
		return outcome, nil
	}

	data, err := w.Files.ReadFile(req.Path)
	if err != nil {
		return domain.WriteOutcome{}, appErrors.Wrap(appErrors.WriteError, "write", req.Path, err)
	}
	updated, err := rewrite(data, p)
	if err != nil {
		return domain.WriteOutcome{}, appErrors.Wrap(appErrors.WriteError, "write", req.Path, err)
	}
	if req.DryRun {
		return outcome, nil
	}

	backup, err := w.commit(ctx, req.Path, updated, req.Backup)
	if err != nil {
		return domain.WriteOutcome{}, err
	}
	outcome.BackupPath = backup
	return outcome, nil
}

func (w *Writer) writeSidecar(req domain.WriteRequest, p payload) (domain.WriteOutcome, error) {
	path := domain.SidecarPath(req.Path)
	existing, found := loadSidecar(w.Files, path)
	var current *xmpFields
	if found {
		current = &existing
	}
	p, skipped := sidecarFields(p, current, req.Overwrite)

	outcome := p.outcome(append(append([]string{}, req.Plan.Skipped...), skipped...))
	if p.empty() {
		return outcome, nil
	}
	outcome.SidecarPath = path

	var doc string
	if found {
		data, err := w.Files.ReadFile(path)
		if err != nil {
			return domain.WriteOutcome{}, appErrors.Wrap(appErrors.WriteError, "write sidecar", path, err)
		}
		doc = injectXMP(string(data), p.xmp())
	} else {
		doc = buildXMP(p.xmp())
	}
	if req.DryRun {
		return outcome, nil
	}
	if err := w.Files.WriteFileAtomic(path, []byte(doc)); err != nil {
		return domain.WriteOutcome{}, appErrors.Wrap(appErrors.WriteError, "write sidecar", path, err)
	}
	w.Logger.Debug("sidecar written", zap.String("path", path))
	return outcome, nil
}

// Clear removes every tracked metadata block. Bare TIFF is refused before
// anything is read or written.
func (w *Writer) Clear(ctx context.Context, req domain.ClearRequest) (domain.ClearOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClearOutcome{}, err
	}

	switch req.Kind.Format {
	case domain.FormatTIFF:
		return domain.ClearOutcome{}, appErrors.Wrap(appErrors.UnsupportedOperation, "clear", req.Path, errClearTIFF)
	case domain.FormatSidecar:
		return w.clearSidecar(req)
	}

	var strip func([]byte) ([]byte, []string, error)
	switch req.Kind.Format {
	case domain.FormatJPEG:
		strip = clearJPEG
	case domain.FormatPNG:
		strip = clearPNG
	case domain.FormatWebP:
		strip = clearWebP
	default:
		return domain.ClearOutcome{}, appErrors.Wrap(appErrors.UnsupportedFormat, "clear", req.Path, errUnrecognized(req.Kind.String()))
	}

	data, err := w.Files.ReadFile(req.Path)
	if err != nil {
		return domain.ClearOutcome{}, appErrors.Wrap(appErrors.WriteError, "clear", req.Path, err)
	}
	updated, removed, err := strip(data)
	if err != nil {
		return domain.ClearOutcome{}, appErrors.Wrap(appErrors.ParseError, "clear", req.Path, err)
	}
	outcome := domain.ClearOutcome{Removed: removed}
	if len(removed) == 0 || req.DryRun {
		return outcome, nil
	}
	backup, err := w.commit(ctx, req.Path, updated, req.Backup)
	if err != nil {
		return domain.ClearOutcome{}, err
	}
	outcome.BackupPath = backup
	return outcome, nil
}

func (w *Writer) clearSidecar(req domain.ClearRequest) (domain.ClearOutcome, error) {
	path := domain.SidecarPath(req.Path)
	ok, err := w.Files.Exists(path)
	if err != nil {
		return domain.ClearOutcome{}, appErrors.Wrap(appErrors.WriteError, "clear", path, err)
	}
	if !ok {
		return domain.ClearOutcome{}, nil
	}
	outcome := domain.ClearOutcome{Removed: []string{path}}
	if req.DryRun {
		return outcome, nil
	}
	if err := w.Files.Remove(path); err != nil {
		return domain.ClearOutcome{}, appErrors.Wrap(appErrors.WriteError, "clear", path, err)
	}
	return outcome, nil
}

// commit snapshots the original when asked and atomically replaces it.
func (w *Writer) commit(ctx context.Context, path string, data []byte, backup bool) (string, error) {
	var backupPath string
	if backup && w.Backups != nil {
		p, err := w.Backups.Backup(ctx, path)
		if err != nil {
			return "", appErrors.Wrap(appErrors.BackupError, "backup", path, err)
		}
		backupPath = p
	}
	if err := w.Files.WriteFileAtomic(path, data); err != nil {
		return "", appErrors.Wrap(appErrors.WriteError, "write", path, err)
	}
	w.Logger.Debug("container rewritten", zap.String("path", path), zap.Int("bytes", len(data)))
	return backupPath, nil
}
