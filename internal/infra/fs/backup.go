package fs

import (
	"context"

	"go.uber.org/zap"

	"exifai/internal/domain"
)

type copier interface {
	Exists(path string) (bool, error)
	CopyFile(src, dst string) error
}

// BackupManager keeps one pristine copy of each original at <path>.bak.
// An existing backup is never replaced, so repeated runs keep the first
// original.
type BackupManager struct {
	files  copier
	logger *zap.Logger
}

func NewBackupManager(files copier, logger *zap.Logger) *BackupManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupManager{files: files, logger: logger}
}

func (b *BackupManager) Backup(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := domain.BackupPath(path)
	exists, err := b.files.Exists(dst)
	if err != nil {
		return "", err
	}
	if exists {
		b.logger.Debug("backup already present", zap.String("path", dst))
		return dst, nil
	}
	if err := b.files.CopyFile(path, dst); err != nil {
		return "", err
	}
	b.logger.Debug("backup created", zap.String("path", dst))
	return dst, nil
}
