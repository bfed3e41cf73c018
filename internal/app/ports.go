package app

import (
	"context"
	"io/fs"

	"exifai/internal/domain"
)

type FileSystem interface {
	WalkDir(root string, fn fs.WalkDirFunc) error
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

type Detector interface {
	Detect(path string) (domain.ContainerKind, error)
}

// DetectFunc adapts a plain function to Detector.
type DetectFunc func(path string) (domain.ContainerKind, error)

func (f DetectFunc) Detect(path string) (domain.ContainerKind, error) {
	return f(path)
}

type MetadataReader interface {
	Read(ctx context.Context, path string, kind domain.ContainerKind) (domain.ExistingMetadata, error)
	Inspect(ctx context.Context, path string, kind domain.ContainerKind, allTags bool) (domain.Inspection, error)
}

type MetadataWriter interface {
	Write(ctx context.Context, req domain.WriteRequest) (domain.WriteOutcome, error)
	Clear(ctx context.Context, req domain.ClearRequest) (domain.ClearOutcome, error)
}

// Backend generates metadata for one image.
type Backend interface {
	Name() string
	Analyze(ctx context.Context, image []byte, mimeType string) (domain.GeneratedMetadata, error)
}

// Checker is implemented by backends that can be configured but unusable,
// e.g. a local captioner whose model files are missing.
type Checker interface {
	Available() error
}
