// Package ai holds the metadata-generation backends: remote vision APIs,
// the local captioner, the shared prompt and the lenient response parser.
package ai

import (
	"context"
	"encoding/base64"

	"exifai/internal/domain"
)

// Backend produces descriptive metadata for one image. Implementations are
// stateless per call and keep transport and auth to themselves.
type Backend interface {
	Name() string
	Analyze(ctx context.Context, image []byte, mimeType string) (domain.GeneratedMetadata, error)
}

// Checker is implemented by backends that can tell up front whether a call
// could succeed, e.g. because model files are missing.
type Checker interface {
	Available() error
}

// Available returns nil for backends without a check.
func Available(b Backend) error {
	if c, ok := b.(Checker); ok {
		return c.Available()
	}
	return nil
}

func encodeImage(image []byte) string {
	return base64.StdEncoding.EncodeToString(image)
}
