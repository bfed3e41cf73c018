package container

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
	"exifai/internal/infra/exif"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// Detect classifies a file by its leading bytes, falling back to the
// extension. RAW-family and HEIF extensions classify as sidecar-only without
// content verification.
func Detect(path string) (domain.ContainerKind, error) {
	head, err := readHead(path, 16)
	if err != nil {
		return domain.ContainerKind{}, appErrors.Wrap(appErrors.NotFound, "detect", path, err)
	}
	return DetectBytes(head, filepath.Ext(path), path)
}

// DetectBytes is Detect over an already-read file prefix.
func DetectBytes(head []byte, ext, path string) (domain.ContainerKind, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")

	switch {
	case len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF:
		return domain.JPEG, nil
	case bytes.HasPrefix(head, pngSignature):
		return domain.PNG, nil
	case len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return domain.WebP, nil
	case exif.IsTIFFHeader(head) && !domain.IsSidecarExtension(ext):
		// Most RAW formats are TIFF-structured; the magic alone cannot tell them apart.
		return domain.TIFF, nil
	}

	if domain.IsSidecarExtension(ext) {
		return domain.Sidecar(ext), nil
	}
	if format, ok := domain.NativeFormat(ext); ok {
		return domain.ContainerKind{Format: format}, nil
	}
	return domain.ContainerKind{}, appErrors.Wrap(appErrors.UnsupportedFormat, "detect", path,
		errUnrecognized(ext))
}

type errUnrecognized string

func (e errUnrecognized) Error() string {
	if e == "" {
		return "unrecognized content"
	}
	return "unrecognized content for ." + string(e)
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
