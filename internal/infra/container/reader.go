package container

import (
	"context"
	"os"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
	"exifai/internal/infra/exif"
)

// Files is the filesystem surface the strategies need.
type Files interface {
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, data []byte) error
	Remove(path string) error
	Exists(path string) (bool, error)
}

type Reader struct {
	Files Files
}

func NewReader(files Files) *Reader {
	return &Reader{Files: files}
}

// Read projects the container's metadata. Structurally invalid native
// containers fail with ParseError; sidecar kinds never fail on content.
func (r *Reader) Read(ctx context.Context, path string, kind domain.ContainerKind) (domain.ExistingMetadata, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExistingMetadata{}, err
	}
	data, err := r.Files.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ExistingMetadata{}, appErrors.Wrap(appErrors.NotFound, "read", path, err)
		}
		return domain.ExistingMetadata{}, appErrors.Wrap(appErrors.ParseError, "read", path, err)
	}

	var meta domain.ExistingMetadata
	switch kind.Format {
	case domain.FormatJPEG:
		meta, err = readJPEG(data)
	case domain.FormatPNG:
		meta, err = readPNG(data)
	case domain.FormatWebP:
		meta, err = readWebP(data)
	case domain.FormatTIFF:
		meta, err = readTIFF(data)
	case domain.FormatSidecar:
		meta = readEmbedded(data, kind)
		if side, ok := r.sidecar(path); ok {
			meta = meta.Merge(xmpMetadata(side))
		}
	default:
		return domain.ExistingMetadata{}, appErrors.Wrap(appErrors.UnsupportedFormat, "read", path, errUnrecognized(kind.Subtype))
	}
	if err != nil {
		return domain.ExistingMetadata{}, appErrors.Wrap(appErrors.ParseError, "read", path, err)
	}
	return meta, nil
}

// sidecar returns the fields of an existing <base>.xmp document.
func (r *Reader) sidecar(path string) (xmpFields, bool) {
	return loadSidecar(r.Files, domain.SidecarPath(path))
}

func loadSidecar(files Files, path string) (xmpFields, bool) {
	ok, err := files.Exists(path)
	if err != nil || !ok {
		return xmpFields{}, false
	}
	data, err := files.ReadFile(path)
	if err != nil {
		return xmpFields{}, false
	}
	return parseXMP(data), true
}

func readTIFF(data []byte) (domain.ExistingMetadata, error) {
	tree, err := exif.Parse(data)
	if err != nil {
		return domain.ExistingMetadata{}, err
	}
	return tree.Metadata(0), nil
}

func writeTIFF(data []byte, p payload) ([]byte, error) {
	return p.rewriteTIFF(data)
}
