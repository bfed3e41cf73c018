package container

import (
	"bytes"
	"context"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
	"exifai/internal/infra/exif"
)

// exifStream returns the raw TIFF stream a container carries, or nil when it
// has no EXIF block.
func exifStream(data []byte, kind domain.ContainerKind) ([]byte, error) {
	switch kind.Format {
	case domain.FormatJPEG:
		f, err := parseJPEG(data)
		if err != nil {
			return nil, err
		}
		if i := f.find(jpegSegment.isExif); i >= 0 {
			return bytes.TrimPrefix(f.segments[i].payload, exifAPP1Header), nil
		}
	case domain.FormatPNG:
		f, err := parsePNG(data)
		if err != nil {
			return nil, err
		}
		for _, c := range f.chunks {
			if c.typ == "eXIf" {
				return c.data, nil
			}
		}
	case domain.FormatWebP:
		chunks, err := parseWebP(data)
		if err != nil {
			return nil, err
		}
		if i := findChunk(chunks, "EXIF"); i >= 0 {
			return exifChunkTIFF(chunks[i].data), nil
		}
	case domain.FormatTIFF:
		return data, nil
	case domain.FormatSidecar:
		// best effort, like readEmbedded
		tiff, _ := embeddedTIFF(data, kind)
		return tiff, nil
	}
	return nil, nil
}

// Inspect builds the read-only report for a file: the projected metadata,
// the capture time and, with allTags, every EXIF tag including ones the codec
// does not interpret.
func (r *Reader) Inspect(ctx context.Context, path string, kind domain.ContainerKind, allTags bool) (domain.Inspection, error) {
	meta, err := r.Read(ctx, path, kind)
	if err != nil {
		return domain.Inspection{}, err
	}
	report := domain.Inspection{Path: path, Kind: kind, Metadata: meta}

	if kind.IsSidecar() {
		if ok, _ := r.Files.Exists(domain.SidecarPath(path)); ok {
			report.Sidecar = domain.SidecarPath(path)
		}
	}

	data, err := r.Files.ReadFile(path)
	if err != nil {
		return domain.Inspection{}, appErrors.Wrap(appErrors.NotFound, "inspect", path, err)
	}
	tiff, err := exifStream(data, kind)
	if err != nil {
		return domain.Inspection{}, appErrors.Wrap(appErrors.ParseError, "inspect", path, err)
	}
	if len(tiff) == 0 {
		return report, nil
	}

	if taken, err := exif.CaptureTime(tiff); err == nil {
		report.TakenAt = &taken
	}
	if allTags {
		tags, err := exif.FlatTags(tiff)
		if err != nil {
			return domain.Inspection{}, appErrors.Wrap(appErrors.ParseError, "inspect", path, err)
		}
		report.Tags = tags
	}
	return report, nil
}
