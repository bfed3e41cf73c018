package container

import (
	"bytes"

	"exifai/internal/domain"
	"exifai/internal/infra/exif"
)

// embeddedTIFF finds the EXIF block of a file that is only sidecar-written.
// TIFF-structured RAW files are walked directly; everything else goes through
// the structural parser for the extension or a brute-force header search.
func embeddedTIFF(data []byte, kind domain.ContainerKind) ([]byte, error) {
	if exif.IsTIFFHeader(data) {
		return data, nil
	}
	tiff, err := exif.Extract(bytes.NewReader(data), len(data), kind.Subtype)
	if err != nil {
		return nil, err
	}
	return bytes.TrimPrefix(tiff, exifAPP1Header), nil
}

// readEmbedded is best effort: any failure yields empty metadata.
func readEmbedded(data []byte, kind domain.ContainerKind) domain.ExistingMetadata {
	tiff, err := embeddedTIFF(data, kind)
	if err != nil || len(tiff) == 0 {
		return domain.ExistingMetadata{}
	}
	tree, err := exif.Parse(tiff)
	if err != nil {
		return domain.ExistingMetadata{}
	}
	base := int64(0)
	if len(tiff) >= 8 {
		base = int64(bytes.Index(data, tiff[:8]))
	}
	return tree.Metadata(base)
}

// sidecarFields drops the fields the existing sidecar already holds unless
// overwrite is set, and reports what the XMP document cannot carry.
func sidecarFields(p payload, existing *xmpFields, overwrite bool) (payload, []string) {
	var skipped []string
	if existing != nil && !overwrite {
		if p.Title != "" && existing.Title != "" {
			p.Title = ""
			skipped = append(skipped, "title (existing in sidecar)")
		}
		if p.Description != "" && existing.Description != "" {
			p.Description = ""
			skipped = append(skipped, "description (existing in sidecar)")
		}
		if len(p.Tags) > 0 && len(existing.Subject) > 0 {
			p.Tags = nil
			skipped = append(skipped, "tags (existing in sidecar)")
		}
	}
	if len(p.Subject) > 0 {
		p.Subject = nil
		skipped = append(skipped, "subject (not supported in sidecar)")
	}
	if p.GPS != nil {
		p.GPS = nil
		skipped = append(skipped, "gps (not supported in sidecar)")
	}
	return p, skipped
}
