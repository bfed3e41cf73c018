package exif

import (
	"fmt"
	"io"
	"strings"

	dsexif "github.com/dsoprea/go-exif/v3"
	heicexif "github.com/dsoprea/go-heic-exif-extractor"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure"
	pngstructure "github.com/dsoprea/go-png-image-structure"
	tiffstructure "github.com/dsoprea/go-tiff-image-structure"
	riimage "github.com/dsoprea/go-utility/image"
	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

type mediaParser interface {
	Parse(rs io.ReadSeeker, size int) (ec riimage.MediaContext, err error)
}

func parserFor(ext string) mediaParser {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return jpegstructure.NewJpegMediaParser()
	case "png":
		return pngstructure.NewPngMediaParser()
	case "tif", "tiff":
		return tiffstructure.NewTiffMediaParser()
	case "heic", "heif", "avif":
		return heicexif.NewHeicExifMediaParser()
	default:
		// RAW layouts rely on the brute-force search
		return nil
	}
}

// Extract returns the raw TIFF block of a media file. A structural parse is
// tried first for the extension; when that fails or finds nothing the stream
// is searched for a TIFF header.
func Extract(rs io.ReadSeeker, size int, ext string) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, eris.Errorf("exif: extract: %v", r)
		}
	}()

	if parser := parserFor(ext); parser != nil {
		if mc, perr := parser.Parse(rs, size); perr == nil {
			if _, raw, xerr := mc.Exif(); xerr == nil && len(raw) > 0 {
				return raw, nil
			}
		}
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, eris.Wrap(err, "exif: rewind")
		}
	}
	return Search(rs)
}

// FlatTag is one decoded EXIF tag for display.
type FlatTag = domain.RawTag

// FlatTags decodes every tag of a TIFF stream, including ones this package
// does not interpret.
func FlatTags(tiff []byte) (tags []FlatTag, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("exif: flatten: %v", r)
		}
	}()

	entries, _, err := dsexif.GetFlatExifData(tiff, nil)
	if err != nil {
		return nil, eris.Wrap(err, "exif: flatten")
	}
	for _, e := range entries {
		name := e.TagName
		if name == "" {
			name = fmt.Sprintf("0x%04X", e.TagId)
		}
		tags = append(tags, FlatTag{
			IFD:   e.IfdPath,
			ID:    e.TagId,
			Name:  name,
			Type:  e.TagTypeName,
			Value: strings.ReplaceAll(e.FormattedFirst, "\x00", ""),
		})
	}
	return tags, nil
}

// Search scans an arbitrary stream for an embedded TIFF header. It is used for
// RAW containers whose structure is not parsed natively.
func Search(r io.Reader) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("exif: search: %v", rec)
		}
	}()

	data, err = dsexif.SearchAndExtractExifWithReader(r)
	if err != nil {
		if eris.Is(err, dsexif.ErrNoExif) {
			return nil, ErrNoExif
		}
		return nil, eris.Wrap(err, "exif: search")
	}
	return data, nil
}

var ErrNoExif = eris.New("exif: no exif data")
