package exif

import (
	"bytes"
	"time"

	"github.com/rotisserie/eris"
	goexif "github.com/rwcarlsen/goexif/exif"
)

// CaptureTime returns DateTimeOriginal from a TIFF stream, falling back to
// the IFD0 DateTime.
func CaptureTime(tiff []byte) (time.Time, error) {
	x, err := goexif.Decode(bytes.NewReader(tiff))
	if err != nil {
		return time.Time{}, eris.Wrap(err, "exif: decode")
	}

	if tag, err := x.Get(goexif.DateTimeOriginal); err == nil {
		if str, err := tag.StringVal(); err == nil {
			parsed, err := time.ParseInLocation("2006:01:02 15:04:05", str, time.Local)
			if err == nil {
				return parsed, nil
			}
		}
	}

	if parsed, err := x.DateTime(); err == nil {
		return parsed, nil
	}

	return time.Time{}, eris.New("exif: datetime not found")
}
