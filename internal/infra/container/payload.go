package container

import (
	"encoding/binary"
	"strings"

	"exifai/internal/domain"
	"exifai/internal/infra/exif"
)

// payload is the set of values a strategy emits for one image, already
// filtered by the field plan.
type payload struct {
	Title       string
	Description string
	Tags        []string
	Subject     []string
	GPS         *domain.Coordinate
}

func payloadFor(req domain.WriteRequest) payload {
	var p payload
	gen := req.Generated
	if req.Plan.Title {
		p.Title = strings.TrimSpace(gen.Title)
	}
	if req.Plan.Description {
		p.Description = strings.TrimSpace(gen.Description)
	}
	if req.Plan.Tags {
		p.Tags = domain.CleanList(gen.Tags)
	}
	if req.Plan.Subject {
		p.Subject = domain.CleanList(gen.Subject)
	}
	if req.Plan.GPS {
		p.GPS = domain.DecideGPS(req.Existing.HasGPS(), gen.GPS)
	}
	return p
}

func (p payload) empty() bool {
	return p.Title == "" && p.Description == "" && len(p.Tags) == 0 && len(p.Subject) == 0 && p.GPS == nil
}

// outcome reports the fields carried by p. Callers drop fields their
// container could not hold before calling it.
func (p payload) outcome(skipped []string) domain.WriteOutcome {
	return domain.WriteOutcome{
		Title:       p.Title != "",
		Description: p.Description != "",
		Tags:        len(p.Tags) > 0,
		Subject:     len(p.Subject) > 0,
		GPS:         p.GPS != nil,
		Skipped:     skipped,
	}
}

// xmp maps the payload to XMP properties. Tags become dc:subject.
func (p payload) xmp() xmpFields {
	return xmpFields{Title: p.Title, Description: p.Description, Subject: p.Tags}
}

// exifUpdates maps the payload onto IFD entries.
func (p payload) exifUpdates(order binary.ByteOrder) []exif.Update {
	var u []exif.Update
	if p.Title != "" {
		u = append(u,
			exif.Update{Section: exif.SectionIFD0, Entry: exif.ASCIIEntry(exif.TagImageDescription, p.Title)},
			exif.Update{Section: exif.SectionIFD0, Entry: exif.XPEntry(exif.TagXPTitle, p.Title)},
		)
	}
	if p.Description != "" {
		u = append(u,
			exif.Update{Section: exif.SectionExif, Entry: exif.UserCommentEntry(p.Description)},
			exif.Update{Section: exif.SectionIFD0, Entry: exif.XPEntry(exif.TagXPComment, p.Description)},
		)
	}
	if len(p.Tags) > 0 {
		u = append(u, exif.Update{Section: exif.SectionIFD0, Entry: exif.XPEntry(exif.TagXPKeywords, strings.Join(p.Tags, "; "))})
	}
	if len(p.Subject) > 0 {
		u = append(u, exif.Update{Section: exif.SectionIFD0, Entry: exif.XPEntry(exif.TagXPSubject, strings.Join(p.Subject, "; "))})
	}
	if p.GPS != nil {
		for _, e := range exif.GPSEntries(order, p.GPS.Latitude, p.GPS.Longitude) {
			u = append(u, exif.Update{Section: exif.SectionGPS, Entry: e})
		}
	}
	return u
}

// rewriteTIFF applies the payload to a TIFF stream, creating one when tiff is nil.
func (p payload) rewriteTIFF(tiff []byte) ([]byte, error) {
	var tree *exif.Tree
	if len(tiff) == 0 {
		tree = exif.NewTree(binary.LittleEndian)
	} else {
		parsed, err := exif.Parse(tiff)
		if err != nil {
			return nil, err
		}
		tree = parsed
	}
	return tree.Rewrite(p.exifUpdates(tree.Order))
}
