package container

import (
	"bytes"
	"encoding/binary"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
	"exifai/internal/infra/exif"
)

const (
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP13 = 0xED

	// maxSegmentPayload is the largest payload a length-prefixed segment can carry.
	maxSegmentPayload = 0xFFFF - 2
)

var (
	exifAPP1Header = []byte("Exif\x00\x00")
	xmpExtHeader   = []byte("http://ns.adobe.com/xmp/extension/\x00")
)

type jpegSegment struct {
	marker  byte
	payload []byte
	offset  int64 // file offset of the payload
	bare    bool  // marker without a length field (RSTn, TEM)
}

// jpegFile holds every segment before the first SOS. tail is copied
// verbatim: it starts at the SOS marker and includes the scan data.
type jpegFile struct {
	segments []jpegSegment
	tail     []byte
}

func parseJPEG(data []byte) (*jpegFile, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, eris.New("jpeg: missing SOI marker")
	}
	f := &jpegFile{}
	pos := 2
	for pos < len(data) {
		if data[pos] != 0xFF {
			return nil, eris.Errorf("jpeg: expected marker at offset %d", pos)
		}
		// fill bytes
		for pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
		}
		if pos+1 >= len(data) {
			return nil, eris.New("jpeg: truncated marker")
		}
		marker := data[pos+1]
		if marker == markerSOS || marker == markerEOI {
			f.tail = data[pos:]
			return f, nil
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			f.segments = append(f.segments, jpegSegment{marker: marker, offset: int64(pos + 2), bare: true})
			pos += 2
			continue
		}
		if pos+4 > len(data) {
			return nil, eris.New("jpeg: truncated segment header")
		}
		length := int(binary.BigEndian.Uint16(data[pos+2:]))
		if length < 2 || pos+2+length > len(data) {
			return nil, eris.Errorf("jpeg: segment 0x%02X length %d exceeds file", marker, length)
		}
		f.segments = append(f.segments, jpegSegment{
			marker:  marker,
			payload: data[pos+4 : pos+2+length],
			offset:  int64(pos + 4),
		})
		pos += 2 + length
	}
	return f, nil
}

func (f *jpegFile) bytes() []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, markerSOI})
	for _, s := range f.segments {
		b.Write([]byte{0xFF, s.marker})
		if s.bare {
			continue
		}
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s.payload)+2))
		b.Write(l[:])
		b.Write(s.payload)
	}
	b.Write(f.tail)
	return b.Bytes()
}

func (s jpegSegment) isExif() bool {
	return s.marker == markerAPP1 && bytes.HasPrefix(s.payload, exifAPP1Header)
}

func (s jpegSegment) isXMP() bool {
	return s.marker == markerAPP1 && bytes.HasPrefix(s.payload, []byte(xmpAPP1Header))
}

func (s jpegSegment) isExtendedXMP() bool {
	return s.marker == markerAPP1 && bytes.HasPrefix(s.payload, xmpExtHeader)
}

func (s jpegSegment) isPhotoshop() bool {
	return s.marker == markerAPP13 && bytes.HasPrefix(s.payload, []byte(photoshopHeader))
}

func (f *jpegFile) find(match func(jpegSegment) bool) int {
	for i, s := range f.segments {
		if match(s) {
			return i
		}
	}
	return -1
}

// insertionPoint is just past the leading run of APP0/APP1 segments.
func (f *jpegFile) insertionPoint() int {
	i := 0
	for i < len(f.segments) && (f.segments[i].marker == markerAPP0 || f.segments[i].marker == markerAPP1) {
		i++
	}
	return i
}

// put replaces segment idx, or inserts seg at the insertion point when idx < 0.
func (f *jpegFile) put(idx int, seg jpegSegment) error {
	if len(seg.payload) > maxSegmentPayload {
		return eris.Errorf("jpeg: segment 0x%02X payload of %d bytes exceeds %d", seg.marker, len(seg.payload), maxSegmentPayload)
	}
	if idx >= 0 {
		f.segments[idx] = seg
		return nil
	}
	at := f.insertionPoint()
	f.segments = append(f.segments, jpegSegment{})
	copy(f.segments[at+1:], f.segments[at:])
	f.segments[at] = seg
	return nil
}

func readJPEG(data []byte) (domain.ExistingMetadata, error) {
	f, err := parseJPEG(data)
	if err != nil {
		return domain.ExistingMetadata{}, err
	}

	var meta domain.ExistingMetadata
	if i := f.find(jpegSegment.isExif); i >= 0 {
		seg := f.segments[i]
		// A broken EXIF block inside a sound JPEG still lets the other segments be read.
		if tree, err := exif.Parse(seg.payload[len(exifAPP1Header):]); err == nil {
			meta = tree.Metadata(seg.offset + int64(len(exifAPP1Header)))
		}
	}
	if i := f.find(jpegSegment.isXMP); i >= 0 {
		seg := f.segments[i]
		x := parseXMP(seg.payload[len(xmpAPP1Header):])
		meta = meta.Merge(xmpMetadata(x))
		meta.Locations = append(meta.Locations, domain.Location{
			Section: "APP1", Key: "xmp", Offset: seg.offset, Length: int64(len(seg.payload)),
		})
	}
	if i := f.find(jpegSegment.isPhotoshop); i >= 0 {
		seg := f.segments[i]
		meta = meta.Merge(xmpMetadata(iptcFields(seg.payload)))
		meta.Locations = append(meta.Locations, domain.Location{
			Section: "APP13", Key: "iptc", Offset: seg.offset, Length: int64(len(seg.payload)),
		})
	}
	return meta, nil
}

func xmpMetadata(x xmpFields) domain.ExistingMetadata {
	return domain.ExistingMetadata{Title: x.Title, Description: x.Description, Tags: domain.CleanList(x.Subject)}
}

// writeJPEG updates the EXIF, XMP and IPTC segments. Scan data is untouched.
func writeJPEG(data []byte, p payload) ([]byte, error) {
	f, err := parseJPEG(data)
	if err != nil {
		return nil, err
	}

	idx := f.find(jpegSegment.isExif)
	var tiff []byte
	if idx >= 0 {
		tiff = f.segments[idx].payload[len(exifAPP1Header):]
	}
	newTIFF, err := p.rewriteTIFF(tiff)
	if err != nil {
		return nil, eris.Wrap(err, "jpeg: exif")
	}
	exifPayload := append(append([]byte{}, exifAPP1Header...), newTIFF...)
	if err := f.put(idx, jpegSegment{marker: markerAPP1, payload: exifPayload}); err != nil {
		return nil, err
	}

	fields := p.xmp()
	if fields.empty() {
		return f.bytes(), nil
	}

	idx = f.find(jpegSegment.isXMP)
	packet := buildXMP(fields)
	if idx >= 0 {
		packet = injectXMP(string(f.segments[idx].payload[len(xmpAPP1Header):]), fields)
	}
	xmpPayload := append([]byte(xmpAPP1Header), packet...)
	if err := f.put(idx, jpegSegment{marker: markerAPP1, payload: xmpPayload}); err != nil {
		return nil, err
	}

	idx = f.find(jpegSegment.isPhotoshop)
	var existing []byte
	if idx >= 0 {
		existing = f.segments[idx].payload
	}
	if err := f.put(idx, jpegSegment{marker: markerAPP13, payload: buildPhotoshop(existing, fields)}); err != nil {
		return nil, err
	}
	return f.bytes(), nil
}

// clearJPEG drops EXIF, XMP (including extended XMP) and the IPTC resource.
// Other Photoshop resources stay in APP13.
func clearJPEG(data []byte) ([]byte, []string, error) {
	f, err := parseJPEG(data)
	if err != nil {
		return nil, nil, err
	}
	var removed []string
	kept := f.segments[:0:0]
	for _, s := range f.segments {
		switch {
		case s.isExif():
			removed = append(removed, "APP1 exif")
		case s.isXMP(), s.isExtendedXMP():
			removed = append(removed, "APP1 xmp")
		case s.isPhotoshop():
			stripped, found, other := stripIPTC(s.payload)
			if !found {
				kept = append(kept, s)
				continue
			}
			removed = append(removed, "APP13 iptc")
			if other {
				s.payload = stripped
				kept = append(kept, s)
			}
		default:
			kept = append(kept, s)
		}
	}
	if len(removed) == 0 {
		return data, nil, nil
	}
	f.segments = kept
	return f.bytes(), removed, nil
}
