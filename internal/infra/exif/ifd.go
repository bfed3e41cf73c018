package exif

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

// Entry is one 12-byte IFD record. Raw holds the original value/offset field
// so untouched entries can be re-emitted verbatim.
type Entry struct {
	Tag         uint16
	Type        uint16
	Count       uint32
	Raw         [4]byte
	Value       []byte
	ValueOffset uint32
}

func (e Entry) size() uint64 {
	return typeSize(e.Type) * uint64(e.Count)
}

type IFD struct {
	Name    string
	Offset  uint32
	Entries []Entry
	Next    uint32
}

func (d *IFD) Find(tag uint16) (Entry, bool) {
	if d == nil {
		return Entry{}, false
	}
	for _, e := range d.Entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return Entry{}, false
}

// Tree is a parsed TIFF structure: IFD0 plus the Exif and GPS sub-IFDs.
// Data is the full original TIFF byte stream and is never modified.
type Tree struct {
	Order    binary.ByteOrder
	Data     []byte
	IFD0     *IFD
	Exif     *IFD
	GPS      *IFD
	Warnings []string
}

// IsTIFFHeader reports whether b starts with a TIFF byte-order mark and magic.
func IsTIFFHeader(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	switch string(b[:4]) {
	case "II*\x00", "MM\x00*":
		return true
	}
	return false
}

// Parse walks IFD0 and its Exif/GPS sub-IFDs. An unreadable IFD0 is an error;
// broken sub-IFDs are recorded as warnings and yield a partial tree.
func Parse(data []byte) (*Tree, error) {
	if len(data) < 8 {
		return nil, eris.New("exif: truncated tiff header")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, eris.Errorf("exif: bad byte order mark %q", data[:2])
	}
	switch magic := order.Uint16(data[2:4]); magic {
	case 42, 0x4F52, 0x5352, 0x0055: // TIFF, Olympus ORF, Panasonic RW2
	default:
		return nil, eris.Errorf("exif: bad tiff magic 0x%04X", magic)
	}

	t := &Tree{Order: order, Data: data}
	ifd0, err := t.parseIFD(SectionIFD0, order.Uint32(data[4:8]))
	if err != nil {
		return nil, eris.Wrap(err, "exif: ifd0")
	}
	t.IFD0 = ifd0

	if ptr, ok := ifd0.Find(TagExifIFDPointer); ok {
		if sub, err := t.parseIFD(SectionExif, order.Uint32(ptr.Raw[:])); err == nil {
			t.Exif = sub
		} else {
			t.Warnings = append(t.Warnings, err.Error())
		}
	}
	if ptr, ok := ifd0.Find(TagGPSIFDPointer); ok {
		if sub, err := t.parseIFD(SectionGPS, order.Uint32(ptr.Raw[:])); err == nil {
			t.GPS = sub
		} else {
			t.Warnings = append(t.Warnings, err.Error())
		}
	}
	return t, nil
}

// NewTree returns an empty tree ready to receive entries via Rewrite.
func NewTree(order binary.ByteOrder) *Tree {
	data := make([]byte, 8)
	if order == binary.BigEndian {
		copy(data, "MM")
	} else {
		copy(data, "II")
	}
	order.PutUint16(data[2:], 42)
	return &Tree{Order: order, Data: data}
}

func (t *Tree) parseIFD(name string, off uint32) (*IFD, error) {
	data := t.Data
	if off < 8 || uint64(off)+2 > uint64(len(data)) {
		return nil, fmt.Errorf("%s: offset %d out of range", name, off)
	}
	n := int(t.Order.Uint16(data[off:]))
	start := int(off) + 2
	if fit := (len(data) - start) / 12; n > fit {
		if fit == 0 {
			return nil, fmt.Errorf("%s: truncated entry table", name)
		}
		t.Warnings = append(t.Warnings, fmt.Sprintf("%s: %d of %d entries readable", name, fit, n))
		n = fit
	}

	ifd := &IFD{Name: name, Offset: off, Entries: make([]Entry, 0, n)}
	for i := 0; i < n; i++ {
		pos := start + i*12
		e := Entry{
			Tag:   t.Order.Uint16(data[pos:]),
			Type:  t.Order.Uint16(data[pos+2:]),
			Count: t.Order.Uint32(data[pos+4:]),
		}
		copy(e.Raw[:], data[pos+8:pos+12])

		size := e.size()
		switch {
		case size == 0:
			// unknown type; kept opaque
		case size <= 4:
			e.Value = data[pos+8 : pos+8+int(size)]
			e.ValueOffset = uint32(pos + 8)
		default:
			voff := t.Order.Uint32(e.Raw[:])
			if uint64(voff)+size <= uint64(len(data)) {
				e.Value = data[voff : uint64(voff)+size]
				e.ValueOffset = voff
			} else {
				t.Warnings = append(t.Warnings, fmt.Sprintf("%s: tag 0x%04X value out of range", name, e.Tag))
			}
		}
		ifd.Entries = append(ifd.Entries, e)
	}

	if nextPos := start + n*12; nextPos+4 <= len(data) {
		ifd.Next = t.Order.Uint32(data[nextPos:])
	}
	return ifd, nil
}

func (t *Tree) ascii(ifd *IFD, tag uint16) string {
	e, ok := ifd.Find(tag)
	if !ok || e.Value == nil {
		return ""
	}
	return cleanString(string(e.Value))
}

func (t *Tree) xp(tag uint16) string {
	e, ok := t.IFD0.Find(tag)
	if !ok || e.Value == nil {
		return ""
	}
	// XP* tags are UTF-16LE regardless of the file byte order.
	return DecodeUTF16(e.Value, binary.LittleEndian)
}

func (t *Tree) rationals(ifd *IFD, tag uint16) []float64 {
	e, ok := ifd.Find(tag)
	if !ok || e.Value == nil || (e.Type != TypeRational && e.Type != TypeSRational) {
		return nil
	}
	out := make([]float64, 0, e.Count)
	for i := 0; i+8 <= len(e.Value); i += 8 {
		num := t.Order.Uint32(e.Value[i:])
		den := t.Order.Uint32(e.Value[i+4:])
		if den == 0 {
			// 0/0 is a common firmware placeholder for an unknown component.
			out = append(out, 0)
			continue
		}
		if e.Type == TypeSRational {
			out = append(out, float64(int32(num))/float64(int32(den)))
		} else {
			out = append(out, float64(num)/float64(den))
		}
	}
	return out
}

func (t *Tree) coordinate() *domain.Coordinate {
	if t.GPS == nil {
		return nil
	}
	lat := t.rationals(t.GPS, TagGPSLatitude)
	lon := t.rationals(t.GPS, TagGPSLongitude)
	if len(lat) == 0 || len(lon) == 0 {
		return nil
	}
	c := domain.Coordinate{
		Latitude:  degrees(lat),
		Longitude: degrees(lon),
	}
	if t.ascii(t.GPS, TagGPSLatitudeRef) == "S" {
		c.Latitude = -c.Latitude
	}
	if t.ascii(t.GPS, TagGPSLongitudeRef) == "W" {
		c.Longitude = -c.Longitude
	}
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return nil
	}
	return &c
}

// degrees sums a degree/minute/second triple; missing components count as 0.
func degrees(dms []float64) float64 {
	var v float64
	for i, scale := range []float64{1, 60, 3600} {
		if i < len(dms) {
			v += dms[i] / scale
		}
	}
	return v
}

// HasGPS reports whether the file carries any GPS data, decodable or not: a
// GPS IFD pointer in IFD0, or a parsed GPS IFD holding a latitude or
// longitude.
func (t *Tree) HasGPS() bool {
	if _, ok := t.IFD0.Find(TagGPSIFDPointer); ok {
		return true
	}
	for _, tag := range []uint16{TagGPSLatitude, TagGPSLongitude} {
		if _, ok := t.GPS.Find(tag); ok {
			return true
		}
	}
	return false
}

// Metadata projects the tree onto the format-agnostic record. base is the
// file offset of the TIFF header, used for Location offsets.
func (t *Tree) Metadata(base int64) domain.ExistingMetadata {
	var m domain.ExistingMetadata
	if t.IFD0 == nil {
		return m
	}
	m.Make = t.ascii(t.IFD0, TagMake)
	m.Model = t.ascii(t.IFD0, TagModel)

	m.Title = t.ascii(t.IFD0, TagImageDescription)
	if m.Title == "" {
		m.Title = t.xp(TagXPTitle)
	}
	if e, ok := t.Exif.Find(TagUserComment); ok && e.Value != nil {
		m.Description = decodeUserComment(e.Value, t.Order)
	}
	if m.Description == "" {
		m.Description = t.xp(TagXPComment)
	}
	m.Tags = domain.SplitList(t.xp(TagXPKeywords))
	m.Subject = t.xp(TagXPSubject)
	m.GPS = t.coordinate()
	m.GPSPresent = t.HasGPS()

	for _, ifd := range []*IFD{t.IFD0, t.Exif, t.GPS} {
		if ifd == nil {
			continue
		}
		for _, e := range ifd.Entries {
			m.Locations = append(m.Locations, domain.Location{
				Section: ifd.Name,
				Key:     fmt.Sprintf("0x%04X", e.Tag),
				Offset:  base + int64(e.ValueOffset),
				Length:  int64(e.size()),
			})
		}
	}
	return m
}
