package exif

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Update targets one IFD section with a new or replacement entry.
type Update struct {
	Section string
	Entry   NewEntry
}

type outEntry struct {
	tag, typ uint16
	count    uint32
	raw      [4]byte
	value    []byte // non-nil when the value is laid out in the new region
}

type outIFD struct {
	name    string
	entries []outEntry
	next    uint32
	offset  uint32
}

// Rewrite returns a new TIFF byte stream with updates applied. The original
// bytes are kept intact and the rebuilt IFDs plus any new out-of-line values
// are appended after them, so untouched entries (MakerNote, thumbnails, strip
// offsets) keep pointing at valid data. Layout is two-pass: offsets are
// assigned for every IFD and value first, then everything is serialised.
// With no updates the input is returned unchanged.
//
// The superseded IFDs stay in the stream as unreferenced bytes; their
// out-of-line values may still be shared with kept entries.
func (t *Tree) Rewrite(updates []Update) ([]byte, error) {
	if len(updates) == 0 {
		return t.Data, nil
	}
	if len(t.Data) < 8 {
		return nil, eris.New("exif: rewrite without header")
	}

	bySection := map[string][]NewEntry{}
	for _, u := range updates {
		switch u.Section {
		case SectionIFD0, SectionExif, SectionGPS:
		default:
			return nil, eris.Errorf("exif: unknown section %q", u.Section)
		}
		bySection[u.Section] = append(bySection[u.Section], u.Entry)
	}

	var emit []*outIFD
	var exifOut, gpsOut *outIFD

	if news, ok := bySection[SectionExif]; ok {
		exifOut = merge(SectionExif, t.Exif, news)
		emit = append(emit, exifOut)
	}
	if news, ok := bySection[SectionGPS]; ok {
		if t.HasGPS() {
			return nil, eris.New("exif: gps ifd already present")
		}
		news = append([]NewEntry{gpsVersionEntry()}, news...)
		gpsOut = merge(SectionGPS, nil, news)
		emit = append(emit, gpsOut)
	}

	ifd0 := merge(SectionIFD0, t.IFD0, bySection[SectionIFD0])
	// Pointer entries are reserved before layout and patched once the
	// sub-IFD offsets are known, so the IFD0 size does not change.
	if exifOut != nil {
		setPointer(ifd0, TagExifIFDPointer, 0, t)
	}
	if gpsOut != nil {
		setPointer(ifd0, TagGPSIFDPointer, 0, t)
	}
	emit = append(emit, ifd0)

	// Pass 1: assign offsets.
	cursor, err := layout(t.Order, emit, uint64(len(t.Data)))
	if err != nil {
		return nil, err
	}
	if exifOut != nil {
		setPointer(ifd0, TagExifIFDPointer, exifOut.offset, t)
	}
	if gpsOut != nil {
		setPointer(ifd0, TagGPSIFDPointer, gpsOut.offset, t)
	}

	// Pass 2: serialise.
	out := make([]byte, cursor)
	copy(out, t.Data)
	for _, d := range emit {
		pos := d.offset
		t.Order.PutUint16(out[pos:], uint16(len(d.entries)))
		pos += 2
		for _, e := range d.entries {
			t.Order.PutUint16(out[pos:], e.tag)
			t.Order.PutUint16(out[pos+2:], e.typ)
			t.Order.PutUint32(out[pos+4:], e.count)
			if e.value != nil && len(e.value) <= 4 {
				var inline [4]byte
				copy(inline[:], e.value)
				copy(out[pos+8:], inline[:])
			} else {
				copy(out[pos+8:], e.raw[:])
			}
			if e.value != nil && len(e.value) > 4 {
				copy(out[t.Order.Uint32(e.raw[:]):], e.value)
			}
			pos += 12
		}
		t.Order.PutUint32(out[pos:], d.next)
	}
	t.Order.PutUint32(out[4:8], ifd0.offset)
	return out, nil
}

// layout assigns offsets to every IFD and out-of-line value, starting at the
// word boundary after start, and returns the end of the new region.
func layout(order binary.ByteOrder, emit []*outIFD, start uint64) (uint64, error) {
	cursor := start + start&1
	for _, d := range emit {
		d.offset = uint32(cursor)
		cursor += uint64(2 + 12*len(d.entries) + 4)
		for i := range d.entries {
			e := &d.entries[i]
			if e.value != nil && len(e.value) > 4 {
				order.PutUint32(e.raw[:], uint32(cursor))
				cursor += uint64(len(e.value))
				cursor += cursor & 1
			}
		}
		if cursor > math.MaxUint32 {
			return 0, eris.New("exif: layout overflow")
		}
	}
	return cursor, nil
}

func merge(name string, orig *IFD, news []NewEntry) *outIFD {
	d := &outIFD{name: name}
	replaced := make(map[uint16]NewEntry, len(news))
	for _, n := range news {
		replaced[n.Tag] = n
	}
	if orig != nil {
		d.next = orig.Next
		for _, e := range orig.Entries {
			if _, ok := replaced[e.Tag]; ok {
				continue
			}
			d.entries = append(d.entries, outEntry{tag: e.Tag, typ: e.Type, count: e.Count, raw: e.Raw})
		}
	}
	for _, n := range replaced {
		value := n.Value
		if value == nil {
			value = []byte{}
		}
		d.entries = append(d.entries, outEntry{tag: n.Tag, typ: n.Type, count: n.Count, value: value})
	}
	sort.SliceStable(d.entries, func(i, j int) bool { return d.entries[i].tag < d.entries[j].tag })
	return d
}

func setPointer(d *outIFD, tag uint16, offset uint32, t *Tree) {
	var raw [4]byte
	t.Order.PutUint32(raw[:], offset)
	for i := range d.entries {
		if d.entries[i].tag == tag {
			d.entries[i] = outEntry{tag: tag, typ: TypeLong, count: 1, value: raw[:]}
			return
		}
	}
	d.entries = append(d.entries, outEntry{tag: tag, typ: TypeLong, count: 1, value: raw[:]})
	sort.SliceStable(d.entries, func(i, j int) bool { return d.entries[i].tag < d.entries[j].tag })
}
