package container

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	photoshopHeader = "Photoshop 3.0\x00"
	iptcResourceID  = 0x0404

	iptcCharset  = 90 // record 1
	iptcVersion  = 0
	iptcTitle    = 5
	iptcKeywords = 25
	iptcCaption  = 120

	iptcTitleMax   = 64
	iptcKeywordMax = 64
	iptcCaptionMax = 2000
)

var (
	bim = []byte("8BIM")

	// ISO 2022 escape sequence declaring UTF-8 in dataset 1:90.
	iptcUTF8 = []byte{0x1B, 0x25, 0x47}
)

type iptcDataset struct {
	record, id byte
	value      []byte
}

type psResource struct {
	id   uint16
	raw  []byte // full resource bytes including signature and padding
	data []byte
}

// parsePhotoshop walks the 8BIM resources of an APP13 payload.
func parsePhotoshop(payload []byte) []psResource {
	if !bytes.HasPrefix(payload, []byte(photoshopHeader)) {
		return nil
	}
	var out []psResource
	pos := len(photoshopHeader)
	for pos+12 <= len(payload) {
		if !bytes.Equal(payload[pos:pos+4], bim) {
			break
		}
		id := binary.BigEndian.Uint16(payload[pos+4:])
		nameLen := int(payload[pos+6])
		namePadded := nameLen + 1
		if namePadded%2 == 1 {
			namePadded++
		}
		dataStart := pos + 6 + namePadded
		if dataStart+4 > len(payload) {
			break
		}
		size := int(binary.BigEndian.Uint32(payload[dataStart:]))
		end := dataStart + 4 + size
		if end > len(payload) {
			break
		}
		padded := end + size%2
		if padded > len(payload) {
			padded = len(payload)
		}
		out = append(out, psResource{id: id, raw: payload[pos:padded], data: payload[dataStart+4 : end]})
		pos = padded
	}
	return out
}

func parseIPTC(data []byte) []iptcDataset {
	var out []iptcDataset
	pos := 0
	for pos+5 <= len(data) {
		if data[pos] != 0x1C {
			break
		}
		record, id := data[pos+1], data[pos+2]
		size := int(binary.BigEndian.Uint16(data[pos+3:]))
		pos += 5
		if size&0x8000 != 0 {
			// extended dataset: the low bits give the byte count of the length field
			n := size & 0x7FFF
			if n > 4 || pos+n > len(data) {
				break
			}
			size = 0
			for _, b := range data[pos : pos+n] {
				size = size<<8 | int(b)
			}
			pos += n
		}
		if pos+size > len(data) {
			break
		}
		out = append(out, iptcDataset{record: record, id: id, value: data[pos : pos+size]})
		pos += size
	}
	return out
}

// iptcFields reads title, caption and keywords from an APP13 payload. Values
// are UTF-8 when dataset 1:90 says so or when they validate as UTF-8, and
// Latin-1 otherwise.
func iptcFields(payload []byte) xmpFields {
	var f xmpFields
	for _, res := range parsePhotoshop(payload) {
		if res.id != iptcResourceID {
			continue
		}
		datasets := parseIPTC(res.data)
		utf8Marked := false
		for _, ds := range datasets {
			if ds.record == 1 && ds.id == iptcCharset && bytes.Equal(ds.value, iptcUTF8) {
				utf8Marked = true
			}
		}
		for _, ds := range datasets {
			if ds.record != 2 {
				continue
			}
			switch ds.id {
			case iptcTitle:
				f.Title = iptcString(ds.value, utf8Marked)
			case iptcCaption:
				f.Description = iptcString(ds.value, utf8Marked)
			case iptcKeywords:
				f.Subject = append(f.Subject, iptcString(ds.value, utf8Marked))
			}
		}
	}
	return f
}

func iptcString(value []byte, utf8Marked bool) string {
	if utf8Marked || utf8.Valid(value) {
		return string(value)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(value)
	if err != nil {
		return string(value)
	}
	return string(decoded)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// buildPhotoshop rebuilds an APP13 payload. Every 8BIM resource other than
// IPTC is kept byte-for-byte; inside IPTC, only the datasets being replaced
// are dropped.
func buildPhotoshop(existing []byte, f xmpFields) []byte {
	var out bytes.Buffer
	out.WriteString(photoshopHeader)

	var old []iptcDataset
	for _, res := range parsePhotoshop(existing) {
		if res.id == iptcResourceID {
			old = parseIPTC(res.data)
			continue
		}
		out.Write(res.raw)
	}

	needsUTF8 := !isASCII(f.Title) || !isASCII(f.Description)
	for _, k := range f.Subject {
		needsUTF8 = needsUTF8 || !isASCII(k)
	}

	// Datasets must stay in record order: envelope (1), application (2), rest.
	var envelope, application, trailer bytes.Buffer
	hasVersion := false
	for _, ds := range old {
		dst := &application
		switch {
		case ds.record < 2:
			if ds.id == iptcCharset && needsUTF8 {
				continue
			}
			dst = &envelope
		case ds.record > 2:
			dst = &trailer
		case ds.id == iptcVersion:
			hasVersion = true
		case ds.id == iptcTitle && f.Title != "",
			ds.id == iptcCaption && f.Description != "",
			ds.id == iptcKeywords && len(f.Subject) > 0:
			continue
		}
		writeDataset(dst, ds.record, ds.id, ds.value, len(ds.value))
	}
	if needsUTF8 {
		writeDataset(&envelope, 1, iptcCharset, iptcUTF8, len(iptcUTF8))
	}

	var iptc bytes.Buffer
	iptc.Write(envelope.Bytes())
	if !hasVersion {
		writeDataset(&iptc, 2, iptcVersion, []byte{0x00, 0x02}, 2)
	}
	iptc.Write(application.Bytes())
	if f.Title != "" {
		writeDataset(&iptc, 2, iptcTitle, []byte(f.Title), iptcTitleMax)
	}
	for _, k := range f.Subject {
		writeDataset(&iptc, 2, iptcKeywords, []byte(k), iptcKeywordMax)
	}
	if f.Description != "" {
		writeDataset(&iptc, 2, iptcCaption, []byte(f.Description), iptcCaptionMax)
	}
	iptc.Write(trailer.Bytes())

	out.Write(bim)
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], iptcResourceID)
	out.Write(hdr[:])
	out.Write([]byte{0x00, 0x00}) // empty pascal name, padded
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(iptc.Len()))
	out.Write(size[:])
	out.Write(iptc.Bytes())
	if iptc.Len()%2 == 1 {
		out.WriteByte(0)
	}
	return out.Bytes()
}

// stripIPTC removes the IPTC resource. found reports whether there was one,
// other whether any resource is left.
func stripIPTC(existing []byte) (out []byte, found, other bool) {
	var b bytes.Buffer
	b.WriteString(photoshopHeader)
	for _, res := range parsePhotoshop(existing) {
		if res.id == iptcResourceID {
			found = true
			continue
		}
		b.Write(res.raw)
		other = true
	}
	return b.Bytes(), found, other
}

// writeDataset emits one dataset, cutting value to at most limit bytes
// without splitting a UTF-8 sequence.
func writeDataset(b *bytes.Buffer, record, id byte, value []byte, limit int) {
	limit = min(limit, 0x7FFF)
	if len(value) > limit {
		for limit > 0 && !utf8.RuneStart(value[limit]) {
			limit--
		}
		value = value[:limit]
	}
	b.Write([]byte{0x1C, record, id})
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(value)))
	b.Write(l[:])
	b.Write(value)
}
