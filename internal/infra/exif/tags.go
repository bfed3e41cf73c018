package exif

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// TIFF field types.
const (
	TypeByte      uint16 = 1
	TypeASCII     uint16 = 2
	TypeShort     uint16 = 3
	TypeLong      uint16 = 4
	TypeRational  uint16 = 5
	TypeSByte     uint16 = 6
	TypeUndefined uint16 = 7
	TypeSShort    uint16 = 8
	TypeSLong     uint16 = 9
	TypeSRational uint16 = 10
	TypeFloat     uint16 = 11
	TypeDouble    uint16 = 12
	TypeIFD       uint16 = 13
)

const (
	TagImageDescription uint16 = 0x010E
	TagMake             uint16 = 0x010F
	TagModel            uint16 = 0x0110
	TagExifIFDPointer   uint16 = 0x8769
	TagGPSIFDPointer    uint16 = 0x8825
	TagUserComment      uint16 = 0x9286
	TagXPTitle          uint16 = 0x9C9B
	TagXPComment        uint16 = 0x9C9C
	TagXPKeywords       uint16 = 0x9C9E
	TagXPSubject        uint16 = 0x9C9F

	TagGPSVersionID    uint16 = 0x0000
	TagGPSLatitudeRef  uint16 = 0x0001
	TagGPSLatitude     uint16 = 0x0002
	TagGPSLongitudeRef uint16 = 0x0003
	TagGPSLongitude    uint16 = 0x0004
)

// Section names used for IFDs and in domain.Location records.
const (
	SectionIFD0 = "IFD0"
	SectionExif = "ExifIFD"
	SectionGPS  = "GPSIFD"
)

var (
	userCommentASCII   = []byte("ASCII\x00\x00\x00")
	userCommentUnicode = []byte("UNICODE\x00")
)

func typeSize(t uint16) uint64 {
	switch t {
	case TypeByte, TypeASCII, TypeSByte, TypeUndefined:
		return 1
	case TypeShort, TypeSShort:
		return 2
	case TypeLong, TypeSLong, TypeFloat, TypeIFD:
		return 4
	case TypeRational, TypeSRational, TypeDouble:
		return 8
	default:
		return 0
	}
}

// NewEntry is a field value to insert or replace, already encoded in the
// byte order of the tree it is written to.
type NewEntry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value []byte
}

func ASCIIEntry(tag uint16, s string) NewEntry {
	v := append([]byte(s), 0)
	return NewEntry{Tag: tag, Type: TypeASCII, Count: uint32(len(v)), Value: v}
}

// XPEntry encodes a Windows XP* tag: UTF-16LE, NUL terminated, BYTE typed.
func XPEntry(tag uint16, s string) NewEntry {
	v := EncodeUTF16LE(s)
	v = append(v, 0, 0)
	return NewEntry{Tag: tag, Type: TypeByte, Count: uint32(len(v)), Value: v}
}

func UserCommentEntry(s string) NewEntry {
	v := append(append([]byte{}, userCommentASCII...), s...)
	return NewEntry{Tag: TagUserComment, Type: TypeUndefined, Count: uint32(len(v)), Value: v}
}

// Rational is an unsigned TIFF RATIONAL.
type Rational struct {
	Num, Den uint32
}

func RationalEntry(order binary.ByteOrder, tag uint16, values ...Rational) NewEntry {
	v := make([]byte, 8*len(values))
	for i, r := range values {
		order.PutUint32(v[i*8:], r.Num)
		order.PutUint32(v[i*8+4:], r.Den)
	}
	return NewEntry{Tag: tag, Type: TypeRational, Count: uint32(len(values)), Value: v}
}

// GPSEntries encodes a coordinate as latitude/longitude refs and
// degree/minute/second rationals with seconds at 1/10000 precision.
func GPSEntries(order binary.ByteOrder, lat, lon float64) []NewEntry {
	latRef, lonRef := "N", "E"
	if lat < 0 {
		latRef = "S"
	}
	if lon < 0 {
		lonRef = "W"
	}
	return []NewEntry{
		ASCIIEntry(TagGPSLatitudeRef, latRef),
		RationalEntry(order, TagGPSLatitude, dms(lat)...),
		ASCIIEntry(TagGPSLongitudeRef, lonRef),
		RationalEntry(order, TagGPSLongitude, dms(lon)...),
	}
}

func gpsVersionEntry() NewEntry {
	return NewEntry{Tag: TagGPSVersionID, Type: TypeByte, Count: 4, Value: []byte{2, 2, 0, 0}}
}

// dms splits v into whole degrees, whole minutes and seconds at 1/10000
// precision. Rounding happens once on the total so seconds never reach 60.
func dms(v float64) []Rational {
	const (
		perSecond = 10000
		perMinute = 60 * perSecond
		perDegree = 60 * perMinute
	)
	total := uint64(math.Round(math.Abs(v) * perDegree))
	return []Rational{
		{Num: uint32(total / perDegree), Den: 1},
		{Num: uint32(total % perDegree / perMinute), Den: 1},
		{Num: uint32(total % perMinute), Den: perSecond},
	}
}

func EncodeUTF16LE(s string) []byte {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return out
}

func DecodeUTF16(b []byte, order binary.ByteOrder) string {
	endian := unicode.LittleEndian
	if order == binary.BigEndian {
		endian = unicode.BigEndian
	}
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return ""
	}
	return cleanString(string(out))
}

func cleanString(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func decodeUserComment(b []byte, order binary.ByteOrder) string {
	if len(b) < 8 {
		return cleanString(string(b))
	}
	prefix, body := b[:8], b[8:]
	switch {
	case bytes.Equal(prefix, userCommentASCII):
		return cleanString(string(body))
	case bytes.Equal(prefix, userCommentUnicode):
		return DecodeUTF16(body, order)
	case bytes.Equal(prefix, make([]byte, 8)):
		return cleanString(string(body))
	default:
		// JIS and vendor-specific prefixes
		return cleanString(string(body))
	}
}
