// Package testutil builds small, structurally valid image containers for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"
)

// Field is a raw TIFF entry used by BuildTIFF.
type Field struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value []byte
}

func ASCII(tag uint16, s string) Field {
	v := append([]byte(s), 0)
	return Field{Tag: tag, Type: 2, Count: uint32(len(v)), Value: v}
}

func Undefined(tag uint16, v []byte) Field {
	return Field{Tag: tag, Type: 7, Count: uint32(len(v)), Value: v}
}

func Rationals(order binary.ByteOrder, tag uint16, pairs ...uint32) Field {
	v := make([]byte, 4*len(pairs))
	for i, p := range pairs {
		order.PutUint32(v[i*4:], p)
	}
	return Field{Tag: tag, Type: 5, Count: uint32(len(pairs) / 2), Value: v}
}

// GPSFields encodes whole-degree coordinates with their reference tags.
func GPSFields(order binary.ByteOrder, latDeg, lonDeg uint32, south, west bool) []Field {
	latRef, lonRef := "N", "E"
	if south {
		latRef = "S"
	}
	if west {
		lonRef = "W"
	}
	return []Field{
		ASCII(1, latRef),
		Rationals(order, 2, latDeg, 1, 0, 1, 0, 1),
		ASCII(3, lonRef),
		Rationals(order, 4, lonDeg, 1, 0, 1, 0, 1),
	}
}

// VendorField is an opaque maker tag the codec does not understand.
var VendorField = Undefined(0xC4A5, []byte("VENDOR-BLOB-0123456789"))

// BuildTIFF lays out IFD0, an optional GPS IFD and an optional image strip.
func BuildTIFF(order binary.ByteOrder, ifd0 []Field, gps []Field, strip []byte) []byte {
	const (
		tagStripOffsets    = 0x0111
		tagStripByteCounts = 0x0117
		tagGPSPointer      = 0x8825
	)
	fields := append([]Field{}, ifd0...)
	if strip != nil {
		fields = append(fields,
			Field{Tag: tagStripOffsets, Type: 4, Count: 1, Value: make([]byte, 4)},
			Field{Tag: tagStripByteCounts, Type: 4, Count: 1, Value: u32(order, uint32(len(strip)))},
		)
	}
	if gps != nil {
		fields = append(fields, Field{Tag: tagGPSPointer, Type: 4, Count: 1, Value: make([]byte, 4)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Tag < fields[j].Tag })
	sort.Slice(gps, func(i, j int) bool { return gps[i].Tag < gps[j].Tag })

	ifd0Size := 2 + 12*len(fields) + 4
	gpsOff := 8 + ifd0Size
	gpsSize := 0
	if gps != nil {
		gpsSize = 2 + 12*len(gps) + 4
	}
	cursor := gpsOff + gpsSize

	var values bytes.Buffer
	valueOffsets := func(list []Field) []uint32 {
		offs := make([]uint32, len(list))
		for i, f := range list {
			if len(f.Value) > 4 {
				offs[i] = uint32(cursor + values.Len())
				values.Write(f.Value)
				if values.Len()%2 == 1 {
					values.WriteByte(0)
				}
			}
		}
		return offs
	}
	offs0 := valueOffsets(fields)
	offsG := valueOffsets(gps)
	stripOff := uint32(cursor + values.Len())

	for i := range fields {
		switch fields[i].Tag {
		case tagStripOffsets:
			fields[i].Value = u32(order, stripOff)
		case tagGPSPointer:
			fields[i].Value = u32(order, uint32(gpsOff))
		}
	}

	out := make([]byte, 8)
	if order == binary.BigEndian {
		copy(out, "MM")
	} else {
		copy(out, "II")
	}
	order.PutUint16(out[2:], 42)
	order.PutUint32(out[4:], 8)
	out = append(out, ifdBytes(order, fields, offs0)...)
	if gps != nil {
		out = append(out, ifdBytes(order, gps, offsG)...)
	}
	out = append(out, values.Bytes()...)
	out = append(out, strip...)
	return out
}

func ifdBytes(order binary.ByteOrder, fields []Field, offs []uint32) []byte {
	b := make([]byte, 2+12*len(fields)+4)
	order.PutUint16(b, uint16(len(fields)))
	for i, f := range fields {
		p := 2 + i*12
		order.PutUint16(b[p:], f.Tag)
		order.PutUint16(b[p+2:], f.Type)
		order.PutUint32(b[p+4:], f.Count)
		if len(f.Value) > 4 {
			order.PutUint32(b[p+8:], offs[i])
		} else {
			copy(b[p+8:p+12], f.Value)
		}
	}
	return b
}

func u32(order binary.ByteOrder, v uint32) []byte {
	b := make([]byte, 4)
	order.PutUint32(b, v)
	return b
}

// ScanData is the entropy-coded payload written after SOS by BuildJPEG.
var ScanData = []byte{0x12, 0x34, 0xFF, 0x00, 0x56, 0x78, 0x9A}

// BuildJPEG writes SOI, APP0, the given APPn payloads, a DQT, SOS and EOI.
// Each extra segment is marker byte + payload (without length).
func BuildJPEG(segments ...Segment) []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8})
	writeSegment(&b, 0xE0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00"))
	for _, s := range segments {
		writeSegment(&b, s.Marker, s.Payload)
	}
	writeSegment(&b, 0xDB, append([]byte{0x00}, bytes.Repeat([]byte{0x01}, 64)...))
	writeSegment(&b, 0xDA, []byte{0x01, 0x01, 0x00, 0x00, 0x3F, 0x00})
	b.Write(ScanData)
	b.Write([]byte{0xFF, 0xD9})
	return b.Bytes()
}

type Segment struct {
	Marker  byte
	Payload []byte
}

func ExifSegment(tiff []byte) Segment {
	return Segment{Marker: 0xE1, Payload: append([]byte("Exif\x00\x00"), tiff...)}
}

func XMPSegment(packet string) Segment {
	return Segment{Marker: 0xE1, Payload: append([]byte("http://ns.adobe.com/xap/1.0/\x00"), packet...)}
}

func writeSegment(b *bytes.Buffer, marker byte, payload []byte) {
	b.Write([]byte{0xFF, marker})
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(payload)+2))
	b.Write(l[:])
	b.Write(payload)
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// PixelData is the IDAT payload written by BuildPNG.
var PixelData = []byte("not-really-deflate-but-opaque")

// Chunk is a PNG chunk or a RIFF chunk, depending on the builder.
type Chunk struct {
	Type string
	Data []byte
}

// BuildPNG writes IHDR, extra chunks, one IDAT and IEND.
func BuildPNG(extra ...Chunk) []byte {
	var b bytes.Buffer
	b.Write(pngSignature)
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], 4)
	binary.BigEndian.PutUint32(ihdr[4:], 4)
	ihdr[8] = 8
	ihdr[9] = 2
	writeChunk(&b, "IHDR", ihdr)
	for _, c := range extra {
		writeChunk(&b, c.Type, c.Data)
	}
	writeChunk(&b, "IDAT", PixelData)
	writeChunk(&b, "IEND", nil)
	return b.Bytes()
}

func TextChunk(keyword, text string) Chunk {
	return Chunk{Type: "tEXt", Data: []byte(keyword + "\x00" + text)}
}

func ITXtChunk(keyword, text string) Chunk {
	return Chunk{Type: "iTXt", Data: []byte(keyword + "\x00\x00\x00\x00\x00" + text)}
}

func writeChunk(b *bytes.Buffer, typ string, data []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(data)))
	b.Write(l[:])
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	b.WriteString(typ)
	b.Write(data)
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], crc.Sum32())
	b.Write(c[:])
}

// VP8LFrame is a lossless bitstream header for a 4x3 image followed by opaque bytes.
var VP8LFrame = []byte{0x2F, 0x03, 0x80, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD}

// BuildWebP writes a RIFF/WEBP file with the given chunks, padding odd sizes.
func BuildWebP(chunks ...Chunk) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	for _, c := range chunks {
		body.WriteString(c.Type)
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(c.Data)))
		body.Write(l[:])
		body.Write(c.Data)
		if len(c.Data)%2 == 1 {
			body.WriteByte(0)
		}
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(body.Len()))
	out.Write(size[:])
	out.Write(body.Bytes())
	return out.Bytes()
}
