package container

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
	"exifai/internal/infra/exif"
)

// VP8X feature flags.
const (
	vp8xAlpha = 0x10
	vp8xEXIF  = 0x08
	vp8xXMP   = 0x04
)

type riffChunk struct {
	id     string
	data   []byte
	offset int64 // file offset of the chunk header
}

func parseWebP(data []byte) ([]riffChunk, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, eris.New("webp: bad RIFF header")
	}
	end := 8 + int(binary.LittleEndian.Uint32(data[4:8]))
	if end > len(data) {
		// tolerate a RIFF size larger than the file
		end = len(data)
	}
	var chunks []riffChunk
	pos := 12
	for pos+8 <= end {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		if pos+8+size > end {
			return nil, eris.Errorf("webp: chunk %q size %d exceeds file", id, size)
		}
		chunks = append(chunks, riffChunk{id: id, data: data[pos+8 : pos+8+size], offset: int64(pos)})
		pos += 8 + size + size%2
	}
	if len(chunks) == 0 {
		return nil, eris.New("webp: no chunks")
	}
	return chunks, nil
}

// buildWebP pads each chunk to even length and recomputes the RIFF size.
func buildWebP(chunks []riffChunk) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	for _, c := range chunks {
		body.WriteString(c.id)
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(c.data)))
		body.Write(size[:])
		body.Write(c.data)
		if len(c.data)%2 == 1 {
			body.WriteByte(0)
		}
	}
	out := make([]byte, 8, 8+body.Len())
	copy(out, "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(body.Len()))
	return append(out, body.Bytes()...)
}

// exifChunkTIFF strips the "Exif\0\0" prefix some encoders leave in the chunk.
func exifChunkTIFF(data []byte) []byte {
	return bytes.TrimPrefix(data, exifAPP1Header)
}

func findChunk(chunks []riffChunk, id string) int {
	for i, c := range chunks {
		if c.id == id {
			return i
		}
	}
	return -1
}

func readWebP(data []byte) (domain.ExistingMetadata, error) {
	chunks, err := parseWebP(data)
	if err != nil {
		return domain.ExistingMetadata{}, err
	}
	var meta domain.ExistingMetadata
	if i := findChunk(chunks, "EXIF"); i >= 0 {
		c := chunks[i]
		tiff := exifChunkTIFF(c.data)
		if tree, err := exif.Parse(tiff); err == nil {
			meta = tree.Metadata(c.offset + 8 + int64(len(c.data)-len(tiff)))
		}
	}
	if i := findChunk(chunks, "XMP "); i >= 0 {
		c := chunks[i]
		meta = meta.Merge(xmpMetadata(parseXMP(c.data)))
		meta.Locations = append(meta.Locations, domain.Location{
			Section: "RIFF", Key: "XMP ", Offset: c.offset, Length: int64(len(c.data)) + 8,
		})
	}
	return meta, nil
}

// canvasSize reads the canvas from a simple-format VP8 or VP8L frame.
func canvasSize(chunks []riffChunk) (w, h uint32, alpha bool, err error) {
	for _, c := range chunks {
		switch c.id {
		case "VP8 ":
			if len(c.data) < 10 || c.data[3] != 0x9D || c.data[4] != 0x01 || c.data[5] != 0x2A {
				return 0, 0, false, eris.New("webp: bad VP8 frame header")
			}
			w = uint32(binary.LittleEndian.Uint16(c.data[6:]) & 0x3FFF)
			h = uint32(binary.LittleEndian.Uint16(c.data[8:]) & 0x3FFF)
			return w, h, false, nil
		case "VP8L":
			if len(c.data) < 5 || c.data[0] != 0x2F {
				return 0, 0, false, eris.New("webp: bad VP8L header")
			}
			bits := binary.LittleEndian.Uint32(c.data[1:])
			w = bits&0x3FFF + 1
			h = (bits>>14)&0x3FFF + 1
			return w, h, bits>>28&1 == 1, nil
		}
	}
	return 0, 0, false, eris.New("webp: no image frame")
}

func newVP8X(w, h uint32, flags byte) riffChunk {
	data := make([]byte, 10)
	data[0] = flags
	putUint24(data[4:], w-1)
	putUint24(data[7:], h-1)
	return riffChunk{id: "VP8X", data: data}
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// ensureVP8X returns chunks with a leading VP8X, synthesising one from the
// frame header for simple-format files.
func ensureVP8X(chunks []riffChunk) ([]riffChunk, error) {
	if chunks[0].id == "VP8X" {
		if len(chunks[0].data) < 10 {
			return nil, eris.New("webp: short VP8X chunk")
		}
		return chunks, nil
	}
	w, h, alpha, err := canvasSize(chunks)
	if err != nil {
		return nil, err
	}
	var flags byte
	if alpha {
		flags |= vp8xAlpha
	}
	return append([]riffChunk{newVP8X(w, h, flags)}, chunks...), nil
}

func setFlag(chunks []riffChunk, flag byte, on bool) {
	if len(chunks) == 0 || chunks[0].id != "VP8X" || len(chunks[0].data) == 0 {
		return
	}
	data := append([]byte{}, chunks[0].data...)
	if on {
		data[0] |= flag
	} else {
		data[0] &^= flag
	}
	chunks[0].data = data
}

// putChunk replaces chunk id in place or appends it at the end, where the
// container layout expects EXIF and XMP.
func putChunk(chunks []riffChunk, id string, data []byte) []riffChunk {
	if i := findChunk(chunks, id); i >= 0 {
		chunks[i] = riffChunk{id: id, data: data}
		return chunks
	}
	return append(chunks, riffChunk{id: id, data: data})
}

func writeWebP(data []byte, p payload) ([]byte, error) {
	chunks, err := parseWebP(data)
	if err != nil {
		return nil, err
	}
	chunks, err = ensureVP8X(chunks)
	if err != nil {
		return nil, err
	}

	var tiff []byte
	if i := findChunk(chunks, "EXIF"); i >= 0 {
		tiff = exifChunkTIFF(chunks[i].data)
	}
	newTIFF, err := p.rewriteTIFF(tiff)
	if err != nil {
		return nil, eris.Wrap(err, "webp: exif")
	}
	chunks = putChunk(chunks, "EXIF", newTIFF)
	setFlag(chunks, vp8xEXIF, true)

	if fields := p.xmp(); !fields.empty() {
		packet := buildXMP(fields)
		if i := findChunk(chunks, "XMP "); i >= 0 {
			packet = injectXMP(string(chunks[i].data), fields)
		}
		chunks = putChunk(chunks, "XMP ", []byte(packet))
		setFlag(chunks, vp8xXMP, true)
	}
	return buildWebP(chunks), nil
}

func clearWebP(data []byte) ([]byte, []string, error) {
	chunks, err := parseWebP(data)
	if err != nil {
		return nil, nil, err
	}
	var removed []string
	kept := chunks[:0:0]
	for _, c := range chunks {
		if c.id == "EXIF" || c.id == "XMP " {
			removed = append(removed, "RIFF "+strings.TrimSpace(c.id))
			continue
		}
		kept = append(kept, c)
	}
	if len(removed) == 0 {
		return data, nil, nil
	}
	setFlag(kept, vp8xEXIF, false)
	setFlag(kept, vp8xXMP, false)
	return buildWebP(kept), removed, nil
}
