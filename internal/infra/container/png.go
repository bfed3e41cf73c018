package container

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
	"exifai/internal/infra/exif"
)

// PNG text keywords this tool reads and writes.
const (
	keywordTitle       = "Title"
	keywordDescription = "Description"
	keywordKeywords    = "Keywords"
	keywordSubject     = "Subject"
)

type pngChunk struct {
	typ    string
	data   []byte
	offset int64 // file offset of the chunk length field
}

type pngFile struct {
	chunks []pngChunk
	// trailing bytes after IEND are kept as-is
	trailer []byte
}

func parsePNG(data []byte) (*pngFile, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, eris.New("png: bad signature")
	}
	f := &pngFile{}
	pos := len(pngSignature)
	for pos < len(data) {
		if pos+8 > len(data) {
			return nil, eris.Errorf("png: truncated chunk header at offset %d", pos)
		}
		length := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		end := pos + 8 + length + 4
		if length < 0 || end > len(data) || end < pos {
			return nil, eris.Errorf("png: chunk %q length %d exceeds file", typ, length)
		}
		f.chunks = append(f.chunks, pngChunk{typ: typ, data: data[pos+8 : pos+8+length], offset: int64(pos)})
		pos = end
		if typ == "IEND" {
			f.trailer = data[pos:]
			break
		}
	}
	if len(f.chunks) == 0 || f.chunks[0].typ != "IHDR" {
		return nil, eris.New("png: missing IHDR")
	}
	return f, nil
}

func (f *pngFile) bytes() []byte {
	var b bytes.Buffer
	b.Write(pngSignature)
	for _, c := range f.chunks {
		writePNGChunk(&b, c.typ, c.data)
	}
	b.Write(f.trailer)
	return b.Bytes()
}

func writePNGChunk(b *bytes.Buffer, typ string, data []byte) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	b.Write(hdr[:])
	b.WriteString(typ)
	b.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	binary.BigEndian.PutUint32(hdr[:], crc.Sum32())
	b.Write(hdr[:])
}

// textChunk decodes tEXt, zTXt and iTXt into keyword and UTF-8 text.
func textChunk(c pngChunk) (keyword, text string, ok bool) {
	nul := bytes.IndexByte(c.data, 0)
	if nul < 0 {
		return "", "", false
	}
	keyword = string(c.data[:nul])
	rest := c.data[nul+1:]
	switch c.typ {
	case "tEXt":
		return keyword, latin1(rest), true
	case "zTXt":
		if len(rest) < 1 {
			return "", "", false
		}
		inflated, err := inflate(rest[1:])
		if err != nil {
			return "", "", false
		}
		return keyword, latin1(inflated), true
	case "iTXt":
		if len(rest) < 2 {
			return "", "", false
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// language tag and translated keyword
		for i := 0; i < 2; i++ {
			n := bytes.IndexByte(rest, 0)
			if n < 0 {
				return "", "", false
			}
			rest = rest[n+1:]
		}
		if compressed {
			inflated, err := inflate(rest)
			if err != nil {
				return "", "", false
			}
			rest = inflated
		}
		return keyword, string(rest), true
	}
	return "", "", false
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func isTextChunk(typ string) bool {
	return typ == "tEXt" || typ == "zTXt" || typ == "iTXt"
}

func isTrackedKeyword(k string) bool {
	switch k {
	case keywordTitle, keywordDescription, keywordKeywords, keywordSubject, xmpPNGKeyword:
		return true
	}
	return false
}

// iTXtChunk builds an uncompressed iTXt with no language tag.
func iTXtChunk(keyword, text string) pngChunk {
	data := make([]byte, 0, len(keyword)+5+len(text))
	data = append(data, keyword...)
	data = append(data, 0, 0, 0, 0, 0)
	data = append(data, text...)
	return pngChunk{typ: "iTXt", data: data}
}

func readPNG(data []byte) (domain.ExistingMetadata, error) {
	f, err := parsePNG(data)
	if err != nil {
		return domain.ExistingMetadata{}, err
	}
	var meta domain.ExistingMetadata
	var xmp xmpFields
	for _, c := range f.chunks {
		if c.typ == "eXIf" {
			if tree, err := exif.Parse(c.data); err == nil {
				meta = meta.Merge(tree.Metadata(c.offset + 8))
			}
			continue
		}
		if !isTextChunk(c.typ) {
			continue
		}
		keyword, text, ok := textChunk(c)
		if !ok || !isTrackedKeyword(keyword) {
			continue
		}
		switch keyword {
		case keywordTitle:
			meta.Title = strings.TrimSpace(text)
		case keywordDescription:
			meta.Description = strings.TrimSpace(text)
		case keywordKeywords:
			meta.Tags = domain.SplitList(text)
		case keywordSubject:
			meta.Subject = strings.TrimSpace(text)
		case xmpPNGKeyword:
			xmp = parseXMP([]byte(text))
		}
		meta.Locations = append(meta.Locations, domain.Location{
			Section: c.typ, Key: keyword, Offset: c.offset, Length: int64(len(c.data)) + 12,
		})
	}
	return meta.Merge(xmpMetadata(xmp)), nil
}

// writePNG drops the tracked text chunks for the fields being written and
// inserts fresh iTXt chunks before the first IDAT. GPS goes into eXIf.
func writePNG(data []byte, p payload) ([]byte, error) {
	f, err := parsePNG(data)
	if err != nil {
		return nil, err
	}

	replacing := map[string]bool{
		keywordTitle:       p.Title != "",
		keywordDescription: p.Description != "",
		keywordKeywords:    len(p.Tags) > 0,
		keywordSubject:     len(p.Subject) > 0,
		xmpPNGKeyword:      !p.xmp().empty(),
	}

	var existingXMP string
	var existingExif []byte
	kept := make([]pngChunk, 0, len(f.chunks)+6)
	for _, c := range f.chunks {
		if c.typ == "eXIf" && p.GPS != nil {
			existingExif = c.data
			continue
		}
		if isTextChunk(c.typ) {
			if keyword, text, ok := textChunk(c); ok && replacing[keyword] {
				if keyword == xmpPNGKeyword {
					existingXMP = text
				}
				continue
			}
		}
		kept = append(kept, c)
	}

	var inserts []pngChunk
	if p.GPS != nil {
		tiff, err := payload{GPS: p.GPS}.rewriteTIFF(existingExif)
		if err != nil {
			return nil, eris.Wrap(err, "png: eXIf")
		}
		inserts = append(inserts, pngChunk{typ: "eXIf", data: tiff})
	}
	if p.Title != "" {
		inserts = append(inserts, iTXtChunk(keywordTitle, p.Title))
	}
	if p.Description != "" {
		inserts = append(inserts, iTXtChunk(keywordDescription, p.Description))
	}
	if len(p.Tags) > 0 {
		inserts = append(inserts, iTXtChunk(keywordKeywords, strings.Join(p.Tags, ", ")))
	}
	if len(p.Subject) > 0 {
		inserts = append(inserts, iTXtChunk(keywordSubject, strings.Join(p.Subject, "; ")))
	}
	if fields := p.xmp(); !fields.empty() {
		packet := buildXMP(fields)
		if existingXMP != "" {
			packet = injectXMP(existingXMP, fields)
		}
		inserts = append(inserts, iTXtChunk(xmpPNGKeyword, packet))
	}

	at := len(kept) - 1 // before IEND when there is no IDAT
	for i, c := range kept {
		if c.typ == "IDAT" {
			at = i
			break
		}
	}
	if at < 1 {
		at = 1
	}
	out := make([]pngChunk, 0, len(kept)+len(inserts))
	out = append(out, kept[:at]...)
	out = append(out, inserts...)
	out = append(out, kept[at:]...)
	f.chunks = out
	return f.bytes(), nil
}

func clearPNG(data []byte) ([]byte, []string, error) {
	f, err := parsePNG(data)
	if err != nil {
		return nil, nil, err
	}
	var removed []string
	kept := f.chunks[:0:0]
	for _, c := range f.chunks {
		if c.typ == "eXIf" {
			removed = append(removed, "eXIf")
			continue
		}
		if isTextChunk(c.typ) {
			if keyword, _, ok := textChunk(c); ok && isTrackedKeyword(keyword) {
				removed = append(removed, c.typ+" "+keyword)
				continue
			}
		}
		kept = append(kept, c)
	}
	if len(removed) == 0 {
		return data, nil, nil
	}
	f.chunks = kept
	return f.bytes(), removed, nil
}
