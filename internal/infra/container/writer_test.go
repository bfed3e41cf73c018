package container

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
	"exifai/internal/infra/exif"
	"exifai/internal/infra/fs"
	"exifai/internal/testutil"
)

func newCodec() (*Reader, *Writer) {
	files := fs.NewOSFS()
	return NewReader(files), NewWriter(files, fs.NewBackupManager(files, nil), nil)
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func fileHash(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return sha256.Sum256(data)
}

func xpField(tag uint16, s string) testutil.Field {
	e := exif.XPEntry(tag, s)
	return testutil.Field{Tag: e.Tag, Type: e.Type, Count: e.Count, Value: e.Value}
}

func generated() domain.GeneratedMetadata {
	return domain.GeneratedMetadata{
		Title:       "Harbour at dawn",
		Description: "Fishing boats moored in a calm harbour under morning fog.",
		Tags:        []string{"harbour", "boats", "fog"},
		Subject:     []string{"boats"},
		GPS:         &domain.Coordinate{Latitude: 60.3913, Longitude: 5.3221},
	}
}

// plan runs the shared eligibility rule the way the pipeline does.
func plan(t *testing.T, r *Reader, path string, kind domain.ContainerKind, gen domain.GeneratedMetadata, sel domain.FieldSelection) domain.WriteRequest {
	t.Helper()
	existing, err := r.Read(context.Background(), path, kind)
	require.NoError(t, err)
	return domain.WriteRequest{
		Path:      path,
		Kind:      kind,
		Existing:  existing,
		Generated: gen,
		Plan:      domain.PlanFields(existing, gen, sel),
		Overwrite: sel.OverwriteExisting,
	}
}

func cameraJPEG() []byte {
	order := binary.LittleEndian
	tiff := testutil.BuildTIFF(order,
		[]testutil.Field{testutil.ASCII(exif.TagMake, "Canon"), testutil.ASCII(exif.TagModel, "EOS R6"), testutil.VendorField},
		nil, nil,
	)
	return testutil.BuildJPEG(testutil.ExifSegment(tiff))
}

func TestJPEGRoundTripWithoutEligibleFields(t *testing.T) {
	reader, writer := newCodec()
	original := cameraJPEG()
	path := writeTemp(t, "photo.jpg", original)

	before, err := reader.Read(context.Background(), path, domain.JPEG)
	require.NoError(t, err)

	req := plan(t, reader, path, domain.JPEG, generated(), domain.FieldSelection{})
	outcome, err := writer.Write(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, outcome.Any())

	after, err := reader.Read(context.Background(), path, domain.JPEG)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestJPEGWritePreservesUntouchedData(t *testing.T) {
	reader, writer := newCodec()
	original := cameraJPEG()
	path := writeTemp(t, "photo.jpg", original)

	req := plan(t, reader, path, domain.JPEG, generated(), domain.AllFields())
	req.Backup = true
	outcome, err := writer.Write(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "description", "tags", "subject", "gps"}, outcome.Fields())
	assert.Equal(t, path+".bak", outcome.BackupPath)

	updated, err := os.ReadFile(path)
	require.NoError(t, err)

	before, err := parseJPEG(original)
	require.NoError(t, err)
	after, err := parseJPEG(updated)
	require.NoError(t, err)
	assert.Equal(t, before.tail, after.tail, "scan data must be byte-identical")

	meta, err := reader.Read(context.Background(), path, domain.JPEG)
	require.NoError(t, err)
	assert.Equal(t, "Canon", meta.Make)
	assert.Equal(t, "EOS R6", meta.Model)
	assert.Equal(t, "Harbour at dawn", meta.Title)
	assert.Equal(t, "Fishing boats moored in a calm harbour under morning fog.", meta.Description)
	assert.Equal(t, []string{"harbour", "boats", "fog"}, meta.Tags)
	assert.Equal(t, "boats", meta.Subject)
	require.NotNil(t, meta.GPS)
	assert.InDelta(t, 60.3913, meta.GPS.Latitude, 1e-4)
	assert.InDelta(t, 5.3221, meta.GPS.Longitude, 1e-4)

	idx := after.find(jpegSegment.isExif)
	require.GreaterOrEqual(t, idx, 0)
	tree, err := exif.Parse(after.segments[idx].payload[len(exifAPP1Header):])
	require.NoError(t, err)
	vendor, ok := tree.IFD0.Find(testutil.VendorField.Tag)
	require.True(t, ok)
	assert.Equal(t, testutil.VendorField.Value, vendor.Value)

	assert.GreaterOrEqual(t, after.find(jpegSegment.isXMP), 0)
	assert.GreaterOrEqual(t, after.find(jpegSegment.isPhotoshop), 0)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, original, backup)
}

func TestJPEGWithoutExifGetsNewSegmentAfterAPP0(t *testing.T) {
	_, writer := newCodec()
	path := writeTemp(t, "plain.jpg", testutil.BuildJPEG())

	_, err := writer.Write(context.Background(), domain.WriteRequest{
		Path:      path,
		Kind:      domain.JPEG,
		Generated: domain.GeneratedMetadata{Title: "Quiet street"},
		Plan:      domain.FieldPlan{Title: true},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	f, err := parseJPEG(data)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(f.segments), 2)
	assert.Equal(t, byte(markerAPP0), f.segments[0].marker)
	assert.True(t, f.segments[1].isExif())
}

func TestOverwritePolicyPerField(t *testing.T) {
	order := binary.LittleEndian
	tiff := testutil.BuildTIFF(order, []testutil.Field{
		testutil.ASCII(exif.TagImageDescription, "Old title"),
		xpField(exif.TagXPComment, "Old description"),
		xpField(exif.TagXPKeywords, "old; tags"),
		xpField(exif.TagXPSubject, "Old subject"),
	}, nil, nil)
	original := testutil.BuildJPEG(testutil.ExifSegment(tiff))

	gen := domain.GeneratedMetadata{
		Title:       "New title",
		Description: "New description",
		Tags:        []string{"new", "tags"},
		Subject:     []string{"New subject"},
	}

	fields := []struct {
		name   string
		sel    domain.FieldSelection
		value  func(domain.ExistingMetadata) interface{}
		oldVal interface{}
		newVal interface{}
	}{
		{"title", domain.FieldSelection{WriteTitle: true},
			func(m domain.ExistingMetadata) interface{} { return m.Title }, "Old title", "New title"},
		{"description", domain.FieldSelection{WriteDescription: true},
			func(m domain.ExistingMetadata) interface{} { return m.Description }, "Old description", "New description"},
		{"tags", domain.FieldSelection{WriteTags: true},
			func(m domain.ExistingMetadata) interface{} { return m.Tags }, []string{"old", "tags"}, []string{"new", "tags"}},
		{"subject", domain.FieldSelection{WriteSubject: true},
			func(m domain.ExistingMetadata) interface{} { return m.Subject }, "Old subject", "New subject"},
	}

	for _, field := range fields {
		for _, overwrite := range []bool{false, true} {
			name := field.name + "/keep"
			if overwrite {
				name = field.name + "/overwrite"
			}
			t.Run(name, func(t *testing.T) {
				reader, writer := newCodec()
				path := writeTemp(t, "photo.jpg", original)

				sel := field.sel
				sel.OverwriteExisting = overwrite
				_, err := writer.Write(context.Background(), plan(t, reader, path, domain.JPEG, gen, sel))
				require.NoError(t, err)

				meta, err := reader.Read(context.Background(), path, domain.JPEG)
				require.NoError(t, err)
				if overwrite {
					assert.Equal(t, field.newVal, field.value(meta))
				} else {
					assert.Equal(t, field.oldVal, field.value(meta))
				}
			})
		}
	}
}

func TestExistingGPSSurvivesOverwrite(t *testing.T) {
	order := binary.BigEndian
	tiff := testutil.BuildTIFF(order, []testutil.Field{testutil.ASCII(exif.TagMake, "Nikon")},
		testutil.GPSFields(order, 35, 139, false, false), nil)
	path := writeTemp(t, "tokyo.jpg", testutil.BuildJPEG(testutil.ExifSegment(tiff)))
	reader, writer := newCodec()

	sel := domain.AllFields()
	sel.OverwriteExisting = true
	req := plan(t, reader, path, domain.JPEG, generated(), sel)
	assert.False(t, req.Plan.GPS)

	outcome, err := writer.Write(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, outcome.GPS)
	assert.Contains(t, outcome.Skipped, "gps (existing coordinates)")

	meta, err := reader.Read(context.Background(), path, domain.JPEG)
	require.NoError(t, err)
	require.NotNil(t, meta.GPS)
	assert.InDelta(t, 35, meta.GPS.Latitude, 1e-9)
	assert.InDelta(t, 139, meta.GPS.Longitude, 1e-9)
}

func TestUndecodableGPSIsNeverReplaced(t *testing.T) {
	order := binary.BigEndian
	placeholder := testutil.BuildTIFF(order, []testutil.Field{testutil.ASCII(exif.TagMake, "Sony")},
		[]testutil.Field{
			testutil.ASCII(exif.TagGPSLatitudeRef, "N"),
			testutil.Rationals(order, exif.TagGPSLatitude, 35, 1, 40, 1, 0, 0),
			testutil.ASCII(exif.TagGPSLongitudeRef, "E"),
			testutil.Rationals(order, exif.TagGPSLongitude, 139, 1, 45, 1, 0, 0),
		}, nil)
	brokenPointer := testutil.BuildTIFF(order, []testutil.Field{
		testutil.ASCII(exif.TagMake, "Sony"),
		{Tag: exif.TagGPSIFDPointer, Type: exif.TypeLong, Count: 1, Value: []byte{0x00, 0x00, 0xFF, 0xF0}},
	}, nil, nil)

	cases := []struct {
		name string
		tiff []byte
	}{
		{"zero denominator", placeholder},
		{"unreadable gps ifd", brokenPointer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, "tokyo.jpg", testutil.BuildJPEG(testutil.ExifSegment(tc.tiff)))
			reader, writer := newCodec()
			before, err := reader.Read(context.Background(), path, domain.JPEG)
			require.NoError(t, err)

			sel := domain.AllFields()
			sel.OverwriteExisting = true
			req := plan(t, reader, path, domain.JPEG, generated(), sel)
			assert.False(t, req.Plan.GPS)

			outcome, err := writer.Write(context.Background(), req)
			require.NoError(t, err)
			assert.False(t, outcome.GPS)
			assert.True(t, outcome.Title)
			assert.Contains(t, outcome.Skipped, "gps (existing coordinates)")

			after, err := reader.Read(context.Background(), path, domain.JPEG)
			require.NoError(t, err)
			assert.Equal(t, "Harbour at dawn", after.Title)
			assert.True(t, after.HasGPS())
			assert.Equal(t, before.GPS, after.GPS)
		})
	}
}

func TestRoundTripWithoutEligibleFields(t *testing.T) {
	order := binary.LittleEndian
	exifTIFF := testutil.BuildTIFF(order, []testutil.Field{testutil.ASCII(exif.TagMake, "Fujifilm")}, nil, nil)
	cases := []struct {
		name string
		file string
		data []byte
		kind domain.ContainerKind
	}{
		{"png", "image.png", testutil.BuildPNG(testutil.TextChunk("Title", "Kept"), testutil.Chunk{Type: "eXIf", Data: exifTIFF}), domain.PNG},
		{"webp", "image.webp", testutil.BuildWebP(
			testutil.Chunk{Type: "VP8L", Data: testutil.VP8LFrame},
			testutil.Chunk{Type: "EXIF", Data: exifTIFF},
		), domain.WebP},
		{"tiff", "scan.tif", testutil.BuildTIFF(order,
			[]testutil.Field{testutil.ASCII(exif.TagMake, "Phase One"), testutil.VendorField},
			nil, []byte("strip")), domain.TIFF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader, writer := newCodec()
			path := writeTemp(t, tc.file, tc.data)

			before, err := reader.Read(context.Background(), path, tc.kind)
			require.NoError(t, err)
			assert.False(t, before.IsEmpty())

			req := plan(t, reader, path, tc.kind, generated(), domain.FieldSelection{})
			outcome, err := writer.Write(context.Background(), req)
			require.NoError(t, err)
			assert.False(t, outcome.Any())

			after, err := reader.Read(context.Background(), path, tc.kind)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tc.data, got)
		})
	}
}

func TestTIFFWritePreservesStripAndVendorTag(t *testing.T) {
	order := binary.BigEndian
	strip := []byte("RAW-SENSOR-STRIP-0123")
	original := testutil.BuildTIFF(order,
		[]testutil.Field{testutil.ASCII(exif.TagMake, "Hasselblad"), testutil.VendorField},
		nil, strip,
	)
	path := writeTemp(t, "scan.tif", original)
	reader, writer := newCodec()

	req := plan(t, reader, path, domain.TIFF, generated(), domain.AllFields())
	req.Backup = true
	outcome, err := writer.Write(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "description", "tags", "subject", "gps"}, outcome.Fields())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tree, err := exif.Parse(data)
	require.NoError(t, err)
	assert.Empty(t, tree.Warnings)

	vendor, ok := tree.IFD0.Find(testutil.VendorField.Tag)
	require.True(t, ok)
	assert.Equal(t, testutil.VendorField.Value, vendor.Value)

	stripEntry, ok := tree.IFD0.Find(0x0111)
	require.True(t, ok)
	off := order.Uint32(stripEntry.Raw[:])
	assert.Equal(t, strip, data[off:off+uint32(len(strip))])

	meta, err := reader.Read(context.Background(), path, domain.TIFF)
	require.NoError(t, err)
	assert.Equal(t, "Hasselblad", meta.Make)
	assert.Equal(t, "Harbour at dawn", meta.Title)
	assert.Equal(t, "Fishing boats moored in a calm harbour under morning fog.", meta.Description)
	require.NotNil(t, meta.GPS)
	assert.InDelta(t, 60.3913, meta.GPS.Latitude, 1e-4)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, original, backup)
}

func TestDryRunLeavesNoTrace(t *testing.T) {
	cases := []struct {
		name string
		file string
		data []byte
		kind domain.ContainerKind
	}{
		{"jpeg", "photo.jpg", cameraJPEG(), domain.JPEG},
		{"png", "photo.png", testutil.BuildPNG(), domain.PNG},
		{"webp", "photo.webp", testutil.BuildWebP(testutil.Chunk{Type: "VP8L", Data: testutil.VP8LFrame}), domain.WebP},
		{"sidecar", "photo.cr3", []byte("opaque raw bytes"), domain.Sidecar("cr3")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader, writer := newCodec()
			dryPath := writeTemp(t, tc.file, tc.data)
			livePath := writeTemp(t, tc.file, tc.data)
			hash := fileHash(t, dryPath)

			dry := plan(t, reader, dryPath, tc.kind, generated(), domain.AllFields())
			dry.DryRun = true
			dry.Backup = true
			dryOutcome, err := writer.Write(context.Background(), dry)
			require.NoError(t, err)

			assert.Equal(t, hash, fileHash(t, dryPath))
			assert.NoFileExists(t, dryPath+".bak")
			assert.NoFileExists(t, domain.SidecarPath(dryPath))

			live := plan(t, reader, livePath, tc.kind, generated(), domain.AllFields())
			liveOutcome, err := writer.Write(context.Background(), live)
			require.NoError(t, err)

			assert.Equal(t, liveOutcome.Fields(), dryOutcome.Fields())
			assert.Equal(t, liveOutcome.Skipped, dryOutcome.Skipped)
			assert.Equal(t, filepath.Base(liveOutcome.SidecarPath), filepath.Base(dryOutcome.SidecarPath))
			assert.True(t, dryOutcome.Any())
		})
	}
}

func TestClearTIFFIsUnsupported(t *testing.T) {
	data := testutil.BuildTIFF(binary.LittleEndian, []testutil.Field{testutil.ASCII(exif.TagMake, "Phase One")}, nil, []byte("strip"))
	path := writeTemp(t, "scan.tif", data)
	_, writer := newCodec()

	_, err := writer.Clear(context.Background(), domain.ClearRequest{Path: path, Kind: domain.TIFF, Backup: true})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.UnsupportedOperation))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NoFileExists(t, path+".bak")
}

func TestClearJPEGRemovesMetadataSegments(t *testing.T) {
	tiff := testutil.BuildTIFF(binary.LittleEndian, []testutil.Field{testutil.ASCII(exif.TagMake, "Canon")}, nil, nil)
	original := testutil.BuildJPEG(testutil.ExifSegment(tiff), testutil.XMPSegment(buildXMP(xmpFields{Title: "x"})))
	path := writeTemp(t, "photo.jpg", original)
	reader, writer := newCodec()

	outcome, err := writer.Clear(context.Background(), domain.ClearRequest{Path: path, Kind: domain.JPEG, Backup: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"APP1 exif", "APP1 xmp"}, outcome.Removed)
	assert.Equal(t, path+".bak", outcome.BackupPath)

	meta, err := reader.Read(context.Background(), path, domain.JPEG)
	require.NoError(t, err)
	assert.True(t, meta.IsEmpty())

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, original, backup)
}

func TestJPEGSegmentLimit(t *testing.T) {
	original := testutil.BuildJPEG()
	path := writeTemp(t, "huge.jpg", original)
	_, writer := newCodec()

	_, err := writer.Write(context.Background(), domain.WriteRequest{
		Path:      path,
		Kind:      domain.JPEG,
		Generated: domain.GeneratedMetadata{Description: strings.Repeat("a", 40000)},
		Plan:      domain.FieldPlan{Description: true},
		Backup:    true,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.WriteError))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.NoFileExists(t, path+".bak")
}

func TestCorruptedJPEGIsParseError(t *testing.T) {
	path := writeTemp(t, "broken.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x7F, 0xFF, 0x00})
	reader, _ := newCodec()
	_, err := reader.Read(context.Background(), path, domain.JPEG)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ParseError))
}

func verifyPNGCRCs(t *testing.T, data []byte) {
	t.Helper()
	pos := len(pngSignature)
	for pos < len(data) {
		length := int(binary.BigEndian.Uint32(data[pos:]))
		body := data[pos+4 : pos+8+length]
		want := binary.BigEndian.Uint32(data[pos+8+length:])
		assert.Equal(t, want, crc32.ChecksumIEEE(body), "crc of %q", body[:4])
		pos += 12 + length
	}
}

func TestPNGWrite(t *testing.T) {
	original := testutil.BuildPNG(testutil.TextChunk("Title", "Old"), testutil.TextChunk("Author", "Ann"))
	path := writeTemp(t, "image.png", original)
	reader, writer := newCodec()

	sel := domain.AllFields()
	sel.OverwriteExisting = true
	outcome, err := writer.Write(context.Background(), plan(t, reader, path, domain.PNG, generated(), sel))
	require.NoError(t, err)
	assert.True(t, outcome.Title)
	assert.True(t, outcome.GPS)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	verifyPNGCRCs(t, data)

	f, err := parsePNG(data)
	require.NoError(t, err)
	var types []string
	for _, c := range f.chunks {
		types = append(types, c.typ)
	}
	assert.Equal(t, []string{"IHDR", "tEXt", "eXIf", "iTXt", "iTXt", "iTXt", "iTXt", "iTXt", "IDAT", "IEND"}, types)
	assert.Equal(t, testutil.PixelData, f.chunks[8].data)

	author, text, ok := textChunk(f.chunks[1])
	require.True(t, ok)
	assert.Equal(t, "Author", author)
	assert.Equal(t, "Ann", text)

	meta, err := reader.Read(context.Background(), path, domain.PNG)
	require.NoError(t, err)
	assert.Equal(t, "Harbour at dawn", meta.Title)
	assert.Equal(t, []string{"harbour", "boats", "fog"}, meta.Tags)
	assert.Equal(t, "boats", meta.Subject)
	require.NotNil(t, meta.GPS)
	assert.InDelta(t, 60.3913, meta.GPS.Latitude, 1e-4)
}

func TestPNGKeepsExistingTitleWithoutOverwrite(t *testing.T) {
	path := writeTemp(t, "image.png", testutil.BuildPNG(testutil.ITXtChunk("Title", "Kept")))
	reader, writer := newCodec()

	outcome, err := writer.Write(context.Background(), plan(t, reader, path, domain.PNG, generated(), domain.AllFields()))
	require.NoError(t, err)
	assert.False(t, outcome.Title)
	assert.Contains(t, outcome.Skipped, "title (existing)")

	meta, err := reader.Read(context.Background(), path, domain.PNG)
	require.NoError(t, err)
	assert.Equal(t, "Kept", meta.Title)
}

func TestWebPSimpleFormatGainsVP8X(t *testing.T) {
	original := testutil.BuildWebP(testutil.Chunk{Type: "VP8L", Data: testutil.VP8LFrame})
	path := writeTemp(t, "image.webp", original)
	reader, writer := newCodec()

	_, err := writer.Write(context.Background(), plan(t, reader, path, domain.WebP, generated(), domain.AllFields()))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(data)-8), binary.LittleEndian.Uint32(data[4:8]))

	chunks, err := parseWebP(data)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, "VP8X", chunks[0].id)
	assert.Equal(t, byte(vp8xEXIF|vp8xXMP), chunks[0].data[0])
	assert.Equal(t, byte(3), chunks[0].data[4], "canvas width minus one")
	assert.Equal(t, byte(2), chunks[0].data[7], "canvas height minus one")
	assert.Equal(t, "VP8L", chunks[1].id)
	assert.Equal(t, testutil.VP8LFrame, chunks[1].data)
	assert.Equal(t, "EXIF", chunks[2].id)
	assert.Equal(t, "XMP ", chunks[3].id)

	meta, err := reader.Read(context.Background(), path, domain.WebP)
	require.NoError(t, err)
	assert.Equal(t, "Harbour at dawn", meta.Title)
	require.NotNil(t, meta.GPS)

	_, err = writer.Clear(context.Background(), domain.ClearRequest{Path: path, Kind: domain.WebP})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	chunks, err = parseWebP(data)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, byte(0), chunks[0].data[0])
}

func TestSidecarWrite(t *testing.T) {
	raw := []byte("opaque raw bytes")
	path := writeTemp(t, "shot.cr3", raw)
	reader, writer := newCodec()
	kind := domain.Sidecar("cr3")

	outcome, err := writer.Write(context.Background(), plan(t, reader, path, kind, generated(), domain.AllFields()))
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "description", "tags"}, outcome.Fields())
	assert.Equal(t, domain.SidecarPath(path), outcome.SidecarPath)
	assert.Contains(t, outcome.Skipped, "subject (not supported in sidecar)")
	assert.Contains(t, outcome.Skipped, "gps (not supported in sidecar)")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
	assert.NoFileExists(t, path+".bak")

	doc, err := os.ReadFile(domain.SidecarPath(path))
	require.NoError(t, err)
	assert.Equal(t, "Harbour at dawn", parseXMP(doc).Title)

	second := domain.WriteRequest{
		Path:      path,
		Kind:      kind,
		Generated: domain.GeneratedMetadata{Title: "Other title"},
		Plan:      domain.FieldPlan{Title: true},
	}
	outcome, err = writer.Write(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, outcome.Title)
	assert.Contains(t, outcome.Skipped, "title (existing in sidecar)")

	doc, err = os.ReadFile(domain.SidecarPath(path))
	require.NoError(t, err)
	assert.Equal(t, "Harbour at dawn", parseXMP(doc).Title)

	meta, err := reader.Read(context.Background(), path, kind)
	require.NoError(t, err)
	assert.Equal(t, "Harbour at dawn", meta.Title)
}

func TestSidecarReadsEmbeddedTIFF(t *testing.T) {
	order := binary.LittleEndian
	raw := testutil.BuildTIFF(order, []testutil.Field{testutil.ASCII(exif.TagMake, "Nikon")},
		testutil.GPSFields(order, 10, 20, true, false), []byte("sensor data"))
	path := writeTemp(t, "shot.nef", raw)
	reader, _ := newCodec()

	meta, err := reader.Read(context.Background(), path, domain.Sidecar("nef"))
	require.NoError(t, err)
	assert.Equal(t, "Nikon", meta.Make)
	require.NotNil(t, meta.GPS)
	assert.InDelta(t, -10, meta.GPS.Latitude, 1e-9)
}

func TestXMPInjectKeepsOtherProperties(t *testing.T) {
	packet := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:creator><rdf:Seq><rdf:li>Ann</rdf:li></rdf:Seq></dc:creator>
  <dc:title><rdf:Alt><rdf:li xml:lang="x-default">Old</rdf:li></rdf:Alt></dc:title>
</rdf:Description>
</rdf:RDF></x:xmpmeta>`

	out := injectXMP(packet, xmpFields{Title: "New & improved", Subject: []string{"a", "b"}})
	assert.Contains(t, out, "<dc:creator>")
	assert.NotContains(t, out, ">Old<")
	assert.Contains(t, out, `xmlns:photoshop="`+nsPhotoshop+`"`)

	f := parseXMP([]byte(out))
	assert.Equal(t, "New & improved", f.Title)
	assert.Equal(t, []string{"a", "b"}, f.Subject)
}

func TestRemoveElementSkipsPrefixCollisions(t *testing.T) {
	doc := `<rdf:Description>
  <dc:titleX>keep me</dc:titleX>
  <dc:title><rdf:Alt><rdf:li xml:lang="x-default">Old</rdf:li></rdf:Alt></dc:title>
  <dc:title/>
</rdf:Description>`

	out := removeElement(doc, "dc:title")
	assert.Contains(t, out, "<dc:titleX>keep me</dc:titleX>")
	assert.NotContains(t, out, "<dc:title>")
	assert.NotContains(t, out, "<dc:title/>")
	assert.NotContains(t, out, ">Old<")
}

func TestPhotoshopRebuildKeepsOtherResources(t *testing.T) {
	var iptc bytes.Buffer
	writeDataset(&iptc, 2, 80, []byte("Ann"), 64)
	writeDataset(&iptc, 2, iptcTitle, []byte("Old"), 64)

	var existing bytes.Buffer
	existing.WriteString(photoshopHeader)
	writeResource(&existing, 0x0425, []byte("digest-bytes-16b"))
	writeResource(&existing, iptcResourceID, iptc.Bytes())

	out := buildPhotoshop(existing.Bytes(), xmpFields{Title: "New", Subject: []string{"k1", "k2"}})

	resources := parsePhotoshop(out)
	require.Len(t, resources, 2)
	assert.Equal(t, uint16(0x0425), resources[0].id)
	assert.Equal(t, []byte("digest-bytes-16b"), resources[0].data)

	var byline string
	for _, ds := range parseIPTC(resources[1].data) {
		if ds.record == 2 && ds.id == 80 {
			byline = string(ds.value)
		}
	}
	assert.Equal(t, "Ann", byline)

	f := iptcFields(out)
	assert.Equal(t, "New", f.Title)
	assert.Equal(t, []string{"k1", "k2"}, f.Subject)

	stripped, found, other := stripIPTC(out)
	assert.True(t, found)
	assert.True(t, other)
	assert.Len(t, parsePhotoshop(stripped), 1)
}

func writeResource(b *bytes.Buffer, id uint16, data []byte) {
	b.Write(bim)
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], id)
	b.Write(hdr[:])
	b.Write([]byte{0, 0})
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))
	b.Write(size[:])
	b.Write(data)
	if len(data)%2 == 1 {
		b.WriteByte(0)
	}
}
