package exif

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exifai/internal/testutil"
)

func TestParseHonorsByteOrder(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			data := testutil.BuildTIFF(order,
				[]testutil.Field{testutil.ASCII(TagMake, "Canon"), testutil.ASCII(TagModel, "EOS R5")},
				testutil.GPSFields(order, 48, 2, false, true),
				nil,
			)
			tree, err := Parse(data)
			require.NoError(t, err)

			meta := tree.Metadata(0)
			assert.Equal(t, "Canon", meta.Make)
			assert.Equal(t, "EOS R5", meta.Model)
			require.NotNil(t, meta.GPS)
			assert.InDelta(t, 48, meta.GPS.Latitude, 1e-9)
			assert.InDelta(t, -2, meta.GPS.Longitude, 1e-9)
		})
	}
}

func TestParseRejectsBadHeaders(t *testing.T) {
	_, err := Parse([]byte("II*"))
	require.Error(t, err)

	_, err = Parse([]byte("XX*\x00\x08\x00\x00\x00"))
	require.Error(t, err)

	_, err = Parse([]byte("II*\x00\xff\x00\x00\x00"))
	require.Error(t, err, "ifd0 offset past the end")
}

func TestParseKeepsPartialDataWhenGPSIsBroken(t *testing.T) {
	order := binary.LittleEndian
	data := testutil.BuildTIFF(order,
		[]testutil.Field{
			testutil.ASCII(TagMake, "Nikon"),
			{Tag: TagGPSIFDPointer, Type: TypeLong, Count: 1, Value: []byte{0xF0, 0xFF, 0x00, 0x00}},
		},
		nil, nil,
	)
	tree, err := Parse(data)
	require.NoError(t, err)
	assert.Nil(t, tree.GPS)
	assert.NotEmpty(t, tree.Warnings)
	assert.Equal(t, "Nikon", tree.Metadata(0).Make)
}

func TestRewriteWithoutUpdatesIsIdentity(t *testing.T) {
	data := testutil.BuildTIFF(binary.LittleEndian, []testutil.Field{testutil.ASCII(TagMake, "Sony")}, nil, []byte("pixels"))
	tree, err := Parse(data)
	require.NoError(t, err)

	out, err := tree.Rewrite(nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestRewritePreservesUnknownEntriesAndStrips(t *testing.T) {
	order := binary.BigEndian
	strip := []byte("IMAGE-STRIP-DATA")
	data := testutil.BuildTIFF(order,
		[]testutil.Field{testutil.ASCII(TagMake, "Fujifilm"), testutil.VendorField},
		nil, strip,
	)
	tree, err := Parse(data)
	require.NoError(t, err)

	out, err := tree.Rewrite([]Update{
		{Section: SectionIFD0, Entry: ASCIIEntry(TagImageDescription, "A misty harbour")},
		{Section: SectionIFD0, Entry: XPEntry(TagXPTitle, "A misty harbour")},
		{Section: SectionExif, Entry: UserCommentEntry("Boats resting at dawn.")},
		{Section: SectionGPS, Entry: GPSEntries(order, 60.39, 5.32)[1]},
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out[8:], data[8:]), "original bytes after the header must be untouched")

	again, err := Parse(out)
	require.NoError(t, err)
	meta := again.Metadata(0)
	assert.Equal(t, "Fujifilm", meta.Make)
	assert.Equal(t, "A misty harbour", meta.Title)
	assert.Equal(t, "Boats resting at dawn.", meta.Description)

	vendor, ok := again.IFD0.Find(testutil.VendorField.Tag)
	require.True(t, ok)
	assert.Equal(t, testutil.VendorField.Value, vendor.Value)

	stripEntry, ok := again.IFD0.Find(0x0111)
	require.True(t, ok)
	off := order.Uint32(stripEntry.Raw[:])
	assert.Equal(t, strip, out[off:off+uint32(len(strip))])

	require.NotNil(t, again.GPS)
	version, ok := again.GPS.Find(TagGPSVersionID)
	require.True(t, ok)
	assert.Equal(t, []byte{2, 2, 0, 0}, version.Value)
}

func TestRewriteSortsEntriesAndReplacesExisting(t *testing.T) {
	order := binary.LittleEndian
	data := testutil.BuildTIFF(order, []testutil.Field{
		testutil.ASCII(TagImageDescription, "old title"),
		testutil.ASCII(TagMake, "Leica"),
	}, nil, nil)
	tree, err := Parse(data)
	require.NoError(t, err)

	out, err := tree.Rewrite([]Update{
		{Section: SectionIFD0, Entry: XPEntry(TagXPKeywords, "fog; harbour")},
		{Section: SectionIFD0, Entry: ASCIIEntry(TagImageDescription, "new title")},
	})
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)
	var tags []uint16
	for _, e := range again.IFD0.Entries {
		tags = append(tags, e.Tag)
	}
	assert.IsIncreasing(t, tags)

	meta := again.Metadata(0)
	assert.Equal(t, "new title", meta.Title)
	assert.Equal(t, []string{"fog", "harbour"}, meta.Tags)
}

func TestNewTreeRoundTrip(t *testing.T) {
	tree := NewTree(binary.LittleEndian)
	updates := []Update{
		{Section: SectionIFD0, Entry: XPEntry(TagXPSubject, "Lighthouse; Gull")},
		{Section: SectionIFD0, Entry: XPEntry(TagXPComment, "Grey sea")},
	}
	for _, e := range GPSEntries(binary.LittleEndian, -33.8568, 151.2153) {
		updates = append(updates, Update{Section: SectionGPS, Entry: e})
	}

	out, err := tree.Rewrite(updates)
	require.NoError(t, err)

	parsed, err := Parse(out)
	require.NoError(t, err)
	meta := parsed.Metadata(0)
	assert.Equal(t, "Lighthouse; Gull", meta.Subject)
	assert.Equal(t, "Grey sea", meta.Description)
	require.NotNil(t, meta.GPS)
	assert.InDelta(t, -33.8568, meta.GPS.Latitude, 1e-4)
	assert.InDelta(t, 151.2153, meta.GPS.Longitude, 1e-4)
}

func TestXPEncoding(t *testing.T) {
	e := XPEntry(TagXPTitle, "Hé")
	assert.Equal(t, []byte{'H', 0, 0xE9, 0, 0, 0}, e.Value)
	assert.Equal(t, TypeByte, e.Type)
	assert.Equal(t, "Hé", DecodeUTF16(e.Value, binary.LittleEndian))
}

func TestUserCommentPrefix(t *testing.T) {
	e := UserCommentEntry("hello")
	assert.Equal(t, []byte("ASCII\x00\x00\x00hello"), e.Value)
	assert.Equal(t, "hello", decodeUserComment(e.Value, binary.LittleEndian))
}

func TestRewriteAddsSubIFDsWithoutShiftingValues(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			data := testutil.BuildTIFF(order,
				[]testutil.Field{testutil.ASCII(TagMake, "Olympus"), testutil.ASCII(TagModel, "OM-1 Mark II")},
				nil, nil,
			)
			tree, err := Parse(data)
			require.NoError(t, err)

			updates := []Update{
				{Section: SectionIFD0, Entry: ASCIIEntry(TagImageDescription, "Harbour at dawn")},
				{Section: SectionIFD0, Entry: XPEntry(TagXPTitle, "Harbour at dawn")},
				{Section: SectionExif, Entry: UserCommentEntry("Fishing boats moored in still water.")},
			}
			for _, e := range GPSEntries(order, 60.3913, 5.3221) {
				updates = append(updates, Update{Section: SectionGPS, Entry: e})
			}
			out, err := tree.Rewrite(updates)
			require.NoError(t, err)

			again, err := Parse(out)
			require.NoError(t, err)
			assert.Empty(t, again.Warnings)
			meta := again.Metadata(0)
			assert.Equal(t, "Olympus", meta.Make)
			assert.Equal(t, "OM-1 Mark II", meta.Model)
			assert.Equal(t, "Harbour at dawn", meta.Title)
			assert.Equal(t, "Fishing boats moored in still water.", meta.Description)
			require.NotNil(t, meta.GPS)
			assert.InDelta(t, 60.3913, meta.GPS.Latitude, 1e-4)
			assert.InDelta(t, 5.3221, meta.GPS.Longitude, 1e-4)
		})
	}
}

func TestMetadataReportsUndecodableGPS(t *testing.T) {
	order := binary.BigEndian
	placeholder := testutil.BuildTIFF(order,
		[]testutil.Field{testutil.ASCII(TagMake, "Sony")},
		[]testutil.Field{
			testutil.ASCII(TagGPSLatitudeRef, "N"),
			testutil.Rationals(order, TagGPSLatitude, 35, 1, 40, 1, 0, 0),
			testutil.ASCII(TagGPSLongitudeRef, "E"),
			testutil.Rationals(order, TagGPSLongitude, 139, 1, 45, 1, 0, 0),
		},
		nil,
	)
	brokenPointer := testutil.BuildTIFF(order,
		[]testutil.Field{
			testutil.ASCII(TagMake, "Sony"),
			{Tag: TagGPSIFDPointer, Type: TypeLong, Count: 1, Value: []byte{0x00, 0x00, 0xFF, 0xF0}},
		},
		nil, nil,
	)

	tree, err := Parse(placeholder)
	require.NoError(t, err)
	meta := tree.Metadata(0)
	assert.True(t, meta.HasGPS())
	require.NotNil(t, meta.GPS)
	assert.InDelta(t, 35+40.0/60, meta.GPS.Latitude, 1e-9)
	assert.InDelta(t, 139+45.0/60, meta.GPS.Longitude, 1e-9)

	tree, err = Parse(brokenPointer)
	require.NoError(t, err)
	meta = tree.Metadata(0)
	assert.Nil(t, meta.GPS)
	assert.True(t, meta.GPSPresent)
	assert.True(t, meta.HasGPS())

	_, err = tree.Rewrite([]Update{{Section: SectionGPS, Entry: GPSEntries(order, 1, 1)[1]}})
	require.Error(t, err)
}

func TestDMSCarriesRoundedSeconds(t *testing.T) {
	assert.Equal(t, []Rational{{11, 1}, {0, 1}, {0, 10000}}, dms(10.99999999))
	assert.Equal(t, []Rational{{48, 1}, {30, 1}, {0, 10000}}, dms(-48.5))

	got := dms(60.3913)
	assert.Equal(t, uint32(60), got[0].Num)
	assert.Equal(t, uint32(23), got[1].Num)
	assert.Equal(t, uint32(286800), got[2].Num)
}

func TestLayoutRejectsOffsetOverflow(t *testing.T) {
	ifd := func() []*outIFD {
		return []*outIFD{{entries: []outEntry{{tag: TagMake, typ: TypeASCII, count: 16, value: make([]byte, 16)}}}}
	}

	emit := ifd()
	end, err := layout(binary.LittleEndian, emit, 9)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), emit[0].offset, "ifd starts on a word boundary")
	assert.Equal(t, uint32(10+18), binary.LittleEndian.Uint32(emit[0].entries[0].raw[:]))
	assert.Equal(t, uint64(10+18+16), end)

	_, err = layout(binary.LittleEndian, ifd(), math.MaxUint32-8)
	require.Error(t, err)
}
