package geotiff

import (
	"bytes"
	"compress/lzw"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	for _, deflate := range []bool{false, true} {
		src := &Raster{
			Width:        3,
			Height:       4,
			Data:         []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, -9999},
			GeoTransform: [6]float64{500000, 2, 0, 6400000, 0, -2},
			HasNoData:    true,
			NoData:       -9999,
			EPSG:         3006,
		}
		path := filepath.Join(t.TempDir(), "out.tif")
		require.NoError(t, Write(path, src, Options{Deflate: deflate, RowsPerStrip: 3}))

		got, err := Read(path)
		require.NoError(t, err)
		assert.Equal(t, src.Width, got.Width)
		assert.Equal(t, src.Height, got.Height)
		assert.Equal(t, src.Data, got.Data)
		assert.Equal(t, src.GeoTransform, got.GeoTransform)
		assert.True(t, got.HasNoData)
		assert.Equal(t, -9999.0, got.NoData)
		assert.Equal(t, 3006, got.EPSG)
		assert.False(t, got.Geographic)
	}
}

func TestWrite_CopiesGeoKeysVerbatim(t *testing.T) {
	keys := &GeoKeys{
		Directory: []uint16{1, 1, 0, 2, keyModelType, 0, 1, modelTypeGeographic, 2049, tagGeoASCIIParams, 7, 0},
		ASCII:     "WGS 84|",
	}
	src := &Raster{Width: 1, Height: 1, Data: []float64{5},
		GeoTransform: [6]float64{18, 0.5, 0, 59, 0, -0.5}, Keys: keys}
	b, err := Encode(src, Options{})
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.NotNil(t, got.Keys)
	assert.Equal(t, keys.Directory, got.Keys.Directory)
	assert.Equal(t, "WGS 84|", got.Keys.ASCII)
	assert.True(t, got.Geographic)
	assert.Equal(t, 0, got.EPSG)
}

func TestDecode_PixelIsPointShiftsOrigin(t *testing.T) {
	entries := baseEntries(1, 1, 32, sampleFloat, compressionNone, predictorNone)
	entries = append(entries,
		doubles(tagModelPixelScale, 10, 10, 0),
		doubles(tagModelTiepoint, 0, 0, 0, 1000, 2000, 0),
		shorts(tagGeoKeyDirectory, 1, 1, 0, 1, keyRasterType, 0, 1, rasterPixelIsPoint))
	chunk := make([]byte, 4)
	le.PutUint32(chunk, math.Float32bits(1))

	got, err := Decode(assemble([][]byte{chunk}, entries, tagStripOffsets, tagStripByteCounts))
	require.NoError(t, err)
	assert.Equal(t, [6]float64{995, 10, 0, 2005, 0, -10}, got.GeoTransform)

	// re-encoding keeps the shifted origin
	again, err := Decode(mustEncode(t, got))
	require.NoError(t, err)
	assert.Equal(t, got.GeoTransform, again.GeoTransform)
}

func TestDecode_LZWWithHorizontalPredictor(t *testing.T) {
	values := []uint16{10, 12, 15, 100, 90, 80}
	raw := make([]byte, 12)
	for row := 0; row < 2; row++ {
		prev := uint16(0)
		for col := 0; col < 3; col++ {
			v := values[row*3+col]
			le.PutUint16(raw[(row*3+col)*2:], v-prev)
			prev = v
		}
	}
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries := baseEntries(3, 2, 16, sampleUint, compressionLZW, predictorHorizontal)
	got, err := Decode(assemble([][]byte{buf.Bytes()}, entries, tagStripOffsets, tagStripByteCounts))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 15, 100, 90, 80}, got.Data)
	assert.False(t, got.Georeferenced())
}

func TestDecode_FloatingPointPredictor(t *testing.T) {
	values := []float32{1.5, -2.25, 300}
	words := len(values)
	planes := make([]byte, words*4)
	for w, v := range values {
		var be [4]byte
		binary.BigEndian.PutUint32(be[:], math.Float32bits(v))
		for k := 0; k < 4; k++ {
			planes[k*words+w] = be[k]
		}
	}
	for i := len(planes) - 1; i > 0; i-- {
		planes[i] -= planes[i-1]
	}

	entries := baseEntries(3, 1, 32, sampleFloat, compressionNone, predictorFloatingPoint)
	got, err := Decode(assemble([][]byte{planes}, entries, tagStripOffsets, tagStripByteCounts))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.25, 300}, got.Data)
}

func TestDecode_Tiles(t *testing.T) {
	// 3x3 image, 2x2 tiles, edge tiles padded
	tiles := [][]byte{
		{1, 2, 4, 5},
		{3, 0, 6, 0},
		{7, 8, 0, 0},
		{9, 0, 0, 0},
	}
	entries := []entry{
		longs(tagImageWidth, 3),
		longs(tagImageLength, 3),
		shorts(tagBitsPerSample, 8),
		shorts(tagCompression, compressionNone),
		shorts(tagSampleFormat, sampleUint),
		shorts(tagTileWidth, 2),
		shorts(tagTileLength, 2),
	}
	got, err := Decode(assemble(tiles, entries, tagTileOffsets, tagTileByteCounts))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, got.Data)
}

func TestDecode_SignedSamples(t *testing.T) {
	chunk := []byte{0xff, 0x7f, 0x00, 0x80}
	entries := baseEntries(2, 1, 16, sampleInt, compressionNone, predictorNone)
	got, err := Decode(assemble([][]byte{chunk}, entries, tagStripOffsets, tagStripByteCounts))
	require.NoError(t, err)
	assert.Equal(t, []float64{32767, -32768}, got.Data)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte("not a tiff at all"))
	assert.ErrorIs(t, err, ErrNotTIFF)

	big := []byte{'I', 'I', 43, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err = Decode(big)
	assert.ErrorIs(t, err, ErrBigTIFF)

	entries := baseEntries(1, 1, 32, sampleFloat, 7, predictorNone)
	_, err = Decode(assemble([][]byte{{0, 0, 0, 0}}, entries, tagStripOffsets, tagStripByteCounts))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func baseEntries(width, height uint32, bps, format, compression, predictor uint16) []entry {
	return []entry{
		longs(tagImageWidth, width),
		longs(tagImageLength, height),
		shorts(tagBitsPerSample, bps),
		shorts(tagCompression, compression),
		shorts(tagSampleFormat, format),
		shorts(tagPredictor, predictor),
		longs(tagRowsPerStrip, height),
	}
}

func mustEncode(t *testing.T, r *Raster) []byte {
	t.Helper()
	b, err := Encode(r, Options{})
	require.NoError(t, err)
	return b
}
