package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
)

// Options control how a raster is written.
type Options struct {
	// Deflate compresses strips with zlib.
	Deflate bool
	// RowsPerStrip defaults to as many rows as fit in 8 KiB.
	RowsPerStrip int
}

// entry is one IFD entry with its value already encoded little endian.
type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var le = binary.LittleEndian

func shorts(tag uint16, v ...uint16) entry {
	b := make([]byte, 2*len(v))
	for i, x := range v {
		le.PutUint16(b[i*2:], x)
	}
	return entry{tag: tag, typ: typeShort, count: uint32(len(v)), data: b}
}

func longs(tag uint16, v ...uint32) entry {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		le.PutUint32(b[i*4:], x)
	}
	return entry{tag: tag, typ: typeLong, count: uint32(len(v)), data: b}
}

func doubles(tag uint16, v ...float64) entry {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		le.PutUint64(b[i*8:], math.Float64bits(x))
	}
	return entry{tag: tag, typ: typeDouble, count: uint32(len(v)), data: b}
}

func asciiEntry(tag uint16, s string) entry {
	b := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

// Write encodes r as a Float32 GeoTIFF at path.
func Write(path string, r *Raster, opts Options) error {
	b, err := Encode(r, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Encode encodes r as a little endian Float32 GeoTIFF.
func Encode(r *Raster, opts Options) ([]byte, error) {
	if r.Width <= 0 || r.Height <= 0 || len(r.Data) != r.Width*r.Height {
		return nil, fmt.Errorf("geotiff: raster %dx%d holds %d samples", r.Width, r.Height, len(r.Data))
	}
	rows := opts.RowsPerStrip
	if rows <= 0 {
		rows = 8192 / (r.Width * 4)
	}
	if rows < 1 {
		rows = 1
	}
	if rows > r.Height {
		rows = r.Height
	}

	compression := uint16(compressionNone)
	if opts.Deflate {
		compression = compressionDeflate
	}
	var chunks [][]byte
	for y := 0; y < r.Height; y += rows {
		end := y + rows
		if end > r.Height {
			end = r.Height
		}
		raw := make([]byte, (end-y)*r.Width*4)
		for i, v := range r.Data[y*r.Width : end*r.Width] {
			le.PutUint32(raw[i*4:], math.Float32bits(float32(v)))
		}
		if opts.Deflate {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(raw); err != nil {
				return nil, err
			}
			if err := zw.Close(); err != nil {
				return nil, err
			}
			raw = buf.Bytes()
		}
		chunks = append(chunks, raw)
	}

	entries := []entry{
		longs(tagImageWidth, uint32(r.Width)),
		longs(tagImageLength, uint32(r.Height)),
		shorts(tagBitsPerSample, 32),
		shorts(tagCompression, compression),
		shorts(tagPhotometric, 1),
		shorts(tagSamplesPerPixel, 1),
		longs(tagRowsPerStrip, uint32(rows)),
		shorts(tagPlanarConfiguration, 1),
		shorts(tagSampleFormat, sampleFloat),
	}
	entries = append(entries, georeference(r)...)
	if r.HasNoData {
		entries = append(entries, asciiEntry(tagGDALNoData, strconv.FormatFloat(r.NoData, 'g', -1, 64)))
	}
	return assemble(chunks, entries, tagStripOffsets, tagStripByteCounts), nil
}

func georeference(r *Raster) []entry {
	var out []entry
	if r.Georeferenced() {
		gt := r.GeoTransform
		if gt[2] == 0 && gt[4] == 0 {
			out = append(out,
				doubles(tagModelPixelScale, gt[1], -gt[5], 0),
				doubles(tagModelTiepoint, 0, 0, 0, gt[0], gt[3], 0))
		} else {
			out = append(out, doubles(tagModelTransformation,
				gt[1], gt[2], 0, gt[0],
				gt[4], gt[5], 0, gt[3],
				0, 0, 0, 0,
				0, 0, 0, 1))
		}
	}

	keys := r.Keys.clone()
	if keys == nil && r.EPSG > 0 {
		keys = synthesizeKeys(r.EPSG, r.Geographic)
	}
	if keys == nil {
		return out
	}
	// the transform written above is always pixel-is-area
	n := int(keys.Directory[3])
	for i := 0; i < n && 4+i*4+3 < len(keys.Directory); i++ {
		at := 4 + i*4
		if keys.Directory[at] == keyRasterType && keys.Directory[at+1] == 0 {
			keys.Directory[at+3] = rasterPixelIsArea
		}
	}
	out = append(out, shorts(tagGeoKeyDirectory, keys.Directory...))
	if len(keys.Doubles) > 0 {
		out = append(out, doubles(tagGeoDoubleParams, keys.Doubles...))
	}
	if keys.ASCII != "" {
		out = append(out, asciiEntry(tagGeoASCIIParams, keys.ASCII))
	}
	return out
}

func synthesizeKeys(epsg int, geographic bool) *GeoKeys {
	model, csKey := uint16(modelTypeProjected), uint16(keyProjectedCSType)
	if geographic {
		model, csKey = modelTypeGeographic, keyGeographicType
	}
	return &GeoKeys{Directory: []uint16{
		1, 1, 0, 3,
		keyModelType, 0, 1, model,
		keyRasterType, 0, 1, rasterPixelIsArea,
		csKey, 0, 1, uint16(epsg),
	}}
}

// assemble lays out header, chunks, IFD and out of line tag data.
func assemble(chunks [][]byte, entries []entry, offsetsTag, countsTag uint16) []byte {
	offsets := make([]uint32, len(chunks))
	counts := make([]uint32, len(chunks))
	pos := uint32(8)
	for i, c := range chunks {
		offsets[i] = pos
		counts[i] = uint32(len(c))
		pos += uint32(len(c))
	}
	entries = append(entries, longs(offsetsTag, offsets...), longs(countsTag, counts...))
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdOffset := pos + pos%2
	extra := ifdOffset + 2 + 12*uint32(len(entries)) + 4

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, ifdOffset)
	for _, c := range chunks {
		buf.Write(c)
	}
	for uint32(buf.Len()) < ifdOffset {
		buf.WriteByte(0)
	}

	binary.Write(&buf, le, uint16(len(entries)))
	var tail []byte
	for _, e := range entries {
		binary.Write(&buf, le, e.tag)
		binary.Write(&buf, le, e.typ)
		binary.Write(&buf, le, e.count)
		if len(e.data) <= 4 {
			var inline [4]byte
			copy(inline[:], e.data)
			buf.Write(inline[:])
			continue
		}
		binary.Write(&buf, le, extra+uint32(len(tail)))
		tail = append(tail, e.data...)
		if len(tail)%2 == 1 {
			tail = append(tail, 0)
		}
	}
	binary.Write(&buf, le, uint32(0))
	buf.Write(tail)
	return buf.Bytes()
}
