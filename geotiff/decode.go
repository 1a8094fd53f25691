package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff/lzw"
)

type field struct {
	typ   uint16
	count uint32
	raw   []byte
}

type ifd struct {
	bo     binary.ByteOrder
	fields map[uint16]field
}

// Read decodes the GeoTIFF at path.
func Read(path string) (*Raster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Decode decodes the first image of a GeoTIFF held in memory.
func Decode(b []byte) (*Raster, error) {
	d, err := parseHeader(b)
	if err != nil {
		return nil, err
	}

	width := d.uint(tagImageWidth, 0)
	height := d.uint(tagImageLength, 0)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: missing image dimensions", ErrUnsupported)
	}
	bps := d.uint(tagBitsPerSample, 1)
	switch bps {
	case 8, 16, 32, 64:
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bps)
	}
	format := d.uint(tagSampleFormat, sampleUint)
	if format == sampleFloat && bps != 32 && bps != 64 {
		return nil, fmt.Errorf("%w: %d bit float samples", ErrUnsupported, bps)
	}
	spp := d.uint(tagSamplesPerPixel, 1)
	planar := d.uint(tagPlanarConfiguration, 1)
	compression := d.uint(tagCompression, compressionNone)
	predictor := d.uint(tagPredictor, predictorNone)

	img := &Raster{Width: width, Height: height, Data: make([]float64, width*height)}
	l := layout{
		width: width, height: height, bps: bps, format: format,
		spp: spp, planar: planar, compression: compression, predictor: predictor,
	}
	if err := l.read(b, d, img.Data); err != nil {
		return nil, err
	}

	keys := d.geoKeys()
	img.Keys = keys
	pixelIsPoint := false
	if v, ok := keys.Value(keyRasterType); ok && v == rasterPixelIsPoint {
		pixelIsPoint = true
	}
	img.GeoTransform = geoTransform(d.floats(tagModelPixelScale), d.floats(tagModelTiepoint),
		d.floats(tagModelTransformation), pixelIsPoint)
	if v, ok := keys.Value(keyProjectedCSType); ok && v > 0 && v < 32767 {
		img.EPSG = int(v)
	} else if v, ok := keys.Value(keyGeographicType); ok && v > 0 && v < 32767 {
		img.EPSG = int(v)
		img.Geographic = true
	}
	if v, ok := keys.Value(keyModelType); ok && v == modelTypeGeographic {
		img.Geographic = true
	}
	if s, ok := d.ascii(tagGDALNoData); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			img.HasNoData = true
			img.NoData = v
		}
	}
	return img, nil
}

func parseHeader(b []byte) (*ifd, error) {
	if len(b) < 8 {
		return nil, ErrNotTIFF
	}
	var bo binary.ByteOrder
	switch string(b[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}
	switch bo.Uint16(b[2:4]) {
	case 42:
	case 43:
		return nil, ErrBigTIFF
	default:
		return nil, ErrNotTIFF
	}
	off := int(bo.Uint32(b[4:8]))
	if off+2 > len(b) {
		return nil, fmt.Errorf("geotiff: IFD offset %d out of range", off)
	}
	n := int(bo.Uint16(b[off:]))
	d := &ifd{bo: bo, fields: make(map[uint16]field, n)}
	for i := 0; i < n; i++ {
		e := off + 2 + i*12
		if e+12 > len(b) {
			return nil, fmt.Errorf("geotiff: truncated IFD")
		}
		tag := bo.Uint16(b[e:])
		typ := bo.Uint16(b[e+2:])
		count := bo.Uint32(b[e+4:])
		size, ok := typeSize[typ]
		if !ok {
			continue
		}
		total := size * int(count)
		var raw []byte
		if total <= 4 {
			raw = b[e+8 : e+8+total]
		} else {
			at := int(bo.Uint32(b[e+8:]))
			if at < 0 || at+total > len(b) {
				return nil, fmt.Errorf("geotiff: tag %d data out of range", tag)
			}
			raw = b[at : at+total]
		}
		d.fields[tag] = field{typ: typ, count: count, raw: raw}
	}
	return d, nil
}

func (d *ifd) uints(tag uint16) []uint64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, f.count)
	for i := range out {
		switch f.typ {
		case typeByte, typeUndefined:
			out[i] = uint64(f.raw[i])
		case typeShort:
			out[i] = uint64(d.bo.Uint16(f.raw[i*2:]))
		case typeLong:
			out[i] = uint64(d.bo.Uint32(f.raw[i*4:]))
		default:
			return nil
		}
	}
	return out
}

func (d *ifd) uint(tag uint16, def int) int {
	v := d.uints(tag)
	if len(v) == 0 {
		return def
	}
	return int(v[0])
}

func (d *ifd) floats(tag uint16) []float64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	out := make([]float64, f.count)
	for i := range out {
		switch f.typ {
		case typeDouble:
			out[i] = math.Float64frombits(d.bo.Uint64(f.raw[i*8:]))
		case typeFloat:
			out[i] = float64(math.Float32frombits(d.bo.Uint32(f.raw[i*4:])))
		default:
			return nil
		}
	}
	return out
}

func (d *ifd) ascii(tag uint16) (string, bool) {
	f, ok := d.fields[tag]
	if !ok || f.typ != typeASCII {
		return "", false
	}
	return strings.TrimRight(string(f.raw), "\x00"), true
}

func (d *ifd) geoKeys() *GeoKeys {
	dir := d.uints(tagGeoKeyDirectory)
	if len(dir) < 4 {
		return nil
	}
	k := &GeoKeys{Directory: make([]uint16, len(dir))}
	for i, v := range dir {
		k.Directory[i] = uint16(v)
	}
	k.Doubles = d.floats(tagGeoDoubleParams)
	k.ASCII, _ = d.ascii(tagGeoASCIIParams)
	return k
}

// layout describes how samples are stored in the chunks of an image.
type layout struct {
	width, height int
	bps, format   int
	spp, planar   int
	compression   int
	predictor     int
}

func (l layout) read(b []byte, d *ifd, dst []float64) error {
	chunkW, chunkH := l.width, d.uint(tagRowsPerStrip, l.height)
	offsets, counts := d.uints(tagStripOffsets), d.uints(tagStripByteCounts)
	_, tiled := d.fields[tagTileWidth]
	if tiled {
		chunkW, chunkH = d.uint(tagTileWidth, 0), d.uint(tagTileLength, 0)
		offsets, counts = d.uints(tagTileOffsets), d.uints(tagTileByteCounts)
	}
	if chunkW <= 0 || chunkH <= 0 {
		return fmt.Errorf("%w: zero sized chunks", ErrUnsupported)
	}
	if chunkH > l.height && len(offsets) == 1 {
		chunkH = l.height
	}
	across := (l.width + chunkW - 1) / chunkW
	down := (l.height + chunkH - 1) / chunkH
	if len(offsets) < across*down || len(counts) < across*down {
		return fmt.Errorf("geotiff: %d chunks listed, %d needed", len(offsets), across*down)
	}

	sampleBytes := l.bps / 8
	pixelStride := sampleBytes
	if l.planar == 1 {
		pixelStride *= l.spp
	}
	for i := 0; i < across*down; i++ {
		off, n := int(offsets[i]), int(counts[i])
		if off+n > len(b) {
			return fmt.Errorf("geotiff: chunk %d out of range", i)
		}
		buf, err := l.decompress(b[off : off+n])
		if err != nil {
			return fmt.Errorf("geotiff: chunk %d: %w", i, err)
		}
		cx, cy := (i%across)*chunkW, (i/across)*chunkH
		rows := chunkH
		if cy+rows > l.height && !tiled {
			rows = l.height - cy
		}
		rowBytes := chunkW * pixelStride
		if len(buf) < rows*rowBytes {
			// short final strips are tolerated; the missing rows stay zero
			rows = len(buf) / rowBytes
		}
		if err := l.unpredict(buf[:rows*rowBytes], rowBytes, pixelStride/sampleBytes, d.bo); err != nil {
			return err
		}
		for r := 0; r < rows; r++ {
			y := cy + r
			if y >= l.height {
				break
			}
			for c := 0; c < chunkW; c++ {
				x := cx + c
				if x >= l.width {
					break
				}
				at := r*rowBytes + c*pixelStride
				dst[y*l.width+x] = sample(buf[at:at+sampleBytes], l.bps, l.format, d.bo)
			}
		}
	}
	return nil
}

func (l layout) decompress(raw []byte) ([]byte, error) {
	switch l.compression {
	case compressionNone:
		if l.predictor != predictorNone {
			return append([]byte(nil), raw...), nil
		}
		return raw, nil
	case compressionLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer rc.Close()
		return readAllLenient(rc)
	case compressionDeflate, compressionDeflateOld:
		rc, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, l.compression)
	}
}

// readAllLenient keeps what was decoded before a truncated LZW stream ended.
func readAllLenient(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(r)
	if err == io.ErrUnexpectedEOF && len(out) > 0 {
		return out, nil
	}
	return out, err
}

// unpredict reverses the predictor in place, one row at a time.
func (l layout) unpredict(buf []byte, rowBytes, samplesPerPixel int, bo binary.ByteOrder) error {
	switch l.predictor {
	case predictorNone:
		return nil
	case predictorHorizontal:
		size := l.bps / 8
		stride := samplesPerPixel * size
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			line := buf[row : row+rowBytes]
			for i := stride; i+size <= len(line); i += size {
				switch size {
				case 1:
					line[i] += line[i-stride]
				case 2:
					bo.PutUint16(line[i:], bo.Uint16(line[i:])+bo.Uint16(line[i-stride:]))
				case 4:
					bo.PutUint32(line[i:], bo.Uint32(line[i:])+bo.Uint32(line[i-stride:]))
				case 8:
					bo.PutUint64(line[i:], bo.Uint64(line[i:])+bo.Uint64(line[i-stride:]))
				}
			}
		}
		return nil
	case predictorFloatingPoint:
		if l.format != sampleFloat {
			return fmt.Errorf("%w: floating point predictor on integer samples", ErrUnsupported)
		}
		size := l.bps / 8
		tmp := make([]byte, rowBytes)
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			line := buf[row : row+rowBytes]
			for i := samplesPerPixel; i < len(line); i++ {
				line[i] += line[i-samplesPerPixel]
			}
			copy(tmp, line)
			words := rowBytes / size
			for w := 0; w < words; w++ {
				for k := 0; k < size; k++ {
					// byte planes are stored most significant first
					v := tmp[k*words+w]
					if bo == binary.LittleEndian {
						line[w*size+size-1-k] = v
					} else {
						line[w*size+k] = v
					}
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: predictor %d", ErrUnsupported, l.predictor)
	}
}

func sample(b []byte, bps, format int, bo binary.ByteOrder) float64 {
	switch format {
	case sampleFloat:
		if bps == 32 {
			return float64(math.Float32frombits(bo.Uint32(b)))
		}
		return math.Float64frombits(bo.Uint64(b))
	case sampleInt:
		switch bps {
		case 8:
			return float64(int8(b[0]))
		case 16:
			return float64(int16(bo.Uint16(b)))
		case 32:
			return float64(int32(bo.Uint32(b)))
		default:
			return float64(int64(bo.Uint64(b)))
		}
	default:
		switch bps {
		case 8:
			return float64(b[0])
		case 16:
			return float64(bo.Uint16(b))
		case 32:
			return float64(bo.Uint32(b))
		default:
			return float64(bo.Uint64(b))
		}
	}
}
