// Package geotiff reads and writes single band GeoTIFF rasters.
//
// Only what the umep tools need is covered: classic (non BigTIFF) files,
// strips or tiles, no/LZW/Deflate compression, horizontal and floating point
// predictors, integer and float samples. Written files are little endian
// Float32 with the georeferencing of the source preserved.
package geotiff

import (
	"errors"
	"math"
)

// TIFF tags.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
	tagGDALNoData          = 42113
)

// TIFF field types.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
)

var typeSize = map[uint16]int{
	typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8,
	typeSByte: 1, typeUndefined: 1, typeSShort: 2, typeSLong: 4, typeSRational: 8,
	typeFloat: 4, typeDouble: 8,
}

// Compression schemes.
const (
	compressionNone        = 1
	compressionLZW         = 5
	compressionDeflate     = 8
	compressionDeflateOld  = 32946
	predictorNone          = 1
	predictorHorizontal    = 2
	predictorFloatingPoint = 3
)

// Sample formats.
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// GeoKey ids.
const (
	keyModelType       = 1024
	keyRasterType      = 1025
	keyGeographicType  = 2048
	keyProjectedCSType = 3072

	modelTypeProjected  = 1
	modelTypeGeographic = 2
	rasterPixelIsArea   = 1
	rasterPixelIsPoint  = 2
)

var (
	// ErrNotTIFF is returned for input without a TIFF header.
	ErrNotTIFF = errors.New("geotiff: not a TIFF file")
	// ErrBigTIFF is returned for BigTIFF input.
	ErrBigTIFF = errors.New("geotiff: BigTIFF is not supported")
	// ErrUnsupported is wrapped by errors about layouts the decoder cannot read.
	ErrUnsupported = errors.New("geotiff: unsupported")
)

// GeoKeys holds the raw GeoTIFF key tags so they can be written back unchanged.
type GeoKeys struct {
	Directory []uint16
	Doubles   []float64
	ASCII     string
}

// Value returns the inline value of a key.
func (k *GeoKeys) Value(id uint16) (uint16, bool) {
	if k == nil || len(k.Directory) < 4 {
		return 0, false
	}
	n := int(k.Directory[3])
	for i := 0; i < n; i++ {
		at := 4 + i*4
		if at+3 >= len(k.Directory) {
			break
		}
		if k.Directory[at] == id && k.Directory[at+1] == 0 {
			return k.Directory[at+3], true
		}
	}
	return 0, false
}

func (k *GeoKeys) clone() *GeoKeys {
	if k == nil {
		return nil
	}
	return &GeoKeys{
		Directory: append([]uint16(nil), k.Directory...),
		Doubles:   append([]float64(nil), k.Doubles...),
		ASCII:     k.ASCII,
	}
}

// Raster is one band of samples on a regular grid.
type Raster struct {
	Width  int
	Height int
	// Data is row major, north up.
	Data []float64
	// GeoTransform follows the GDAL convention: origin x, pixel width, row
	// rotation, origin y, column rotation, pixel height (negative).
	GeoTransform [6]float64
	HasNoData    bool
	NoData       float64
	// EPSG is the projected or geographic CRS code, 0 when unknown.
	EPSG       int
	Geographic bool
	Keys       *GeoKeys
}

// Georeferenced reports whether the raster carries a usable geotransform.
func (r *Raster) Georeferenced() bool {
	return r.GeoTransform[1] != 0 && !math.IsNaN(r.GeoTransform[1])
}

// geoTransform builds the affine transform from the model tags.
func geoTransform(scale, tiepoint, transformation []float64, pixelIsPoint bool) [6]float64 {
	var gt [6]float64
	switch {
	case len(transformation) >= 16:
		gt = [6]float64{transformation[3], transformation[0], transformation[1],
			transformation[7], transformation[4], transformation[5]}
	case len(scale) >= 2 && len(tiepoint) >= 6:
		sx, sy := scale[0], scale[1]
		gt = [6]float64{tiepoint[3] - tiepoint[0]*sx, sx, 0, tiepoint[4] + tiepoint[1]*sy, 0, -sy}
	default:
		return gt
	}
	if pixelIsPoint {
		gt[0] -= gt[1]/2 + gt[2]/2
		gt[3] -= gt[4]/2 + gt[5]/2
	}
	return gt
}
