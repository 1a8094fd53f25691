package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// VectorExtension is the extension given to vector outputs in an
// unsupported format.
const VectorExtension = ".geojson"

// VectorOutput resolves a vector destination. An empty path or one with the
// generic "file" extension becomes <tmpDir>/<defaultName>.geojson. Any
// extension other than .geojson or .shp is replaced by .geojson, and warning
// says so.
func VectorOutput(path, tmpDir, defaultName string) (resolved, warning string) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case path == "", ext == ".file":
		return filepath.Join(tmpDir, defaultName+VectorExtension), ""
	case ext == ".geojson", ext == ".shp":
		return path, ""
	}
	resolved = strings.TrimSuffix(path, filepath.Ext(path)) + VectorExtension
	format := ext
	if format == "" {
		format = "extensionless"
	}
	return resolved, fmt.Sprintf("%s format is currently not available, output file extension has been changed to %s", format, VectorExtension)
}

// RasterOutput returns path, with .tif appended when it has no extension.
func RasterOutput(path string) string {
	if path == "" || filepath.Ext(path) != "" {
		return path
	}
	return path + ".tif"
}

// Sibling returns path with suffix inserted before its extension, so
// "out/stat.tif" and "_threshold" give "out/stat_threshold.tif".
func Sibling(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
