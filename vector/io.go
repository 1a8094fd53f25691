package vector

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Read loads a layer by file extension.
func Read(path string) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return ReadShapefile(path)
	case ".geojson", ".json":
		return ReadGeoJSON(path)
	default:
		return nil, fmt.Errorf("vector: unsupported format %q", filepath.Ext(path))
	}
}

// Write stores a layer by file extension.
func Write(path string, l *Layer) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return WriteShapefile(path, l)
	case ".geojson", ".json":
		return WriteGeoJSON(path, l)
	default:
		return fmt.Errorf("vector: unsupported format %q", filepath.Ext(path))
	}
}
