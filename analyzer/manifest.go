package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Variables are the model outputs the analyzer knows, in option order.
var Variables = []string{"Tmrt", "Ldown", "Lup", "Kdown", "Kup", "Shadow"}

// Manifest is the sorted listing of a model output directory split by the
// naming convention of a variable: <variable>_<time>[D|N].tif.
type Manifest struct {
	Dir      string
	Variable string
	// All holds the time steps, without averages and .xml side files.
	All   []string
	Day   []string
	Night []string
}

// ReadManifest lists dir and partitions it for variable.
func ReadManifest(dir, variable string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	m, err := NewManifest(names, variable)
	if err != nil {
		return nil, err
	}
	m.Dir = dir
	return m, nil
}

// NewManifest partitions file names for variable. It fails with
// ErrVariableNotFound when no name starts with "<variable>_". Names not
// following the convention are left out silently.
func NewManifest(names []string, variable string) (*Manifest, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	m := &Manifest{Variable: variable}
	prefix := variable + "_"
	found := false
	for _, name := range sorted {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		found = true
		if !strings.HasSuffix(name, "_average.tif") && !strings.HasSuffix(name, ".xml") {
			m.All = append(m.All, name)
		}
		if strings.HasSuffix(name, "D.tif") {
			m.Day = append(m.Day, name)
		}
		if strings.HasSuffix(name, "N.tif") {
			m.Night = append(m.Night, name)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no file name starting with %q", ErrVariableNotFound, prefix)
	}
	return m, nil
}

// Paths joins names with the manifest directory.
func (m *Manifest) Paths(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(m.Dir, n)
	}
	return out
}
