// Package config loads umep run files and the SUEWS files the tools read
// their settings from.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// Run is a YAML run file.
//
//	log_level: info
//	debug: false
//	metrics_file: /var/lib/node_exporter/umep.prom
//	tmp_dir: /tmp/umep
//	params:
//	  suewsanalyzer:
//	    raster_dir: ./Output
//	    stat_type: 3
type Run struct {
	LogLevel    string                       `yaml:"log_level"`
	Debug       bool                         `yaml:"debug"`
	MetricsFile string                       `yaml:"metrics_file"`
	TmpDir      string                       `yaml:"tmp_dir"`
	Params      map[string]map[string]string `yaml:"params"`
}

// Default returns the settings used without a run file.
func Default() *Run {
	return &Run{TmpDir: os.TempDir(), Params: make(map[string]map[string]string)}
}

// Load reads a run file. Unknown keys are rejected.
func Load(path string) (*Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	r := Default()
	if err := yaml.UnmarshalStrict(b, r); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if r.TmpDir == "" {
		r.TmpDir = os.TempDir()
	}
	if r.Params == nil {
		r.Params = make(map[string]map[string]string)
	}
	return r, nil
}

// ParamsFor returns the parameters of an algorithm from the file, with
// overrides applied on top. overrides are "name=value" pairs.
func (r *Run) ParamsFor(algorithm string, overrides []string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range r.Params[algorithm] {
		out[k] = v
	}
	for _, o := range overrides {
		k, v, ok := strings.Cut(o, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("config: parameter %q is not name=value", o)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// Algorithms lists the algorithms the file has parameters for.
func (r *Run) Algorithms() []string {
	names := make([]string, 0, len(r.Params))
	for k := range r.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
