package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Namelist holds the key/value pairs of a Fortran namelist file such as the
// SUEWS RunControl.nml. Keys are lower case.
type Namelist struct {
	Path   string
	Groups map[string]map[string]string
}

// ReadNamelist parses a namelist file. Values keep their text with quotes
// removed; comments after '!' are dropped.
func ReadNamelist(path string) (*Namelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	nl := &Namelist{Path: path, Groups: make(map[string]map[string]string)}
	group := ""
	s := bufio.NewScanner(f)
	for n := 1; s.Scan(); n++ {
		line := stripComment(s.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "&") {
			group = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "&")))
			if nl.Groups[group] == nil {
				nl.Groups[group] = make(map[string]string)
			}
			continue
		}
		if line == "/" || strings.EqualFold(line, "&end") {
			group = ""
			continue
		}
		end := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: %s:%d: expected key = value", path, n)
		}
		if nl.Groups[group] == nil {
			nl.Groups[group] = make(map[string]string)
		}
		v = strings.TrimSuffix(strings.TrimSpace(v), ",")
		nl.Groups[group][strings.ToLower(strings.TrimSpace(k))] = unquote(strings.TrimSpace(v))
		if end {
			group = ""
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return nl, nil
}

// Get looks key up in any group.
func (nl *Namelist) Get(key string) (string, bool) {
	key = strings.ToLower(key)
	for _, g := range nl.Groups {
		if v, ok := g[key]; ok {
			return v, true
		}
	}
	return "", false
}

// OutputPath returns the FileOutputPath of a RunControl namelist, relative
// paths taken from the directory of the namelist.
func (nl *Namelist) OutputPath() (string, error) {
	v, ok := nl.Get("FileOutputPath")
	if !ok || v == "" {
		return "", fmt.Errorf("config: %s has no FileOutputPath", nl.Path)
	}
	if !filepath.IsAbs(v) {
		v = filepath.Join(filepath.Dir(nl.Path), v)
	}
	return filepath.Clean(v), nil
}

func stripComment(line string) string {
	var quote rune
	for i, c := range line {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '!':
			return line[:i]
		}
	}
	return line
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
