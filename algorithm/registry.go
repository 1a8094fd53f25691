package algorithm

import (
	"fmt"
	"sort"
)

// Registry indexes algorithms by name.
type Registry struct {
	algs map[string]Algorithm
}

// NewRegistry returns a registry holding algs. It fails on duplicate names.
func NewRegistry(algs ...Algorithm) (*Registry, error) {
	r := &Registry{algs: make(map[string]Algorithm)}
	for _, a := range algs {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an algorithm.
func (r *Registry) Register(a Algorithm) error {
	if a.Name() == "" {
		return fmt.Errorf("algorithm without name: %T", a)
	}
	if _, ok := r.algs[a.Name()]; ok {
		return fmt.Errorf("algorithm %q registered twice", a.Name())
	}
	r.algs[a.Name()] = a
	return nil
}

// Get looks an algorithm up by name.
func (r *Registry) Get(name string) (Algorithm, bool) {
	a, ok := r.algs[name]
	return a, ok
}

// List returns the algorithms sorted by group, then name.
func (r *Registry) List() []Algorithm {
	out := make([]Algorithm, 0, len(r.algs))
	for _, a := range r.algs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID() != out[j].GroupID() {
			return out[i].GroupID() < out[j].GroupID()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}
