package sources

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds validated sources by ID, in insertion order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Source)}
}

// NewDefaultRegistry returns a registry holding the built-in sources and,
// when path is non-empty, the sources declared in that YAML file. File
// sources replace built-ins with the same ID.
func NewDefaultRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	for _, s := range Builtin() {
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	if path == "" {
		return r, nil
	}

	loaded, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, s := range loaded {
		if _, exists := r.Get(s.ID); exists {
			slog.Info("source overridden from file", "source", s.ID, "path", path)
		}
		if err := r.Put(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates s and registers it. Duplicate IDs are rejected.
func (r *Registry) Add(s *Source) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; ok {
		return fmt.Errorf("source %q already registered", s.ID)
	}
	r.byID[s.ID] = s
	r.order = append(r.order, s.ID)
	return nil
}

// Put validates s and registers it, replacing any source with the same ID
// in place.
func (r *Registry) Put(s *Source) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.byID[s.ID] = s
	return nil
}

func (r *Registry) Get(id string) (*Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// All returns every source in registration order.
func (r *Registry) All() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
