package core

import (
	"fmt"
	"sort"
	"sync"
)

// Blueprint is a named sheet shape.
type Blueprint struct {
	Key    string `json:"key" koanf:"key"`
	Label  string `json:"label" koanf:"label"`
	Schema Schema `json:"fields"`
}

// Registry holds blueprints by key. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	blueprints map[string]Blueprint
}

// NewRegistry creates a registry holding the given blueprints.
func NewRegistry(blueprints ...Blueprint) (*Registry, error) {
	r := &Registry{blueprints: make(map[string]Blueprint, len(blueprints))}
	for _, bp := range blueprints {
		if err := r.Register(bp); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a blueprint. Fails if the key is taken or the schema is
// invalid.
func (r *Registry) Register(bp Blueprint) error {
	if bp.Key == "" {
		return fmt.Errorf("%w: blueprint has no key", ErrInvalidSchema)
	}
	if _, err := NewSchema(bp.Schema...); err != nil {
		return fmt.Errorf("blueprint %s: %w", bp.Key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.blueprints[bp.Key]; exists {
		return fmt.Errorf("blueprint already registered: %s", bp.Key)
	}
	r.blueprints[bp.Key] = bp
	return nil
}

// Get returns a blueprint by key, or ErrUnknownBlueprint.
func (r *Registry) Get(key string) (Blueprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bp, ok := r.blueprints[key]
	if !ok {
		return Blueprint{}, fmt.Errorf("%w: %s", ErrUnknownBlueprint, key)
	}
	return bp, nil
}

// All returns every blueprint sorted by key.
func (r *Registry) All() []Blueprint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Blueprint, 0, len(r.blueprints))
	for _, bp := range r.blueprints {
		result = append(result, bp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Len returns the number of registered blueprints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blueprints)
}
