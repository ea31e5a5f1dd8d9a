// Package mapping turns storage rows into entities and entities into write
// parameters. Both directions are driven by a Descriptor registered once per
// entity type: an ordered list of fields, each binding a semantic name to a
// storage column and a type tag, plus the storage group the entity is
// written to.
package mapping

import (
	"errors"
	"fmt"

	"flightboard-service/internal/domain/failure"
)

// Entity is implemented by every type that owns a descriptor. The name is
// the registry key, so it must be unique across registered types.
type Entity interface {
	EntityName() string
}

var (
	// ErrNotRegistered is returned when a type has no descriptor
	ErrNotRegistered = errors.New("no descriptor registered")
	// ErrRegistrySealed is returned by Register after Seal
	ErrRegistrySealed = errors.New("registry is sealed")
)

// Registry holds one descriptor per entity type. It is filled at startup and
// sealed before the first lookup; after Seal it is read-only and safe for
// concurrent use.
type Registry struct {
	entries map[string]any
	sealed  bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Register adds the descriptor for T. Registering the same type twice is an error.
func Register[T Entity](r *Registry, d *Descriptor[T]) error {
	var zero T
	name := zero.EntityName()
	if r.sealed {
		return fmt.Errorf("register %s: %w", name, ErrRegistrySealed)
	}
	if d == nil {
		return fmt.Errorf("register %s: nil descriptor", name)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("register %s: descriptor already registered", name)
	}
	r.entries[name] = d
	return nil
}

// Seal freezes the registry
func (r *Registry) Seal() {
	r.sealed = true
}

// Len returns the number of registered descriptors
func (r *Registry) Len() int {
	return len(r.entries)
}

// Lookup returns the descriptor registered for T
func Lookup[T Entity](r *Registry) (*Descriptor[T], error) {
	var zero T
	name := zero.EntityName()
	entry, ok := r.entries[name]
	if !ok {
		return nil, failure.NewMapping(name, ErrNotRegistered)
	}
	d, ok := entry.(*Descriptor[T])
	if !ok {
		return nil, failure.NewMapping(name, fmt.Errorf("descriptor registered under %q belongs to another type", name))
	}
	return d, nil
}

// Group returns the storage group of T's descriptor
func Group[T Entity](r *Registry) (string, error) {
	d, err := Lookup[T](r)
	if err != nil {
		return "", err
	}
	return d.Group, nil
}
