package registry

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

var (
	ErrCapacityExceeded = errors.New("registry capacity exceeded")
	ErrNotFound         = errors.New("no matching entry")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Entry is what a Registry stores. Entries are compared by identity, so T is
// normally a pointer type.
type Entry interface {
	comparable
	Name() string
	// OwnerRef returns the non-owning owner back-reference, or nil.
	OwnerRef() any
}

// Config selects the storage strategy. It is fixed for the registry's lifetime.
type Config struct {
	Strategy Strategy
	Capacity int // FixedArray only
}

// Registry tracks live entries under one storage strategy.
//
// A Registry is not safe for concurrent use: it is owned by the scheduling
// goroutine, like the entries it holds.
type Registry[T Entry] struct {
	cfg   Config
	store Storage[T]
}

func New[T Entry](cfg Config) (*Registry[T], error) {
	if cfg.Strategy == "" {
		cfg.Strategy = UniqueSet
	}
	st, err := NewStorage[T](cfg.Strategy, cfg.Capacity)
	if err != nil {
		return nil, err
	}
	if cfg.Strategy != FixedArray {
		cfg.Capacity = 0
	}
	return &Registry[T]{cfg: cfg, store: st}, nil
}

func (r *Registry[T]) Strategy() Strategy { return r.cfg.Strategy }

// Capacity returns the slot count for FixedArray registries and 0 otherwise.
func (r *Registry[T]) Capacity() int { return r.cfg.Capacity }

func (r *Registry[T]) Len() int { return r.store.Len() }

func (r *Registry[T]) Contains(e T) bool { return r.store.Contains(e) }

// Register adds e. Registering an entry twice keeps a single copy.
func (r *Registry[T]) Register(e T) error {
	var zero T
	if e == zero {
		return fmt.Errorf("%w: cannot register a nil entry", ErrInvalidArgument)
	}
	if _, err := r.store.Insert(e); err != nil {
		return err
	}
	return nil
}

// Deregister removes e and reports whether it was present.
func (r *Registry[T]) Deregister(e T) bool {
	return r.store.Remove(e)
}

// All returns a snapshot of the live entries, so callers may register or
// deregister while walking it.
func (r *Registry[T]) All() []T {
	return slices.Collect(r.store.All())
}

// FindByName returns every entry named name.
func (r *Registry[T]) FindByName(name string) ([]T, error) {
	var out []T
	for e := range r.store.All() {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}
	return out, nil
}

// FindByOwner returns every entry whose owner is owner.
// owner must be a non-nil comparable value (normally a pointer).
func (r *Registry[T]) FindByOwner(owner any) ([]T, error) {
	if isNil(owner) {
		return nil, fmt.Errorf("%w: owner is nil", ErrInvalidArgument)
	}
	if !reflect.TypeOf(owner).Comparable() {
		return nil, fmt.Errorf("%w: owner of type %T is not comparable", ErrInvalidArgument, owner)
	}
	var out []T
	for e := range r.store.All() {
		if ref := e.OwnerRef(); ref != nil && sameOwner(ref, owner) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: owner %T has no entries", ErrNotFound, owner)
	}
	return out, nil
}

func sameOwner(a, b any) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a == b
}

// isNil treats typed nil pointers (and friends) stored in an interface as nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
