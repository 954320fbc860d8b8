package registry

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Strategy selects how live entries are stored.
type Strategy string

const (
	// FixedArray keeps entries in a preallocated slot array. Insertion takes
	// the first free slot; removal leaves a hole that a later insert reuses.
	FixedArray Strategy = "fixed_array"
	// UniqueSet keeps entries in a hash set. O(1) insert/remove, no order.
	UniqueSet Strategy = "unique_set"
	// OrderedList keeps entries in insertion order. O(n) insert/remove.
	OrderedList Strategy = "ordered_list"
)

// ParseStrategy normalizes a config value. Empty means UniqueSet.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "unique_set", "set", "hashset":
		return UniqueSet, nil
	case "fixed_array", "array", "fixed":
		return FixedArray, nil
	case "ordered_list", "list":
		return OrderedList, nil
	default:
		return "", fmt.Errorf("%w: unknown registry strategy %q (use fixed_array, unique_set or ordered_list)", ErrInvalidArgument, raw)
	}
}

// Storage is the strategy-specific container behind a Registry.
//
// Insert reports whether v was added; inserting an entry that is already
// present is a no-op that returns (false, nil).
type Storage[T comparable] interface {
	Insert(v T) (bool, error)
	Remove(v T) bool
	Contains(v T) bool
	All() iter.Seq[T]
	Len() int
}

// NewStorage builds the storage for s. capacity is only used by FixedArray.
func NewStorage[T comparable](s Strategy, capacity int) (Storage[T], error) {
	switch s {
	case FixedArray:
		if capacity <= 0 {
			return nil, fmt.Errorf("%w: fixed_array capacity must be > 0", ErrInvalidArgument)
		}
		return &slotArray[T]{slots: make([]T, capacity)}, nil
	case UniqueSet, "":
		return &hashSet[T]{m: make(map[T]struct{})}, nil
	case OrderedList:
		return &orderedList[T]{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown registry strategy %q", ErrInvalidArgument, s)
	}
}

// ---- fixed array ----

type slotArray[T comparable] struct {
	slots []T
	used  int
}

func (a *slotArray[T]) Insert(v T) (bool, error) {
	var zero T
	free := -1
	for i, s := range a.slots {
		if s == v {
			return false, nil
		}
		if free < 0 && s == zero {
			free = i
		}
	}
	if free < 0 {
		return false, fmt.Errorf("%w: all %d slots in use", ErrCapacityExceeded, len(a.slots))
	}
	a.slots[free] = v
	a.used++
	return true, nil
}

func (a *slotArray[T]) Remove(v T) bool {
	var zero T
	for i, s := range a.slots {
		if s == v {
			a.slots[i] = zero
			a.used--
			return true
		}
	}
	return false
}

func (a *slotArray[T]) Contains(v T) bool {
	return slices.Contains(a.slots, v)
}

func (a *slotArray[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		var zero T
		for _, s := range a.slots {
			if s == zero {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

func (a *slotArray[T]) Len() int { return a.used }

// ---- unique set ----

type hashSet[T comparable] struct {
	m map[T]struct{}
}

func (h *hashSet[T]) Insert(v T) (bool, error) {
	if _, ok := h.m[v]; ok {
		return false, nil
	}
	h.m[v] = struct{}{}
	return true, nil
}

func (h *hashSet[T]) Remove(v T) bool {
	if _, ok := h.m[v]; !ok {
		return false
	}
	delete(h.m, v)
	return true
}

func (h *hashSet[T]) Contains(v T) bool {
	_, ok := h.m[v]
	return ok
}

func (h *hashSet[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range h.m {
			if !yield(v) {
				return
			}
		}
	}
}

func (h *hashSet[T]) Len() int { return len(h.m) }

// ---- ordered list ----

type orderedList[T comparable] struct {
	items []T
}

func (l *orderedList[T]) Insert(v T) (bool, error) {
	if slices.Contains(l.items, v) {
		return false, nil
	}
	l.items = append(l.items, v)
	return true, nil
}

func (l *orderedList[T]) Remove(v T) bool {
	i := slices.Index(l.items, v)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

func (l *orderedList[T]) Contains(v T) bool { return slices.Contains(l.items, v) }

func (l *orderedList[T]) All() iter.Seq[T] { return slices.Values(l.items) }

func (l *orderedList[T]) Len() int { return len(l.items) }
