package registry

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

type owner struct{ name string }

type entry struct {
	name  string
	owner *owner
}

func (e *entry) Name() string { return e.name }

func (e *entry) OwnerRef() any {
	if e.owner == nil {
		return nil
	}
	return e.owner
}

func newRegistry(t *testing.T, s Strategy, capacity int) *Registry[*entry] {
	t.Helper()
	r, err := New[*entry](Config{Strategy: s, Capacity: capacity})
	if err != nil {
		t.Fatalf("New(%s): %v", s, err)
	}
	return r
}

func TestRegisterDeregisterRoundTrip(t *testing.T) {
	t.Parallel()
	for _, s := range []Strategy{FixedArray, UniqueSet, OrderedList} {
		s := s
		t.Run(string(s), func(t *testing.T) {
			t.Parallel()
			r := newRegistry(t, s, 8)
			o := &owner{name: "player"}
			a := &entry{name: "load", owner: o}
			b := &entry{name: "load"}
			c := &entry{name: "fade", owner: o}
			for _, e := range []*entry{a, b, c} {
				if err := r.Register(e); err != nil {
					t.Fatalf("Register: %v", err)
				}
			}

			byName, err := r.FindByName("load")
			if err != nil {
				t.Fatalf("FindByName: %v", err)
			}
			if len(byName) != 2 || !slices.Contains(byName, a) || !slices.Contains(byName, b) {
				t.Fatalf("FindByName = %v", byName)
			}
			byOwner, err := r.FindByOwner(o)
			if err != nil {
				t.Fatalf("FindByOwner: %v", err)
			}
			if len(byOwner) != 2 || !slices.Contains(byOwner, a) || !slices.Contains(byOwner, c) {
				t.Fatalf("FindByOwner = %v", byOwner)
			}

			if !r.Deregister(a) {
				t.Fatal("Deregister(a) = false")
			}
			if r.Contains(a) {
				t.Fatal("a still registered")
			}
			byName, _ = r.FindByName("load")
			if len(byName) != 1 || byName[0] != b {
				t.Fatalf("after deregister FindByName = %v", byName)
			}
			byOwner, _ = r.FindByOwner(o)
			if len(byOwner) != 1 || byOwner[0] != c {
				t.Fatalf("after deregister FindByOwner = %v", byOwner)
			}
			if r.Len() != 2 {
				t.Fatalf("Len = %d, want 2", r.Len())
			}
		})
	}
}

func TestRegisterSuppressesDuplicates(t *testing.T) {
	t.Parallel()
	for _, s := range []Strategy{FixedArray, UniqueSet, OrderedList} {
		r := newRegistry(t, s, 4)
		e := &entry{name: "x"}
		for i := 0; i < 3; i++ {
			if err := r.Register(e); err != nil {
				t.Fatalf("%s: Register #%d: %v", s, i, err)
			}
		}
		if r.Len() != 1 {
			t.Fatalf("%s: Len = %d, want 1", s, r.Len())
		}
	}
}

func TestFixedArrayCapacity(t *testing.T) {
	t.Parallel()
	const capacity = 3
	r := newRegistry(t, FixedArray, capacity)
	entries := make([]*entry, 0, capacity)
	for i := 0; i < capacity; i++ {
		e := &entry{name: fmt.Sprintf("r%d", i)}
		entries = append(entries, e)
		if err := r.Register(e); err != nil {
			t.Fatalf("Register #%d: %v", i, err)
		}
	}

	extra := &entry{name: "extra"}
	if err := r.Register(extra); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Register over capacity err = %v, want ErrCapacityExceeded", err)
	}

	// Freeing one slot makes exactly one registration possible.
	r.Deregister(entries[1])
	if err := r.Register(extra); err != nil {
		t.Fatalf("Register after free: %v", err)
	}
	if err := r.Register(&entry{name: "another"}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("second Register after free err = %v, want ErrCapacityExceeded", err)
	}

	// The hole is reused in place, so order follows slots.
	got := r.All()
	want := []*entry{entries[0], extra, entries[2]}
	if !slices.Equal(got, want) {
		t.Fatalf("All = %v, want %v", got, want)
	}
}

func TestOrderedListKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	r := newRegistry(t, OrderedList, 0)
	a, b, c := &entry{name: "a"}, &entry{name: "b"}, &entry{name: "c"}
	for _, e := range []*entry{a, b, c} {
		_ = r.Register(e)
	}
	r.Deregister(b)
	_ = r.Register(b)
	if got, want := r.All(), []*entry{a, c, b}; !slices.Equal(got, want) {
		t.Fatalf("All = %v, want %v", got, want)
	}
}

func TestFindErrors(t *testing.T) {
	t.Parallel()
	r := newRegistry(t, UniqueSet, 0)
	_ = r.Register(&entry{name: "y"})

	if _, err := r.FindByName("x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByName(x) err = %v, want ErrNotFound", err)
	}
	if _, err := r.FindByOwner(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FindByOwner(nil) err = %v, want ErrInvalidArgument", err)
	}
	var typedNil *owner
	if _, err := r.FindByOwner(typedNil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FindByOwner(typed nil) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := r.FindByOwner([]int{1}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FindByOwner(slice) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := r.FindByOwner(&owner{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByOwner(unknown) err = %v, want ErrNotFound", err)
	}
	if err := r.Register(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Register(nil) err = %v, want ErrInvalidArgument", err)
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Strategy
	}{
		{"", UniqueSet},
		{"HashSet", UniqueSet},
		{"array", FixedArray},
		{"fixed_array", FixedArray},
		{" list ", OrderedList},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.raw)
		if err != nil {
			t.Fatalf("ParseStrategy(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseStrategy(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
	if _, err := ParseStrategy("queue"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("ParseStrategy(queue) err = %v", err)
	}
	if _, err := New[*entry](Config{Strategy: FixedArray}); err == nil {
		t.Fatal("expected error for fixed_array without capacity")
	}
}
