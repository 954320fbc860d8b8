// Package hook implements two-stage listener lists: process-wide defaults
// first, then listeners registered on the instance, each stage in
// registration order.
//
// A listener that returns an error or panics is isolated: the failure is
// handed to the list's Reporter and the remaining listeners still run.
package hook

import (
	"fmt"
	"runtime/debug"
	"slices"
)

// Listener is a single callback.
type Listener[T any] func(T) error

// Handle identifies an instance listener for removal.
type Handle uint64

// Failure describes one listener that did not complete.
type Failure struct {
	Hook    string
	Index   int  // position within its stage
	Default bool // true for process-wide default listeners
	Err     error
	Panic   any
	Stack   string
}

func (f Failure) Error() string {
	stage := "instance"
	if f.Default {
		stage = "default"
	}
	if f.Panic != nil {
		return fmt.Sprintf("hook %s: %s listener #%d panicked: %v", f.Hook, stage, f.Index, f.Panic)
	}
	return fmt.Sprintf("hook %s: %s listener #%d failed: %v", f.Hook, stage, f.Index, f.Err)
}

// Reporter receives listener failures. It must not panic.
type Reporter func(Failure)

type item[T any] struct {
	h  Handle
	fn Listener[T]
}

// List is one hook: a shared default stage and an instance stage.
// It is not safe for concurrent use.
type List[T any] struct {
	name     string
	defaults []Listener[T]
	items    []item[T]
	seq      Handle
	report   Reporter
}

// NewList returns a list whose default stage is defaults. The slice is
// shared, not copied; it is expected to be configured once at startup.
func NewList[T any](name string, defaults []Listener[T], report Reporter) *List[T] {
	return &List[T]{name: name, defaults: defaults, report: report}
}

func (l *List[T]) Name() string { return l.name }

// Add appends an instance listener. Nil listeners are ignored.
func (l *List[T]) Add(fn Listener[T]) Handle {
	if fn == nil {
		return 0
	}
	l.seq++
	l.items = append(l.items, item[T]{h: l.seq, fn: fn})
	return l.seq
}

// Remove drops the instance listener registered under h.
func (l *List[T]) Remove(h Handle) bool {
	i := slices.IndexFunc(l.items, func(it item[T]) bool { return it.h == h })
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

// Clear drops all instance listeners. Defaults are untouched.
func (l *List[T]) Clear() { l.items = nil }

// Len counts listeners in both stages.
func (l *List[T]) Len() int { return len(l.defaults) + len(l.items) }

// Invoke runs defaults then instance listeners with v and returns the number
// of listeners that failed. Listeners added or removed while Invoke runs take
// effect on the next call.
func (l *List[T]) Invoke(v T) int {
	if l.Len() == 0 {
		return 0
	}
	failed := 0
	for i, fn := range l.defaults {
		if fn == nil {
			continue
		}
		if !l.call(fn, v, i, true) {
			failed++
		}
	}
	items := l.items
	for i, it := range items {
		if !l.call(it.fn, v, i, false) {
			failed++
		}
	}
	return failed
}

func (l *List[T]) call(fn Listener[T], v T, idx int, def bool) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			l.fail(Failure{Hook: l.name, Index: idx, Default: def, Panic: p, Stack: string(debug.Stack())})
		}
	}()
	if err := fn(v); err != nil {
		l.fail(Failure{Hook: l.name, Index: idx, Default: def, Err: err})
		return false
	}
	return true
}

func (l *List[T]) fail(f Failure) {
	if l.report == nil {
		return
	}
	func() {
		defer func() { _ = recover() }()
		l.report(f)
	}()
}
