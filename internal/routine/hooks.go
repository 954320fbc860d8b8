package routine

import (
	"fmt"
	"strings"

	"cororun/internal/hook"
)

// Kind names one of the six lifecycle hooks.
type Kind uint8

const (
	KindStart Kind = iota
	KindPause
	KindResume
	KindCancel
	KindComplete
	KindDestroy

	kindCount
)

// Kinds lists every hook kind in declaration order.
var Kinds = [...]Kind{KindStart, KindPause, KindResume, KindCancel, KindComplete, KindDestroy}

var kindNames = [kindCount]string{"start", "pause", "resume", "cancel", "complete", "destroy"}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind accepts "start" as well as "on_start" / "onStart".
func ParseKind(raw string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "on_"), "on")
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown hook %q", ErrInvalidArgument, raw)
}

// Listener is called with the routine whose hook fired. Returned errors and
// panics are reported and never interrupt the transition.
type Listener = hook.Listener[*Routine]

// Defaults holds the process-wide default listeners, which run before any
// listener registered on a routine. Configure them before creating the Env.
type Defaults struct {
	lists [kindCount][]Listener
}

// Add appends default listeners for kind.
func (d *Defaults) Add(kind Kind, ls ...Listener) {
	if kind >= kindCount {
		return
	}
	for _, l := range ls {
		if l != nil {
			d.lists[kind] = append(d.lists[kind], l)
		}
	}
}

// Len returns the number of default listeners for kind.
func (d *Defaults) Len(kind Kind) int {
	if kind >= kindCount {
		return 0
	}
	return len(d.lists[kind])
}

// On registers an instance listener for kind.
func (r *Routine) On(kind Kind, fn Listener) hook.Handle {
	if kind >= kindCount {
		return 0
	}
	return r.hooks[kind].Add(fn)
}

// Off removes an instance listener registered with On.
func (r *Routine) Off(kind Kind, h hook.Handle) bool {
	if kind >= kindCount {
		return false
	}
	return r.hooks[kind].Remove(h)
}

func (r *Routine) OnStart(fn Listener) hook.Handle    { return r.On(KindStart, fn) }
func (r *Routine) OnPause(fn Listener) hook.Handle    { return r.On(KindPause, fn) }
func (r *Routine) OnResume(fn Listener) hook.Handle   { return r.On(KindResume, fn) }
func (r *Routine) OnCancel(fn Listener) hook.Handle   { return r.On(KindCancel, fn) }
func (r *Routine) OnComplete(fn Listener) hook.Handle { return r.On(KindComplete, fn) }
func (r *Routine) OnDestroy(fn Listener) hook.Handle  { return r.On(KindDestroy, fn) }

func (r *Routine) fire(kind Kind) {
	r.hooks[kind].Invoke(r)
}

func (r *Routine) clearHooks() {
	for _, l := range r.hooks {
		l.Clear()
	}
}
