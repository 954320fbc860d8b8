// Package routine implements cooperatively scheduled routines: resumable
// step sources advanced once per host tick, with a small lifecycle state
// machine, six lifecycle hooks and a registry for lookup by name or owner.
//
// Routines are not safe for concurrent use. Everything here runs on the
// goroutine that pumps the host; other goroutines hand work over with
// host.Post or host.Call.
package routine

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"cororun/internal/hook"
)

var nextID atomic.Uint64

// Owner is the object a routine is scoped to. Owners are compared by
// identity, so implementations are normally pointers.
type Owner interface {
	OwnerName() string
}

func isNilOwner(o Owner) bool {
	if o == nil {
		return true
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Routine is one resumable unit of work.
type Routine struct {
	env   *Env
	id    uint64
	name  string
	owner Owner
	src   Source

	state State
	steps Stepper
	run   *drive
	// gen changes whenever steps is replaced or released.
	gen uint64

	container  Container
	disposable bool
	persistent bool

	wait         Suspension
	waitSince    time.Time
	pendingDelay time.Duration
	pausedAt     time.Time

	destroyOnEnd bool
	destroyed    bool
	inStep       bool

	hooks [kindCount]*hook.List[*Routine]
}

func (r *Routine) ID() uint64   { return r.id }
func (r *Routine) Name() string { return r.name }
func (r *Routine) Owner() Owner { return r.owner }

// OwnerRef is the registry's view of Owner.
func (r *Routine) OwnerRef() any {
	if r.owner == nil {
		return nil
	}
	return r.owner
}

func (r *Routine) State() State     { return r.state }
func (r *Routine) IsRunning() bool  { return r.state == Running }
func (r *Routine) IsPaused() bool   { return r.state == Paused }
func (r *Routine) IsIdle() bool     { return r.state == Idle }
func (r *Routine) Destroyed() bool  { return r.destroyed }
func (r *Routine) Env() *Env        { return r.env }
func (r *Routine) Persistent() bool { return r.persistent }

// PendingDelay is the compensation still to be waited before the next
// advance.
func (r *Routine) PendingDelay() time.Duration { return r.pendingDelay }

func (r *Routine) DestroyOnEnd() bool     { return r.destroyOnEnd }
func (r *Routine) SetDestroyOnEnd(v bool) { r.destroyOnEnd = v }

func (r *Routine) String() string {
	name := r.name
	if name == "" {
		name = "routine"
	}
	return fmt.Sprintf("%s#%d", name, r.id)
}

// Start runs the routine in a disposable container, or in its owner's
// container when it has one. The first step runs before Start returns.
func (r *Routine) Start() error { return r.start(false) }

// StartPersistent runs the routine in the host's persistent container, which
// survives scene loads and owner teardown.
func (r *Routine) StartPersistent() error { return r.start(true) }

func (r *Routine) start(persistent bool) error {
	if r.destroyed {
		return fmt.Errorf("start %s: %w", r, ErrDestroyed)
	}
	if r.state != Idle {
		return fmt.Errorf("start %s: %w: already started, use Reset", r, ErrInvalidState)
	}
	h := r.env.host
	if h == nil {
		return fmt.Errorf("start %s: %w", r, ErrNoHost)
	}

	var c Container
	disposable := false
	switch {
	case persistent:
		c = h.PersistentContainer()
	case r.owner != nil:
		c = h.OwnerContainer(r.owner)
	default:
		c = h.CreateContainer(r.String())
		disposable = true
	}
	r.persistent = persistent
	r.container = c
	r.disposable = disposable

	now := h.Now()
	r.begin()
	r.state = Running
	d := &drive{r: r}
	r.run = d
	r.fire(KindStart)
	if r.run != d {
		// a start listener already stopped it
		return nil
	}
	c.Attach(d)
	if !r.inStep {
		r.advance(d, now)
	}
	return nil
}

// Stop cancels the routine. onCancel fires only if it was not Idle.
func (r *Routine) Stop() {
	if r.state == Idle {
		return
	}
	r.state = Idle
	r.endRun()
	r.fire(KindCancel)
}

// Pause suspends a Running routine.
func (r *Routine) Pause() {
	if r.state != Running {
		return
	}
	r.state = Paused
	r.pausedAt = r.env.Now()
	r.fire(KindPause)
}

// Resume continues a Paused routine. Time spent paused is turned into a
// pending delay according to the Env's Compensation.
func (r *Routine) Resume() {
	if r.state != Paused {
		return
	}
	r.compensate(r.env.Now())
	r.state = Running
	r.fire(KindResume)
}

// Toggle pauses a Running routine and resumes a Paused one.
func (r *Routine) Toggle() {
	switch r.state {
	case Running:
		r.Pause()
	case Paused:
		r.Resume()
	}
}

// Reset restarts the step source from the beginning without changing state.
// It is a no-op on an Idle routine.
func (r *Routine) Reset() {
	if r.state == Idle {
		return
	}
	r.begin()
}

// Restart resets an active routine or starts an Idle one again in the mode
// it was last started in.
func (r *Routine) Restart() error {
	if r.state != Idle {
		r.Reset()
		return nil
	}
	return r.start(r.persistent)
}

// Destroy stops the routine, fires onDestroy, removes it from the registry
// and drops its listeners. Destroying twice is a no-op.
func (r *Routine) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.Stop()
	r.fire(KindDestroy)
	r.env.reg.Deregister(r)
	r.clearHooks()
}

func (r *Routine) complete() {
	r.state = Idle
	r.endRun()
	r.fire(KindComplete)
	if r.destroyOnEnd && r.state == Idle {
		r.Destroy()
	}
}

func (r *Routine) begin() {
	old := r.steps
	r.steps = r.src.Begin()
	r.gen++
	if old != nil && !r.inStep {
		closeStepper(old)
	}
	r.wait = nil
	r.pendingDelay = 0
}

// endRun releases everything tied to the current run. A stepper that is in
// the middle of Advance is closed by advance once it returns.
func (r *Routine) endRun() {
	if r.steps != nil && !r.inStep {
		closeStepper(r.steps)
	}
	r.steps = nil
	r.gen++
	r.run = nil
	r.wait = nil
	r.pendingDelay = 0
	r.pausedAt = time.Time{}

	c, disposable := r.container, r.disposable
	r.container = nil
	r.disposable = false
	if disposable && c != nil && r.env.host != nil {
		r.env.host.DestroyContainer(c)
	}
}

func (r *Routine) detached(d *drive) {
	if r.run != d {
		return
	}
	// the container is already gone
	r.container = nil
	r.disposable = false
	r.Stop()
}
