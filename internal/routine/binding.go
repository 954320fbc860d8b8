package routine

import "time"

// Host is the engine-side collaborator that pumps routines once per tick.
type Host interface {
	// Now returns the host clock. Pause timestamps and delays use it.
	Now() time.Time
	// CreateContainer returns a disposable container for one routine run.
	CreateContainer(name string) Container
	// OwnerContainer returns the container tied to owner's lifetime.
	OwnerContainer(owner Owner) Container
	// PersistentContainer returns the long-lived container that survives
	// scene changes and owner teardown.
	PersistentContainer() Container
	// DestroyContainer tears c down, detaching every driver still in it.
	DestroyContainer(c Container)
}

// Container holds drivers the host ticks.
type Container interface {
	Attach(d Driver)
}

// Driver is advanced by the host once per tick until Tick returns false.
// Detach is called if the container is torn down while the driver is still
// attached.
type Driver interface {
	Tick(now time.Time) bool
	Detach()
}

// drive binds one run of a routine to its container. A routine that is
// stopped and started again gets a new drive, so a stale one left in an
// owner container stops on its next tick.
type drive struct {
	r *Routine
}

func (d *drive) Tick(now time.Time) bool { return d.r.advance(d, now) }

func (d *drive) Detach() { d.r.detached(d) }
