package host

import (
	"slices"

	"cororun/internal/routine"
)

type containerKind uint8

const (
	kindDisposable containerKind = iota
	kindOwner
	kindPersistent
)

func (k containerKind) String() string {
	switch k {
	case kindOwner:
		return "owner"
	case kindPersistent:
		return "persistent"
	default:
		return "disposable"
	}
}

// Container holds the drivers ticked by a Host.
type Container struct {
	name      string
	kind      containerKind
	owner     routine.Owner
	drivers   []routine.Driver
	destroyed bool
}

func (c *Container) Name() string    { return c.name }
func (c *Container) Kind() string    { return c.kind.String() }
func (c *Container) Len() int        { return len(c.drivers) }
func (c *Container) Destroyed() bool { return c.destroyed }

// Attach adds d. Attaching to a destroyed container detaches d right away.
func (c *Container) Attach(d routine.Driver) {
	if d == nil {
		return
	}
	if c.destroyed {
		d.Detach()
		return
	}
	c.drivers = append(c.drivers, d)
}

func (c *Container) remove(d routine.Driver) {
	if i := slices.Index(c.drivers, d); i >= 0 {
		c.drivers = slices.Delete(c.drivers, i, i+1)
	}
}

// teardown marks c destroyed and detaches whatever is still attached.
func (c *Container) teardown() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	drivers := c.drivers
	c.drivers = nil
	for _, d := range drivers {
		d.Detach()
	}
}
