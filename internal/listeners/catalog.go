// Package listeners provides the named default hook listeners that config
// can attach to routine hooks: "log", "event" and "audit".
package listeners

import (
	"fmt"
	"strings"

	"cororun/internal/config"
	"cororun/internal/eventbus"
	"cororun/internal/routine"
	logx "cororun/pkg/logx"
)

// Payload is the data carried by routine lifecycle events and audit rows.
type Payload struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Hook       string `json:"hook"`
	State      string `json:"state"`
	Persistent bool   `json:"persistent,omitempty"`
}

func payload(kind routine.Kind, r *routine.Routine) Payload {
	p := Payload{
		ID:         r.ID(),
		Name:       r.Name(),
		Hook:       kind.String(),
		State:      r.State().String(),
		Persistent: r.Persistent(),
	}
	if o := r.Owner(); o != nil {
		p.Owner = o.OwnerName()
	}
	return p
}

// EventType is the bus event type published for kind, e.g. "routine.start".
func EventType(kind routine.Kind) string { return "routine." + kind.String() }

// Catalog builds listeners by name.
type Catalog struct {
	Log   logx.Logger
	Bus   eventbus.Bus
	Audit *AuditWriter
}

// Listener returns the named listener bound to kind.
func (c *Catalog) Listener(name string, kind routine.Kind) (routine.Listener, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "log":
		return LogListener(c.Log, kind), nil
	case "event":
		if c.Bus == nil {
			return nil, fmt.Errorf("listener %q: no event bus", name)
		}
		return EventListener(c.Bus, kind), nil
	case "audit":
		if c.Audit == nil {
			return nil, fmt.Errorf("listener %q: storage disabled", name)
		}
		return c.Audit.Listener(kind), nil
	default:
		return nil, fmt.Errorf("%w: unknown listener %q", routine.ErrInvalidArgument, name)
	}
}

// Defaults resolves the configured listener names into default hooks.
func (c *Catalog) Defaults(hooks config.HooksConfig) (*routine.Defaults, error) {
	d := &routine.Defaults{}
	for kindName, names := range hooks.ByKind() {
		kind, err := routine.ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			l, err := c.Listener(n, kind)
			if err != nil {
				return nil, fmt.Errorf("hooks.on_%s: %w", kindName, err)
			}
			d.Add(kind, l)
		}
	}
	return d, nil
}

// LogListener logs each firing of kind at debug level.
func LogListener(log logx.Logger, kind routine.Kind) routine.Listener {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "routine"), logx.String("hook", kind.String()))
	return func(r *routine.Routine) error {
		log.Debug("routine "+kind.String(),
			logx.Uint64("id", r.ID()),
			logx.String("name", r.Name()),
			logx.String("state", r.State().String()),
		)
		return nil
	}
}

// EventListener publishes a routine.<kind> event with a Payload.
func EventListener(bus eventbus.Bus, kind routine.Kind) routine.Listener {
	typ := EventType(kind)
	return func(r *routine.Routine) error {
		bus.Publish(eventbus.Event{Type: typ, Time: r.Env().Now(), Data: payload(kind, r)})
		return nil
	}
}
