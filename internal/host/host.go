// Package host is the tick pump routines run on. It owns the containers
// routines are attached to and advances every attached driver once per tick.
//
// A Host is driven from one goroutine, either by calling Tick directly or by
// Run. Other goroutines submit work with Post or Call.
package host

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"cororun/internal/routine"
	logx "cororun/pkg/logx"
)

var (
	ErrQueueFull = errors.New("host command queue full")
	ErrStopped   = errors.New("host stopped")
)

const (
	DefaultTickRate     = 60
	DefaultCommandQueue = 256
)

type Options struct {
	// TickRate is the number of ticks per second Run performs.
	TickRate int
	// CommandQueue bounds the Post queue.
	CommandQueue int
	Clock        Clock
	Log          logx.Logger
}

// Host is a routine.Host backed by a tick loop.
type Host struct {
	clock    Clock
	log      logx.Logger
	tickRate int

	containers []*Container
	persistent *Container
	owners     map[routine.Owner]*Container

	// mu orders sends on cmds against the stop transition so nothing is
	// queued after the final drain.
	mu      sync.Mutex
	cmds    chan func()
	stopped atomic.Bool
	ticks   atomic.Uint64
	scene   atomic.Uint64
}

var _ routine.Host = (*Host)(nil)

func New(opts Options) *Host {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.CommandQueue <= 0 {
		opts.CommandQueue = DefaultCommandQueue
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Host{
		clock:    opts.Clock,
		log:      log.With(logx.String("comp", "host")),
		tickRate: opts.TickRate,
		owners:   make(map[routine.Owner]*Container),
		cmds:     make(chan func(), opts.CommandQueue),
	}
}

func (h *Host) Now() time.Time { return h.clock.Now() }

// Ticks is the number of completed ticks.
func (h *Host) Ticks() uint64 { return h.ticks.Load() }

// Scene counts LoadScene calls.
func (h *Host) Scene() uint64 { return h.scene.Load() }

func (h *Host) TickInterval() time.Duration { return time.Second / time.Duration(h.tickRate) }

// CreateContainer returns a new disposable container.
func (h *Host) CreateContainer(name string) routine.Container {
	c := &Container{name: name, kind: kindDisposable}
	h.containers = append(h.containers, c)
	return c
}

// OwnerContainer returns owner's container, creating it on first use.
func (h *Host) OwnerContainer(owner routine.Owner) routine.Container {
	if c, ok := h.owners[owner]; ok {
		return c
	}
	c := &Container{name: owner.OwnerName(), kind: kindOwner, owner: owner}
	h.owners[owner] = c
	h.containers = append(h.containers, c)
	return c
}

// PersistentContainer returns the single container that survives LoadScene
// and ReleaseOwner.
func (h *Host) PersistentContainer() routine.Container {
	if h.persistent == nil {
		h.persistent = &Container{name: "persistent", kind: kindPersistent}
		h.containers = append(h.containers, h.persistent)
		h.log.Debug("persistent container created")
	}
	return h.persistent
}

// DestroyContainer tears c down. Drivers still attached are detached, which
// stops their routines.
func (h *Host) DestroyContainer(rc routine.Container) {
	c, ok := rc.(*Container)
	if !ok || c == nil || c.destroyed {
		return
	}
	h.forget(c)
	c.teardown()
}

func (h *Host) forget(c *Container) {
	if i := slices.Index(h.containers, c); i >= 0 {
		h.containers = slices.Delete(h.containers, i, i+1)
	}
	switch c.kind {
	case kindOwner:
		if h.owners[c.owner] == c {
			delete(h.owners, c.owner)
		}
	case kindPersistent:
		if h.persistent == c {
			h.persistent = nil
		}
	}
}

// ReleaseOwner destroys owner's container, the way destroying a scene
// object takes its routines with it.
func (h *Host) ReleaseOwner(owner routine.Owner) bool {
	c, ok := h.owners[owner]
	if !ok {
		return false
	}
	h.DestroyContainer(c)
	return true
}

// LoadScene destroys every container except the persistent one.
func (h *Host) LoadScene() int {
	var doomed []*Container
	for _, c := range h.containers {
		if c.kind != kindPersistent {
			doomed = append(doomed, c)
		}
	}
	for _, c := range doomed {
		h.DestroyContainer(c)
	}
	n := h.scene.Add(1)
	h.log.Debug("scene loaded", logx.Uint64("scene", n), logx.Int("destroyed", len(doomed)))
	return len(doomed)
}

// Containers is the number of live containers.
func (h *Host) Containers() int { return len(h.containers) }

// Drivers is the number of attached drivers across all containers.
func (h *Host) Drivers() int {
	n := 0
	for _, c := range h.containers {
		n += len(c.drivers)
	}
	return n
}

// Tick runs queued commands, then advances every attached driver once.
// Drivers attached during the tick are first advanced on the next one.
func (h *Host) Tick() {
	h.drain()
	now := h.clock.Now()
	for _, c := range slices.Clone(h.containers) {
		if c.destroyed {
			continue
		}
		for _, d := range slices.Clone(c.drivers) {
			if c.destroyed {
				break
			}
			if !slices.Contains(c.drivers, d) {
				continue
			}
			if !h.tickDriver(d, now) {
				c.remove(d)
			}
		}
	}
	h.ticks.Add(1)
}

func (h *Host) tickDriver(d routine.Driver, now time.Time) (keep bool) {
	defer func() {
		if p := recover(); p != nil {
			h.log.Error("driver panicked", logx.Any("panic", p))
			keep = false
		}
	}()
	return d.Tick(now)
}

func (h *Host) drain() {
	for {
		select {
		case fn := <-h.cmds:
			h.exec(fn)
		default:
			return
		}
	}
}

func (h *Host) exec(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			h.log.Error("command panicked", logx.Any("panic", p))
		}
	}()
	fn()
}

// Post queues fn to run on the pump goroutine before the next tick.
func (h *Host) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	return h.enqueue(fn)
}

func (h *Host) enqueue(fn func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped.Load() {
		return ErrStopped
	}
	select {
	case h.cmds <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

const callRetry = time.Millisecond

// Call runs fn on the pump goroutine and waits for it. It must not be
// called from the pump goroutine itself.
func (h *Host) Call(ctx context.Context, fn func()) error {
	if fn == nil {
		return nil
	}
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	for {
		err := h.enqueue(wrapped)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		select {
		case <-time.After(callRetry):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks at the configured rate until ctx is done. On return the host
// refuses new commands and pending ones are run once.
func (h *Host) Run(ctx context.Context) error {
	if h.stopped.Load() {
		return ErrStopped
	}
	interval := h.TickInterval()
	t := time.NewTicker(interval)
	defer t.Stop()
	h.log.Info("pump started", logx.Int("tick_rate", h.tickRate), logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.stopped.Store(true)
			h.mu.Unlock()
			h.drain()
			h.log.Info("pump stopped", logx.Uint64("ticks", h.ticks.Load()))
			return nil
		case <-t.C:
			h.Tick()
		}
	}
}

// Snapshot describes one container for diagnostics.
type Snapshot struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Drivers int    `json:"drivers"`
}

func (h *Host) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(h.containers))
	for _, c := range h.containers {
		out = append(out, Snapshot{Name: c.name, Kind: c.kind.String(), Drivers: len(c.drivers)})
	}
	return out
}

func (c *Container) String() string { return fmt.Sprintf("%s(%s)", c.name, c.kind) }
