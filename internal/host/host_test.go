package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDriver struct {
	ticks    int
	limit    int
	detached int
	onTick   func()
}

func (d *fakeDriver) Tick(time.Time) bool {
	d.ticks++
	if d.onTick != nil {
		d.onTick()
	}
	return d.limit == 0 || d.ticks < d.limit
}

func (d *fakeDriver) Detach() { d.detached++ }

type owner struct{ name string }

func (o *owner) OwnerName() string { return o.name }

func newTestHost() *Host {
	return New(Options{Clock: NewManualClock(time.Time{}), CommandQueue: 2})
}

func TestTickRemovesFinishedDrivers(t *testing.T) {
	t.Parallel()
	h := newTestHost()
	c := h.CreateContainer("a")
	short := &fakeDriver{limit: 2}
	long := &fakeDriver{}
	c.Attach(short)
	c.Attach(long)

	for i := 0; i < 4; i++ {
		h.Tick()
	}
	if short.ticks != 2 || long.ticks != 4 {
		t.Fatalf("ticks short=%d long=%d", short.ticks, long.ticks)
	}
	if h.Drivers() != 1 {
		t.Fatalf("Drivers = %d, want 1", h.Drivers())
	}
	if h.Ticks() != 4 {
		t.Fatalf("Ticks = %d, want 4", h.Ticks())
	}
}

func TestDriverAttachedDuringTickWaitsForNextTick(t *testing.T) {
	t.Parallel()
	h := newTestHost()
	c := h.CreateContainer("a")
	late := &fakeDriver{}
	first := &fakeDriver{limit: 1}
	first.onTick = func() { c.Attach(late) }
	c.Attach(first)

	h.Tick()
	if late.ticks != 0 {
		t.Fatalf("late driver ticked %d times during the attaching tick", late.ticks)
	}
	h.Tick()
	if late.ticks != 1 {
		t.Fatalf("late ticks = %d, want 1", late.ticks)
	}
}

func TestDestroyContainerDetaches(t *testing.T) {
	t.Parallel()
	h := newTestHost()
	c := h.CreateContainer("a")
	d := &fakeDriver{}
	c.Attach(d)
	h.DestroyContainer(c)
	h.DestroyContainer(c)
	if d.detached != 1 {
		t.Fatalf("detached = %d, want 1", d.detached)
	}
	if h.Containers() != 0 {
		t.Fatalf("Containers = %d, want 0", h.Containers())
	}
	again := &fakeDriver{}
	c.Attach(again)
	if again.detached != 1 {
		t.Fatal("attach to destroyed container did not detach")
	}
}

func TestLoadSceneKeepsPersistent(t *testing.T) {
	t.Parallel()
	h := newTestHost()
	o := &owner{name: "enemy"}
	scoped, loose, kept := &fakeDriver{}, &fakeDriver{}, &fakeDriver{}
	h.OwnerContainer(o).Attach(scoped)
	h.CreateContainer("loose").Attach(loose)
	h.PersistentContainer().Attach(kept)

	if h.OwnerContainer(o) != h.OwnerContainer(o) {
		t.Fatal("OwnerContainer is not stable per owner")
	}
	if n := h.LoadScene(); n != 2 {
		t.Fatalf("LoadScene destroyed %d containers, want 2", n)
	}
	if scoped.detached != 1 || loose.detached != 1 || kept.detached != 0 {
		t.Fatalf("detached scoped=%d loose=%d kept=%d", scoped.detached, loose.detached, kept.detached)
	}
	h.Tick()
	if kept.ticks != 1 {
		t.Fatalf("persistent driver ticks = %d, want 1", kept.ticks)
	}
	if h.ReleaseOwner(o) {
		t.Fatal("ReleaseOwner after scene load returned true")
	}
	if h.Scene() != 1 {
		t.Fatalf("Scene = %d, want 1", h.Scene())
	}
}

func TestDriverPanicIsContained(t *testing.T) {
	t.Parallel()
	h := newTestHost()
	c := h.CreateContainer("a")
	bad := &fakeDriver{onTick: func() { panic("tick") }}
	good := &fakeDriver{}
	c.Attach(bad)
	c.Attach(good)
	h.Tick()
	h.Tick()
	if bad.ticks != 1 || good.ticks != 2 {
		t.Fatalf("ticks bad=%d good=%d", bad.ticks, good.ticks)
	}
}

func TestPostRunsOnNextTick(t *testing.T) {
	t.Parallel()
	h := newTestHost()
	ran := 0
	for i := 0; i < 2; i++ {
		if err := h.Post(func() { ran++ }); err != nil {
			t.Fatalf("Post #%d: %v", i, err)
		}
	}
	if err := h.Post(func() { ran++ }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Post over capacity err = %v, want ErrQueueFull", err)
	}
	if ran != 0 {
		t.Fatal("posted command ran before Tick")
	}
	h.Tick()
	if ran != 2 {
		t.Fatalf("ran = %d, want 2", ran)
	}
}

func TestRunAndCall(t *testing.T) {
	t.Parallel()
	h := New(Options{TickRate: 200})
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = h.Run(ctx)
	}()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	got := 0
	if err := h.Call(callCtx, func() { got = 42 }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 42 {
		t.Fatalf("got = %d, want 42", got)
	}

	cancel()
	wg.Wait()
	if err := h.Post(func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Post after stop err = %v, want ErrStopped", err)
	}
	if err := h.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Run after stop err = %v, want ErrStopped", err)
	}
}

func TestAcceptedPostsRunBeforeRunReturns(t *testing.T) {
	t.Parallel()
	h := New(Options{TickRate: 1000, CommandQueue: 8})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.Run(ctx)
	}()

	var accepted, ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := h.Post(func() { ran.Add(1) })
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrStopped):
					return
				}
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-stopped
	wg.Wait()

	if accepted.Load() == 0 {
		t.Fatal("no post was accepted")
	}
	if ran.Load() != accepted.Load() {
		t.Fatalf("ran = %d, accepted = %d", ran.Load(), accepted.Load())
	}
	callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
	defer callCancel()
	if err := h.Call(callCtx, func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Call after stop err = %v, want ErrStopped", err)
	}
}

func TestManualClock(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	if got := c.Advance(90 * time.Second); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("Advance = %s", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now after Set = %s", c.Now())
	}
}
