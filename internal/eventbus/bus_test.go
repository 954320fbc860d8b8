package eventbus

import (
	"testing"
)

func TestPublishFansOutByPrefix(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	routines, unsubRoutines := b.SubscribePrefix("routine.", 4)
	defer unsubRoutines()

	b.Publish(Event{Type: "routine.start", Data: 1})
	b.Publish(Event{Type: "config.reload"})

	if got := len(all); got != 2 {
		t.Fatalf("all received %d, want 2", got)
	}
	if got := len(routines); got != 1 {
		t.Fatalf("routines received %d, want 1", got)
	}
	e := <-routines
	if e.Type != "routine.start" || e.Time.IsZero() {
		t.Fatalf("event = %+v", e)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	if b.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", b.Dropped())
	}
	unsub()
	unsub()
	// publishing after unsubscribe must not panic
	b.Publish(Event{Type: "c"})
	if e, ok := <-ch; !ok || e.Type != "a" {
		t.Fatalf("first event = %+v, %v", e, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after unsubscribe")
	}
}
