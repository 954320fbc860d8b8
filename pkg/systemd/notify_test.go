package systemd

import (
	"context"
	"testing"
)

func TestNoSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	var n Notifier
	for name, fn := range map[string]func(string) (bool, error){
		"ready":     n.Ready,
		"stopping":  n.Stopping,
		"reloading": n.Reloading,
		"status":    n.Status,
	} {
		sent, err := fn("x")
		if err != nil || sent {
			t.Fatalf("%s: sent=%v err=%v, want no-op", name, sent, err)
		}
	}
	if d := WatchdogInterval(); d != 0 {
		t.Fatalf("WatchdogInterval = %v, want 0", d)
	}
	if err := Watchdog(context.Background(), nil); err != nil {
		t.Fatalf("Watchdog: %v", err)
	}
}
