// Package systemd reports service state to the systemd manager over the
// notify socket. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. The zero value uses the process
// environment; UnsetEnv drops NOTIFY_SOCKET after the first message so
// child processes do not inherit it.
type Notifier struct {
	UnsetEnv bool
}

// Ready reports READY=1 with an optional status line.
func (n Notifier) Ready(status string) (bool, error) {
	return n.send(daemon.SdNotifyReady, status)
}

// Stopping reports STOPPING=1.
func (n Notifier) Stopping(status string) (bool, error) {
	return n.send(daemon.SdNotifyStopping, status)
}

// Reloading reports RELOADING=1. Follow it with Ready once the reload is applied.
func (n Notifier) Reloading(status string) (bool, error) {
	return n.send(daemon.SdNotifyReloading, status)
}

// Status updates the free-form status line shown by systemctl status.
func (n Notifier) Status(status string) (bool, error) {
	return daemon.SdNotify(n.UnsetEnv, "STATUS="+status)
}

func (n Notifier) send(state, status string) (bool, error) {
	msg := state
	if status != "" {
		msg = fmt.Sprintf("%s\nSTATUS=%s", state, status)
	}
	return daemon.SdNotify(n.UnsetEnv, msg)
}

// WatchdogInterval returns the keep-alive period systemd expects, or 0 when
// the watchdog is not enabled for this process.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}

// Watchdog sends WATCHDOG=1 at half the configured interval until ctx is
// done. alive gates each ping so a stuck pump stops the keep-alives. It
// returns immediately when the watchdog is disabled.
func Watchdog(ctx context.Context, alive func() bool) error {
	every := WatchdogInterval() / 2
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if alive != nil && !alive() {
				continue
			}
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}
