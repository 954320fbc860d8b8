package app

import (
	"fmt"
	"sort"
	"time"

	"cororun/internal/eventbus"
	"cororun/internal/routine"
	logx "cororun/pkg/logx"
)

const (
	HeartbeatInterval = 30 * time.Second
	StatsInterval     = 10 * time.Second
)

// Builtin builds the step source of a routine the daemon can spawn by name,
// either from a trigger or from Spawn.
type Builtin func(a *App) routine.Source

var builtins = map[string]Builtin{
	"heartbeat": heartbeatSource,
	"stats":     statsSource,
}

// Builtins lists the names Spawn and triggers can create.
func Builtins() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func heartbeatSource(a *App) routine.Source {
	log := a.log.With(logx.String("routine", "heartbeat"))
	return routine.Seq(func(yield func(routine.Suspension) bool) {
		for beat := uint64(1); ; beat++ {
			log.Info("heartbeat",
				logx.Uint64("beat", beat),
				logx.Int("routines", a.env.Registry().Len()),
				logx.Uint64("ticks", a.host.Ticks()),
			)
			if !yield(routine.Delay(HeartbeatInterval)) {
				return
			}
		}
	})
}

// statsSource publishes a host.stats event with the container layout.
func statsSource(a *App) routine.Source {
	return routine.Func(func(int) (routine.Suspension, bool) {
		if a.bus != nil {
			a.bus.Publish(eventbus.Event{
				Type: "host.stats",
				Time: a.host.Now(),
				Data: map[string]any{
					"routines":   a.env.Registry().Len(),
					"containers": a.host.Snapshot(),
					"drivers":    a.host.Drivers(),
					"ticks":      a.host.Ticks(),
				},
			})
		}
		return routine.Delay(StatsInterval), true
	})
}

// spawn is the trigger.Spawner for built-ins. Built-ins outlive scene
// loads, so they start persistent.
func (a *App) spawn(env *routine.Env, name string) (*routine.Routine, error) {
	b, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: no built-in routine %q", routine.ErrNotFound, name)
	}
	r, err := env.New(b(a), routine.WithName(name), routine.WithDestroyOnEnd(true))
	if err != nil {
		return nil, err
	}
	if err := r.StartPersistent(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}
