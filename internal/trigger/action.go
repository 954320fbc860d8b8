package trigger

import (
	"errors"
	"fmt"
	"strings"

	"cororun/internal/routine"
)

// Action is what a trigger does to the routines it targets.
type Action string

const (
	ActionStart   Action = "start"
	ActionRestart Action = "restart"
	ActionStop    Action = "stop"
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionToggle  Action = "toggle"
)

func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case "":
		return ActionStart, nil
	case ActionStart, ActionRestart, ActionStop, ActionPause, ActionResume, ActionToggle:
		return a, nil
	default:
		return "", fmt.Errorf("unknown trigger action %q", raw)
	}
}

// Spawner creates a routine for a name that has none registered. It
// returns routine.ErrNotFound when it has no source for name.
type Spawner func(env *routine.Env, name string) (*routine.Routine, error)

// Apply runs act on every routine named name and returns how many were
// affected. start and restart fall back to spawn when nothing is
// registered under name. It must run on the pump goroutine.
func Apply(env *routine.Env, act Action, name string, spawn Spawner) (int, error) {
	rs, err := env.FindByName(name)
	if errors.Is(err, routine.ErrNotFound) && (act == ActionStart || act == ActionRestart) && spawn != nil {
		r, serr := spawn(env, name)
		if serr != nil {
			return 0, serr
		}
		if r.IsIdle() {
			if err := r.Start(); err != nil {
				return 0, err
			}
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	var errs []error
	for _, r := range rs {
		switch act {
		case ActionStart:
			if !r.IsIdle() {
				continue
			}
			if err := r.Start(); err != nil {
				errs = append(errs, err)
				continue
			}
		case ActionRestart:
			if err := r.Restart(); err != nil {
				errs = append(errs, err)
				continue
			}
		case ActionStop:
			if r.IsIdle() {
				continue
			}
			r.Stop()
		case ActionPause:
			if !r.IsRunning() {
				continue
			}
			r.Pause()
		case ActionResume:
			if !r.IsPaused() {
				continue
			}
			r.Resume()
		case ActionToggle:
			if r.IsIdle() {
				continue
			}
			r.Toggle()
		default:
			return n, fmt.Errorf("unknown trigger action %q", act)
		}
		n++
	}
	return n, errors.Join(errs...)
}
