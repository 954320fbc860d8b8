package app

import (
	"context"
	"time"

	"cororun/internal/host"
	"cororun/internal/routine"
)

// RoutineInfo is the debug view of one live routine.
type RoutineInfo struct {
	ID           uint64        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Owner        string        `json:"owner,omitempty"`
	State        string        `json:"state"`
	Persistent   bool          `json:"persistent,omitempty"`
	DestroyOnEnd bool          `json:"destroy_on_end,omitempty"`
	PendingDelay time.Duration `json:"pending_delay,omitempty"`
}

func routineInfo(r *routine.Routine) RoutineInfo {
	info := RoutineInfo{
		ID:           r.ID(),
		Name:         r.Name(),
		State:        r.State().String(),
		Persistent:   r.Persistent(),
		DestroyOnEnd: r.DestroyOnEnd(),
		PendingDelay: r.PendingDelay(),
	}
	if o := r.Owner(); o != nil {
		info.Owner = o.OwnerName()
	}
	return info
}

// Routines snapshots the registry on the pump goroutine.
func (a *App) Routines(ctx context.Context) ([]RoutineInfo, error) {
	var out []RoutineInfo
	err := a.host.Call(ctx, func() {
		all := a.env.All()
		out = make([]RoutineInfo, 0, len(all))
		for _, r := range all {
			out = append(out, routineInfo(r))
		}
	})
	return out, err
}

type hostView struct {
	Ticks      uint64          `json:"ticks"`
	Scene      uint64          `json:"scene"`
	Drivers    int             `json:"drivers"`
	Containers []host.Snapshot `json:"containers"`
}

func (a *App) mountViews() {
	a.debug.Handle("routines", func(ctx context.Context) (any, error) { return a.Routines(ctx) })
	a.debug.Handle("host", func(ctx context.Context) (any, error) {
		var v hostView
		err := a.host.Call(ctx, func() {
			v = hostView{
				Ticks:      a.host.Ticks(),
				Scene:      a.host.Scene(),
				Drivers:    a.host.Drivers(),
				Containers: a.host.Snapshot(),
			}
		})
		return v, err
	})
	a.debug.Handle("triggers", func(context.Context) (any, error) { return a.Triggers().Snapshot(), nil })
	a.debug.Handle("supervisor", func(context.Context) (any, error) { return a.sup.Snapshot(), nil })
	a.debug.Handle("bus", func(context.Context) (any, error) {
		return map[string]uint64{"dropped": a.bus.Dropped()}, nil
	})
	if a.store != nil {
		a.debug.Handle("transitions", func(ctx context.Context) (any, error) {
			return a.store.RecentTransitions(ctx, 100)
		})
	}
	if a.audit != nil {
		a.debug.Handle("audit", func(context.Context) (any, error) {
			written, dropped := a.audit.Stats()
			return map[string]uint64{"written": written, "dropped": dropped}, nil
		})
	}
}
