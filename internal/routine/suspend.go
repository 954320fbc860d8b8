package routine

import "time"

// Suspension is yielded by a step to tell the pump what to wait for before
// the next advance. A nil Suspension means "the next tick".
type Suspension interface {
	// Ready reports whether the wait is over. since is the time of the tick
	// on which the suspension was yielded.
	Ready(since, now time.Time) bool
}

// Delay waits for a duration of host time. It is the only suspension that
// pause compensation applies to.
type Delay time.Duration

func (d Delay) Ready(since, now time.Time) bool {
	return now.Sub(since) >= time.Duration(d)
}

// Until waits until the condition returns true. It is polled once per tick.
type Until func() bool

func (u Until) Ready(_, _ time.Time) bool { return u == nil || u() }

// Ready makes a routine usable as a suspension: yielding it waits until it
// is Idle (completed, stopped or never started).
func (r *Routine) Ready(_, _ time.Time) bool {
	return r == nil || r.state == Idle
}
