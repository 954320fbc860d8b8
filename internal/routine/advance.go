package routine

import (
	"fmt"
	"runtime/debug"
	"time"

	logx "cororun/pkg/logx"
)

// advance is one tick of a run. It reports whether d should be ticked again.
func (r *Routine) advance(d *drive, now time.Time) bool {
	if r.run != d || r.state == Idle {
		return false
	}
	if r.state == Paused {
		return true
	}
	if r.wait != nil {
		ready, err := r.ready(now)
		if err != nil {
			r.env.log.Error("routine wait failed", logx.String("routine", r.String()), logx.Err(err))
			r.Stop()
			return false
		}
		if !ready {
			return true
		}
		r.wait = nil
	}
	if r.pendingDelay > 0 {
		r.suspend(Delay(r.pendingDelay), now)
		r.pendingDelay = 0
		return true
	}

	st, gen := r.steps, r.gen
	s, ok, err := r.step(st)
	if r.gen != gen {
		// the step stopped, reset or restarted its own routine
		closeStepper(st)
		return r.run == d && r.state != Idle
	}
	if r.run != d {
		return false
	}
	if err != nil {
		r.env.log.Error("routine step failed", logx.String("routine", r.String()), logx.Err(err))
		r.Stop()
		return false
	}
	if !ok {
		r.complete()
		return false
	}
	if r.state == Idle {
		return false
	}
	r.suspend(s, now)
	return true
}

func (r *Routine) suspend(s Suspension, now time.Time) {
	if sr, ok := s.(*Routine); ok && sr == r {
		s = nil
	}
	r.wait = s
	r.waitSince = now
}

func (r *Routine) step(st Stepper) (s Suspension, ok bool, err error) {
	r.inStep = true
	defer func() {
		r.inStep = false
		if p := recover(); p != nil {
			s, ok = nil, false
			err = fmt.Errorf("step panicked: %v\n%s", p, debug.Stack())
		}
	}()
	s, ok = st.Advance()
	return s, ok, nil
}

func (r *Routine) ready(now time.Time) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			err = fmt.Errorf("wait panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return r.wait.Ready(r.waitSince, now), nil
}

// compensate turns the pause that is ending at now into a pending delay.
func (r *Routine) compensate(now time.Time) {
	if d, ok := r.wait.(Delay); ok {
		elapsed := r.pausedAt.Sub(r.waitSince)
		remaining := time.Duration(d) - elapsed
		if remaining < 0 {
			remaining = 0
		}
		r.wait = nil
		r.pendingDelay = remaining
	} else if r.env.comp == CompensateUniform && !r.pausedAt.IsZero() {
		if paused := now.Sub(r.pausedAt); paused > 0 {
			r.pendingDelay += paused
		}
	}
	r.pausedAt = time.Time{}
}
