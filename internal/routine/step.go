package routine

import "iter"

// Stepper is one run of a step source. Each Advance performs one unit of
// work and returns the suspension to wait on before the next unit, or
// ok == false once the run is exhausted.
type Stepper interface {
	Advance() (s Suspension, ok bool)
}

// Source produces a fresh Stepper for every run, so a routine can be reset
// and restarted from the beginning.
type Source interface {
	Begin() Stepper
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Stepper

func (f SourceFunc) Begin() Stepper { return f() }

// StepperFunc adapts a function to Stepper.
type StepperFunc func() (Suspension, bool)

func (f StepperFunc) Advance() (Suspension, bool) { return f() }

// Steps returns a source that runs each function once, in order, one per
// advance. A function's return value is the suspension that follows it.
func Steps(steps ...func() Suspension) Source {
	return SourceFunc(func() Stepper {
		i := 0
		return StepperFunc(func() (Suspension, bool) {
			if i >= len(steps) {
				return nil, false
			}
			fn := steps[i]
			i++
			if fn == nil {
				return nil, true
			}
			return fn(), true
		})
	})
}

// Func returns a source that calls fn with the zero-based step index until
// fn reports false.
func Func(fn func(step int) (Suspension, bool)) Source {
	return SourceFunc(func() Stepper {
		i := 0
		return StepperFunc(func() (Suspension, bool) {
			s, ok := fn(i)
			i++
			return s, ok
		})
	})
}

// Seq returns a source backed by an iterator: every yielded value is one
// step. Each run pulls a fresh iteration, and a discarded run releases the
// iterator.
func Seq(seq iter.Seq[Suspension]) Source {
	return SourceFunc(func() Stepper {
		next, stop := iter.Pull(seq)
		return &pullStepper{next: next, stop: stop}
	})
}

type pullStepper struct {
	next func() (Suspension, bool)
	stop func()
	done bool
}

func (p *pullStepper) Advance() (Suspension, bool) {
	if p.done {
		return nil, false
	}
	s, ok := p.next()
	if !ok {
		p.Close()
	}
	return s, ok
}

func (p *pullStepper) Close() {
	if p.done {
		return
	}
	p.done = true
	p.stop()
}

// closeStepper releases steppers that hold resources (see Seq).
func closeStepper(st Stepper) {
	if c, ok := st.(interface{ Close() }); ok {
		c.Close()
	}
}
