package routine

import (
	"fmt"
	"sync"
	"time"

	"cororun/internal/hook"
	"cororun/internal/registry"
	logx "cororun/pkg/logx"
)

// Config is fixed for the lifetime of an Env.
type Config struct {
	Registry     registry.Config
	DestroyOnEnd bool
	Compensation Compensation
	Defaults     *Defaults
	Host         Host
	Log          logx.Logger
	// FailureLogRate caps logged listener failures per second; <= 0 logs all.
	FailureLogRate int
}

// Env bundles what routines share: the registry, the host that drives
// them and the default hooks. An Env and its routines belong to a single
// scheduling goroutine.
type Env struct {
	reg          *registry.Registry[*Routine]
	host         Host
	defaults     [kindCount][]Listener
	destroyOnEnd bool
	comp         Compensation
	report       hook.Reporter
	log          logx.Logger
}

func NewEnv(cfg Config) (*Env, error) {
	reg, err := registry.New[*Routine](cfg.Registry)
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "routine"))
	e := &Env{
		reg:          reg,
		host:         cfg.Host,
		destroyOnEnd: cfg.DestroyOnEnd,
		comp:         cfg.Compensation,
		report:       hook.LogReporter(log, cfg.FailureLogRate),
		log:          log,
	}
	if cfg.Defaults != nil {
		for k := range e.defaults {
			e.defaults[k] = append([]Listener(nil), cfg.Defaults.lists[k]...)
		}
	}
	return e, nil
}

// Option configures a routine at construction.
type Option func(*Routine)

// WithName sets the routine name. Names are not unique.
func WithName(name string) Option { return func(r *Routine) { r.name = name } }

// WithOwner ties the routine to owner: non-persistent starts run in the
// owner's container and FindByOwner returns it.
func WithOwner(owner Owner) Option {
	return func(r *Routine) {
		if isNilOwner(owner) {
			owner = nil
		}
		r.owner = owner
	}
}

// WithDestroyOnEnd overrides the Env default.
func WithDestroyOnEnd(v bool) Option { return func(r *Routine) { r.destroyOnEnd = v } }

// New creates an Idle routine over src and registers it.
func (e *Env) New(src Source, opts ...Option) (*Routine, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil step source", ErrInvalidArgument)
	}
	r := &Routine{
		env:          e,
		id:           nextID.Add(1),
		src:          src,
		destroyOnEnd: e.destroyOnEnd,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	for k := range r.hooks {
		r.hooks[k] = hook.NewList(Kind(k).String(), e.defaults[k], e.report)
	}
	if err := e.reg.Register(r); err != nil {
		return nil, fmt.Errorf("register %s: %w", r, err)
	}
	return r, nil
}

// Go creates and starts a routine. If Start fails the routine is destroyed.
func (e *Env) Go(src Source, opts ...Option) (*Routine, error) {
	return e.spawn(false, src, opts)
}

// GoPersistent is Go with StartPersistent.
func (e *Env) GoPersistent(src Source, opts ...Option) (*Routine, error) {
	return e.spawn(true, src, opts)
}

func (e *Env) spawn(persistent bool, src Source, opts []Option) (*Routine, error) {
	r, err := e.New(src, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.start(persistent); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (e *Env) FindByName(name string) ([]*Routine, error) { return e.reg.FindByName(name) }

// FindByOwner returns ErrInvalidArgument for a nil owner and ErrNotFound
// when owner has no routines.
func (e *Env) FindByOwner(owner Owner) ([]*Routine, error) {
	if isNilOwner(owner) {
		return nil, fmt.Errorf("%w: owner is nil", ErrInvalidArgument)
	}
	return e.reg.FindByOwner(owner)
}

// All returns a snapshot of every registered routine.
func (e *Env) All() []*Routine { return e.reg.All() }

func (e *Env) Registry() *registry.Registry[*Routine] { return e.reg }

func (e *Env) Host() Host { return e.host }

// SetHost binds h. Routines already running keep their containers.
func (e *Env) SetHost(h Host) { e.host = h }

func (e *Env) Compensation() Compensation { return e.comp }

func (e *Env) Log() logx.Logger { return e.log }

// Now is the host clock, or the wall clock when no host is bound.
func (e *Env) Now() time.Time {
	if e.host != nil {
		return e.host.Now()
	}
	return time.Now()
}

// DestroyAll destroys every registered routine and returns how many there were.
func (e *Env) DestroyAll() int {
	all := e.reg.All()
	for _, r := range all {
		r.Destroy()
	}
	return len(all)
}

var (
	sharedMu  sync.Mutex
	sharedEnv *Env
)

// Shared returns the process-wide Env. Until InstallShared is called it is a
// unique-set registry with no host, so routines can be created and looked
// up but not started.
func Shared() *Env {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedEnv == nil {
		sharedEnv, _ = NewEnv(Config{Registry: registry.Config{Strategy: registry.UniqueSet}})
	}
	return sharedEnv
}

// InstallShared replaces the process-wide Env.
func InstallShared(e *Env) {
	sharedMu.Lock()
	sharedEnv = e
	sharedMu.Unlock()
}
