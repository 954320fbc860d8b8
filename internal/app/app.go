// Package app wires the scheduler daemon: config, logging, the pump host,
// the routine environment, triggers, the audit store and the debug server.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cororun/internal/config"
	"cororun/internal/eventbus"
	"cororun/internal/host"
	"cororun/internal/listeners"
	"cororun/internal/observability/debug"
	"cororun/internal/routine"
	"cororun/internal/runtime/supervisor"
	"cororun/internal/storage"
	"cororun/internal/trigger"
	logx "cororun/pkg/logx"
)

const auditQueue = 1024

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	audit *listeners.AuditWriter

	host  *host.Host
	env   *routine.Env
	debug *debug.Service

	trigMu   sync.Mutex
	triggers *trigger.Service
	trigTZ   string
}

type options struct {
	clock host.Clock
}

type Option func(*options)

// WithClock replaces the wall clock the host reads time from.
func WithClock(c host.Clock) Option { return func(o *options) { o.clock = c } }

func New(cfgPath string, opts ...Option) (a *App, err error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	a = &App{
		cfgm: cfgm,
		log:  log.With(logx.String("comp", "app")),
		logs: logSvc,
		bus:  eventbus.New(),
	}
	defer func() {
		if err != nil {
			if a.store != nil {
				_ = a.store.Close()
			}
			_ = logSvc.Close()
			a = nil
		}
	}()

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			return nil, err
		}
		a.store = st
		a.audit = listeners.NewAuditWriter(st, auditQueue, log)
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	catalog := &listeners.Catalog{Log: log, Bus: a.bus, Audit: a.audit}
	defaults, err := catalog.Defaults(cfg.Routines.Hooks)
	if err != nil {
		return nil, err
	}

	a.host = host.New(host.Options{
		TickRate:     cfg.Host.TickRate,
		CommandQueue: cfg.Host.CommandQueue,
		Clock:        o.clock,
		Log:          log,
	})

	ec, err := mapEnvConfig(cfg)
	if err != nil {
		return nil, err
	}
	ec.Defaults = defaults
	ec.Host = a.host
	ec.Log = log
	env, err := routine.NewEnv(ec)
	if err != nil {
		return nil, err
	}
	a.env = env
	routine.InstallShared(env)

	dc, err := mapDebugConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.debug = debug.New(dc, log)

	ts, err := a.newTriggers(cfg)
	if err != nil {
		return nil, err
	}
	a.triggers = ts
	a.trigTZ = cfg.TriggerTimezone
	return a, nil
}

func (a *App) newTriggers(cfg *config.Config) (*trigger.Service, error) {
	defs, err := triggerDefs(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := trigger.New(trigger.Options{
		Env:      a.env,
		Host:     a.host,
		Spawn:    a.spawn,
		Bus:      a.bus,
		Log:      a.log,
		Timezone: cfg.TriggerTimezone,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Replace(defs); err != nil {
		return nil, err
	}
	return svc, nil
}

func triggerDefs(cfg *config.Config) ([]trigger.Trigger, error) {
	return trigger.FromConfig(cfg.Triggers)
}

func (a *App) Config() *config.Config { return a.cfgm.Get() }
func (a *App) Host() *host.Host        { return a.host }
func (a *App) Env() *routine.Env       { return a.env }
func (a *App) Bus() eventbus.Bus       { return a.bus }
func (a *App) Store() storage.Store    { return a.store }
func (a *App) Debug() *debug.Service   { return a.debug }

func (a *App) Triggers() *trigger.Service {
	a.trigMu.Lock()
	defer a.trigMu.Unlock()
	return a.triggers
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Alive reports whether the pump has ticked within the last second.
func (a *App) Alive() bool {
	before := a.host.Ticks()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if a.host.Ticks() != before {
			return true
		}
		time.Sleep(a.host.TickInterval())
	}
	return false
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log)
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := trigger.FromConfig(cfg.Triggers); err != nil {
			return err
		}
		if _, err := mapDebugConfig(cfg); err != nil {
			return err
		}
		_, _, err := mapStorageConfig(cfg)
		return err
	})

	a.sup.Go("host.pump", a.host.Run)
	if a.audit != nil {
		a.sup.Go("audit.writer", a.audit.Run)
	}
	a.Triggers().Start()

	a.mountViews()
	a.debug.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.String("config", a.cfgm.Path()))
	return nil
}

// Spawn starts the named routine on the pump: idle routines registered
// under name are started, and a built-in is created when none exist.
func (a *App) Spawn(ctx context.Context, name string) (int, error) {
	var (
		n   int
		err error
	)
	if cerr := a.host.Call(ctx, func() {
		n, err = trigger.Apply(a.env, trigger.ActionStart, name, a.spawn)
	}); cerr != nil {
		return 0, fmt.Errorf("spawn %s: %w", name, cerr)
	}
	return n, err
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// run a shutdown step with an upper bound so one component can't stall the whole stop
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		// never extends the caller's deadline
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("triggers", 2*time.Second, func(c context.Context) error { a.Triggers().Stop(c); return nil })
	// routines are torn down on the pump so cancel and destroy listeners
	// (including audit) still run
	step("routines", 2*time.Second, func(c context.Context) error {
		var n int
		if err := a.host.Call(c, func() { n = a.env.DestroyAll() }); err != nil {
			return err
		}
		a.log.Info("routines destroyed", logx.Int("count", n))
		return nil
	})

	a.sup.Cancel()

	step("debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
