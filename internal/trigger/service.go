// Package trigger fires routine actions on cron and interval schedules.
//
// Cron runs triggers on its own goroutines; every action is posted to the
// host so routines are only ever touched by the pump goroutine.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cororun/internal/config"
	"cororun/internal/eventbus"
	"cororun/internal/routine"
	logx "cororun/pkg/logx"
)

// Trigger is one configured schedule.
type Trigger struct {
	Name     string
	Routine  string
	Schedule string
	Action   Action
}

// FromConfig parses and validates configured triggers.
func FromConfig(cfgs []config.TriggerConfig) ([]Trigger, error) {
	out := make([]Trigger, 0, len(cfgs))
	var errs []error
	for _, c := range cfgs {
		act, err := ParseAction(c.Action)
		if err != nil {
			errs = append(errs, fmt.Errorf("trigger %q: %w", c.Name, err))
			continue
		}
		if _, err := ParseSchedule(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("trigger %q: %w", c.Name, err))
			continue
		}
		out = append(out, Trigger{
			Name:     strings.TrimSpace(c.Name),
			Routine:  strings.TrimSpace(c.Routine),
			Schedule: c.Schedule,
			Action:   act,
		})
	}
	return out, errors.Join(errs...)
}

// Poster hands work to the pump goroutine (see host.Host.Post).
type Poster interface {
	Post(fn func()) error
}

type Options struct {
	Env   *routine.Env
	Host  Poster
	Spawn Spawner
	Bus   eventbus.Bus
	Log   logx.Logger
	// Timezone is an IANA name; empty means time.Local.
	Timezone string
}

type def struct {
	Trigger
	spec  ParsedSpec
	entry cron.EntryID

	fired    uint64
	affected int
	lastAt   time.Time
	lastErr  string
}

// Service owns the cron instance and the trigger definitions.
type Service struct {
	mu   sync.Mutex
	opts Options
	log  logx.Logger
	loc  *time.Location
	c    *cron.Cron
	defs map[string]*def
}

func New(opts Options) (*Service, error) {
	if opts.Env == nil || opts.Host == nil {
		return nil, errors.New("trigger: env and host are required")
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.Local
	if tz := strings.TrimSpace(opts.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("trigger timezone: %w", err)
		}
		loc = l
	}
	return &Service{
		opts: opts,
		log:  log.With(logx.String("comp", "trigger")),
		loc:  loc,
		defs: map[string]*def{},
	}, nil
}

// Replace swaps the full trigger set. Nothing changes if any trigger is
// invalid.
func (s *Service) Replace(triggers []Trigger) error {
	next := make(map[string]*def, len(triggers))
	for _, t := range triggers {
		if strings.TrimSpace(t.Name) == "" {
			return errors.New("trigger name required")
		}
		if _, dup := next[t.Name]; dup {
			return fmt.Errorf("trigger %q defined twice", t.Name)
		}
		spec, err := ParseSchedule(t.Schedule)
		if err != nil {
			return fmt.Errorf("trigger %q: %w", t.Name, err)
		}
		if t.Action == "" {
			t.Action = ActionStart
		}
		next[t.Name] = &def{Trigger: t, spec: spec}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		for _, d := range s.defs {
			s.c.Remove(d.entry)
		}
	}
	s.defs = next
	if s.c != nil {
		for _, d := range s.defs {
			s.addLocked(d)
		}
	}
	s.log.Debug("triggers replaced", logx.Int("count", len(next)))
	return nil
}

func (s *Service) addLocked(d *def) {
	name := d.Name
	id, err := s.c.AddFunc(d.spec.CronSpec(), func() { s.fire(name) })
	if err != nil {
		s.log.Error("trigger register failed", logx.String("name", name), logx.String("spec", d.spec.CronSpec()), logx.Err(err))
		return
	}
	d.entry = id
}

// Start begins firing. It is a no-op if already started.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = cron.New(cron.WithParser(cronParser), cron.WithLocation(s.loc))
	for _, d := range s.defs {
		s.addLocked(d)
	}
	s.c.Start()
	s.log.Info("triggers started", logx.String("tz", s.loc.String()), logx.Int("count", len(s.defs)))
}

// Stop halts firing and waits for running cron callbacks, up to ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("triggers stopped")
}

// Fire runs the named trigger now, outside its schedule.
func (s *Service) Fire(name string) error {
	s.mu.Lock()
	_, ok := s.defs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("trigger %q: %w", name, routine.ErrNotFound)
	}
	return s.fire(name)
}

func (s *Service) fire(name string) error {
	s.mu.Lock()
	d, ok := s.defs[name]
	var t Trigger
	if ok {
		t = d.Trigger
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	err := s.opts.Host.Post(func() {
		n, err := Apply(s.opts.Env, t.Action, t.Routine, s.opts.Spawn)
		s.record(t, n, err)
	})
	if err != nil {
		s.log.Warn("trigger dropped", logx.String("name", t.Name), logx.Err(err))
		s.record(t, 0, err)
	}
	return err
}

func (s *Service) record(t Trigger, n int, err error) {
	now := time.Now()
	s.mu.Lock()
	if d, ok := s.defs[t.Name]; ok && d.Trigger == t {
		d.fired++
		d.affected = n
		d.lastAt = now
		d.lastErr = ""
		if err != nil {
			d.lastErr = err.Error()
		}
	}
	s.mu.Unlock()

	fields := []logx.Field{
		logx.String("name", t.Name),
		logx.String("routine", t.Routine),
		logx.String("action", string(t.Action)),
		logx.Int("affected", n),
	}
	if err != nil {
		s.log.Warn("trigger failed", append(fields, logx.Err(err))...)
	} else {
		s.log.Debug("trigger fired", fields...)
	}
	if s.opts.Bus != nil {
		data := map[string]any{"name": t.Name, "routine": t.Routine, "action": string(t.Action), "affected": n}
		if err != nil {
			data["error"] = err.Error()
		}
		s.opts.Bus.Publish(eventbus.Event{Type: "trigger.fired", Time: now, Data: data})
	}
}

// Info describes one trigger for diagnostics.
type Info struct {
	Name     string    `json:"name"`
	Routine  string    `json:"routine"`
	Action   string    `json:"action"`
	Spec     string    `json:"spec"`
	Next     time.Time `json:"next,omitempty"`
	Prev     time.Time `json:"prev,omitempty"`
	Fired    uint64    `json:"fired"`
	Affected int       `json:"affected"`
	LastAt   time.Time `json:"last_at,omitempty"`
	LastErr  string    `json:"last_err,omitempty"`
}

func (s *Service) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.defs))
	for _, d := range s.defs {
		it := Info{
			Name:     d.Name,
			Routine:  d.Routine,
			Action:   string(d.Action),
			Spec:     d.spec.CronSpec(),
			Fired:    d.fired,
			Affected: d.affected,
			LastAt:   d.lastAt,
			LastErr:  d.lastErr,
		}
		if s.c != nil && d.entry != 0 {
			e := s.c.Entry(d.entry)
			it.Next, it.Prev = e.Next, e.Prev
		}
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out
}
