package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"cororun/internal/config"
	"cororun/internal/eventbus"
	"cororun/internal/listeners"
	"cororun/internal/routine"
	"cororun/internal/storage"
	logx "cororun/pkg/logx"
)

const testConfig = `
logging:
  level: error
registry:
  strategy: ordered_list
routines:
  destroy_on_end: true
  hooks:
    on_start: [event, audit]
    on_cancel: [audit]
    on_destroy: [event, audit]
host:
  tick_rate: 200
storage:
  driver: file
  path: %STORE%
triggers:
  - name: stats-hourly
    routine: stats
    schedule: every 1h
`

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	store := filepath.Join(dir, "audit")
	body := []byte(strings.ReplaceAll(testConfig, "%STORE%", store))
	path := filepath.Join(dir, "cororun.yaml")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	a, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, store
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ, name string) listeners.Payload {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			p, ok := e.Data.(listeners.Payload)
			if e.Type == typ && ok && p.Name == name {
				return p
			}
		case <-timeout:
			t.Fatalf("no %s event for %q", typ, name)
		}
	}
}

func TestAppLifecycle(t *testing.T) {
	a, storePath := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, unsub := a.Bus().SubscribePrefix("routine.", 64)
	defer unsub()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	n, err := a.Spawn(ctx, "heartbeat")
	if err != nil || n != 1 {
		t.Fatalf("Spawn(heartbeat) = %d, %v", n, err)
	}
	if p := waitEvent(t, events, "routine.start", "heartbeat"); !p.Persistent {
		t.Fatalf("heartbeat payload = %+v, want persistent", p)
	}

	// a second spawn finds the running routine and leaves it alone
	if n, err := a.Spawn(ctx, "heartbeat"); err != nil || n != 0 {
		t.Fatalf("second Spawn = %d, %v", n, err)
	}
	if _, err := a.Spawn(ctx, "missing"); !errors.Is(err, routine.ErrNotFound) {
		t.Fatalf("Spawn(missing) err = %v, want ErrNotFound", err)
	}

	if err := a.Triggers().Fire("stats-hourly"); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	waitEvent(t, events, "routine.start", "stats")

	infos, err := a.Routines(ctx)
	if err != nil {
		t.Fatalf("Routines: %v", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.State != "running" {
			t.Fatalf("routine %+v not running", info)
		}
		names = append(names, info.Name)
	}
	if !slices.Equal(names, []string{"heartbeat", "stats"}) {
		t.Fatalf("routines = %v", names)
	}
	if !a.Alive() {
		t.Fatal("pump not ticking")
	}

	if err := a.Stop(ctx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if a.Env().Registry().Len() != 0 {
		t.Fatalf("registry len after Stop = %d", a.Env().Registry().Len())
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: storePath}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()
	rows, err := st.RecentTransitions(ctx, 100)
	if err != nil {
		t.Fatalf("RecentTransitions: %v", err)
	}
	var hooks []string
	for _, r := range rows {
		if r.Name == "heartbeat" {
			hooks = append(hooks, r.Hook)
		}
	}
	if want := []string{"start", "cancel", "destroy"}; !slices.Equal(hooks, want) {
		t.Fatalf("heartbeat transitions = %v, want %v", hooks, want)
	}
}

func TestApplyReplacesTriggers(t *testing.T) {
	a, _ := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(ctx, StopAppStop)

	prev := a.Config()
	next := *prev
	next.Triggers = []config.TriggerConfig{
		{Name: "beat", Routine: "heartbeat", Schedule: "*/10 * * * * *"},
		{Name: "pause-stats", Routine: "stats", Schedule: "@daily", Action: "pause"},
	}
	a.apply(ctx, prev, &next)

	var got []string
	for _, info := range a.Triggers().Snapshot() {
		got = append(got, info.Name)
	}
	if !slices.Equal(got, []string{"beat", "pause-stats"}) {
		t.Fatalf("triggers = %v", got)
	}

	// a timezone change rebuilds the service
	old := a.Triggers()
	tz := next
	tz.TriggerTimezone = "UTC"
	a.apply(ctx, &next, &tz)
	if a.Triggers() == old {
		t.Fatal("trigger service not rebuilt on timezone change")
	}
	if n := len(a.Triggers().Snapshot()); n != 2 {
		t.Fatalf("rebuilt trigger count = %d", n)
	}
}

func TestMapEnvConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
		comp    routine.Compensation
		rate    int
	}{
		{name: "defaults", comp: routine.CompensateWait, rate: defaultFailureLogRate},
		{
			name: "uniform fixed",
			cfg: config.Config{
				Registry: config.RegistryConfig{Strategy: "fixed_array", Capacity: 4},
				Routines: config.RoutinesConfig{PauseCompensation: "uniform", FailureLogRate: 3},
			},
			comp: routine.CompensateUniform,
			rate: 3,
		},
		{name: "bad strategy", cfg: config.Config{Registry: config.RegistryConfig{Strategy: "heap"}}, wantErr: true},
		{name: "bad compensation", cfg: config.Config{Routines: config.RoutinesConfig{PauseCompensation: "all"}}, wantErr: true},
	}
	for _, tt := range tests {
		ec, err := mapEnvConfig(&tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil {
			continue
		}
		if ec.Compensation != tt.comp || ec.FailureLogRate != tt.rate {
			t.Fatalf("%s: got comp=%v rate=%d", tt.name, ec.Compensation, ec.FailureLogRate)
		}
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		sc      *config.StorageConfig
		enabled bool
		wantErr bool
	}{
		{name: "absent"},
		{name: "none", sc: &config.StorageConfig{Driver: "none"}},
		{name: "file", sc: &config.StorageConfig{Driver: "file", Path: "./x"}, enabled: true},
		{name: "sqlite needs path", sc: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "sqlite bad busy", sc: &config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "soon"}, wantErr: true},
		{name: "unknown", sc: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		_, enabled, err := mapStorageConfig(&config.Config{Storage: tt.sc})
		if (err != nil) != tt.wantErr || enabled != tt.enabled {
			t.Fatalf("%s: enabled=%v err=%v", tt.name, enabled, err)
		}
	}
}
