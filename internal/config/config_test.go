package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
registry:
  strategy: fixed_array
  capacity: 64
routines:
  destroy_on_end: true
  pause_compensation: uniform
  hooks:
    on_start: [log, event]
    on_complete: [audit]
host:
  tick_rate: 30
storage:
  driver: sqlite
  path: ./data/cororun.db
  busy_timeout: 2s
triggers:
  - name: nightly-load
    routine: load
    schedule: "0 3 * * *"
    action: restart
debug:
  enabled: true
  addr: 127.0.0.1:6060
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "cororun.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Registry.Strategy != "fixed_array" || cfg.Registry.Capacity != 64 {
		t.Fatalf("registry = %+v", cfg.Registry)
	}
	if !slices.Equal(cfg.Routines.Hooks.OnStart, []string{"log", "event"}) {
		t.Fatalf("on_start = %v", cfg.Routines.Hooks.OnStart)
	}
	if cfg.Storage == nil || cfg.Storage.BusyTimeout != "2s" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Triggers) != 1 || cfg.Triggers[0].Action != "restart" {
		t.Fatalf("triggers = %+v", cfg.Triggers)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	body := `{"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},
	"routines":{"destroy_on_end":false,"hooks":{"on_cancel":["log"]}}}`
	cfg, err := NewConfigManager(writeFile(t, "cororun.json", body)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Routines.DestroyOnEnd || len(cfg.Routines.Hooks.OnCancel) != 1 {
		t.Fatalf("routines = %+v", cfg.Routines)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, file, body, want string
	}{
		{"unknown field yaml", "c.yaml", "registry:\n  strategy: unique_set\n  slots: 3\n", "unknown field"},
		{"unknown field json", "c.json", `{"routinez":{}}`, "unknown field"},
		{"trailing data", "c.json", `{} {}`, "trailing data"},
		{"bad yaml", "c.yml", "registry: [", "yaml"},
		{"multi document", "c.yaml", "host:\n  tick_rate: 30\n---\nhost:\n  tick_rate: 60\n", "single document"},
		{"sniffed json", "cororun.conf", `{"hostt":{}}`, "json config"},
	}
	for _, tt := range tests {
		_, err := Decode(tt.file, []byte(tt.body))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err = %v, want containing %q", tt.name, err, tt.want)
		}
	}
}

func TestDecodeSniffsFormat(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("cororun.conf", []byte("host:\n  tick_rate: 20\n"))
	if err != nil || cfg.Host.TickRate != 20 {
		t.Fatalf("yaml without extension: cfg=%+v err=%v", cfg, err)
	}
	cfg, err = Decode("cororun.yaml", nil)
	if err != nil || cfg.Host.TickRate != 0 {
		t.Fatalf("empty yaml: cfg=%+v err=%v", cfg, err)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{" 30 ", 30 * time.Second, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("x", tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, %v", tt.raw, got, err)
		}
	}
	if d, _ := ParseDurationOrDefault("x", "0", time.Minute); d != time.Minute {
		t.Fatalf("default not applied: %v", d)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		want string // empty means valid
	}{
		{"zero config", Config{}, ""},
		{"fixed without capacity", Config{Registry: RegistryConfig{Strategy: "fixed_array"}}, "registry.capacity"},
		{"bad strategy", Config{Registry: RegistryConfig{Strategy: "queue"}}, "registry.strategy"},
		{"bad compensation", Config{Routines: RoutinesConfig{PauseCompensation: "never"}}, "pause_compensation"},
		{"unknown listener", Config{Routines: RoutinesConfig{Hooks: HooksConfig{OnPause: []string{"email"}}}}, "on_pause"},
		{"audit without storage", Config{Routines: RoutinesConfig{Hooks: HooksConfig{OnStart: []string{"audit"}}}}, "requires storage"},
		{"audit with storage", Config{
			Routines: RoutinesConfig{Hooks: HooksConfig{OnStart: []string{"audit"}}},
			Storage:  &StorageConfig{Driver: "file", Path: "x"},
		}, ""},
		{"tick rate", Config{Host: HostConfig{TickRate: 5000}}, "tick_rate"},
		{"bad busy timeout", Config{Storage: &StorageConfig{Driver: "sqlite", BusyTimeout: "soon"}}, "busy_timeout"},
		{"bad timezone", Config{TriggerTimezone: "Mars/Olympus"}, "trigger_timezone"},
		{"trigger missing routine", Config{Triggers: []TriggerConfig{{Name: "a", Schedule: "every 1m"}}}, "routine is required"},
		{"trigger bad action", Config{Triggers: []TriggerConfig{{Name: "a", Routine: "r", Schedule: "every 1m", Action: "explode"}}}, "action"},
		{"duplicate trigger", Config{Triggers: []TriggerConfig{
			{Name: "a", Routine: "r", Schedule: "every 1m"},
			{Name: "a", Routine: "r", Schedule: "every 2m"},
		}}, "duplicated"},
	}
	for _, tt := range tests {
		err := Validate(&tt.cfg)
		if tt.want == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err = %v, want containing %q", tt.name, err, tt.want)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}, Debug: DebugConfig{Token: "a"}}
	newCfg := &Config{
		Logging:  LoggingConfig{Level: "debug"},
		Registry: RegistryConfig{Strategy: "ordered_list"},
		Debug:    DebugConfig{Token: "b"},
		Triggers: []TriggerConfig{{Name: "t", Routine: "r", Schedule: "every 1m"}},
	}
	changed, attrs, restart := SummarizeConfigChange(oldCfg, newCfg)
	if want := []string{"logging", "registry", "triggers"}; !slices.Equal(changed, want) {
		t.Fatalf("changed = %v, want %v (token rotation is not a change)", changed, want)
	}
	if want := []string{"registry"}; !slices.Equal(restart, want) {
		t.Fatalf("restart = %v, want %v", restart, want)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "cororun.yaml", "logging:\n  level: info\n")
	m := NewConfigManager(path)
	m.SetDebounce(20 * time.Millisecond)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	// the watcher may not be registered yet; keep writing until it notices
	for {
		if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		select {
		case cfg := <-sub:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level = %q", cfg.Logging.Level)
			}
			if m.Get().Logging.Level != "debug" {
				t.Fatal("published config not committed")
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no config published after change")
		}
	}
}
