package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Listener names accepted under routines.hooks.
var KnownListeners = []string{"log", "event", "audit"}

var triggerActions = map[string]bool{
	"": true, "start": true, "restart": true, "stop": true, "pause": true, "resume": true, "toggle": true,
}

// Validate checks the parts of cfg that can be checked without building
// the runtime. Schedule syntax is checked by the trigger package.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch s := normalize(cfg.Registry.Strategy); s {
	case "", "unique_set", "set", "hashset", "ordered_list", "list":
	case "fixed_array", "array", "fixed":
		if cfg.Registry.Capacity <= 0 {
			errs = append(errs, errors.New("registry.capacity must be > 0 for fixed_array"))
		}
	default:
		errs = append(errs, fmt.Errorf("registry.strategy: unknown %q", cfg.Registry.Strategy))
	}
	if cfg.Registry.Capacity < 0 {
		errs = append(errs, errors.New("registry.capacity must be >= 0"))
	}

	switch normalize(cfg.Routines.PauseCompensation) {
	case "", "wait", "uniform":
	default:
		errs = append(errs, fmt.Errorf("routines.pause_compensation: unknown %q (use wait or uniform)", cfg.Routines.PauseCompensation))
	}
	if cfg.Routines.FailureLogRate < 0 {
		errs = append(errs, errors.New("routines.failure_log_rate must be >= 0"))
	}
	usesAudit := false
	for kind, names := range cfg.Routines.Hooks.ByKind() {
		for _, n := range names {
			switch normalize(n) {
			case "log", "event":
			case "audit":
				usesAudit = true
			default:
				errs = append(errs, fmt.Errorf("routines.hooks.on_%s: unknown listener %q", kind, n))
			}
		}
	}
	if usesAudit && (cfg.Storage == nil || normalize(cfg.Storage.Driver) == "" || normalize(cfg.Storage.Driver) == "none") {
		errs = append(errs, errors.New("routines.hooks: audit listener requires storage"))
	}

	if cfg.Host.TickRate < 0 || cfg.Host.TickRate > 1000 {
		errs = append(errs, errors.New("host.tick_rate must be within 0..1000"))
	}
	if cfg.Host.CommandQueue < 0 {
		errs = append(errs, errors.New("host.command_queue must be >= 0"))
	}

	if cfg.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if tz := strings.TrimSpace(cfg.TriggerTimezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("trigger_timezone: %w", err))
		}
	}
	seen := map[string]bool{}
	for i, t := range cfg.Triggers {
		path := fmt.Sprintf("triggers[%d]", i)
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", path))
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("%s.name %q is duplicated", path, name))
		}
		seen[name] = true
		if strings.TrimSpace(t.Routine) == "" {
			errs = append(errs, fmt.Errorf("%s.routine is required", path))
		}
		if strings.TrimSpace(t.Schedule) == "" {
			errs = append(errs, fmt.Errorf("%s.schedule is required", path))
		}
		if !triggerActions[normalize(t.Action)] {
			errs = append(errs, fmt.Errorf("%s.action: unknown %q", path, t.Action))
		}
	}

	if _, err := ParseDurationField("debug.read_timeout", cfg.Debug.ReadTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("debug.idle_timeout", cfg.Debug.IdleTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
