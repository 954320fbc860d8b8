package config

import (
	"reflect"
	"sort"
	"strings"

	logx "cororun/pkg/logx"
)

// Sections that are read once when the runtime is built. A change to any of
// them is logged and only takes effect after a restart.
var restartSections = map[string]bool{
	"registry": true,
	"routines": true,
	"host":     true,
	"storage":  true,
}

// SummarizeConfigChange returns the changed sections, safe structured attrs
// for logging (never includes secrets like tokens) and the subset of
// changed sections that require a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Registry, newCfg.Registry) {
		changed = append(changed, "registry")
		attrs = append(attrs,
			logx.String("registry.strategy", newCfg.Registry.Strategy),
			logx.Int("registry.capacity", newCfg.Registry.Capacity),
		)
	}
	if !reflect.DeepEqual(oldCfg.Routines, newCfg.Routines) {
		changed = append(changed, "routines")
		attrs = append(attrs,
			logx.Bool("routines.destroy_on_end", newCfg.Routines.DestroyOnEnd),
			logx.String("routines.pause_compensation", newCfg.Routines.PauseCompensation),
		)
	}
	if oldCfg.Host != newCfg.Host {
		changed = append(changed, "host")
		attrs = append(attrs, logx.Int("host.tick_rate", newCfg.Host.TickRate))
	}
	if !reflect.DeepEqual(derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)) {
		changed = append(changed, "storage")
		ns := derefStorage(newCfg.Storage)
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(ns.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(ns.Path) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Triggers, newCfg.Triggers) ||
		strings.TrimSpace(oldCfg.TriggerTimezone) != strings.TrimSpace(newCfg.TriggerTimezone) {
		changed = append(changed, "triggers")
		attrs = append(attrs,
			logx.Int("triggers.count", len(newCfg.Triggers)),
			logx.String("triggers.timezone", strings.TrimSpace(newCfg.TriggerTimezone)),
		)
	}
	// compare the token by presence only
	od, nd := oldCfg.Debug, newCfg.Debug
	odTok, ndTok := strings.TrimSpace(od.Token) != "", strings.TrimSpace(nd.Token) != ""
	od.Token, nd.Token = "", ""
	if od != nd || odTok != ndTok {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nd.Enabled),
			logx.String("debug.addr", strings.TrimSpace(nd.Addr)),
			logx.Bool("debug.token_set", ndTok),
		)
	}

	sort.Strings(changed)
	var restart []string
	for _, s := range changed {
		if restartSections[s] {
			restart = append(restart, s)
		}
	}
	return changed, attrs, restart
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
