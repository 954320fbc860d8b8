package app

import (
	"fmt"
	"strings"
	"time"

	"cororun/internal/config"
	"cororun/internal/observability/debug"
	"cororun/internal/registry"
	"cororun/internal/routine"
	"cororun/internal/storage"
	logx "cororun/pkg/logx"
)

const defaultFailureLogRate = 10

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}

// mapEnvConfig covers the routine settings fixed at startup. Defaults and
// Host are filled in by the caller.
func mapEnvConfig(cfg *config.Config) (routine.Config, error) {
	strategy, err := registry.ParseStrategy(cfg.Registry.Strategy)
	if err != nil {
		return routine.Config{}, fmt.Errorf("registry.strategy: %w", err)
	}
	comp, err := routine.ParseCompensation(cfg.Routines.PauseCompensation)
	if err != nil {
		return routine.Config{}, fmt.Errorf("routines.pause_compensation: %w", err)
	}
	rate := cfg.Routines.FailureLogRate
	if rate == 0 {
		rate = defaultFailureLogRate
	}
	return routine.Config{
		Registry:       registry.Config{Strategy: strategy, Capacity: cfg.Registry.Capacity},
		DestroyOnEnd:   cfg.Routines.DestroyOnEnd,
		Compensation:   comp,
		FailureLogRate: rate,
	}, nil
}

func mapDebugConfig(cfg *config.Config) (debug.Config, error) {
	d := cfg.Debug
	read, err := config.ParseDurationOrDefault("debug.read_timeout", d.ReadTimeout, 10*time.Second)
	if err != nil {
		return debug.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("debug.idle_timeout", d.IdleTimeout, 60*time.Second)
	if err != nil {
		return debug.Config{}, err
	}
	if d.MutexProfileFraction < 0 || d.BlockProfileRate < 0 {
		return debug.Config{}, fmt.Errorf("debug profile rates must be >= 0")
	}
	return debug.Config{
		Enabled:              d.Enabled,
		Addr:                 strings.TrimSpace(d.Addr),
		Token:                strings.TrimSpace(d.Token),
		AllowInsecure:        d.AllowInsecure,
		ReadTimeout:          read,
		IdleTimeout:          idle,
		MutexProfileFraction: d.MutexProfileFraction,
		BlockProfileRate:     d.BlockProfileRate,
	}, nil
}
