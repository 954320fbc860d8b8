package config

// Config is the daemon configuration. Files may be JSON or YAML; unknown
// fields are rejected in both.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Registry RegistryConfig `json:"registry"`
	Routines RoutinesConfig `json:"routines"`
	Host     HostConfig     `json:"host"`
	Storage  *StorageConfig `json:"storage,omitempty"`

	// Triggers start or control routines by name on a schedule.
	Triggers []TriggerConfig `json:"triggers,omitempty"`
	// TriggerTimezone is an IANA zone name for cron and HH:MM triggers.
	// Empty means the local zone.
	TriggerTimezone string `json:"trigger_timezone,omitempty"`

	Debug DebugConfig `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RegistryConfig selects how live routines are stored.
//
// strategy: "unique_set" (default), "ordered_list" or "fixed_array".
// capacity is required for fixed_array.
type RegistryConfig struct {
	Strategy string `json:"strategy,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
}

type RoutinesConfig struct {
	DestroyOnEnd bool `json:"destroy_on_end"`
	// PauseCompensation is "wait" (default) or "uniform".
	PauseCompensation string `json:"pause_compensation,omitempty"`
	// FailureLogRate caps logged listener failures per second. 0 means 10.
	FailureLogRate int         `json:"failure_log_rate,omitempty"`
	Hooks          HooksConfig `json:"hooks,omitempty"`
}

// HooksConfig names the built-in default listeners attached to each hook.
// Known names: "log", "event", "audit".
type HooksConfig struct {
	OnStart    []string `json:"on_start,omitempty"`
	OnPause    []string `json:"on_pause,omitempty"`
	OnResume   []string `json:"on_resume,omitempty"`
	OnCancel   []string `json:"on_cancel,omitempty"`
	OnComplete []string `json:"on_complete,omitempty"`
	OnDestroy  []string `json:"on_destroy,omitempty"`
}

// ByKind returns the listener names keyed by hook name ("start", ...).
func (h HooksConfig) ByKind() map[string][]string {
	return map[string][]string{
		"start":    h.OnStart,
		"pause":    h.OnPause,
		"resume":   h.OnResume,
		"cancel":   h.OnCancel,
		"complete": h.OnComplete,
		"destroy":  h.OnDestroy,
	}
}

type HostConfig struct {
	// TickRate is ticks per second. 0 means 60.
	TickRate int `json:"tick_rate,omitempty"`
	// CommandQueue bounds commands posted to the pump. 0 means 256.
	CommandQueue int `json:"command_queue,omitempty"`
}

// StorageConfig controls where the audit listener writes transitions.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cororun.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TriggerConfig runs Action on every routine named Routine when Schedule
// fires.
//
// Schedule forms:
//   - cron: "*/5 * * * *", with optional seconds field, or "@hourly"
//   - interval: "30s", "every 30s" or "02:30" (every 2h30m)
type TriggerConfig struct {
	Name     string `json:"name"`
	Routine  string `json:"routine"`
	Schedule string `json:"schedule"`
	// Action is start (default), restart, stop, pause, resume or toggle.
	Action string `json:"action,omitempty"`
}

// DebugConfig controls the optional debug HTTP server (pprof and a JSON
// view of live routines).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:6060"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}
