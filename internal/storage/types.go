package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Transition records one lifecycle hook firing on a routine.
// Keep it compact and schema-stable.
type Transition struct {
	At         time.Time `json:"at"`
	RoutineID  uint64    `json:"routine_id"`
	Name       string    `json:"name,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	Hook       string    `json:"hook"`
	State      string    `json:"state"`
	Persistent bool      `json:"persistent,omitempty"`
}
