package routine

import (
	"errors"
	"fmt"

	"cororun/internal/registry"
)

var (
	// ErrInvalidState is returned when an operation is not valid in the
	// routine's current state (e.g. Start on a routine that is not Idle).
	ErrInvalidState = errors.New("invalid routine state")
	// ErrDestroyed is returned by Start on a destroyed routine.
	ErrDestroyed = fmt.Errorf("routine destroyed: %w", ErrInvalidState)
	// ErrNoHost is returned by Start when the Env has no host to drive it.
	ErrNoHost = errors.New("routine env has no host")

	ErrCapacityExceeded = registry.ErrCapacityExceeded
	ErrNotFound         = registry.ErrNotFound
	ErrInvalidArgument  = registry.ErrInvalidArgument
)
