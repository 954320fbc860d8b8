package storage

import (
	"context"
	"errors"
	"strings"

	logx "cororun/pkg/logx"
)

// Store persists routine transitions for the audit listener.
type Store interface {
	AppendTransition(ctx context.Context, t Transition) error
	// RecentTransitions returns up to limit transitions, oldest first.
	RecentTransitions(ctx context.Context, limit int) ([]Transition, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
