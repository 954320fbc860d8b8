package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "cororun/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendTransition(ctx context.Context, t Transition) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions(at, routine_id, name, owner, hook, state, persistent)
		 VALUES(?,?,?,?,?,?,?)`,
		t.At.UTC().Format(time.RFC3339Nano), int64(t.RoutineID), nullStr(t.Name), nullStr(t.Owner),
		t.Hook, t.State, boolInt(t.Persistent),
	)
	return err
}

func (s *sqliteStore) RecentTransitions(ctx context.Context, limit int) ([]Transition, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, routine_id, name, owner, hook, state, persistent
		 FROM (SELECT * FROM transitions ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			at          string
			id          int64
			name, owner sql.NullString
			t           Transition
			persistent  int
		)
		if err := rows.Scan(&at, &id, &name, &owner, &t.Hook, &t.State, &persistent); err != nil {
			return nil, err
		}
		t.At, _ = time.Parse(time.RFC3339Nano, at)
		t.RoutineID = uint64(id)
		t.Name = name.String
		t.Owner = owner.String
		t.Persistent = persistent != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
