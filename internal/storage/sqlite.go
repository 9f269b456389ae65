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

	_ "modernc.org/sqlite"

	"aprsbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the sqlite database and applies migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
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

func (s *sqliteStore) InsertDebounce(ctx context.Context, callsign, command string, stamp int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO debouncer(callsign, message, datetime) VALUES(?,?,?)`,
		callsign, command, stamp,
	)
	return err
}

func (s *sqliteStore) HasRecentDebounce(ctx context.Context, callsign, command string, cutoff int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM debouncer WHERE callsign = ? AND message = ? AND datetime > ? LIMIT 1`,
		callsign, command, cutoff,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) CheckIn(ctx context.Context, callsign, net, date string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO netcontrol(callsign, net_name, date) VALUES(?,?,?)`,
		callsign, net, date,
	)
	return err
}

func (s *sqliteStore) CheckOut(ctx context.Context, callsign, net string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM netcontrol WHERE callsign = ? AND net_name = ?`,
		callsign, net,
	)
	return err
}

func (s *sqliteStore) NetRoster(ctx context.Context, callsign, net, date string, limit int) ([]string, error) {
	q := `SELECT callsign FROM netcontrol WHERE callsign = ? AND net_name = ? AND date = ?`
	args := []any{callsign, net, date}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryCallsigns(ctx, q, args...)
}

func (s *sqliteStore) NetMembers(ctx context.Context, net, date string) ([]string, error) {
	return s.queryCallsigns(ctx,
		`SELECT callsign FROM netcontrol WHERE net_name = ? AND date = ?`,
		net, date,
	)
}

func (s *sqliteStore) queryCallsigns(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cs string
		if err := rows.Scan(&cs); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
