package ratelimit

import (
	"context"
	"database/sql"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed db/schema.sql
var Schema string

// Sqlite is the shared-backend Store. Several processes pointing at the
// same database file (or a libsql-compatible remote) see one combined
// window, so a breaker tripped by one instance blocks all of them.
// Timestamps are stored at millisecond precision.
type Sqlite struct {
	db        *sql.DB
	retention time.Duration
}

func NewSqlite(db *sql.DB, retention time.Duration) (*Sqlite, error) {
	if retention <= 0 {
		retention = time.Hour
	}
	_, err := db.Exec(Schema)
	if err != nil {
		return nil, err
	}
	return &Sqlite{db: db, retention: retention}, nil
}

func (s *Sqlite) Record(ctx context.Context, key string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_hits WHERE key = ? AND at < ?`,
		key, now.Add(-s.retention).UnixMilli(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_hits (key, at) VALUES (?, ?)`,
		key, now.UnixMilli(),
	)
	return err
}

func (s *Sqlite) CountSince(ctx context.Context, key string, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limit_hits WHERE key = ? AND at >= ?`,
		key, cutoff.UnixMilli(),
	).Scan(&n)
	return n, err
}

func (s *Sqlite) SetCooldown(ctx context.Context, key string, until time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_cooldowns (key, until) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET until = MAX(until, excluded.until)`,
		key, until.UnixMilli(),
	)
	return err
}

func (s *Sqlite) CooldownRemaining(ctx context.Context, key string, now time.Time) (time.Duration, error) {
	var until int64
	err := s.db.QueryRowContext(ctx,
		`SELECT until FROM rate_limit_cooldowns WHERE key = ?`,
		key,
	).Scan(&until)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	remaining := time.UnixMilli(until).Sub(now)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
