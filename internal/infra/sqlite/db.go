// Package sqlite provides SQLite-based persistent storage for StarPath.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/starpath-app/starpath/internal/domain"
)

// FileName is the database file created inside the data directory.
const FileName = "starpath.db"

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.Store.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/starpath.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// WithTx runs fn inside one SQLite transaction. With a single open
// connection, transactions are serialized, so a read-modify-write of the
// profile inside fn cannot interleave with another one.
func (d *DB) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&tx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Habits and the completion ledger
		`CREATE TABLE IF NOT EXISTS habits (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			name              TEXT NOT NULL,
			frequency         TEXT NOT NULL DEFAULT 'daily',
			xp_reward         INTEGER NOT NULL,
			streak            INTEGER NOT NULL DEFAULT 0,
			best_streak       INTEGER NOT NULL DEFAULT 0,
			total_completions INTEGER NOT NULL DEFAULT 0,
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id)`,

		`CREATE TABLE IF NOT EXISTS habit_completions (
			id         TEXT PRIMARY KEY,
			habit_id   TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			day        TEXT NOT NULL,
			xp_awarded INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(habit_id, day)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_user_day ON habit_completions(user_id, day)`,

		// Goals and their task trees
		`CREATE TABLE IF NOT EXISTS goals (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			deadline    INTEGER,
			status      TEXT NOT NULL DEFAULT 'active',
			progress    INTEGER NOT NULL DEFAULT 0,
			goal_type   TEXT NOT NULL DEFAULT 'short_term',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id, status)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id             TEXT PRIMARY KEY,
			goal_id        TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
			user_id        TEXT NOT NULL,
			title          TEXT NOT NULL,
			completed      BOOLEAN NOT NULL DEFAULT 0,
			due_date       INTEGER,
			parent_task_id TEXT REFERENCES tasks(id) ON DELETE CASCADE,
			position       INTEGER NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_goal ON tasks(goal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, completed)`,

		// ─── Gamification ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS profiles (
			user_id        TEXT PRIMARY KEY,
			xp             INTEGER NOT NULL DEFAULT 0,
			level          INTEGER NOT NULL DEFAULT 1,
			total_xp       INTEGER NOT NULL DEFAULT 0,
			streak         INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			is_premium     BOOLEAN NOT NULL DEFAULT 0,
			updated_at     INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_achievements (
			user_id        TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			unlocked_at    INTEGER NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// tx implements domain.Tx over one *sql.Tx.
type tx struct {
	q *sql.Tx
}

var _ domain.Tx = (*tx)(nil)

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func nullStr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (t *tx) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := t.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
