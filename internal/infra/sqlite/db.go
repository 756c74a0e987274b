// Package sqlite provides SQLite-based persistent storage for coproc.
// Uses WAL mode for concurrent reads and crash-safe writes. SQLite's
// single-writer connection doubles as the serialization point for state
// transitions: conditional UPDATEs implement compare-and-swap on task state.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

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
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Task lifecycle state
		`CREATE TABLE IF NOT EXISTS tasks (
			id                TEXT PRIMARY KEY,
			requester         TEXT NOT NULL,
			input_commitment  TEXT NOT NULL,
			complexity        INTEGER NOT NULL,
			reward            INTEGER NOT NULL,
			state             TEXT NOT NULL,
			assigned_operator TEXT,
			result_hash       TEXT,
			nonce             INTEGER NOT NULL DEFAULT 0,
			created_at        INTEGER NOT NULL,
			completed_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_requester ON tasks(requester)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at)`,

		// Per-requester monotonic nonce for task ID derivation
		`CREATE TABLE IF NOT EXISTS task_nonces (
			requester TEXT PRIMARY KEY,
			next      INTEGER NOT NULL
		)`,

		// Operator registry
		`CREATE TABLE IF NOT EXISTS operators (
			id              TEXT PRIMARY KEY,
			stake           INTEGER NOT NULL,
			reputation      INTEGER NOT NULL,
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			registered      BOOLEAN NOT NULL DEFAULT 1,
			registered_at   INTEGER NOT NULL,
			last_active     INTEGER
		)`,

		// Settlement ledger (double-entry bookkeeping)
		// Every settlement operation creates matched DEBIT/CREDIT entries;
		// SUM(debits) == SUM(credits) is an invariant.
		`CREATE TABLE IF NOT EXISTS settlement_ledger (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			type        TEXT NOT NULL,
			entry_type  TEXT NOT NULL,
			account     TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			task_id     TEXT,
			description TEXT,
			balance     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settle_ts ON settlement_ledger(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_settle_account ON settlement_ledger(account)`,
		`CREATE INDEX IF NOT EXISTS idx_settle_task ON settlement_ledger(task_id)`,

		// Append-only protocol event log
		`CREATE TABLE IF NOT EXISTS events (
			id          TEXT PRIMARY KEY,
			type        TEXT NOT NULL,
			task_id     TEXT,
			requester   TEXT,
			operator    TEXT,
			complexity  INTEGER,
			amount      INTEGER,
			result_hash TEXT,
			reason      TEXT,
			at          INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_at ON events(at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
