package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations holds the ordered schema history. Entries are append-only; the
// applied version is tracked in schema_migrations.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL COLLATE NOCASE UNIQUE,
		display_name  TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin      INTEGER NOT NULL DEFAULT 0,
		disabled      INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		location             TEXT NOT NULL,
		power_watts          INTEGER NOT NULL CHECK (power_watts BETWEEN 100 AND 2000),
		max_duration_minutes INTEGER NOT NULL CHECK (max_duration_minutes BETWEEN 1 AND 60),
		status               TEXT NOT NULL DEFAULT 'available'
		                     CHECK (status IN ('available', 'occupied', 'maintenance')),
		current_user_name    TEXT,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id               TEXT PRIMARY KEY,
		device_id        TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		user_id          TEXT NOT NULL,
		user_name        TEXT NOT NULL,
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes >= 1),
		purpose          TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'active'
		                 CHECK (status IN ('active', 'cancelled', 'completed')),
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,
	// One active reservation per device: the database-level backstop for the
	// exclusivity invariant.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_active_device
		ON reservations(device_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user
		ON reservations(user_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		revoked_at TEXT
	)`,
}

// Migrate brings the schema up to the current version. It is safe to call on
// every startup; already-applied versions are skipped.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("sqlite: failed to create schema_migrations: %w", err)
	}

	var current sql.NullInt64
	if err := cp.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: failed to read schema version: %w", err)
	}

	applied := int64(0)
	if current.Valid {
		applied = current.Int64
	}

	for i, statement := range migrations {
		version := int64(i + 1)
		if version <= applied {
			continue
		}
		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(statement); err != nil {
				return fmt.Errorf("sqlite: migration %d failed: %w", version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
				return fmt.Errorf("sqlite: failed to record migration %d: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
