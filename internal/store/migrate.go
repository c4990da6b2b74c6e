package store

import (
	"database/sql"
	"fmt"
	"sort"
)

type migration struct {
	Version string
	SQL     string
}

var migrations = []migration{
	{
		Version: "001_printers",
		SQL: `
			CREATE TABLE IF NOT EXISTS printers (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				public_host TEXT NOT NULL,
				public_port INTEGER NOT NULL,
				protocol TEXT NOT NULL DEFAULT 'raw',
				enabled INTEGER NOT NULL DEFAULT 1,
				allowed_sources TEXT NOT NULL DEFAULT '[]',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version: "002_print_jobs",
		SQL: `
			CREATE TABLE IF NOT EXISTS print_jobs (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				created_by TEXT NOT NULL DEFAULT '',
				source TEXT NOT NULL DEFAULT 'web',
				order_id TEXT NOT NULL DEFAULT '',
				printer_id TEXT NOT NULL,
				payload BLOB NOT NULL,
				status TEXT NOT NULL DEFAULT 'queued',
				attempts INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				dispatched_at DATETIME,
				printed_at DATETIME,
				next_attempt_at DATETIME,
				idempotency_key TEXT NOT NULL UNIQUE
			);
			CREATE INDEX IF NOT EXISTS idx_print_jobs_claim
				ON print_jobs (status, next_attempt_at, created_at);
			CREATE INDEX IF NOT EXISTS idx_print_jobs_failed
				ON print_jobs (status, created_at);
		`,
	},
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	pending := make([]migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}
	}

	return nil
}
