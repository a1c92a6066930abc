package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the schema version this build requires.
const ExpectedSchemaVersion = 2

// Migration is one forward-only schema change.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Submissions and submitted items",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS submissions (
					task_id INTEGER PRIMARY KEY,
					session_id TEXT NOT NULL,
					item_count INTEGER NOT NULL,
					submitted_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at)`,
				`CREATE TABLE IF NOT EXISTS submission_items (
					task_id INTEGER NOT NULL,
					offer_id TEXT NOT NULL,
					type_id INTEGER NOT NULL,
					description_category_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					PRIMARY KEY (task_id, offer_id),
					FOREIGN KEY (task_id) REFERENCES submissions(task_id) ON DELETE CASCADE
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Import task item status",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS task_items (
					task_id INTEGER NOT NULL,
					offer_id TEXT NOT NULL,
					product_id INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL,
					errors INTEGER NOT NULL DEFAULT 0,
					checked_at DATETIME NOT NULL,
					PRIMARY KEY (task_id, offer_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_task_items_status ON task_items(status)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies pending migrations and verifies the final version.
func (l *Ledger) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := l.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := l.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	if err := l.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (l *Ledger) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := l.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
