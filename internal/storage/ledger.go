// Package storage keeps a durable ledger of marketplace submissions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Ledger records submissions and import task results in SQLite.
type Ledger struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the ledger database at dbPath. Use ":memory:" for
// a throwaway ledger.
func Open(dbPath string) (*Ledger, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps ":memory:" databases alive and writes serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Ledger{db: db, dbPath: dbPath}, nil
}

// Path returns the database location.
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// execTx runs builders in order inside one transaction.
func (l *Ledger) execTx(ctx context.Context, builders ...sq.Sqlizer) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, b := range builders {
		query, args, err := b.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
