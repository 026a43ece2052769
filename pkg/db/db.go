// Package db opens the SQLite database that stores scan results and applies
// its schema migrations.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DefaultDBPath returns $SKILLSCAN_BASE_PATH/storage.db, or
// ~/.skillscan/storage.db when the variable is unset.
func DefaultDBPath() (string, error) {
	if basePath := os.Getenv("SKILLSCAN_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "storage.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillscan", "storage.db"), nil
}

// Open opens or creates a SQLite database at dbPath in WAL mode.
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := Configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	return db, nil
}

// OpenMigrated opens the database at dbPath and applies any pending
// migrations before returning it.
func OpenMigrated(ctx context.Context, dbPath string, migrations []Migration) (*sqlx.DB, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if err := NewMigrationRunner(db).Run(ctx, migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Configure sets the SQLite pragmas used by every connection. A single
// connection is kept open so the pragmas apply to all statements.
func Configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled. Current mode: %s", journalMode)
	}

	return nil
}

// VerifyConfiguration checks that db runs in WAL mode with NORMAL
// synchronous writes and foreign keys enabled.
func VerifyConfiguration(db *sqlx.DB) error {
	checks := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"foreign_keys", "1"},
	}

	for _, c := range checks {
		var got string
		if err := db.Get(&got, "PRAGMA "+c.pragma); err != nil {
			return errors.Wrapf(err, "failed to query %s", c.pragma)
		}
		if strings.ToLower(got) != c.want {
			return errors.Errorf("expected %s=%s, got %s", c.pragma, c.want, got)
		}
	}
	return nil
}
