package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillscan/pkg/db"
)

// Migration20261019090000CreateScanResults creates the table holding the
// latest scan summary of each skill.
func Migration20261019090000CreateScanResults() db.Migration {
	return db.Migration{
		Version:     20261019090000,
		Description: "Create scan_results table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS scan_results (
					skill_id TEXT PRIMARY KEY,
					skill_path TEXT NOT NULL DEFAULT '',
					run_id TEXT NOT NULL,
					severity TEXT NOT NULL,
					findings_count INTEGER NOT NULL DEFAULT 0,
					categories TEXT NOT NULL DEFAULT '[]',
					findings TEXT NOT NULL DEFAULT '[]',
					scanned_at TEXT NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create scan_results table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS scan_results")
			return errors.Wrap(err, "failed to drop scan_results table")
		},
	}
}
