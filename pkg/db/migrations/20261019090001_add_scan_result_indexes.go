package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillscan/pkg/db"
)

// Migration20261019090001AddScanResultIndexes indexes scan results by
// severity and scan time for listing and stats.
func Migration20261019090001AddScanResultIndexes() db.Migration {
	return db.Migration{
		Version:     20261019090001,
		Description: "Add scan_results indexes",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_scan_results_severity ON scan_results(severity)",
				"CREATE INDEX IF NOT EXISTS idx_scan_results_scanned_at ON scan_results(scanned_at DESC)",
			}
			for _, idx := range indexes {
				if _, err := tx.Exec(idx); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, drop := range []string{
				"DROP INDEX IF EXISTS idx_scan_results_scanned_at",
				"DROP INDEX IF EXISTS idx_scan_results_severity",
			} {
				if _, err := tx.Exec(drop); err != nil {
					return errors.Wrap(err, "failed to drop index")
				}
			}
			return nil
		},
	}
}
