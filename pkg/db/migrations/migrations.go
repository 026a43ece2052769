// Package migrations contains the schema migrations of the scan result store.
// Migrations use Rails-style timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/skillscan/pkg/db"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []db.Migration {
	return []db.Migration{
		Migration20261019090000CreateScanResults(),
		Migration20261019090001AddScanResultIndexes(),
	}
}
