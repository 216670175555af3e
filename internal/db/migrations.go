package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: default site metrics. MultiWhs controls whether the site
	// selector is offered; AllowAvgCostMethod whether receipts may adjust cost.
	`INSERT OR IGNORE INTO settings (key, value) VALUES ('MultiWhs', 't')`,
	`INSERT OR IGNORE INTO settings (key, value) VALUES ('AllowAvgCostMethod', 't')`,

	// Migration 2: history lookups by series during the stale-series sweep.
	`CREATE INDEX IF NOT EXISTS idx_invhist_series ON invhist(invhist_series)`,
}

// Migrate ensures the schema exists and applies all migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
