package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// SeedDefaults writes the default guardian settings row if none exists yet.
// An existing row is never touched.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	st := types.DefaultSettings()

	monitor, err := json.Marshal(st.Monitor)
	if err != nil {
		return fmt.Errorf("seed settings monitor: %w", err)
	}
	whitelist, err := json.Marshal(st.Whitelist)
	if err != nil {
		return fmt.Errorf("seed settings whitelist: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO guardian_settings(
  id, enabled, monitor_json,
  alert_background, alert_screen_off, alert_frequent,
  frequent_threshold, whitelist_json, updated_at_ms
) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?);`,
		BoolInt(st.Enabled), string(monitor),
		BoolInt(st.AlertOnBackgroundAccess), BoolInt(st.AlertOnScreenOffAccess), BoolInt(st.AlertOnFrequentAccess),
		st.FrequentAccessThreshold, string(whitelist), time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// BoolInt maps a bool onto SQLite's 0/1 integer convention.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
