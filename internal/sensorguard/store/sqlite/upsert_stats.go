package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// upsertStats folds one access into the app's statistics row, creating the
// row on first sight. The last-access stamp only moves forward.
//
// Must be called inside an existing transaction.
func upsertStats(ctx context.Context, tx *sql.Tx, appID, appName string, sensor types.SensorType, at time.Time, wasBackground bool, now time.Time) error {
	if !sensor.Valid() {
		return fmt.Errorf("upsertStats: unknown sensor %q", sensor)
	}
	col := sensor.Column()

	q := fmt.Sprintf(`
INSERT INTO app_sensor_stats(
  app_id, app_name, %[1]s_count, %[1]s_last_ms, background_count, last_updated_ms
) VALUES (?, ?, 1, ?, ?, ?)
ON CONFLICT(app_id) DO UPDATE SET
  app_name = CASE WHEN excluded.app_name <> '' THEN excluded.app_name ELSE app_sensor_stats.app_name END,
  %[1]s_count = app_sensor_stats.%[1]s_count + 1,
  %[1]s_last_ms = MAX(COALESCE(app_sensor_stats.%[1]s_last_ms, excluded.%[1]s_last_ms), excluded.%[1]s_last_ms),
  background_count = app_sensor_stats.background_count + excluded.background_count,
  last_updated_ms = excluded.last_updated_ms;
`, col)

	var bg int
	if wasBackground {
		bg = 1
	}
	if _, err := tx.ExecContext(ctx, q, appID, appName, toMs(at), bg, toMs(now)); err != nil {
		return fmt.Errorf("upsertStats %s: %w", appID, err)
	}
	return nil
}
