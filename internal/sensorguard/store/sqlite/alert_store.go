package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/BrandonDHaskell/sensorguard/internal/db"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

type AlertStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func NewAlertStore(db *sql.DB, writer *dbpkg.Worker) *AlertStore {
	return &AlertStore{db: db, writer: writer, now: utcNow}
}

func (s *AlertStore) AppendAlert(ctx context.Context, rec store.AlertRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO privacy_alerts(
  id, app_id, app_name, alert_type, sensor_type, message, timestamp_ms, acknowledged
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.AppID, rec.AppName, string(rec.Type), string(rec.Sensor),
			rec.Message, toMs(rec.Timestamp), dbpkg.BoolInt(rec.Acknowledged),
		); err != nil {
			return fmt.Errorf("AppendAlert insert: %w", err)
		}
		return nil
	})
}

func (s *AlertStore) Acknowledge(ctx context.Context, id string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE privacy_alerts SET acknowledged = 1 WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("Acknowledge %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Acknowledge %s rows: %w", id, err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *AlertStore) AcknowledgeAll(ctx context.Context) (int64, error) {
	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE privacy_alerts SET acknowledged = 1 WHERE acknowledged = 0;`)
		if err != nil {
			return fmt.Errorf("AcknowledgeAll: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

const alertColumns = `id, app_id, app_name, alert_type, sensor_type, message, timestamp_ms, acknowledged`

func (s *AlertStore) UnacknowledgedAlerts(ctx context.Context) ([]store.AlertRecord, error) {
	return s.queryAlerts(ctx, "UnacknowledgedAlerts", `
SELECT `+alertColumns+`
FROM privacy_alerts
WHERE acknowledged = 0
ORDER BY timestamp_ms DESC, rowid DESC;
`)
}

func (s *AlertStore) RecentAlerts(ctx context.Context, limit int) ([]store.AlertRecord, error) {
	return s.queryAlerts(ctx, "RecentAlerts", `
SELECT `+alertColumns+`
FROM privacy_alerts
ORDER BY timestamp_ms DESC, rowid DESC
LIMIT ?;
`, sqlLimit(limit))
}

func (s *AlertStore) CountUnacknowledged(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM privacy_alerts WHERE acknowledged = 0;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountUnacknowledged: %w", err)
	}
	return n, nil
}

func (s *AlertStore) queryAlerts(ctx context.Context, op, query string, args ...any) ([]store.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", op, err)
	}
	defer rows.Close()

	var out []store.AlertRecord
	for rows.Next() {
		var rec store.AlertRecord
		var alertType, sensor string
		var tsMs int64
		var acked int
		if err := rows.Scan(
			&rec.ID, &rec.AppID, &rec.AppName, &alertType, &sensor,
			&rec.Message, &tsMs, &acked,
		); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		rec.Type = types.AlertType(alertType)
		rec.Sensor = types.SensorType(sensor)
		rec.Timestamp = fromMs(tsMs)
		rec.Acknowledged = acked == 1
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

func (s *AlertStore) ClearAlerts(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM privacy_alerts;`); err != nil {
			return fmt.Errorf("ClearAlerts: %w", err)
		}
		return nil
	})
}
