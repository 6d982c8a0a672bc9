package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/sensorguard/internal/db"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

type AccessLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func NewAccessLogStore(db *sql.DB, writer *dbpkg.Worker) *AccessLogStore {
	return &AccessLogStore{db: db, writer: writer, now: utcNow}
}

func (s *AccessLogStore) AppendLog(ctx context.Context, rec store.AccessLogRecord) (int64, error) {
	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		id, err = s.insertLog(ctx, tx, rec)
		return err
	})
	return id, err
}

func (s *AccessLogStore) RecordAccess(ctx context.Context, rec store.AccessLogRecord) (int64, error) {
	if rec.AccessedAt.IsZero() {
		rec.AccessedAt = s.now()
	}
	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		if id, err = s.insertLog(ctx, tx, rec); err != nil {
			return err
		}
		return upsertStats(ctx, tx, rec.AppID, rec.AppName, rec.Sensor, rec.AccessedAt, rec.WasBackground, s.now())
	})
	return id, err
}

// insertLog must be called inside an existing transaction.
func (s *AccessLogStore) insertLog(ctx context.Context, tx *sql.Tx, rec store.AccessLogRecord) (int64, error) {
	if !rec.Sensor.Valid() {
		return 0, fmt.Errorf("insertLog: unknown sensor %q", rec.Sensor)
	}
	if rec.AccessedAt.IsZero() {
		rec.AccessedAt = s.now()
	}

	var reason any
	if rec.Suspicious && rec.SuspiciousReason != "" {
		reason = rec.SuspiciousReason
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO access_logs(
  app_id, app_name, sensor_type, accessed_at_ms,
  was_background, was_screen_off, is_suspicious, suspicious_reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
		rec.AppID, rec.AppName, string(rec.Sensor), toMs(rec.AccessedAt),
		dbpkg.BoolInt(rec.WasBackground), dbpkg.BoolInt(rec.WasScreenOff),
		dbpkg.BoolInt(rec.Suspicious), reason,
	)
	if err != nil {
		return 0, fmt.Errorf("insertLog: %w", err)
	}
	return res.LastInsertId()
}

const logColumns = `id, app_id, app_name, sensor_type, accessed_at_ms,
  was_background, was_screen_off, is_suspicious, suspicious_reason`

func (s *AccessLogStore) RecentLogs(ctx context.Context, limit int) ([]store.AccessLogRecord, error) {
	return s.queryLogs(ctx, "RecentLogs", `
SELECT `+logColumns+`
FROM access_logs
ORDER BY accessed_at_ms DESC, id DESC
LIMIT ?;
`, sqlLimit(limit))
}

func (s *AccessLogStore) SuspiciousLogs(ctx context.Context, limit int) ([]store.AccessLogRecord, error) {
	return s.queryLogs(ctx, "SuspiciousLogs", `
SELECT `+logColumns+`
FROM access_logs
WHERE is_suspicious = 1
ORDER BY accessed_at_ms DESC, id DESC
LIMIT ?;
`, sqlLimit(limit))
}

func (s *AccessLogStore) LogsForApp(ctx context.Context, appID string, limit int) ([]store.AccessLogRecord, error) {
	return s.queryLogs(ctx, "LogsForApp", `
SELECT `+logColumns+`
FROM access_logs
WHERE app_id = ?
ORDER BY accessed_at_ms DESC, id DESC
LIMIT ?;
`, appID, sqlLimit(limit))
}

func (s *AccessLogStore) queryLogs(ctx context.Context, op, query string, args ...any) ([]store.AccessLogRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", op, err)
	}
	defer rows.Close()

	var out []store.AccessLogRecord
	for rows.Next() {
		var rec store.AccessLogRecord
		var sensor string
		var accessedMs int64
		var background, screenOff, suspicious int
		var reason sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.AppID, &rec.AppName, &sensor, &accessedMs,
			&background, &screenOff, &suspicious, &reason,
		); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		rec.Sensor = types.SensorType(sensor)
		rec.AccessedAt = fromMs(accessedMs)
		rec.WasBackground = background == 1
		rec.WasScreenOff = screenOff == 1
		rec.Suspicious = suspicious == 1
		rec.SuspiciousReason = reason.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

func (s *AccessLogStore) PruneLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM access_logs WHERE accessed_at_ms < ?;`, toMs(cutoff))
		if err != nil {
			return fmt.Errorf("PruneLogsOlderThan: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (s *AccessLogStore) ClearLogs(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM access_logs;`); err != nil {
			return fmt.Errorf("ClearLogs: %w", err)
		}
		return nil
	})
}
