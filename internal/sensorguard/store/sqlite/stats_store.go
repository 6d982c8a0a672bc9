package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/sensorguard/internal/db"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

type StatsStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func NewStatsStore(db *sql.DB, writer *dbpkg.Worker) *StatsStore {
	return &StatsStore{db: db, writer: writer, now: utcNow}
}

func (s *StatsStore) UpsertStats(ctx context.Context, appID, appName string, sensor types.SensorType, at time.Time, wasBackground bool) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return upsertStats(ctx, tx, appID, appName, sensor, at, wasBackground, s.now())
	})
}

// statsColumns lists the per-sensor count/last pairs in AllSensors order.
func statsColumns() string {
	var b strings.Builder
	b.WriteString("app_id, app_name")
	for _, st := range types.AllSensors() {
		fmt.Fprintf(&b, ", %[1]s_count, %[1]s_last_ms", st.Column())
	}
	b.WriteString(", background_count, last_updated_ms")
	return b.String()
}

// totalExpr is the SQL sum of every per-sensor count.
func totalExpr() string {
	parts := make([]string, 0, len(types.AllSensors()))
	for _, st := range types.AllSensors() {
		parts = append(parts, st.Column()+"_count")
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStats(sc rowScanner) (store.AppStatsRecord, error) {
	sensors := types.AllSensors()
	var appID, appName string
	counts := make([]int64, len(sensors))
	lasts := make([]sql.NullInt64, len(sensors))
	var background, updatedMs int64

	dest := []any{&appID, &appName}
	for i := range sensors {
		dest = append(dest, &counts[i], &lasts[i])
	}
	dest = append(dest, &background, &updatedMs)

	if err := sc.Scan(dest...); err != nil {
		return store.AppStatsRecord{}, err
	}

	rec := store.NewAppStatsRecord(appID, appName)
	for i, st := range sensors {
		rec.Counts[st] = counts[i]
		if lasts[i].Valid {
			rec.LastAccess[st] = fromMs(lasts[i].Int64)
		}
	}
	rec.BackgroundCount = background
	rec.LastUpdated = fromMs(updatedMs)
	return rec, nil
}

func (s *StatsStore) Stats(ctx context.Context, appID string) (store.AppStatsRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+statsColumns()+` FROM app_sensor_stats WHERE app_id = ?;`, appID)
	rec, err := scanStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AppStatsRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.AppStatsRecord{}, fmt.Errorf("Stats %s: %w", appID, err)
	}
	return rec, nil
}

func (s *StatsStore) AllStats(ctx context.Context) ([]store.AppStatsRecord, error) {
	return s.queryStats(ctx, "AllStats", `
SELECT `+statsColumns()+`
FROM app_sensor_stats
ORDER BY `+totalExpr()+` DESC, app_id ASC;
`)
}

func (s *StatsStore) TopBackgroundAccessors(ctx context.Context, limit int) ([]store.AppStatsRecord, error) {
	return s.queryStats(ctx, "TopBackgroundAccessors", `
SELECT `+statsColumns()+`
FROM app_sensor_stats
WHERE background_count > 0
ORDER BY background_count DESC, app_id ASC
LIMIT ?;
`, sqlLimit(limit))
}

func (s *StatsStore) queryStats(ctx context.Context, op, query string, args ...any) ([]store.AppStatsRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", op, err)
	}
	defer rows.Close()

	var out []store.AppStatsRecord
	for rows.Next() {
		rec, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

func (s *StatsStore) ClearStats(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM app_sensor_stats;`); err != nil {
			return fmt.Errorf("ClearStats: %w", err)
		}
		return nil
	})
}
