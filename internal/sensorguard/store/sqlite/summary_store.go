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

type SummaryStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSummaryStore(db *sql.DB, writer *dbpkg.Worker) *SummaryStore {
	return &SummaryStore{db: db, writer: writer}
}

// summaryColumns lists the per-sensor count/apps pairs in AllSensors order.
func summaryColumns() string {
	var b strings.Builder
	b.WriteString("date")
	for _, st := range types.AllSensors() {
		fmt.Fprintf(&b, ", %[1]s_count, %[1]s_apps", st.Column())
	}
	b.WriteString(", background_accesses, alerts_triggered")
	return b.String()
}

// RefreshDailySummary recomputes date's row from the raw logs and alerts and
// replaces whatever was stored. Running it twice yields the same row.
func (s *SummaryStore) RefreshDailySummary(ctx context.Context, date string, loc *time.Location) (store.DailySummaryRecord, error) {
	start, end, err := store.DayBounds(date, loc)
	if err != nil {
		return store.DailySummaryRecord{}, fmt.Errorf("RefreshDailySummary parse date %q: %w", date, err)
	}
	startMs, endMs := toMs(start), toMs(end)

	sum := store.NewDailySummaryRecord(date)
	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT sensor_type, COUNT(*), COUNT(DISTINCT app_id), COALESCE(SUM(was_background), 0)
FROM access_logs
WHERE accessed_at_ms >= ? AND accessed_at_ms < ?
GROUP BY sensor_type;
`, startMs, endMs)
		if err != nil {
			return fmt.Errorf("RefreshDailySummary logs: %w", err)
		}
		for rows.Next() {
			var sensor string
			var total, apps, background int64
			if err := rows.Scan(&sensor, &total, &apps, &background); err != nil {
				rows.Close()
				return fmt.Errorf("RefreshDailySummary scan: %w", err)
			}
			st := types.SensorType(sensor)
			sum.Totals[st] = total
			sum.DistinctApps[st] = apps
			sum.BackgroundAccesses += background
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("RefreshDailySummary close: %w", err)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("RefreshDailySummary rows: %w", err)
		}

		if err := tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM privacy_alerts WHERE timestamp_ms >= ? AND timestamp_ms < ?;
`, startMs, endMs).Scan(&sum.AlertsTriggered); err != nil {
			return fmt.Errorf("RefreshDailySummary alerts: %w", err)
		}

		args := []any{date}
		for _, st := range types.AllSensors() {
			args = append(args, sum.Totals[st], sum.DistinctApps[st])
		}
		args = append(args, sum.BackgroundAccesses, sum.AlertsTriggered)
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO daily_summaries(`+summaryColumns()+`) VALUES (`+placeholders+`);`,
			args...,
		); err != nil {
			return fmt.Errorf("RefreshDailySummary upsert: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.DailySummaryRecord{}, err
	}
	return sum, nil
}

func scanSummary(sc rowScanner) (store.DailySummaryRecord, error) {
	sensors := types.AllSensors()
	var date string
	totals := make([]int64, len(sensors))
	apps := make([]int64, len(sensors))
	var background, alerts int64

	dest := []any{&date}
	for i := range sensors {
		dest = append(dest, &totals[i], &apps[i])
	}
	dest = append(dest, &background, &alerts)

	if err := sc.Scan(dest...); err != nil {
		return store.DailySummaryRecord{}, err
	}

	sum := store.NewDailySummaryRecord(date)
	for i, st := range sensors {
		sum.Totals[st] = totals[i]
		sum.DistinctApps[st] = apps[i]
	}
	sum.BackgroundAccesses = background
	sum.AlertsTriggered = alerts
	return sum, nil
}

func (s *SummaryStore) Summary(ctx context.Context, date string) (store.DailySummaryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns()+` FROM daily_summaries WHERE date = ?;`, date)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DailySummaryRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.DailySummaryRecord{}, fmt.Errorf("Summary %s: %w", date, err)
	}
	return sum, nil
}

func (s *SummaryStore) RecentSummaries(ctx context.Context, limit int) ([]store.DailySummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+summaryColumns()+`
FROM daily_summaries
ORDER BY date DESC
LIMIT ?;
`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("RecentSummaries query: %w", err)
	}
	defer rows.Close()

	var out []store.DailySummaryRecord
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("RecentSummaries scan: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentSummaries rows: %w", err)
	}
	return out, nil
}

func (s *SummaryStore) ClearSummaries(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_summaries;`); err != nil {
			return fmt.Errorf("ClearSummaries: %w", err)
		}
		return nil
	})
}
