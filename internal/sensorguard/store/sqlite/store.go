package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/sensorguard/internal/db"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
)

// Store bundles the per-table stores behind the store.Store interface.
// Reads go straight to db; writes are serialised through writer.
type Store struct {
	*AccessLogStore
	*StatsStore
	*AlertStore
	*SummaryStore
	*SettingsStore

	writer *dbpkg.Worker
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{
		AccessLogStore: NewAccessLogStore(db, writer),
		StatsStore:     NewStatsStore(db, writer),
		AlertStore:     NewAlertStore(db, writer),
		SummaryStore:   NewSummaryStore(db, writer),
		SettingsStore:  NewSettingsStore(db, writer),
		writer:         writer,
	}
}

// ClearAll wipes logs, stats, alerts and summaries in one transaction.
// Settings survive.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, table := range []string{"access_logs", "app_sensor_stats", "privacy_alerts", "daily_summaries"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+";"); err != nil {
				return fmt.Errorf("ClearAll %s: %w", table, err)
			}
		}
		return nil
	})
}

func toMs(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// sqlLimit maps "limit <= 0 means everything" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func utcNow() time.Time { return time.Now().UTC() }
