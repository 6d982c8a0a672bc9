package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// Store is an in-memory implementation of store.Store. It is intended for
// tests and for running without a database file.
type Store struct {
	mu        sync.RWMutex
	nextLogID int64
	logs      []store.AccessLogRecord
	stats     map[string]store.AppStatsRecord
	alerts    []store.AlertRecord
	summaries map[string]store.DailySummaryRecord
	settings  *types.Settings

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		stats:     make(map[string]store.AppStatsRecord),
		summaries: make(map[string]store.DailySummaryRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock used for last-updated stamps. Test-only helper.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	s.stats = make(map[string]store.AppStatsRecord)
	s.alerts = nil
	s.summaries = make(map[string]store.DailySummaryRecord)
	return nil
}

func clampLimit(n, limit int) int {
	if limit <= 0 || limit > n {
		return n
	}
	return limit
}

// newestFirst orders logs by access time, then id, descending.
func newestFirst(logs []store.AccessLogRecord) {
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].AccessedAt.Equal(logs[j].AccessedAt) {
			return logs[i].AccessedAt.After(logs[j].AccessedAt)
		}
		return logs[i].ID > logs[j].ID
	})
}
