package memory

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
)

func (s *Store) AppendLog(_ context.Context, rec store.AccessLogRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLogLocked(rec), nil
}

func (s *Store) RecordAccess(_ context.Context, rec store.AccessLogRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.appendLogLocked(rec)
	s.upsertStatsLocked(rec.AppID, rec.AppName, rec.Sensor, rec.AccessedAt, rec.WasBackground)
	return id, nil
}

func (s *Store) appendLogLocked(rec store.AccessLogRecord) int64 {
	if rec.AccessedAt.IsZero() {
		rec.AccessedAt = s.now()
	}
	if !rec.Suspicious {
		rec.SuspiciousReason = ""
	}
	s.nextLogID++
	rec.ID = s.nextLogID
	s.logs = append(s.logs, rec)
	return rec.ID
}

func (s *Store) RecentLogs(_ context.Context, limit int) ([]store.AccessLogRecord, error) {
	return s.filterLogs(limit, func(store.AccessLogRecord) bool { return true }), nil
}

func (s *Store) SuspiciousLogs(_ context.Context, limit int) ([]store.AccessLogRecord, error) {
	return s.filterLogs(limit, func(r store.AccessLogRecord) bool { return r.Suspicious }), nil
}

func (s *Store) LogsForApp(_ context.Context, appID string, limit int) ([]store.AccessLogRecord, error) {
	return s.filterLogs(limit, func(r store.AccessLogRecord) bool { return r.AppID == appID }), nil
}

func (s *Store) filterLogs(limit int, keep func(store.AccessLogRecord) bool) []store.AccessLogRecord {
	s.mu.RLock()
	out := make([]store.AccessLogRecord, 0, len(s.logs))
	for _, r := range s.logs {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	newestFirst(out)
	return out[:clampLimit(len(out), limit)]
}

func (s *Store) PruneLogsOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	var deleted int64
	for _, r := range s.logs {
		if r.AccessedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.logs = kept
	return deleted, nil
}

func (s *Store) ClearLogs(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	return nil
}

// Logs returns a copy of all logs in insertion order. Test-only helper.
func (s *Store) Logs() []store.AccessLogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AccessLogRecord, len(s.logs))
	copy(out, s.logs)
	return out
}
