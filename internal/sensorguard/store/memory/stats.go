package memory

import (
	"context"
	"sort"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

func (s *Store) UpsertStats(_ context.Context, appID, appName string, sensor types.SensorType, at time.Time, wasBackground bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertStatsLocked(appID, appName, sensor, at, wasBackground)
	return nil
}

func (s *Store) upsertStatsLocked(appID, appName string, sensor types.SensorType, at time.Time, wasBackground bool) {
	row, ok := s.stats[appID]
	if !ok {
		row = store.NewAppStatsRecord(appID, appName)
	}
	row.Apply(appName, sensor, at, wasBackground, s.now())
	s.stats[appID] = row
}

func (s *Store) Stats(_ context.Context, appID string) (store.AppStatsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.stats[appID]
	if !ok {
		return store.AppStatsRecord{}, store.ErrNotFound
	}
	return copyStats(row), nil
}

func (s *Store) AllStats(_ context.Context) ([]store.AppStatsRecord, error) {
	out := s.snapshotStats()
	sort.Slice(out, func(i, j int) bool {
		if ti, tj := out[i].Total(), out[j].Total(); ti != tj {
			return ti > tj
		}
		return out[i].AppID < out[j].AppID
	})
	return out, nil
}

func (s *Store) TopBackgroundAccessors(_ context.Context, limit int) ([]store.AppStatsRecord, error) {
	all := s.snapshotStats()
	out := all[:0]
	for _, r := range all {
		if r.BackgroundCount > 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BackgroundCount != out[j].BackgroundCount {
			return out[i].BackgroundCount > out[j].BackgroundCount
		}
		return out[i].AppID < out[j].AppID
	})
	return out[:clampLimit(len(out), limit)], nil
}

func (s *Store) ClearStats(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = make(map[string]store.AppStatsRecord)
	return nil
}

func (s *Store) snapshotStats() []store.AppStatsRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AppStatsRecord, 0, len(s.stats))
	for _, r := range s.stats {
		out = append(out, copyStats(r))
	}
	return out
}

func copyStats(r store.AppStatsRecord) store.AppStatsRecord {
	out := r
	out.Counts = make(map[types.SensorType]int64, len(r.Counts))
	for k, v := range r.Counts {
		out.Counts[k] = v
	}
	out.LastAccess = make(map[types.SensorType]time.Time, len(r.LastAccess))
	for k, v := range r.LastAccess {
		out.LastAccess[k] = v
	}
	return out
}
