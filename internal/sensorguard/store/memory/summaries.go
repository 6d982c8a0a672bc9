package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

func (s *Store) RefreshDailySummary(_ context.Context, date string, loc *time.Location) (store.DailySummaryRecord, error) {
	start, end, err := store.DayBounds(date, loc)
	if err != nil {
		return store.DailySummaryRecord{}, fmt.Errorf("RefreshDailySummary parse date %q: %w", date, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum := store.NewDailySummaryRecord(date)
	apps := make(map[types.SensorType]map[string]struct{})
	for _, r := range s.logs {
		if r.AccessedAt.Before(start) || !r.AccessedAt.Before(end) {
			continue
		}
		sum.Totals[r.Sensor]++
		if r.WasBackground {
			sum.BackgroundAccesses++
		}
		if apps[r.Sensor] == nil {
			apps[r.Sensor] = make(map[string]struct{})
		}
		apps[r.Sensor][r.AppID] = struct{}{}
	}
	for sensor, set := range apps {
		sum.DistinctApps[sensor] = int64(len(set))
	}
	for _, a := range s.alerts {
		if !a.Timestamp.Before(start) && a.Timestamp.Before(end) {
			sum.AlertsTriggered++
		}
	}

	s.summaries[date] = sum
	return copySummary(sum), nil
}

func (s *Store) Summary(_ context.Context, date string) (store.DailySummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[date]
	if !ok {
		return store.DailySummaryRecord{}, store.ErrNotFound
	}
	return copySummary(sum), nil
}

func (s *Store) RecentSummaries(_ context.Context, limit int) ([]store.DailySummaryRecord, error) {
	s.mu.RLock()
	out := make([]store.DailySummaryRecord, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, copySummary(sum))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out[:clampLimit(len(out), limit)], nil
}

func (s *Store) ClearSummaries(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = make(map[string]store.DailySummaryRecord)
	return nil
}

func copySummary(r store.DailySummaryRecord) store.DailySummaryRecord {
	out := r
	out.Totals = make(map[types.SensorType]int64, len(r.Totals))
	for k, v := range r.Totals {
		out.Totals[k] = v
	}
	out.DistinctApps = make(map[types.SensorType]int64, len(r.DistinctApps))
	for k, v := range r.DistinctApps {
		out.DistinctApps[k] = v
	}
	return out
}

func (s *Store) LoadSettings(_ context.Context) (types.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return types.DefaultSettings(), nil
	}
	return s.settings.Clone(), nil
}

func (s *Store) SaveSettings(_ context.Context, st types.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	n := st.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &n
	return nil
}
