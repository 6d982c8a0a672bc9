package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// AppStatsRecord holds running totals for one app. A sensor missing from
// LastAccess has never been accessed by the app.
type AppStatsRecord struct {
	AppID           string
	AppName         string
	Counts          map[types.SensorType]int64
	LastAccess      map[types.SensorType]time.Time
	BackgroundCount int64
	LastUpdated     time.Time
}

// NewAppStatsRecord returns the zero row for appID.
func NewAppStatsRecord(appID, appName string) AppStatsRecord {
	return AppStatsRecord{
		AppID:      appID,
		AppName:    appName,
		Counts:     make(map[types.SensorType]int64, len(types.AllSensors())),
		LastAccess: make(map[types.SensorType]time.Time),
	}
}

// Apply folds one access into the row.
func (r *AppStatsRecord) Apply(appName string, sensor types.SensorType, at time.Time, wasBackground bool, now time.Time) {
	if appName != "" {
		r.AppName = appName
	}
	r.Counts[sensor]++
	if last, ok := r.LastAccess[sensor]; !ok || at.After(last) {
		r.LastAccess[sensor] = at
	}
	if wasBackground {
		r.BackgroundCount++
	}
	r.LastUpdated = now
}

// Total is the sum of all per-sensor counts.
func (r AppStatsRecord) Total() int64 {
	var n int64
	for _, c := range r.Counts {
		n += c
	}
	return n
}

type StatsStore interface {
	// UpsertStats is a read-modify-write of the app's row, atomic per app.
	UpsertStats(ctx context.Context, appID, appName string, sensor types.SensorType, at time.Time, wasBackground bool) error

	Stats(ctx context.Context, appID string) (AppStatsRecord, error)
	AllStats(ctx context.Context) ([]AppStatsRecord, error)
	TopBackgroundAccessors(ctx context.Context, limit int) ([]AppStatsRecord, error)

	ClearStats(ctx context.Context) error
}
