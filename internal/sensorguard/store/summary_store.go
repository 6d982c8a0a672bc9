package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// DailySummaryRecord is a materialized view of one calendar day of the log.
// It carries no refresh timestamp: regenerating it from the same log must
// produce an identical row.
type DailySummaryRecord struct {
	Date               string
	Totals             map[types.SensorType]int64
	DistinctApps       map[types.SensorType]int64
	BackgroundAccesses int64
	AlertsTriggered    int64
}

// NewDailySummaryRecord returns a zeroed summary with every sensor present.
func NewDailySummaryRecord(date string) DailySummaryRecord {
	r := DailySummaryRecord{
		Date:         date,
		Totals:       make(map[types.SensorType]int64, len(types.AllSensors())),
		DistinctApps: make(map[types.SensorType]int64, len(types.AllSensors())),
	}
	for _, s := range types.AllSensors() {
		r.Totals[s] = 0
		r.DistinctApps[s] = 0
	}
	return r
}

type SummaryStore interface {
	// RefreshDailySummary recomputes the row for date (interpreted in loc)
	// from the log and alert tables and replaces any existing row.
	RefreshDailySummary(ctx context.Context, date string, loc *time.Location) (DailySummaryRecord, error)

	Summary(ctx context.Context, date string) (DailySummaryRecord, error)
	RecentSummaries(ctx context.Context, limit int) ([]DailySummaryRecord, error)

	ClearSummaries(ctx context.Context) error
}

// SettingsStore holds the single settings row.
type SettingsStore interface {
	// LoadSettings returns the stored settings, or the defaults when none
	// have been saved.
	LoadSettings(ctx context.Context) (types.Settings, error)

	// SaveSettings validates and replaces the stored settings. On a
	// validation error the previous settings are kept.
	SaveSettings(ctx context.Context, s types.Settings) error
}
