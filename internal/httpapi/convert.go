package httpapi

import (
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// ── Logs ─────────────────────────────────────────────────────────────────────

func logEntryFromRecord(r store.AccessLogRecord) types.LogEntry {
	e := types.LogEntry{
		ID:            r.ID,
		AppID:         r.AppID,
		AppName:       r.AppName,
		Sensor:        r.Sensor,
		AccessedAt:    r.AccessedAt.UTC(),
		WasBackground: r.WasBackground,
		WasScreenOff:  r.WasScreenOff,
		Suspicious:    r.Suspicious,
	}
	if r.Suspicious && r.SuspiciousReason != "" {
		reason := r.SuspiciousReason
		e.SuspiciousReason = &reason
	}
	return e
}

func logEntries(in []store.AccessLogRecord) []types.LogEntry {
	out := make([]types.LogEntry, 0, len(in))
	for _, r := range in {
		out = append(out, logEntryFromRecord(r))
	}
	return out
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func alertFromRecord(r store.AlertRecord) types.Alert {
	return types.Alert{
		ID:           r.ID,
		AppID:        r.AppID,
		AppName:      r.AppName,
		Type:         r.Type,
		Sensor:       r.Sensor,
		Message:      r.Message,
		Timestamp:    r.Timestamp.UTC(),
		Acknowledged: r.Acknowledged,
	}
}

func alerts(in []store.AlertRecord) []types.Alert {
	out := make([]types.Alert, 0, len(in))
	for _, r := range in {
		out = append(out, alertFromRecord(r))
	}
	return out
}

// ── Stats and summaries ──────────────────────────────────────────────────────

func appStatsFromRecord(r store.AppStatsRecord) types.AppStats {
	s := types.AppStats{
		AppID:           r.AppID,
		AppName:         r.AppName,
		Counts:          make(map[types.SensorType]int64, len(types.AllSensors())),
		LastAccess:      make(map[types.SensorType]time.Time, len(r.LastAccess)),
		BackgroundCount: r.BackgroundCount,
		LastUpdated:     r.LastUpdated.UTC(),
	}
	for _, sensor := range types.AllSensors() {
		s.Counts[sensor] = r.Counts[sensor]
	}
	for sensor, at := range r.LastAccess {
		s.LastAccess[sensor] = at.UTC()
	}
	return s
}

func appStats(in []store.AppStatsRecord) []types.AppStats {
	out := make([]types.AppStats, 0, len(in))
	for _, r := range in {
		out = append(out, appStatsFromRecord(r))
	}
	return out
}

func summaryFromRecord(r store.DailySummaryRecord) types.DailySummary {
	return types.DailySummary{
		Date:               r.Date,
		Totals:             r.Totals,
		DistinctApps:       r.DistinctApps,
		BackgroundAccesses: r.BackgroundAccesses,
		AlertsTriggered:    r.AlertsTriggered,
	}
}

func summaries(in []store.DailySummaryRecord) []types.DailySummary {
	out := make([]types.DailySummary, 0, len(in))
	for _, r := range in {
		out = append(out, summaryFromRecord(r))
	}
	return out
}
