// Package storetest is a behavioural test suite shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Base is a fixed instant used by every case. Times stay on whole
// milliseconds so that stores with millisecond precision round-trip them.
var Base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// Run exercises s against the shared contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("RecordAccessWritesLogAndStats", func(t *testing.T) { testRecordAccess(t, newStore(t)) })
	t.Run("LogQueries", func(t *testing.T) { testLogQueries(t, newStore(t)) })
	t.Run("PruneLogs", func(t *testing.T) { testPruneLogs(t, newStore(t)) })
	t.Run("StatsOrdering", func(t *testing.T) { testStatsOrdering(t, newStore(t)) })
	t.Run("StatsLastAccessOnlyMovesForward", func(t *testing.T) { testLastAccessForward(t, newStore(t)) })
	t.Run("Alerts", func(t *testing.T) { testAlerts(t, newStore(t)) })
	t.Run("DailySummary", func(t *testing.T) { testDailySummary(t, newStore(t)) })
	t.Run("DailySummaryAfterClearAll", func(t *testing.T) { testSummaryAfterClear(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newStore(t)) })
}

func logRec(app string, sensor types.SensorType, at time.Time, bg bool) store.AccessLogRecord {
	return store.AccessLogRecord{
		AppID:         app,
		AppName:       app + " name",
		Sensor:        sensor,
		AccessedAt:    at,
		WasBackground: bg,
	}
}

// ---------------------------------------------------------------------------
// Access log and stats
// ---------------------------------------------------------------------------

func testRecordAccess(t *testing.T, s store.Store) {
	ctx := context.Background()

	id1, err := s.RecordAccess(ctx, logRec("com.a", types.SensorCamera, Base, true))
	require.NoError(t, err)
	id2, err := s.RecordAccess(ctx, logRec("com.a", types.SensorCamera, Base.Add(time.Second), false))
	require.NoError(t, err)
	_, err = s.RecordAccess(ctx, logRec("com.a", types.SensorMicrophone, Base.Add(2*time.Second), true))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	logs, err := s.LogsForApp(ctx, "com.a", 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	st, err := s.Stats(ctx, "com.a")
	require.NoError(t, err)
	assert.Equal(t, "com.a name", st.AppName)
	assert.EqualValues(t, 2, st.Counts[types.SensorCamera])
	assert.EqualValues(t, 1, st.Counts[types.SensorMicrophone])
	assert.EqualValues(t, 0, st.Counts[types.SensorLocation])
	assert.EqualValues(t, 2, st.BackgroundCount)
	assert.EqualValues(t, len(logs), st.Total())
	assert.True(t, st.LastAccess[types.SensorCamera].Equal(Base.Add(time.Second)))
	_, seen := st.LastAccess[types.SensorLocation]
	assert.False(t, seen)

	_, err = s.Stats(ctx, "com.unknown")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testLogQueries(t *testing.T, s store.Store) {
	ctx := context.Background()

	benign := logRec("com.a", types.SensorCamera, Base, false)
	benign.SuspiciousReason = "ignored when not suspicious"
	_, err := s.AppendLog(ctx, benign)
	require.NoError(t, err)

	sus := logRec("com.b", types.SensorMicrophone, Base.Add(time.Minute), true)
	sus.Suspicious = true
	sus.SuspiciousReason = "Background sensor access"
	_, err = s.AppendLog(ctx, sus)
	require.NoError(t, err)

	_, err = s.AppendLog(ctx, logRec("com.a", types.SensorLocation, Base.Add(2*time.Minute), false))
	require.NoError(t, err)

	recent, err := s.RecentLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, types.SensorLocation, recent[0].Sensor)
	assert.Equal(t, types.SensorMicrophone, recent[1].Sensor)

	all, err := s.RecentLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Empty(t, all[2].SuspiciousReason)
	assert.False(t, all[2].Suspicious)

	suspicious, err := s.SuspiciousLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, suspicious, 1)
	assert.Equal(t, "com.b", suspicious[0].AppID)
	assert.Equal(t, "Background sensor access", suspicious[0].SuspiciousReason)
	assert.True(t, suspicious[0].WasBackground)
	assert.True(t, suspicious[0].AccessedAt.Equal(Base.Add(time.Minute)))

	forApp, err := s.LogsForApp(ctx, "com.a", 0)
	require.NoError(t, err)
	assert.Len(t, forApp, 2)

	// AppendLog never touches stats.
	_, err = s.Stats(ctx, "com.a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.ClearLogs(ctx))
	all, err = s.RecentLogs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testPruneLogs(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.RecordAccess(ctx, logRec("com.a", types.SensorCamera, Base.Add(time.Duration(i)*time.Hour), false))
		require.NoError(t, err)
	}

	n, err := s.PruneLogsOlderThan(ctx, Base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	logs, err := s.RecentLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	// Stats are cumulative and survive log pruning.
	st, err := s.Stats(ctx, "com.a")
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Counts[types.SensorCamera])
}

func testStatsOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	record := func(app string, n int, bg bool) {
		for i := 0; i < n; i++ {
			require.NoError(t, s.UpsertStats(ctx, app, app, types.SensorLocation, Base.Add(time.Duration(i)*time.Second), bg))
		}
	}
	record("com.few", 1, true)
	record("com.many", 4, false)
	record("com.mid", 2, true)

	all, err := s.AllStats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"com.many", "com.mid", "com.few"}, []string{all[0].AppID, all[1].AppID, all[2].AppID})

	top, err := s.TopBackgroundAccessors(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "com.mid", top[0].AppID)
	assert.EqualValues(t, 2, top[0].BackgroundCount)
	assert.Equal(t, "com.few", top[1].AppID)

	top, err = s.TopBackgroundAccessors(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	require.NoError(t, s.ClearStats(ctx))
	all, err = s.AllStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testLastAccessForward(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertStats(ctx, "com.a", "A", types.SensorGyroscope, Base.Add(time.Minute), false))
	require.NoError(t, s.UpsertStats(ctx, "com.a", "", types.SensorGyroscope, Base, false))

	st, err := s.Stats(ctx, "com.a")
	require.NoError(t, err)
	assert.Equal(t, "A", st.AppName, "blank name must not overwrite")
	assert.EqualValues(t, 2, st.Counts[types.SensorGyroscope])
	assert.True(t, st.LastAccess[types.SensorGyroscope].Equal(Base.Add(time.Minute)))
}

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

func testAlerts(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, s.AppendAlert(ctx, store.AlertRecord{
			ID:        id,
			AppID:     "com.a",
			AppName:   "A",
			Type:      types.AlertBackgroundAccess,
			Sensor:    types.SensorCamera,
			Message:   "A accessed camera while in the background",
			Timestamp: Base.Add(time.Duration(i) * time.Minute),
		}))
	}

	n, err := s.CountUnacknowledged(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, s.Acknowledge(ctx, "a-2"))
	require.NoError(t, s.Acknowledge(ctx, "a-2"))
	assert.ErrorIs(t, s.Acknowledge(ctx, "nope"), store.ErrNotFound)

	unacked, err := s.UnacknowledgedAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, unacked, 2)
	assert.Equal(t, "a-3", unacked[0].ID)
	assert.Equal(t, "a-1", unacked[1].ID)

	recent, err := s.RecentAlerts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a-3", recent[0].ID)
	assert.True(t, recent[1].Acknowledged)
	assert.Equal(t, types.AlertBackgroundAccess, recent[1].Type)

	acked, err := s.AcknowledgeAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, acked)

	n, err = s.CountUnacknowledged(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.AppendAlert(ctx, store.AlertRecord{
		AppID: "com.b", AppName: "B", Type: types.AlertFrequentAccess, Sensor: types.SensorLocation,
		Message: "B accessed location frequently", Timestamp: Base,
	}))
	recent, err = s.RecentAlerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	for _, a := range recent {
		assert.NotEmpty(t, a.ID)
	}

	require.NoError(t, s.ClearAlerts(ctx))
	recent, err = s.RecentAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

// ---------------------------------------------------------------------------
// Daily summaries
// ---------------------------------------------------------------------------

func testDailySummary(t *testing.T, s store.Store) {
	ctx := context.Background()
	day := Base.Truncate(24 * time.Hour)
	date := store.DateOf(day, time.UTC)

	in := []store.AccessLogRecord{
		logRec("com.a", types.SensorCamera, day, true),
		logRec("com.a", types.SensorCamera, day.Add(time.Hour), false),
		logRec("com.b", types.SensorCamera, day.Add(2*time.Hour), true),
		logRec("com.b", types.SensorMicrophone, day.Add(24*time.Hour-time.Millisecond), false),
	}
	for _, r := range in {
		_, err := s.RecordAccess(ctx, r)
		require.NoError(t, err)
	}
	// Outside the day on both sides.
	_, err := s.RecordAccess(ctx, logRec("com.c", types.SensorCamera, day.Add(-time.Millisecond), true))
	require.NoError(t, err)
	_, err = s.RecordAccess(ctx, logRec("com.c", types.SensorCamera, day.Add(24*time.Hour), true))
	require.NoError(t, err)

	require.NoError(t, s.AppendAlert(ctx, store.AlertRecord{
		AppID: "com.a", AppName: "A", Type: types.AlertBackgroundAccess, Sensor: types.SensorCamera,
		Message: "m", Timestamp: day.Add(time.Hour),
	}))
	require.NoError(t, s.AppendAlert(ctx, store.AlertRecord{
		AppID: "com.a", AppName: "A", Type: types.AlertBackgroundAccess, Sensor: types.SensorCamera,
		Message: "m", Timestamp: day.Add(-time.Hour),
	}))

	sum, err := s.RefreshDailySummary(ctx, date, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, date, sum.Date)
	assert.EqualValues(t, 3, sum.Totals[types.SensorCamera])
	assert.EqualValues(t, 2, sum.DistinctApps[types.SensorCamera])
	assert.EqualValues(t, 1, sum.Totals[types.SensorMicrophone])
	assert.EqualValues(t, 1, sum.DistinctApps[types.SensorMicrophone])
	assert.EqualValues(t, 0, sum.Totals[types.SensorLocation])
	assert.EqualValues(t, 2, sum.BackgroundAccesses)
	assert.EqualValues(t, 1, sum.AlertsTriggered)

	again, err := s.RefreshDailySummary(ctx, date, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, sum, again)

	stored, err := s.Summary(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, sum, stored)

	_, err = s.Summary(ctx, "1999-01-01")
	assert.ErrorIs(t, err, store.ErrNotFound)

	prev := store.DateOf(day.Add(-time.Hour), time.UTC)
	_, err = s.RefreshDailySummary(ctx, prev, time.UTC)
	require.NoError(t, err)

	recent, err := s.RecentSummaries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, date, recent[0].Date)
	assert.Equal(t, prev, recent[1].Date)

	_, err = s.RefreshDailySummary(ctx, "14/03/2026", time.UTC)
	assert.Error(t, err)

	require.NoError(t, s.ClearSummaries(ctx))
	recent, err = s.RecentSummaries(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func testSummaryAfterClear(t *testing.T, s store.Store) {
	ctx := context.Background()
	date := store.DateOf(Base, time.UTC)

	_, err := s.RecordAccess(ctx, logRec("com.a", types.SensorCamera, Base, true))
	require.NoError(t, err)
	require.NoError(t, s.AppendAlert(ctx, store.AlertRecord{
		AppID: "com.a", AppName: "A", Type: types.AlertBackgroundAccess, Sensor: types.SensorCamera,
		Message: "m", Timestamp: Base,
	}))
	_, err = s.RefreshDailySummary(ctx, date, time.UTC)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))

	sum, err := s.RefreshDailySummary(ctx, date, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, store.NewDailySummaryRecord(date), sum)

	all, err := s.AllStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	n, err := s.CountUnacknowledged(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func testSettings(t *testing.T, s store.Store) {
	ctx := context.Background()

	got, err := s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultSettings().Normalized(), got.Normalized())

	want := types.DefaultSettings()
	want.Enabled = true
	want.Monitor[types.SensorAccelerometer] = true
	want.FrequentAccessThreshold = 3
	want.Whitelist = []string{" com.z ", "com.a", "com.a"}
	require.NoError(t, s.SaveSettings(ctx, want))

	got, err = s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.True(t, got.Monitors(types.SensorAccelerometer))
	assert.Equal(t, 3, got.FrequentAccessThreshold)
	assert.Equal(t, []string{"com.a", "com.z"}, got.Whitelist)

	bad := got.Clone()
	bad.FrequentAccessThreshold = 0
	assert.ErrorIs(t, s.SaveSettings(ctx, bad), types.ErrInvalidSettings)

	kept, err := s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, kept)

	// Settings are not part of ClearAll.
	require.NoError(t, s.ClearAll(ctx))
	kept, err = s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, kept.Enabled)
}
