package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store/sqlite"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store/storetest"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	conn := openTestDB(t)
	return sqlite.New(conn, newTestWriter(t, conn))
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

// ---------------------------------------------------------------------------
// RecordAccess atomicity
// ---------------------------------------------------------------------------

func TestRecordAccess_InvalidSensorWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordAccess(ctx, store.AccessLogRecord{
		AppID:      "com.a",
		AppName:    "A",
		Sensor:     types.SensorType("THERMOMETER"),
		AccessedAt: storetest.Base,
	})
	require.Error(t, err)

	logs, err := s.RecentLogs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = s.Stats(ctx, "com.a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordAccess_PreservesMillisecondTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := storetest.Base.Add(123 * time.Millisecond)

	id, err := s.RecordAccess(ctx, store.AccessLogRecord{
		AppID: "com.a", AppName: "A", Sensor: types.SensorBodySensors,
		AccessedAt: at, WasScreenOff: true, Suspicious: true,
		SuspiciousReason: "Sensor access while screen off",
	})
	require.NoError(t, err)

	logs, err := s.LogsForApp(ctx, "com.a", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, id, logs[0].ID)
	assert.True(t, logs[0].AccessedAt.Equal(at))
	assert.True(t, logs[0].WasScreenOff)
	assert.Equal(t, time.UTC, logs[0].AccessedAt.Location())

	st, err := s.Stats(ctx, "com.a")
	require.NoError(t, err)
	assert.True(t, st.LastAccess[types.SensorBodySensors].Equal(at))
}

// ---------------------------------------------------------------------------
// Daily summary day boundaries
// ---------------------------------------------------------------------------

func TestRefreshDailySummary_UsesLocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	loc := time.FixedZone("UTC+10", 10*60*60)

	// 23:30 UTC on the 13th is 09:30 on the 14th at UTC+10.
	at := time.Date(2026, 3, 13, 23, 30, 0, 0, time.UTC)
	_, err := s.RecordAccess(ctx, store.AccessLogRecord{
		AppID: "com.a", AppName: "A", Sensor: types.SensorLocation, AccessedAt: at,
	})
	require.NoError(t, err)

	sum, err := s.RefreshDailySummary(ctx, "2026-03-14", loc)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.Totals[types.SensorLocation])

	sum, err = s.RefreshDailySummary(ctx, "2026-03-13", loc)
	require.NoError(t, err)
	assert.EqualValues(t, 0, sum.Totals[types.SensorLocation])
}
