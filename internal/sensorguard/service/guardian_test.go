package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/service"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

func newGuardian(t *testing.T, st types.Settings) (*service.Guardian, *harness) {
	t.Helper()
	h := newHarness(t, st, service.SchedulerConfig{Interval: time.Hour})
	g := service.NewGuardian(h.store, h.sched, h.classifier, time.UTC, nil)
	g.SetClock(h.clock)
	t.Cleanup(g.Shutdown)
	return g, h
}

func TestGuardianToggleEnabled(t *testing.T) {
	ctx := context.Background()
	g, h := newGuardian(t, types.DefaultSettings())
	require.NoError(t, g.Resume(ctx))
	assert.Equal(t, service.StateIdle, h.sched.State())

	st, err := g.ToggleEnabled(ctx, true)
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, service.StateActive, h.sched.State())

	stored, err := g.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Enabled)

	_, err = g.ToggleEnabled(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, service.StateIdle, h.sched.State())
}

func TestGuardianResumeRestartsMonitoring(t *testing.T) {
	g, h := newGuardian(t, enabledSettings())
	require.NoError(t, g.Resume(context.Background()))
	assert.Equal(t, service.StateActive, h.sched.State())

	g.Shutdown()
	assert.Equal(t, service.StateIdle, h.sched.State())

	st, err := g.Settings(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Enabled, "shutdown must not clear the stored flag")
}

func TestGuardianUpdateSettings(t *testing.T) {
	ctx := context.Background()
	g, h := newGuardian(t, types.DefaultSettings())

	bad := types.DefaultSettings()
	bad.FrequentAccessThreshold = 0
	_, err := g.UpdateSettings(ctx, bad)
	assert.ErrorIs(t, err, types.ErrInvalidSettings)

	stored, err := g.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultFrequentAccessThreshold, stored.FrequentAccessThreshold)

	next := enabledSettings()
	next.FrequentAccessThreshold = 3
	next.Whitelist = []string{"com.b", "com.a", "com.b"}
	got, err := g.UpdateSettings(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.a", "com.b"}, got.Whitelist)
	assert.Equal(t, service.StateActive, h.sched.State())

	stored, err = g.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.FrequentAccessThreshold)
}

func TestGuardianStatusAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	g, h := newGuardian(t, types.DefaultSettings())

	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, h.store.AppendAlert(ctx, store.AlertRecord{
			ID: id, AppID: "com.a", Type: types.AlertBackgroundAccess, Sensor: types.SensorCamera, Timestamp: t0,
		}))
	}

	status, err := g.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.OK)
	assert.Equal(t, string(service.StateIdle), status.State)
	assert.Equal(t, int64(2), status.UnacknowledgedAlerts)

	require.NoError(t, g.Acknowledge(ctx, "a1"))
	assert.ErrorIs(t, g.Acknowledge(ctx, "missing"), service.ErrUnknownAlert)

	unacked, err := g.UnacknowledgedAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, unacked, 1)
	assert.Equal(t, "a2", unacked[0].ID)

	n, err := g.AcknowledgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGuardianClear(t *testing.T) {
	ctx := context.Background()
	g, h := newGuardian(t, enabledSettings())

	h.access.Report(types.AccessEvent{AppID: "com.a", Sensor: types.SensorCamera, At: h.clock.Now().Add(-time.Second)})
	_, err := h.sched.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, h.classifier.Keys())

	require.NoError(t, g.Clear(ctx, service.ClearAlerts))
	assert.Empty(t, h.store.Alerts())
	assert.Len(t, h.store.Logs(), 1)

	require.NoError(t, g.Clear(ctx, service.ClearLogs))
	assert.Empty(t, h.store.Logs())
	assert.Zero(t, h.classifier.Keys())

	_, err = g.AppStats(ctx, "com.a")
	require.NoError(t, err)
	require.NoError(t, g.Clear(ctx, service.ClearStats))
	_, err = g.AppStats(ctx, "com.a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Error(t, g.Clear(ctx, service.ClearTarget("everything")))
}

func TestGuardianClearAllZeroesSummaries(t *testing.T) {
	ctx := context.Background()
	g, h := newGuardian(t, enabledSettings())

	h.access.Report(types.AccessEvent{AppID: "com.a", Sensor: types.SensorMicrophone, At: h.clock.Now().Add(-time.Second)})
	_, err := h.sched.Tick(ctx)
	require.NoError(t, err)

	require.NoError(t, g.Clear(ctx, service.ClearAll))

	sums, err := g.RecentSummaries(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, store.DateOf(h.clock.Now(), time.UTC), sums[0].Date)
	assert.Zero(t, sums[0].Totals[types.SensorMicrophone])
	assert.Zero(t, sums[0].AlertsTriggered)

	st, err := g.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, st.Enabled, "settings survive a full clear")
}

func TestParseClearTarget(t *testing.T) {
	for _, s := range []string{"logs", "alerts", "stats", "all"} {
		got, err := service.ParseClearTarget(s)
		require.NoError(t, err)
		assert.Equal(t, service.ClearTarget(s), got)
	}
	_, err := service.ParseClearTarget("settings")
	assert.Error(t, err)
}
