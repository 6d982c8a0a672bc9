package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

var ErrUnknownAlert = errors.New("unknown alert")

// ClearTarget names what a bulk clear removes.
type ClearTarget string

const (
	ClearLogs   ClearTarget = "logs"
	ClearAlerts ClearTarget = "alerts"
	ClearStats  ClearTarget = "stats"
	ClearAll    ClearTarget = "all"
)

func ParseClearTarget(s string) (ClearTarget, error) {
	switch t := ClearTarget(s); t {
	case ClearLogs, ClearAlerts, ClearStats, ClearAll:
		return t, nil
	}
	return "", fmt.Errorf("unknown clear target %q", s)
}

// Guardian is the outward face of the engine: it owns enabling and
// configuring monitoring and serves the stored history.
type Guardian struct {
	store      store.Store
	scheduler  *Scheduler
	classifier *Classifier
	clock      Clock
	loc        *time.Location
	log        *slog.Logger

	// mu orders settings writes with scheduler start/stop.
	mu   sync.Mutex
	base context.Context
}

func NewGuardian(st store.Store, sched *Scheduler, c *Classifier, loc *time.Location, log *slog.Logger) *Guardian {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Guardian{
		store:      st,
		scheduler:  sched,
		classifier: c,
		clock:      systemClock{},
		loc:        loc,
		log:        log,
		base:       context.Background(),
	}
}

// SetClock replaces the time source used for status and summaries.
func (g *Guardian) SetClock(c Clock) { g.clock = c }

// Resume is the boot hook: ctx becomes the lifetime of any scheduler the
// guardian starts, and monitoring restarts if it was enabled at shutdown.
func (g *Guardian) Resume(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.base = ctx

	st, err := g.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if st.Enabled {
		g.scheduler.Start(g.base)
		g.log.Info("monitoring resumed")
	}
	return nil
}

// Shutdown stops the scheduler without touching the stored enabled flag, so
// the next Resume restarts monitoring.
func (g *Guardian) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scheduler.Stop()
}

func (g *Guardian) Settings(ctx context.Context) (types.Settings, error) {
	return g.store.LoadSettings(ctx)
}

// ToggleEnabled persists the flag and starts or stops the scheduler to match.
func (g *Guardian) ToggleEnabled(ctx context.Context, enabled bool) (types.Settings, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := g.store.LoadSettings(ctx)
	if err != nil {
		return types.Settings{}, err
	}
	st.Enabled = enabled
	if err := g.store.SaveSettings(ctx, st); err != nil {
		return types.Settings{}, err
	}
	g.applyLocked(st)
	return st.Normalized(), nil
}

// UpdateSettings replaces the settings wholesale. Invalid settings are
// rejected with types.ErrInvalidSettings and the stored ones are kept.
func (g *Guardian) UpdateSettings(ctx context.Context, st types.Settings) (types.Settings, error) {
	if err := st.Validate(); err != nil {
		return types.Settings{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.SaveSettings(ctx, st); err != nil {
		return types.Settings{}, err
	}
	g.applyLocked(st)
	return st.Normalized(), nil
}

func (g *Guardian) applyLocked(st types.Settings) {
	if st.Enabled {
		g.scheduler.Start(g.base)
		return
	}
	g.scheduler.Stop()
}

func (g *Guardian) Status(ctx context.Context) (types.StatusResponse, error) {
	st, err := g.store.LoadSettings(ctx)
	if err != nil {
		return types.StatusResponse{}, err
	}
	n, err := g.store.CountUnacknowledged(ctx)
	if err != nil {
		return types.StatusResponse{}, err
	}
	return types.StatusResponse{
		OK:                   true,
		State:                string(g.scheduler.State()),
		Enabled:              st.Enabled,
		UnacknowledgedAlerts: n,
		ServerTime:           g.clock.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// ---------------------------------------------------------------------------
// Logs
// ---------------------------------------------------------------------------

func (g *Guardian) RecentLogs(ctx context.Context, limit int) ([]store.AccessLogRecord, error) {
	return g.store.RecentLogs(ctx, limit)
}

func (g *Guardian) SuspiciousLogs(ctx context.Context, limit int) ([]store.AccessLogRecord, error) {
	return g.store.SuspiciousLogs(ctx, limit)
}

func (g *Guardian) LogsForApp(ctx context.Context, appID string, limit int) ([]store.AccessLogRecord, error) {
	return g.store.LogsForApp(ctx, appID, limit)
}

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

func (g *Guardian) RecentAlerts(ctx context.Context, limit int) ([]store.AlertRecord, error) {
	return g.store.RecentAlerts(ctx, limit)
}

func (g *Guardian) UnacknowledgedAlerts(ctx context.Context) ([]store.AlertRecord, error) {
	return g.store.UnacknowledgedAlerts(ctx)
}

func (g *Guardian) Acknowledge(ctx context.Context, id string) error {
	err := g.store.Acknowledge(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownAlert, id)
	}
	return err
}

func (g *Guardian) AcknowledgeAll(ctx context.Context) (int64, error) {
	return g.store.AcknowledgeAll(ctx)
}

// ---------------------------------------------------------------------------
// Stats and summaries
// ---------------------------------------------------------------------------

func (g *Guardian) AllStats(ctx context.Context) ([]store.AppStatsRecord, error) {
	return g.store.AllStats(ctx)
}

func (g *Guardian) AppStats(ctx context.Context, appID string) (store.AppStatsRecord, error) {
	return g.store.Stats(ctx, appID)
}

func (g *Guardian) TopBackgroundAccessors(ctx context.Context, limit int) ([]store.AppStatsRecord, error) {
	return g.store.TopBackgroundAccessors(ctx, limit)
}

// RecentSummaries refreshes today's summary and returns up to days rows,
// newest first.
func (g *Guardian) RecentSummaries(ctx context.Context, days int) ([]store.DailySummaryRecord, error) {
	today := store.DateOf(g.clock.Now(), g.loc)
	if _, err := g.store.RefreshDailySummary(ctx, today, g.loc); err != nil {
		return nil, err
	}
	return g.store.RecentSummaries(ctx, days)
}

// RefreshSummary recomputes one day.
func (g *Guardian) RefreshSummary(ctx context.Context, date string) (store.DailySummaryRecord, error) {
	return g.store.RefreshDailySummary(ctx, date, g.loc)
}

// ---------------------------------------------------------------------------
// Bulk clears
// ---------------------------------------------------------------------------

// Clear removes one category of data. Clearing the log also forgets the
// classifier's frequency windows, which are derived from the same accesses.
func (g *Guardian) Clear(ctx context.Context, target ClearTarget) error {
	var err error
	switch target {
	case ClearLogs:
		err = g.store.ClearLogs(ctx)
	case ClearAlerts:
		err = g.store.ClearAlerts(ctx)
	case ClearStats:
		err = g.store.ClearStats(ctx)
	case ClearAll:
		err = g.store.ClearAll(ctx)
	default:
		return fmt.Errorf("unknown clear target %q", target)
	}
	if err != nil {
		return err
	}
	if (target == ClearLogs || target == ClearAll) && g.classifier != nil {
		g.classifier.Reset()
	}
	g.log.Info("data cleared", "target", target)
	return nil
}
