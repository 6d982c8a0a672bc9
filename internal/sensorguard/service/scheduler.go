package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
	"github.com/BrandonDHaskell/sensorguard/internal/oracle"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// State is the scheduler's lifecycle state.
type State string

const (
	StateIdle   State = "IDLE"
	StateActive State = "ACTIVE"
)

type SchedulerConfig struct {
	Interval           time.Duration // default 5s
	OracleTimeout      time.Duration // per oracle call, default 3s
	HostAppID          string        // never monitored
	MaxParallelQueries int           // default 4
	Location           *time.Location
}

// SchedulerDeps are the collaborators one tick touches.
type SchedulerDeps struct {
	Store      store.Store
	Access     oracle.AccessOracle
	Device     oracle.DeviceStateOracle
	Apps       *AppDirectory
	Classifier *Classifier
	Dispatcher *AlertDispatcher
	Clock      Clock
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// TickReport summarises one tick.
type TickReport struct {
	Skipped       bool // monitoring disabled in the settings snapshot
	Sensors       int
	FailedSensors int
	FailedApps    int
	Events        int
	Filtered      int
	Suspicious    int
	WriteFailures int
}

// Scheduler drives monitoring: every interval it runs one tick that polls
// the oracles, classifies what they report and records the results. Ticks
// never overlap.
type Scheduler struct {
	cfg  SchedulerConfig
	deps SchedulerDeps
	log  *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	// tickMu serialises ticks and guards cursors and partial.
	tickMu  sync.Mutex
	cursors map[types.SensorType]time.Time
	// partial holds the apps already handled at a sensor's cursor stamp
	// when a cancelled tick stopped part way through it.
	partial map[types.SensorType]map[string]struct{}
}

func NewScheduler(cfg SchedulerConfig, deps SchedulerDeps) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 3 * time.Second
	}
	if cfg.MaxParallelQueries <= 0 {
		cfg.MaxParallelQueries = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Classifier == nil {
		deps.Classifier = NewClassifier()
	}
	if deps.Apps == nil {
		deps.Apps = NewAppDirectory(nil, 0, 0, deps.Logger)
	}
	return &Scheduler{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger,
		state:   StateIdle,
		cursors: make(map[types.SensorType]time.Time),
		partial: make(map[types.SensorType]map[string]struct{}),
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins ticking. The first tick runs immediately. Calling Start on an
// active scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.state = StateActive
	s.deps.Metrics.SetSchedulerActive(true)

	go s.loop(ctx, s.done)

	s.log.Info("scheduler started", "interval", s.cfg.Interval, "oracle_timeout", s.cfg.OracleTimeout)
}

// Stop cancels the remainder of any in-flight tick, waits for the loop to
// exit and returns to Idle. A store write already handed to the store
// completes. Calling Stop on an idle scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = StateIdle
	s.cancel = nil
	s.deps.Metrics.SetSchedulerActive(false)
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		s.safeTick(ctx)
		if elapsed := time.Since(start); elapsed >= s.cfg.Interval {
			// The ticker fired while we were busy; that tick is skipped,
			// not run late.
			select {
			case <-ticker.C:
			default:
			}
			for i := time.Duration(0); i < elapsed/s.cfg.Interval; i++ {
				s.deps.Metrics.TickSkipped()
			}
			s.log.Warn("tick overran interval", "elapsed", elapsed, "interval", s.cfg.Interval)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// safeTick runs one tick and keeps a panic inside it from ending the loop.
func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Metrics.TickPanicked()
			s.log.Error("tick panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("tick failed", "error", err)
	}
}

type sensorResult struct {
	sensor types.SensorType
	since  time.Time
	batch  oracle.Batch
	err    error
}

type deviceSnapshot struct {
	foreground      string
	foregroundKnown bool
	screenOn        bool
	screenKnown     bool
}

// Tick runs one monitoring pass. It is exported for tests and for callers
// that drive the scheduler manually; it is safe to call while the loop runs
// because ticks are serialised.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	var rep TickReport
	tickStart := s.deps.Clock.Now()
	began := time.Now()
	log := s.log.With("tick", uuid.NewString())

	settings, err := s.deps.Store.LoadSettings(ctx)
	if err != nil {
		s.deps.Metrics.PersistFailed("load_settings")
		return rep, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Enabled {
		rep.Skipped = true
		return rep, nil
	}

	sensors := settings.EnabledSensors()
	rep.Sensors = len(sensors)

	snap := s.snapshotDevice(ctx, log)
	results := s.queryAll(ctx, sensors, tickStart)
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	whitelist := settings.WhitelistSet()
	touched := map[string]struct{}{store.DateOf(tickStart, s.cfg.Location): {}}

	for _, res := range results {
		if res.err != nil {
			rep.FailedSensors++
			s.deps.Metrics.OracleFailed("access")
			log.Warn("access query failed", "sensor", res.sensor, "error", res.err)
			continue
		}
		if n := len(res.batch.Failed); n > 0 {
			rep.FailedApps += n
			s.deps.Metrics.AppEntriesFailed(string(res.sensor), n)
			for app, err := range res.batch.Failed {
				log.Debug("access entry skipped", "sensor", res.sensor, "app_id", app, "error", err)
			}
		}

		events := windowEvents(res.batch.Events, res.sensor, res.since, tickStart, s.partial[res.sensor])
		var handled progress
		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				// Handled events are committed; the next tick resumes after them.
				s.resumeAfter(res, handled)
				return rep, err
			}
			if s.handle(ctx, log, settings, snap, whitelist, ev, &rep) {
				touched[store.DateOf(ev.At, s.cfg.Location)] = struct{}{}
			}
			handled.add(ev)
		}
		s.cursors[res.sensor] = tickStart
		delete(s.partial, res.sensor)
	}

	dates := make([]string, 0, len(touched))
	for d := range touched {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		if _, err := s.deps.Store.RefreshDailySummary(ctx, d, s.cfg.Location); err != nil {
			rep.WriteFailures++
			s.deps.Metrics.PersistFailed("refresh_summary")
			log.Error("summary refresh failed", "date", d, "error", err)
		}
	}

	s.deps.Classifier.Prune(tickStart)
	s.deps.Metrics.TickCompleted(time.Since(began))
	if rep.Events > 0 || rep.FailedSensors > 0 {
		log.Debug("tick complete",
			"events", rep.Events, "suspicious", rep.Suspicious,
			"failed_sensors", rep.FailedSensors, "write_failures", rep.WriteFailures)
	}
	return rep, nil
}

// snapshotDevice reads foreground app and screen state once for the tick.
// Unknown values are resolved toward flagging: background and screen off.
func (s *Scheduler) snapshotDevice(ctx context.Context, log *slog.Logger) deviceSnapshot {
	var snap deviceSnapshot
	if s.deps.Device == nil {
		return snap
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	fg, err := s.deps.Device.ForegroundApp(fctx)
	cancel()
	if err != nil {
		s.deps.Metrics.OracleFailed("foreground")
		log.Warn("foreground query failed", "error", err)
	} else {
		snap.foreground, snap.foregroundKnown = fg, true
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	on, err := s.deps.Device.ScreenOn(sctx)
	cancel()
	if err != nil {
		s.deps.Metrics.OracleFailed("screen")
		log.Warn("screen query failed", "error", err)
	} else {
		snap.screenOn, snap.screenKnown = on, true
	}
	return snap
}

// queryAll polls the access oracle for every sensor in parallel and returns
// the results in sensor order.
func (s *Scheduler) queryAll(ctx context.Context, sensors []types.SensorType, tickStart time.Time) []sensorResult {
	results := make([]sensorResult, len(sensors))
	if s.deps.Access == nil {
		for i, st := range sensors {
			results[i] = sensorResult{sensor: st, since: s.sinceFor(st, tickStart)}
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxParallelQueries)
	for i, st := range sensors {
		since := s.sinceFor(st, tickStart)
		results[i] = sensorResult{sensor: st, since: since}
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
			defer cancel()
			b, err := s.deps.Access.Query(qctx, st, since)
			results[i].batch, results[i].err = b, err
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// sinceFor returns the sensor's cursor. A sensor without one looks back a
// single interval.
func (s *Scheduler) sinceFor(sensor types.SensorType, tickStart time.Time) time.Time {
	if c, ok := s.cursors[sensor]; ok {
		return c
	}
	return tickStart.Add(-s.cfg.Interval)
}

// windowEvents keeps events in (since, until] for sensor, oldest first.
// Events stamped exactly since are kept only when a cancelled tick left that
// stamp partly handled, and then only for apps not in handled. Later events
// stay for the next tick.
func windowEvents(in []types.AccessEvent, sensor types.SensorType, since, until time.Time, handled map[string]struct{}) []types.AccessEvent {
	out := make([]types.AccessEvent, 0, len(in))
	for _, ev := range in {
		if ev.At.Before(since) || ev.At.After(until) {
			continue
		}
		if ev.At.Equal(since) {
			if _, ok := handled[ev.AppID]; ok || handled == nil {
				continue
			}
		}
		if ev.Sensor == "" {
			ev.Sensor = sensor
		}
		if ev.Sensor != sensor {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// progress tracks the newest stamp a tick has handled for one sensor and the
// apps handled at that stamp.
type progress struct {
	at   time.Time
	apps map[string]struct{}
}

func (p *progress) add(ev types.AccessEvent) {
	if p.apps == nil || ev.At.After(p.at) {
		p.at = ev.At
		p.apps = make(map[string]struct{})
	}
	p.apps[ev.AppID] = struct{}{}
}

// resumeAfter moves a sensor's cursor to the last handled stamp of a tick
// that stopped early, so nothing it recorded is seen again.
func (s *Scheduler) resumeAfter(res sensorResult, p progress) {
	s.cursors[res.sensor] = res.since
	if p.apps == nil {
		return
	}
	if p.at.Equal(res.since) {
		for app := range s.partial[res.sensor] {
			p.apps[app] = struct{}{}
		}
	}
	s.cursors[res.sensor] = p.at
	s.partial[res.sensor] = p.apps
}

// handle filters one event and records it. It reports whether the access log
// write succeeded.
func (s *Scheduler) handle(ctx context.Context, log *slog.Logger, st types.Settings, snap deviceSnapshot, whitelist map[string]struct{}, ev types.AccessEvent, rep *TickReport) bool {
	if ev.AppID == "" || ev.AppID == s.cfg.HostAppID {
		rep.Filtered++
		return false
	}
	if _, ok := whitelist[ev.AppID]; ok {
		rep.Filtered++
		return false
	}
	rep.Events++
	return s.record(ctx, log, st, snap, ev, rep)
}

// record classifies one access and writes it. It reports whether the log
// write succeeded.
func (s *Scheduler) record(ctx context.Context, log *slog.Logger, st types.Settings, snap deviceSnapshot, ev types.AccessEvent, rep *TickReport) bool {
	isBackground := !snap.foregroundKnown || ev.AppID != snap.foreground
	isScreenOff := !snap.screenKnown || !snap.screenOn

	v := s.deps.Classifier.Classify(ev.AppID, ev.Sensor, ev.At, isBackground, isScreenOff, st)
	s.deps.Metrics.EventClassified(string(ev.Sensor), v.Suspicious)

	name := s.deps.Apps.DisplayName(ctx, ev.AppID)
	rec := store.AccessLogRecord{
		AppID:            ev.AppID,
		AppName:          name,
		Sensor:           ev.Sensor,
		AccessedAt:       ev.At,
		WasBackground:    isBackground,
		WasScreenOff:     isScreenOff,
		Suspicious:       v.Suspicious,
		SuspiciousReason: v.Reason,
	}

	ok := true
	if _, err := s.deps.Store.RecordAccess(ctx, rec); err != nil {
		ok = false
		rep.WriteFailures++
		s.deps.Metrics.PersistFailed("record_access")
		log.Error("access write failed", "app_id", ev.AppID, "sensor", ev.Sensor, "error", err)
	}

	if !v.Suspicious {
		return ok
	}
	rep.Suspicious++
	if s.deps.Dispatcher == nil {
		return ok
	}
	if _, err := s.deps.Dispatcher.Dispatch(ctx, AlertInput{
		AppID:   ev.AppID,
		AppName: name,
		Sensor:  ev.Sensor,
		Reason:  v.Reason,
		Type:    v.AlertType,
		At:      ev.At,
	}); err != nil {
		rep.WriteFailures++
	}
	return ok
}
