package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
	"github.com/BrandonDHaskell/sensorguard/internal/notify"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// AlertInput describes one suspicious access to raise an alert for. Type may
// be left empty, in which case it is derived from Reason.
type AlertInput struct {
	AppID   string
	AppName string
	Sensor  types.SensorType
	Reason  string
	Type    types.AlertType
	At      time.Time
}

// AlertDispatcher persists privacy alerts and hands them to the notification
// sink. The stored alert is authoritative; notification is best effort.
type AlertDispatcher struct {
	alerts  store.AlertStore
	sink    notify.Sink
	ids     IDGenerator
	clock   Clock
	log     *slog.Logger
	metrics *metrics.Metrics
}

type DispatcherOption func(*AlertDispatcher)

func WithDispatcherClock(c Clock) DispatcherOption {
	return func(d *AlertDispatcher) { d.clock = c }
}

func WithIDGenerator(g IDGenerator) DispatcherOption {
	return func(d *AlertDispatcher) { d.ids = g }
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *AlertDispatcher) { d.metrics = m }
}

// NewAlertDispatcher builds a dispatcher. A nil sink disables notification.
func NewAlertDispatcher(alerts store.AlertStore, sink notify.Sink, log *slog.Logger, opts ...DispatcherOption) *AlertDispatcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &AlertDispatcher{
		alerts: alerts,
		sink:   sink,
		ids:    uuidGenerator{},
		clock:  systemClock{},
		log:    log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *AlertDispatcher) Dispatch(ctx context.Context, in AlertInput) (store.AlertRecord, error) {
	alertType := in.Type
	if alertType == "" {
		alertType = types.AlertTypeForReason(in.Reason)
	}
	at := in.At
	if at.IsZero() {
		at = d.clock.Now()
	}
	name := in.AppName
	if name == "" {
		name = in.AppID
	}

	rec := store.AlertRecord{
		ID:        d.ids.New(),
		AppID:     in.AppID,
		AppName:   name,
		Type:      alertType,
		Sensor:    in.Sensor,
		Message:   alertMessage(name, in.Sensor, in.Reason),
		Timestamp: at,
	}

	if err := d.alerts.AppendAlert(ctx, rec); err != nil {
		d.metrics.PersistFailed("append_alert")
		d.log.Error("alert write failed", "app_id", in.AppID, "sensor", in.Sensor, "type", alertType, "error", err)
		return store.AlertRecord{}, fmt.Errorf("dispatch alert for %s: %w", in.AppID, err)
	}
	d.metrics.AlertRaised(string(alertType))
	d.log.Info("privacy alert", "alert_id", rec.ID, "app_id", rec.AppID, "sensor", rec.Sensor, "type", rec.Type)

	if d.sink != nil {
		d.sink.Enqueue(notify.Notification{
			Title:   alertTitle(alertType, in.Sensor),
			Body:    rec.Message,
			AppID:   rec.AppID,
			AlertID: rec.ID,
		})
	}
	return rec, nil
}

func alertMessage(appName string, sensor types.SensorType, reason string) string {
	if reason == "" {
		return fmt.Sprintf("%s accessed the %s", appName, sensor.Label())
	}
	return fmt.Sprintf("%s accessed the %s: %s", appName, sensor.Label(), reason)
}

func alertTitle(t types.AlertType, sensor types.SensorType) string {
	switch t {
	case types.AlertBackgroundAccess:
		return fmt.Sprintf("Background %s access", sensor.Label())
	case types.AlertScreenOffAccess:
		return fmt.Sprintf("%s used while screen off", sensor.Label())
	case types.AlertFrequentAccess:
		return fmt.Sprintf("Frequent %s access", sensor.Label())
	default:
		return "Privacy alert"
	}
}
