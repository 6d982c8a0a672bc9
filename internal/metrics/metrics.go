// Package metrics exposes Prometheus metrics for the monitoring engine.
// Every recording method is safe on a nil *Metrics, so components can run
// without a registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorguard"

type Metrics struct {
	TicksTotal          prometheus.Counter
	TicksSkippedTotal   prometheus.Counter
	TickDuration        prometheus.Histogram
	TickPanicsTotal     prometheus.Counter
	SchedulerActive     prometheus.Gauge
	EventsTotal         *prometheus.CounterVec // sensor, verdict
	OracleFailuresTotal *prometheus.CounterVec // oracle
	AppFailuresTotal    *prometheus.CounterVec // sensor
	PersistFailures     *prometheus.CounterVec // op
	AlertsTotal         *prometheus.CounterVec // type
	NotificationsTotal  *prometheus.CounterVec // status
	NotificationsDrops  *prometheus.CounterVec // reason
	LogsPrunedTotal     prometheus.Counter

	registry *prometheus.Registry
}

// New creates the collector and registers it on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register sensorguard metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_total",
		Help:      "Completed monitoring ticks",
	})
	m.TicksSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_skipped_total",
		Help:      "Ticks skipped because the previous tick overran its interval",
	})
	m.TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduler_tick_duration_seconds",
		Help:      "Wall time of one monitoring tick",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})
	m.TickPanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_tick_panics_total",
		Help:      "Ticks aborted by a recovered panic",
	})
	m.SchedulerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_active",
		Help:      "1 while the scheduler is running",
	})
	m.EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_events_total",
		Help:      "Classified sensor accesses by sensor and verdict",
	}, []string{"sensor", "verdict"})
	m.OracleFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_failures_total",
		Help:      "Failed or timed-out oracle calls",
	}, []string{"oracle"})
	m.AppFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_app_failures_total",
		Help:      "Per-app entries an access query could not read",
	}, []string{"sensor"})
	m.PersistFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Failed store writes by operation",
	}, []string{"op"})
	m.AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Privacy alerts raised by type",
	}, []string{"type"})
	m.NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by status",
	}, []string{"status"})
	m.NotificationsDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped before delivery by reason",
	}, []string{"reason"})
	m.LogsPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_logs_pruned_total",
		Help:      "Access log rows removed by retention",
	})
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.TicksTotal.Collect(ch)
	m.TicksSkippedTotal.Collect(ch)
	m.TickDuration.Collect(ch)
	m.TickPanicsTotal.Collect(ch)
	m.SchedulerActive.Collect(ch)
	m.EventsTotal.Collect(ch)
	m.OracleFailuresTotal.Collect(ch)
	m.AppFailuresTotal.Collect(ch)
	m.PersistFailures.Collect(ch)
	m.AlertsTotal.Collect(ch)
	m.NotificationsTotal.Collect(ch)
	m.NotificationsDrops.Collect(ch)
	m.LogsPrunedTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.TicksTotal.Describe(ch)
	m.TicksSkippedTotal.Describe(ch)
	m.TickDuration.Describe(ch)
	m.TickPanicsTotal.Describe(ch)
	m.SchedulerActive.Describe(ch)
	m.EventsTotal.Describe(ch)
	m.OracleFailuresTotal.Describe(ch)
	m.AppFailuresTotal.Describe(ch)
	m.PersistFailures.Describe(ch)
	m.AlertsTotal.Describe(ch)
	m.NotificationsTotal.Describe(ch)
	m.NotificationsDrops.Describe(ch)
	m.LogsPrunedTotal.Describe(ch)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TickCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
	m.TickDuration.Observe(d.Seconds())
}

func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.TicksSkippedTotal.Inc()
}

func (m *Metrics) TickPanicked() {
	if m == nil {
		return
	}
	m.TickPanicsTotal.Inc()
}

func (m *Metrics) SetSchedulerActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SchedulerActive.Set(1)
		return
	}
	m.SchedulerActive.Set(0)
}

func (m *Metrics) EventClassified(sensor string, suspicious bool) {
	if m == nil {
		return
	}
	verdict := "benign"
	if suspicious {
		verdict = "suspicious"
	}
	m.EventsTotal.WithLabelValues(sensor, verdict).Inc()
}

func (m *Metrics) OracleFailed(oracle string) {
	if m == nil {
		return
	}
	m.OracleFailuresTotal.WithLabelValues(oracle).Inc()
}

func (m *Metrics) AppEntriesFailed(sensor string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AppFailuresTotal.WithLabelValues(sensor).Add(float64(n))
}

func (m *Metrics) PersistFailed(op string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) AlertRaised(alertType string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(alertType).Inc()
}

func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues("sent").Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues("failed").Inc()
}

func (m *Metrics) NotificationDropped(reason string) {
	if m == nil {
		return
	}
	m.NotificationsDrops.WithLabelValues(reason).Inc()
}

func (m *Metrics) LogsPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.LogsPrunedTotal.Add(float64(n))
}
