package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
)

type QueueConfig struct {
	Size        int           // buffered notifications, default 64
	MinInterval time.Duration // steady-state spacing between sends, 0 for unlimited
	Burst       int           // sends allowed back to back, default 1
	Timeout     time.Duration // per send, default 10s
}

// Queue is an asynchronous Sink in front of a Notifier. Notifications that
// arrive while the buffer is full or faster than the rate limit are dropped.
type Queue struct {
	notifier Notifier
	limiter  *rate.Limiter
	timeout  time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	ch     chan Notification
	done   chan struct{}
}

var _ Sink = (*Queue)(nil)

func NewQueue(n Notifier, cfg QueueConfig, log *slog.Logger, m *metrics.Metrics) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	q := &Queue{
		notifier: n,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		timeout:  cfg.Timeout,
		log:      log,
		metrics:  m,
		ch:       make(chan Notification, cfg.Size),
		done:     make(chan struct{}),
	}
	go q.loop()
	return q
}

// Enqueue never blocks.
func (q *Queue) Enqueue(n Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(n, "closed")
		return false
	}
	if !q.limiter.Allow() {
		q.drop(n, "rate_limited")
		return false
	}
	select {
	case q.ch <- n:
		return true
	default:
		q.drop(n, "queue_full")
		return false
	}
}

func (q *Queue) drop(n Notification, reason string) {
	q.metrics.NotificationDropped(reason)
	q.log.Warn("notification dropped", "reason", reason, "app_id", n.AppID, "alert_id", n.AlertID)
}

// Close stops accepting notifications, delivers what is already queued and
// waits for the worker to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for n := range q.ch {
		q.send(n)
	}
}

func (q *Queue) send(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.notifier.Notify(ctx, n); err != nil {
		q.metrics.NotificationFailed()
		q.log.Warn("notification failed", "app_id", n.AppID, "alert_id", n.AlertID, "error", err)
		return
	}
	q.metrics.NotificationSent()
}
