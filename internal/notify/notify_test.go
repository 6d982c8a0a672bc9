package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
	"github.com/BrandonDHaskell/sensorguard/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingNotifier struct {
	mu    sync.Mutex
	got   []notify.Notification
	err   error
	block chan struct{}
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingNotifier) sent() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

func newMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestQueueDeliversInOrderAndDrainsOnClose(t *testing.T) {
	rn := &recordingNotifier{}
	m := newMetrics(t)
	q := notify.NewQueue(rn, notify.QueueConfig{Size: 8, Burst: 8}, nil, m)

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, q.Enqueue(notify.Notification{AlertID: id, Title: "t", Body: "b"}))
	}
	q.Close()

	sent := rn.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "a", sent[0].AlertID)
	assert.Equal(t, "c", sent[2].AlertID)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")))

	assert.False(t, q.Enqueue(notify.Notification{AlertID: "late"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDrops.WithLabelValues("closed")))
	q.Close()
}

func TestQueueDropsWhenFull(t *testing.T) {
	rn := &recordingNotifier{block: make(chan struct{})}
	m := newMetrics(t)
	q := notify.NewQueue(rn, notify.QueueConfig{Size: 1, Burst: 10}, nil, m)

	accepted := 0
	for i := 0; i < 5; i++ {
		if q.Enqueue(notify.Notification{AlertID: "x"}) {
			accepted++
		}
	}
	// One may be in flight and one buffered; the rest are dropped.
	assert.LessOrEqual(t, accepted, 2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.NotificationsDrops.WithLabelValues("queue_full")), 3.0)

	close(rn.block)
	q.Close()
}

func TestQueueRateLimits(t *testing.T) {
	rn := &recordingNotifier{}
	m := newMetrics(t)
	q := notify.NewQueue(rn, notify.QueueConfig{Size: 8, MinInterval: time.Hour, Burst: 2}, nil, m)

	assert.True(t, q.Enqueue(notify.Notification{AlertID: "1"}))
	assert.True(t, q.Enqueue(notify.Notification{AlertID: "2"}))
	assert.False(t, q.Enqueue(notify.Notification{AlertID: "3"}))
	q.Close()

	assert.Len(t, rn.sent(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDrops.WithLabelValues("rate_limited")))
}

func TestQueueCountsFailures(t *testing.T) {
	rn := &recordingNotifier{err: errors.New("push service down")}
	m := newMetrics(t)
	q := notify.NewQueue(rn, notify.QueueConfig{Burst: 4}, nil, m)

	q.Enqueue(notify.Notification{AlertID: "1"})
	q.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("failed")))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, notify.LogNotifier{}.Notify(context.Background(), notify.Notification{Title: "t"}))
}

func TestNewShoutrrrRejectsBadConfig(t *testing.T) {
	_, err := notify.NewShoutrrr(nil, time.Second)
	assert.Error(t, err)

	_, err = notify.NewShoutrrr([]string{"notaservice://token@host"}, time.Second)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token")
}
