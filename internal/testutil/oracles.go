package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/notify"
	"github.com/BrandonDHaskell/sensorguard/internal/oracle"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// AccessQuery is one call seen by FakeAccessOracle.
type AccessQuery struct {
	Sensor types.SensorType
	Since  time.Time
}

// FakeAccessOracle serves scripted batches per sensor. Batches are consumed
// by the next Query for that sensor; an unscripted sensor reports nothing.
type FakeAccessOracle struct {
	mu      sync.Mutex
	batches map[types.SensorType]oracle.Batch
	errs    map[types.SensorType]error
	block   map[types.SensorType]bool
	queries []AccessQuery
}

func NewFakeAccessOracle() *FakeAccessOracle {
	return &FakeAccessOracle{
		batches: make(map[types.SensorType]oracle.Batch),
		errs:    make(map[types.SensorType]error),
		block:   make(map[types.SensorType]bool),
	}
}

// Report queues events for the next query of their sensor.
func (f *FakeAccessOracle) Report(events ...types.AccessEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		b := f.batches[ev.Sensor]
		b.Events = append(b.Events, ev)
		f.batches[ev.Sensor] = b
	}
}

// FailApp marks app as unreadable in the next batch for sensor.
func (f *FakeAccessOracle) FailApp(sensor types.SensorType, app string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.batches[sensor]
	if b.Failed == nil {
		b.Failed = make(map[string]error)
	}
	b.Failed[app] = err
	f.batches[sensor] = b
}

// Fail makes every query for sensor return err until cleared with nil.
func (f *FakeAccessOracle) Fail(sensor types.SensorType, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, sensor)
		return
	}
	f.errs[sensor] = err
}

// Hang makes queries for sensor block until their context ends.
func (f *FakeAccessOracle) Hang(sensor types.SensorType, hang bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block[sensor] = hang
}

func (f *FakeAccessOracle) Query(ctx context.Context, sensor types.SensorType, since time.Time) (oracle.Batch, error) {
	f.mu.Lock()
	f.queries = append(f.queries, AccessQuery{Sensor: sensor, Since: since})
	hang := f.block[sensor]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return oracle.Batch{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[sensor]; ok {
		return oracle.Batch{}, err
	}
	b := f.batches[sensor]
	delete(f.batches, sensor)
	return b, nil
}

// Queries returns every query seen so far.
func (f *FakeAccessOracle) Queries() []AccessQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AccessQuery(nil), f.queries...)
}

// FakeDevice is a scripted DeviceStateOracle and AppMetadata.
type FakeDevice struct {
	mu            sync.Mutex
	foreground    string
	screenOn      bool
	foregroundErr error
	screenErr     error
	names         map[string]string
	calls         int
}

func NewFakeDevice(foreground string, screenOn bool) *FakeDevice {
	return &FakeDevice{foreground: foreground, screenOn: screenOn, names: make(map[string]string)}
}

func (d *FakeDevice) Set(foreground string, screenOn bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground, d.screenOn = foreground, screenOn
}

func (d *FakeDevice) FailForeground(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foregroundErr = err
}

func (d *FakeDevice) FailScreen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screenErr = err
}

func (d *FakeDevice) SetName(appID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[appID] = name
}

func (d *FakeDevice) ForegroundApp(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.foreground, d.foregroundErr
}

func (d *FakeDevice) ScreenOn(context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screenOn, d.screenErr
}

// ForegroundCalls counts ForegroundApp calls.
func (d *FakeDevice) ForegroundCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *FakeDevice) DisplayName(_ context.Context, appID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.names[appID]; ok {
		return n, nil
	}
	return "", oracle.ErrUnknownApp
}

// RecordingSink is a notify.Sink that keeps every notification.
type RecordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (s *RecordingSink) Enqueue(n notify.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return true
}

func (s *RecordingSink) Notifications() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.got...)
}
