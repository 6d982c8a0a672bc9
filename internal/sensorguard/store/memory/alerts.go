package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
)

func (s *Store) AppendAlert(_ context.Context, rec store.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	s.alerts = append(s.alerts, rec)
	return nil
}

func (s *Store) Acknowledge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Acknowledged = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) AcknowledgeAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.alerts {
		if !s.alerts[i].Acknowledged {
			s.alerts[i].Acknowledged = true
			n++
		}
	}
	return n, nil
}

func (s *Store) UnacknowledgedAlerts(_ context.Context) ([]store.AlertRecord, error) {
	return s.filterAlerts(0, func(r store.AlertRecord) bool { return !r.Acknowledged }), nil
}

func (s *Store) RecentAlerts(_ context.Context, limit int) ([]store.AlertRecord, error) {
	return s.filterAlerts(limit, func(store.AlertRecord) bool { return true }), nil
}

func (s *Store) CountUnacknowledged(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n, nil
}

func (s *Store) ClearAlerts(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
	return nil
}

func (s *Store) filterAlerts(limit int, keep func(store.AlertRecord) bool) []store.AlertRecord {
	s.mu.RLock()
	out := make([]store.AlertRecord, 0, len(s.alerts))
	for _, a := range s.alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out[:clampLimit(len(out), limit)]
}

// Alerts returns a copy of all alerts in insertion order. Test-only helper.
func (s *Store) Alerts() []store.AlertRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AlertRecord, len(s.alerts))
	copy(out, s.alerts)
	return out
}
