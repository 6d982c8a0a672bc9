package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Store is the persistence layer: it exclusively owns the access log, the
// per-app statistics, the alert queue, the daily summaries and the settings row.
type Store interface {
	AccessLogStore
	StatsStore
	AlertStore
	SummaryStore
	SettingsStore

	// ClearAll empties the log, stats, alert and summary tables together.
	ClearAll(ctx context.Context) error
}

// DateLayout is the key format of daily summaries.
const DateLayout = "2006-01-02"

// DayBounds returns [start of date, start of next date) in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 1), nil
}

// DateOf formats t as a summary key in loc.
func DateOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
