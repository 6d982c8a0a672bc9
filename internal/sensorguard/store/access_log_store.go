package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// AccessLogRecord is one observed sensor access. Records are immutable once
// written; SuspiciousReason is empty for benign accesses.
type AccessLogRecord struct {
	ID               int64
	AppID            string
	AppName          string
	Sensor           types.SensorType
	AccessedAt       time.Time
	WasBackground    bool
	WasScreenOff     bool
	Suspicious       bool
	SuspiciousReason string
}

// AccessLogStore persists access observations as an append-only log.
type AccessLogStore interface {
	// AppendLog inserts rec and returns its id.
	AppendLog(ctx context.Context, rec AccessLogRecord) (int64, error)

	// RecordAccess appends rec and folds it into the app's statistics row
	// in a single atomic write.
	RecordAccess(ctx context.Context, rec AccessLogRecord) (int64, error)

	RecentLogs(ctx context.Context, limit int) ([]AccessLogRecord, error)
	SuspiciousLogs(ctx context.Context, limit int) ([]AccessLogRecord, error)
	LogsForApp(ctx context.Context, appID string, limit int) ([]AccessLogRecord, error)

	// PruneLogsOlderThan deletes log rows accessed before cutoff and returns
	// the number removed.
	PruneLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	ClearLogs(ctx context.Context) error
}
