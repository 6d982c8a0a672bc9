package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

type AlertRecord struct {
	ID           string
	AppID        string
	AppName      string
	Type         types.AlertType
	Sensor       types.SensorType
	Message      string
	Timestamp    time.Time
	Acknowledged bool
}

// AlertStore persists privacy alerts. Alerts change only by acknowledgment.
type AlertStore interface {
	AppendAlert(ctx context.Context, rec AlertRecord) error

	// Acknowledge returns ErrNotFound for an unknown id. Acknowledging twice
	// is not an error.
	Acknowledge(ctx context.Context, id string) error
	AcknowledgeAll(ctx context.Context) (int64, error)

	UnacknowledgedAlerts(ctx context.Context) ([]AlertRecord, error)
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	CountUnacknowledged(ctx context.Context) (int64, error)

	ClearAlerts(ctx context.Context) error
}
