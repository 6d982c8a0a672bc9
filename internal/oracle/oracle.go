// Package oracle defines the device collaborators the scheduler polls: the
// sensor access log, the foreground/screen state and app metadata.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// ErrUnknownApp is returned by AppMetadata for an app that is not installed.
var ErrUnknownApp = errors.New("unknown app")

// Batch is the result of one AccessOracle query. Events holds every access
// that could be read; Failed holds apps whose entries could not be read this
// time and should be retried on a later query.
type Batch struct {
	Events []types.AccessEvent
	Failed map[string]error
}

// AccessOracle reports sensor accesses observed after since.
type AccessOracle interface {
	Query(ctx context.Context, sensor types.SensorType, since time.Time) (Batch, error)
}

// DeviceStateOracle reports which app is in the foreground and whether the
// screen is on.
type DeviceStateOracle interface {
	ForegroundApp(ctx context.Context) (string, error)
	ScreenOn(ctx context.Context) (bool, error)
}

// AppMetadata resolves an app id to a human-readable name.
type AppMetadata interface {
	DisplayName(ctx context.Context, appID string) (string, error)
}
