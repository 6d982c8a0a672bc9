package oracle

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// Nop observes nothing. It backs deployments that only serve the stored
// history, e.g. when no device is attached.
type Nop struct{}

var (
	_ AccessOracle      = Nop{}
	_ DeviceStateOracle = Nop{}
	_ AppMetadata       = Nop{}
)

func (Nop) Query(context.Context, types.SensorType, time.Time) (Batch, error) {
	return Batch{}, nil
}

func (Nop) ForegroundApp(context.Context) (string, error) { return "", nil }

func (Nop) ScreenOn(context.Context) (bool, error) { return true, nil }

func (Nop) DisplayName(_ context.Context, appID string) (string, error) {
	return FallbackDisplayName(appID), nil
}
