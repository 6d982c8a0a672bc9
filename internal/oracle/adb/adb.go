// Package adb implements the device oracles over the Android Debug Bridge.
package adb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/oracle"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// appOps maps each sensor onto the app-op names that record its use.
// Motion sensors are not guarded by an app-op and are never reported.
var appOps = map[types.SensorType][]string{
	types.SensorCamera:      {"CAMERA"},
	types.SensorMicrophone:  {"RECORD_AUDIO"},
	types.SensorLocation:    {"FINE_LOCATION", "COARSE_LOCATION"},
	types.SensorBodySensors: {"BODY_SENSORS"},
}

type Config struct {
	Path           string
	Serial         string
	CommandTimeout time.Duration
	// Location is the device's local zone, used for absolute access stamps.
	Location *time.Location
	Logger   *slog.Logger
}

// Client is an AccessOracle, DeviceStateOracle and AppMetadata backed by
// adb shell commands.
type Client struct {
	run Runner
	loc *time.Location
	log *slog.Logger
	now func() time.Time
}

var (
	_ oracle.AccessOracle      = (*Client)(nil)
	_ oracle.DeviceStateOracle = (*Client)(nil)
	_ oracle.AppMetadata       = (*Client)(nil)
)

func New(cfg Config) *Client {
	return NewWithRunner(ExecRunner{
		Path:    cfg.Path,
		Serial:  cfg.Serial,
		Timeout: cfg.CommandTimeout,
	}, cfg.Location, cfg.Logger)
}

func NewWithRunner(r Runner, loc *time.Location, log *slog.Logger) *Client {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{run: r, loc: loc, log: log, now: time.Now}
}

// SetNow overrides the clock used to resolve relative access stamps.
func (c *Client) SetNow(now func() time.Time) { c.now = now }

// Ping checks that a device answers.
func (c *Client) Ping(ctx context.Context) error {
	out, err := c.run.Run(ctx, "get-state")
	if err != nil {
		return err
	}
	if state := strings.TrimSpace(string(out)); state != "device" {
		return fmt.Errorf("adb device state %q", state)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, sensor types.SensorType, since time.Time) (oracle.Batch, error) {
	ops, ok := appOps[sensor]
	if !ok {
		return oracle.Batch{}, nil
	}

	now := c.now()
	latest := make(map[string]time.Time)
	failed := make(map[string]error)
	for _, op := range ops {
		out, err := c.run.Run(ctx, "shell", "dumpsys", "appops", "--op", op)
		if err != nil {
			return oracle.Batch{}, fmt.Errorf("query %s: %w", op, err)
		}
		last, bad := parseAppOps(out, now, c.loc)
		for pkg, at := range last {
			if prev, ok := latest[pkg]; !ok || at.After(prev) {
				latest[pkg] = at
			}
		}
		for pkg, err := range bad {
			failed[pkg] = err
		}
	}
	for pkg := range latest {
		delete(failed, pkg)
	}

	var b oracle.Batch
	for pkg, at := range latest {
		if !at.After(since) {
			continue
		}
		b.Events = append(b.Events, types.AccessEvent{AppID: pkg, Sensor: sensor, At: at})
	}
	sort.Slice(b.Events, func(i, j int) bool {
		if !b.Events[i].At.Equal(b.Events[j].At) {
			return b.Events[i].At.Before(b.Events[j].At)
		}
		return b.Events[i].AppID < b.Events[j].AppID
	})
	if len(failed) > 0 {
		b.Failed = failed
		c.log.Debug("appops entries skipped", "sensor", sensor, "count", len(failed))
	}
	return b, nil
}

func (c *Client) ForegroundApp(ctx context.Context) (string, error) {
	out, err := c.run.Run(ctx, "shell", "dumpsys", "activity", "activities")
	if err != nil {
		return "", fmt.Errorf("foreground app: %w", err)
	}
	return parseForeground(out), nil
}

func (c *Client) ScreenOn(ctx context.Context) (bool, error) {
	out, err := c.run.Run(ctx, "shell", "dumpsys", "power")
	if err != nil {
		return false, fmt.Errorf("screen state: %w", err)
	}
	return parseScreenOn(out)
}

// DisplayName confirms the package is installed and derives its label from
// the package name; adb exposes no app label without pulling the APK.
func (c *Client) DisplayName(ctx context.Context, appID string) (string, error) {
	out, err := c.run.Run(ctx, "shell", "pm", "path", appID)
	if err != nil {
		return "", fmt.Errorf("display name %s: %w", appID, err)
	}
	if !strings.Contains(string(out), "package:") {
		return "", fmt.Errorf("display name %s: %w", appID, oracle.ErrUnknownApp)
	}
	return oracle.FallbackDisplayName(appID), nil
}
