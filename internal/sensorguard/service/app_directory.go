package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/BrandonDHaskell/sensorguard/internal/oracle"
)

// AppDirectory resolves app ids to display names through the app metadata
// collaborator, caching results. It never fails: an unresolvable app gets a
// name derived from its id.
type AppDirectory struct {
	meta    oracle.AppMetadata
	cache   *cache.Cache
	timeout time.Duration
	log     *slog.Logger
}

func NewAppDirectory(meta oracle.AppMetadata, ttl, timeout time.Duration, log *slog.Logger) *AppDirectory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AppDirectory{
		meta:    meta,
		cache:   cache.New(ttl, 2*ttl),
		timeout: timeout,
		log:     log,
	}
}

func (d *AppDirectory) DisplayName(ctx context.Context, appID string) string {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return ""
	}
	if v, ok := d.cache.Get(appID); ok {
		return v.(string)
	}

	name := ""
	if d.meta != nil {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		n, err := d.meta.DisplayName(callCtx, appID)
		cancel()
		if err != nil {
			d.log.Debug("display name lookup failed", "app_id", appID, "error", err)
			// Don't cache a fallback caused by cancellation.
			if ctx.Err() != nil {
				return oracle.FallbackDisplayName(appID)
			}
		}
		name = strings.TrimSpace(n)
	}
	if name == "" {
		name = oracle.FallbackDisplayName(appID)
	}

	d.cache.SetDefault(appID, name)
	return name
}

// Forget evicts one app, e.g. after it was reinstalled.
func (d *AppDirectory) Forget(appID string) {
	d.cache.Delete(appID)
}

func (d *AppDirectory) Flush() {
	d.cache.Flush()
}
