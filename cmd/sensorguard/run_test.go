package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/sensorguard/internal/config"
	"github.com/BrandonDHaskell/sensorguard/internal/db"
	"github.com/BrandonDHaskell/sensorguard/internal/logging"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store/sqlite"
	"github.com/BrandonDHaskell/sensorguard/internal/testutil"
)

func TestRunDaemonStartsAndStops(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "sensorguard.db")

	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = dbPath
	cfg.Oracle.Type = "none"
	cfg.Logging.Level = "error"
	cfg.Monitor.Timezone = "UTC"

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, runDaemon(ctx, cfg))

	// The database outlives the daemon with its schema and default settings.
	sqlDB, err := db.Open(context.Background(), db.Config{Path: dbPath})
	require.NoError(t, err)
	defer sqlDB.Close()
	w := db.NewWorker(sqlDB)
	defer w.Close()

	st, err := sqlite.New(sqlDB, w).LoadSettings(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Enabled)
}

func TestOpenStoreMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Type = "memory"
	st, closeFn, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()
	assert.NotNil(t, st)
}

func TestAppDirectoryLogsUnderItsComponent(t *testing.T) {
	var buf bytes.Buffer
	h, err := logging.NewHandler(&buf, "text", slog.LevelDebug)
	require.NoError(t, err)

	apps := newAppDirectory(config.Default(), testutil.NewFakeDevice("", true), slog.New(h))
	assert.Equal(t, "Maps", apps.DisplayName(context.Background(), "com.unknown.maps"))

	assert.Contains(t, buf.String(), "display name lookup failed")
	assert.Contains(t, buf.String(), "component=apps")
}
