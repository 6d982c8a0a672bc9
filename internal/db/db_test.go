package db_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/sensorguard/internal/db"
)

func TestOpenMigratesAndSeeds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sensorguard.db")

	conn, err := db.Open(ctx, db.Config{Path: path, Env: "prod"})
	require.NoError(t, err)
	defer conn.Close()

	v, dirty, err := db.SchemaVersion(conn)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	assert.False(t, dirty)

	var enabled, threshold int
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT enabled, frequent_threshold FROM guardian_settings WHERE id = 1;`,
	).Scan(&enabled, &threshold))
	assert.Equal(t, 0, enabled)
	assert.Equal(t, 10, threshold)

	// Re-running both steps is a no-op.
	require.NoError(t, db.Migrate(ctx, conn))
	_, err = conn.ExecContext(ctx, `UPDATE guardian_settings SET enabled = 1 WHERE id = 1;`)
	require.NoError(t, err)
	require.NoError(t, db.SeedDefaults(ctx, conn))
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT enabled FROM guardian_settings WHERE id = 1;`,
	).Scan(&enabled))
	assert.Equal(t, 1, enabled, "seeding must not overwrite an existing row")
}

func TestWorkerRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "w.db")})
	require.NoError(t, err)
	defer conn.Close()

	w := db.NewWorker(conn)
	defer w.Close()

	boom := errors.New("boom")
	err = w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM guardian_settings;`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM guardian_settings;`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWorkerCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	defer conn.Close()

	w := db.NewWorker(conn)
	require.NoError(t, w.Do(ctx, func(context.Context, *sql.Tx) error { return nil }))
	w.Close()
	w.Close()

	err = w.Do(ctx, func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, db.ErrWorkerClosed)
}

func TestWorkerCommitsDespiteCallerCancel(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer conn.Close()

	w := db.NewWorker(conn)
	defer w.Close()

	callCtx, cancel := context.WithCancel(ctx)
	err = w.Do(callCtx, func(ctx context.Context, tx *sql.Tx) error {
		cancel()
		_, err := tx.ExecContext(ctx, `UPDATE guardian_settings SET enabled = 1 WHERE id = 1;`)
		return err
	})
	require.NoError(t, err)

	var enabled int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT enabled FROM guardian_settings WHERE id = 1;`).Scan(&enabled))
	assert.Equal(t, 1, enabled)
}
