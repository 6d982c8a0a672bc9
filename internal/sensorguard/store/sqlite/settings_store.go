package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/sensorguard/internal/db"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

type SettingsStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func NewSettingsStore(db *sql.DB, writer *dbpkg.Worker) *SettingsStore {
	return &SettingsStore{db: db, writer: writer, now: utcNow}
}

// LoadSettings returns the stored settings, or the defaults if none were
// ever saved.
func (s *SettingsStore) LoadSettings(ctx context.Context) (types.Settings, error) {
	var enabled, alertBg, alertScreen, alertFreq int
	var threshold int
	var monitorJSON, whitelistJSON string

	err := s.db.QueryRowContext(ctx, `
SELECT enabled, monitor_json, alert_background, alert_screen_off, alert_frequent,
       frequent_threshold, whitelist_json
FROM guardian_settings
WHERE id = 1;
`).Scan(&enabled, &monitorJSON, &alertBg, &alertScreen, &alertFreq, &threshold, &whitelistJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DefaultSettings(), nil
	}
	if err != nil {
		return types.Settings{}, fmt.Errorf("LoadSettings query: %w", err)
	}

	st := types.Settings{
		Enabled:                 enabled == 1,
		AlertOnBackgroundAccess: alertBg == 1,
		AlertOnScreenOffAccess:  alertScreen == 1,
		AlertOnFrequentAccess:   alertFreq == 1,
		FrequentAccessThreshold: threshold,
	}
	if err := json.Unmarshal([]byte(monitorJSON), &st.Monitor); err != nil {
		return types.Settings{}, fmt.Errorf("LoadSettings decode monitor: %w", err)
	}
	if err := json.Unmarshal([]byte(whitelistJSON), &st.Whitelist); err != nil {
		return types.Settings{}, fmt.Errorf("LoadSettings decode whitelist: %w", err)
	}
	return st.Normalized(), nil
}

// SaveSettings validates st and replaces the stored row.
func (s *SettingsStore) SaveSettings(ctx context.Context, st types.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	st = st.Normalized()

	monitorJSON, err := json.Marshal(st.Monitor)
	if err != nil {
		return fmt.Errorf("SaveSettings encode monitor: %w", err)
	}
	whitelistJSON, err := json.Marshal(st.Whitelist)
	if err != nil {
		return fmt.Errorf("SaveSettings encode whitelist: %w", err)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO guardian_settings(
  id, enabled, monitor_json, alert_background, alert_screen_off, alert_frequent,
  frequent_threshold, whitelist_json, updated_at_ms
) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  enabled = excluded.enabled,
  monitor_json = excluded.monitor_json,
  alert_background = excluded.alert_background,
  alert_screen_off = excluded.alert_screen_off,
  alert_frequent = excluded.alert_frequent,
  frequent_threshold = excluded.frequent_threshold,
  whitelist_json = excluded.whitelist_json,
  updated_at_ms = excluded.updated_at_ms;
`,
			dbpkg.BoolInt(st.Enabled), string(monitorJSON),
			dbpkg.BoolInt(st.AlertOnBackgroundAccess), dbpkg.BoolInt(st.AlertOnScreenOffAccess), dbpkg.BoolInt(st.AlertOnFrequentAccess),
			st.FrequentAccessThreshold, string(whitelistJSON), toMs(s.now()),
		); err != nil {
			return fmt.Errorf("SaveSettings upsert: %w", err)
		}
		return nil
	})
}
