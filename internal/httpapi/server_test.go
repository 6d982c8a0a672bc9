package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BrandonDHaskell/sensorguard/internal/httpapi"
	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/service"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store/memory"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
	"github.com/BrandonDHaskell/sensorguard/internal/testutil"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ts       *httptest.Server
	store    *memory.Store
	guardian *service.Guardian
}

// newTestServer wires up the full dependency graph using the in-memory store
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T) *fixture {
	t.Helper()

	st := memory.New()
	clock := testutil.FixedClock()
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	classifier := service.NewClassifier()
	sched := service.NewScheduler(service.SchedulerConfig{Interval: time.Hour, Location: time.UTC},
		service.SchedulerDeps{Store: st, Classifier: classifier, Clock: clock, Metrics: m})
	g := service.NewGuardian(st, sched, classifier, time.UTC, nil)
	g.SetClock(clock)
	t.Cleanup(g.Shutdown)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Addr:     "127.0.0.1:0",
		Guardian: g,
		Metrics:  m,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: st, guardian: g}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	recs := []store.AccessLogRecord{
		{AppID: "com.maps", AppName: "Maps", Sensor: types.SensorLocation, AccessedAt: t0, WasBackground: true,
			Suspicious: true, SuspiciousReason: service.ReasonBackground},
		{AppID: "com.cam", AppName: "Cam", Sensor: types.SensorCamera, AccessedAt: t0.Add(time.Minute)},
	}
	for _, r := range recs {
		if _, err := f.store.RecordAccess(ctx, r); err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}
	if err := f.store.AppendAlert(ctx, store.AlertRecord{
		ID: "alert-1", AppID: "com.maps", AppName: "Maps", Type: types.AlertBackgroundAccess,
		Sensor: types.SensorLocation, Message: "Maps accessed the location", Timestamp: t0,
	}); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
}

func (f *fixture) request(t *testing.T, method, path string, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

// ── Status and settings ──────────────────────────────────────────────────────

func TestStatus_OK(t *testing.T) {
	f := newTestServer(t)
	f.seed(t)

	resp := f.request(t, http.MethodGet, "/v1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	st := decode[types.StatusResponse](t, resp)
	if !st.OK || st.State != "IDLE" || st.Enabled {
		t.Errorf("unexpected status %+v", st)
	}
	if st.UnacknowledgedAlerts != 1 {
		t.Errorf("expected 1 unacknowledged alert, got %d", st.UnacknowledgedAlerts)
	}
}

func TestEnabled_TogglesScheduler(t *testing.T) {
	f := newTestServer(t)

	resp := f.request(t, http.MethodPost, "/v1/enabled", `{"enabled":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if st := decode[types.Settings](t, resp); !st.Enabled {
		t.Error("expected enabled=true in response")
	}

	st := decode[types.StatusResponse](t, f.request(t, http.MethodGet, "/v1/status", ""))
	if st.State != "ACTIVE" {
		t.Errorf("expected ACTIVE scheduler, got %s", st.State)
	}

	f.request(t, http.MethodPost, "/v1/enabled", `{"enabled":false}`)
	st = decode[types.StatusResponse](t, f.request(t, http.MethodGet, "/v1/status", ""))
	if st.State != "IDLE" {
		t.Errorf("expected IDLE scheduler, got %s", st.State)
	}
}

func TestEnabled_MissingField_400(t *testing.T) {
	f := newTestServer(t)
	resp := f.request(t, http.MethodPost, "/v1/enabled", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSettings_PutAndGet(t *testing.T) {
	f := newTestServer(t)

	body := `{"enabled":false,"monitor":{"CAMERA":true,"GYROSCOPE":true},
		"alert_on_background_access":true,"alert_on_screen_off_access":false,
		"alert_on_frequent_access":true,"frequent_access_threshold":4,
		"whitelist":["com.b","com.a"]}`
	resp := f.request(t, http.MethodPut, "/v1/settings", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := decode[types.Settings](t, f.request(t, http.MethodGet, "/v1/settings", ""))
	if got.FrequentAccessThreshold != 4 {
		t.Errorf("expected threshold 4, got %d", got.FrequentAccessThreshold)
	}
	if !got.Monitors(types.SensorGyroscope) || got.Monitors(types.SensorMicrophone) {
		t.Errorf("unexpected monitor map %v", got.Monitor)
	}
	if len(got.Whitelist) != 2 || got.Whitelist[0] != "com.a" {
		t.Errorf("expected sorted whitelist, got %v", got.Whitelist)
	}
}

func TestSettings_Invalid_400(t *testing.T) {
	f := newTestServer(t)

	resp := f.request(t, http.MethodPut, "/v1/settings", `{"frequent_access_threshold":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if er := decode[types.ErrorResponse](t, resp); er.Error != "invalid_settings" {
		t.Errorf("expected invalid_settings, got %q", er.Error)
	}

	got := decode[types.Settings](t, f.request(t, http.MethodGet, "/v1/settings", ""))
	if got.FrequentAccessThreshold != types.DefaultFrequentAccessThreshold {
		t.Errorf("stored settings changed after a rejected update: %d", got.FrequentAccessThreshold)
	}
}

func TestSettings_UnknownField_400(t *testing.T) {
	f := newTestServer(t)
	resp := f.request(t, http.MethodPut, "/v1/settings", `{"frequent_access_threshold":5,"paranoid":true}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ── Logs and alerts ──────────────────────────────────────────────────────────

func TestLogs_Filters(t *testing.T) {
	f := newTestServer(t)
	f.seed(t)

	all := decode[[]types.LogEntry](t, f.request(t, http.MethodGet, "/v1/logs", ""))
	if len(all) != 2 || all[0].AppID != "com.cam" {
		t.Fatalf("expected 2 logs newest first, got %+v", all)
	}
	if all[0].SuspiciousReason != nil {
		t.Error("benign log should have a null reason")
	}

	susp := decode[[]types.LogEntry](t, f.request(t, http.MethodGet, "/v1/logs?suspicious=true", ""))
	if len(susp) != 1 || susp[0].SuspiciousReason == nil || *susp[0].SuspiciousReason != service.ReasonBackground {
		t.Errorf("unexpected suspicious logs %+v", susp)
	}

	app := decode[[]types.LogEntry](t, f.request(t, http.MethodGet, "/v1/logs?app=com.cam&suspicious=true", ""))
	if len(app) != 0 {
		t.Errorf("expected no suspicious logs for com.cam, got %d", len(app))
	}

	if resp := f.request(t, http.MethodGet, "/v1/logs?limit=-1", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for negative limit, got %d", resp.StatusCode)
	}
}

func TestAlerts_AckFlow(t *testing.T) {
	f := newTestServer(t)
	f.seed(t)

	list := decode[[]types.Alert](t, f.request(t, http.MethodGet, "/v1/alerts?unacknowledged=true", ""))
	if len(list) != 1 || list[0].ID != "alert-1" {
		t.Fatalf("unexpected alerts %+v", list)
	}

	resp := f.request(t, http.MethodPost, "/v1/alerts/alert-1/ack", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = f.request(t, http.MethodPost, "/v1/alerts/nope/ack", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	ack := decode[types.AckResponse](t, f.request(t, http.MethodPost, "/v1/alerts/ack-all", ""))
	if ack.Acknowledged != 0 {
		t.Errorf("expected nothing left to acknowledge, got %d", ack.Acknowledged)
	}
}

// ── Stats, summaries and clears ──────────────────────────────────────────────

func TestStats(t *testing.T) {
	f := newTestServer(t)
	f.seed(t)

	all := decode[[]types.AppStats](t, f.request(t, http.MethodGet, "/v1/stats", ""))
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
	if _, ok := all[0].Counts[types.SensorGyroscope]; !ok {
		t.Error("counts should list every sensor")
	}

	one := decode[types.AppStats](t, f.request(t, http.MethodGet, "/v1/stats/com.maps", ""))
	if one.Counts[types.SensorLocation] != 1 || one.BackgroundCount != 1 {
		t.Errorf("unexpected stats %+v", one)
	}

	top := decode[[]types.AppStats](t, f.request(t, http.MethodGet, "/v1/stats/top-background?limit=5", ""))
	if len(top) != 1 || top[0].AppID != "com.maps" {
		t.Errorf("unexpected top background %+v", top)
	}

	if resp := f.request(t, http.MethodGet, "/v1/stats/com.none", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSummariesAndClearAll(t *testing.T) {
	f := newTestServer(t)
	f.seed(t)

	sums := decode[[]types.DailySummary](t, f.request(t, http.MethodGet, "/v1/summaries?days=3", ""))
	if len(sums) != 1 || sums[0].Date != "2026-03-14" {
		t.Fatalf("unexpected summaries %+v", sums)
	}
	if sums[0].Totals[types.SensorCamera] != 1 || sums[0].AlertsTriggered != 1 {
		t.Errorf("unexpected totals %+v", sums[0])
	}

	resp := f.request(t, http.MethodDelete, "/v1/data/all", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	sums = decode[[]types.DailySummary](t, f.request(t, http.MethodGet, "/v1/summaries", ""))
	if len(sums) != 1 || sums[0].Totals[types.SensorCamera] != 0 {
		t.Errorf("expected one zeroed summary, got %+v", sums)
	}
	if logs := f.store.Logs(); len(logs) != 0 {
		t.Errorf("expected empty log, got %d rows", len(logs))
	}

	if resp := f.request(t, http.MethodDelete, "/v1/data/settings", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestServer(t)
	f.request(t, http.MethodPost, "/v1/enabled", `{"enabled":true}`)

	resp := f.request(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(b, []byte("sensorguard_scheduler_active 1")) {
		t.Errorf("scheduler gauge missing from /metrics output")
	}
}

// ── Client ───────────────────────────────────────────────────────────────────

func TestClient_RoundTrip(t *testing.T) {
	f := newTestServer(t)
	f.seed(t)
	ctx := context.Background()
	c := httpapi.NewClient(strings.TrimPrefix(f.ts.URL, "http://"))

	st, err := c.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	st.Whitelist = append(st.Whitelist, "com.trusted")
	if _, err := c.UpdateSettings(ctx, st); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	logs, err := c.Logs(ctx, httpapi.LogQuery{App: "com.maps"})
	if err != nil || len(logs) != 1 {
		t.Fatalf("Logs: %v, %d rows", err, len(logs))
	}

	err = c.Acknowledge(ctx, "missing")
	var apiErr *httpapi.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != "unknown_alert" {
		t.Fatalf("expected unknown_alert APIError, got %v", err)
	}

	n, err := c.AcknowledgeAll(ctx)
	if err != nil || n != 1 {
		t.Fatalf("AcknowledgeAll: %v, %d", err, n)
	}

	if err := c.Clear(ctx, "logs"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if logs, _ := c.Logs(ctx, httpapi.LogQuery{}); len(logs) != 0 {
		t.Errorf("expected no logs after clear, got %d", len(logs))
	}
}
