package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/service"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

type Dependencies struct {
	Logger   *slog.Logger
	Addr     string
	Guardian *service.Guardian
	Metrics  *metrics.Metrics
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	guardian   *service.Guardian
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:   d.Logger,
		mux:      mux,
		guardian: d.Guardian,
	}

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/enabled", s.handleSetEnabled)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)

	mux.HandleFunc("GET /v1/logs", s.handleLogs)

	mux.HandleFunc("GET /v1/alerts", s.handleAlerts)
	mux.HandleFunc("POST /v1/alerts/ack-all", s.handleAckAll)
	mux.HandleFunc("POST /v1/alerts/{id}/ack", s.handleAck)

	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/stats/top-background", s.handleTopBackground)
	mux.HandleFunc("GET /v1/stats/{app}", s.handleAppStats)
	mux.HandleFunc("GET /v1/summaries", s.handleSummaries)

	mux.HandleFunc("DELETE /v1/data/{target}", s.handleClear)

	mux.Handle("GET /metrics", d.Metrics.Handler())

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

// ── Status and settings ──────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.guardian.Status(r.Context())
	if err != nil {
		s.internalError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req types.EnabledRequest
	if err := readJSON(r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "bad_json", `body must be {"enabled": true|false}`)
		return
	}

	st, err := s.guardian.ToggleEnabled(r.Context(), *req.Enabled)
	if err != nil {
		s.internalError(w, "toggle_enabled", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.guardian.Settings(r.Context())
	if err != nil {
		s.internalError(w, "settings", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req types.Settings
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	st, err := s.guardian.UpdateSettings(r.Context(), req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, "invalid_settings", err.Error())
			return
		}
		s.internalError(w, "update_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ── Logs ─────────────────────────────────────────────────────────────────────

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_query", "limit must be a non-negative integer")
		return
	}
	suspicious, ok := queryBool(r, "suspicious")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_query", "suspicious must be a boolean")
		return
	}
	app := r.URL.Query().Get("app")

	var (
		recs []store.AccessLogRecord
		err  error
	)
	switch {
	case app != "":
		recs, err = s.guardian.LogsForApp(r.Context(), app, limit)
		if suspicious {
			recs = onlySuspicious(recs)
		}
	case suspicious:
		recs, err = s.guardian.SuspiciousLogs(r.Context(), limit)
	default:
		recs, err = s.guardian.RecentLogs(r.Context(), limit)
	}
	if err != nil {
		s.internalError(w, "logs", err)
		return
	}
	writeJSON(w, http.StatusOK, logEntries(recs))
}

func onlySuspicious(in []store.AccessLogRecord) []store.AccessLogRecord {
	out := in[:0]
	for _, r := range in {
		if r.Suspicious {
			out = append(out, r)
		}
	}
	return out
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_query", "limit must be a non-negative integer")
		return
	}
	unacked, ok := queryBool(r, "unacknowledged")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_query", "unacknowledged must be a boolean")
		return
	}

	var (
		recs []store.AlertRecord
		err  error
	)
	if unacked {
		recs, err = s.guardian.UnacknowledgedAlerts(r.Context())
		if limit > 0 && len(recs) > limit {
			recs = recs[:limit]
		}
	} else {
		recs, err = s.guardian.RecentAlerts(r.Context(), limit)
	}
	if err != nil {
		s.internalError(w, "alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts(recs))
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.guardian.Acknowledge(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrUnknownAlert) {
			writeError(w, http.StatusNotFound, "unknown_alert", err.Error())
			return
		}
		s.internalError(w, "acknowledge", err)
		return
	}
	writeJSON(w, http.StatusOK, types.AckResponse{OK: true, Acknowledged: 1})
}

func (s *Server) handleAckAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.guardian.AcknowledgeAll(r.Context())
	if err != nil {
		s.internalError(w, "acknowledge_all", err)
		return
	}
	writeJSON(w, http.StatusOK, types.AckResponse{OK: true, Acknowledged: n})
}

// ── Stats and summaries ──────────────────────────────────────────────────────

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	recs, err := s.guardian.AllStats(r.Context())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, appStats(recs))
}

func (s *Server) handleTopBackground(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_query", "limit must be a non-negative integer")
		return
	}
	recs, err := s.guardian.TopBackgroundAccessors(r.Context(), limit)
	if err != nil {
		s.internalError(w, "top_background", err)
		return
	}
	writeJSON(w, http.StatusOK, appStats(recs))
}

func (s *Server) handleAppStats(w http.ResponseWriter, r *http.Request) {
	app := r.PathValue("app")
	rec, err := s.guardian.AppStats(r.Context(), app)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown_app", "no stats recorded for "+app)
			return
		}
		s.internalError(w, "app_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, appStatsFromRecord(rec))
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "days", 7)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_query", "days must be a non-negative integer")
		return
	}
	recs, err := s.guardian.RecentSummaries(r.Context(), days)
	if err != nil {
		s.internalError(w, "summaries", err)
		return
	}
	writeJSON(w, http.StatusOK, summaries(recs))
}

// ── Bulk clears ──────────────────────────────────────────────────────────────

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	target, err := service.ParseClearTarget(r.PathValue("target"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_target", err.Error())
		return
	}
	if err := s.guardian.Clear(r.Context(), target); err != nil {
		s.internalError(w, "clear", err)
		return
	}
	writeJSON(w, http.StatusOK, types.ClearResponse{OK: true, Target: string(target)})
}
