package server

import (
	"net/http"
	"strconv"

	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/version"
)

// HandleHealth reports liveness plus build info
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Get(),
	})
}

// HandleLatestMetrics returns the most recent persisted snapshot. 404 until
// the first aggregation has run.
func (s *Server) HandleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshot persistence is disabled")
		return
	}

	snap, err := s.snapshots.Latest(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleSnapshots lists recent snapshots, newest first. ?limit= caps the
// count (default 20).
func (s *Server) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.snapshots == nil {
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": []any{}})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	snaps, err := s.snapshots.Recent(r.Context(), limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// HandleConfig returns the effective configuration with credentials redacted
func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server": map[string]any{
			"port":                   s.cfg.Server.Port,
			"allowed_origins":        s.cfg.Server.AllowedOrigins,
			"heartbeat_seconds":      s.cfg.Server.HeartbeatSeconds,
			"stream_timeout_seconds": s.cfg.Server.StreamTimeoutSeconds,
		},
		"cache": map[string]any{
			"ttl_seconds": s.cfg.Cache.TTLSeconds,
		},
		"sources": map[string]any{
			"time_period_days":      s.cfg.Sources.TimePeriodDays,
			"fetch_timeout_seconds": s.cfg.Sources.FetchTimeoutSeconds,
			"page_size":             s.cfg.Sources.PageSize,
			"requests_per_second":   s.cfg.Sources.RequestsPerSecond,
		},
		"github": map[string]any{
			"owner":     s.cfg.GitHub.Owner,
			"repo":      s.cfg.GitHub.Repo,
			"token_set": s.cfg.GitHub.Token != "",
			"api_url":   s.cfg.GitHub.APIURL,
		},
		"sheets": map[string]any{
			"spreadsheet_id": s.cfg.Sheets.SpreadsheetID,
			"sheet_name":     s.cfg.Sheets.SheetName,
			"api_key_set":    s.cfg.Sheets.APIKey != "",
			"api_url":        s.cfg.Sheets.APIURL,
		},
	})
}

// parseTimePeriod reads ?timePeriod= falling back to the configured default
func (s *Server) parseTimePeriod(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("timePeriod")
	if raw == "" {
		return s.cfg.Sources.TimePeriodDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidRequest, "timePeriod must be a positive number of days, got %q", raw)
	}
	return days, nil
}
