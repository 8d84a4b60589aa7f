// Package api - Auto-publish configuration, manual runs, and push logs
package api

import (
	"net/http"
	"strconv"

	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// PUSH CONFIG
// =============================================================================

func (s *Server) handleGetPublishConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetPushConfig(r.Context())
	if err != nil {
		s.logger.Error("get push config failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get push config")
		return
	}
	if cfg == nil {
		s.writeError(w, http.StatusNotFound, "push config not found")
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

type pushConfigRequest struct {
	Enabled         bool  `json:"enabled"`
	WindowMinutes   int32 `json:"window_minutes"`
	IntervalSeconds int32 `json:"interval_seconds"`
}

func (s *Server) handleUpdatePublishConfig(w http.ResponseWriter, r *http.Request) {
	var req pushConfigRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WindowMinutes <= 0 {
		s.writeError(w, http.StatusBadRequest, "window_minutes must be > 0")
		return
	}
	if req.IntervalSeconds <= 0 {
		s.writeError(w, http.StatusBadRequest, "interval_seconds must be > 0")
		return
	}
	cfg, err := s.store.UpdatePushConfig(r.Context(), req.Enabled, req.WindowMinutes, req.IntervalSeconds)
	if err != nil {
		s.logger.Error("update push config failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update push config")
		return
	}
	if cfg == nil {
		s.writeError(w, http.StatusNotFound, "push config not found")
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

// =============================================================================
// MANUAL RUN
// =============================================================================

type publishRunRequest struct {
	WindowMinutes int32 `json:"window_minutes"`
}

// handlePublishRun publishes one window on demand, regardless of whether the
// scheduled loop is enabled.
func (s *Server) handlePublishRun(w http.ResponseWriter, r *http.Request) {
	var req publishRunRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WindowMinutes <= 0 {
		s.writeError(w, http.StatusBadRequest, "window_minutes must be > 0")
		return
	}
	sent, err := s.publisher.PublishWindow(r.Context(), req.WindowMinutes)
	if err != nil {
		s.logger.Error("manual publish failed", "window_minutes", req.WindowMinutes, "error", err)
		s.writeError(w, http.StatusInternalServerError, "publish failed")
		return
	}
	if s.cache != nil && sent > 0 {
		if err := s.cache.Delete(r.Context(), cacheKeyStatsOverview); err != nil {
			s.logger.Warn("stats cache invalidation failed", "error", err)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"sent_count": sent})
}

// =============================================================================
// PUSH LOGS
// =============================================================================

func (s *Server) handleListPushLogs(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	var family *types.AlertFamily
	if raw := r.URL.Query().Get("alert_type"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 16)
		if err != nil || !types.AlertFamily(n).Valid() {
			s.writeError(w, http.StatusBadRequest, "alert_type must be 1, 2 or 3")
			return
		}
		f := types.AlertFamily(n)
		family = &f
	}

	items, total, err := s.store.ListPushLogs(r.Context(), family, limit, offset)
	if err != nil {
		s.logger.Error("list push logs failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list push logs")
		return
	}
	views := make([]types.PushLogView, 0, len(items))
	for _, l := range items {
		views = append(views, l.View())
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: views, Total: total, Page: page, PageSize: pageSize})
}
