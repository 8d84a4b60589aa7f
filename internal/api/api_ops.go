// Package api - Threat events, dictionaries, stats, and operational endpoints
package api

import (
	"net/http"

	"github.com/quillsec/alertconv/internal/config"
	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// THREAT EVENTS
// =============================================================================

func (s *Server) handleListThreatEvents(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListThreatEvents(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list threat events failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list threat events")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleUpdateThreatEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var event types.ThreatEvent
	if err := s.readJSON(r, &event); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	event.ID = id

	updated, err := s.store.UpdateThreatEvent(r.Context(), &event)
	if err != nil {
		s.logger.Error("update threat event failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update threat event")
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "threat event not found")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// =============================================================================
// DICTIONARIES AND STATS
// =============================================================================

func (s *Server) handleAlarmTypes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, emptyIfNil(s.alarmTypes))
}

func (s *Server) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		var cached store.Overview
		if ok, err := s.cache.GetJSON(r.Context(), cacheKeyStatsOverview, &cached); err == nil && ok {
			s.writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	overview, err := s.store.StatsOverview(r.Context())
	if err != nil {
		s.logger.Error("stats overview failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats overview")
		return
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(r.Context(), cacheKeyStatsOverview, overview, config.CacheTTLStatsOverview); err != nil {
			s.logger.Warn("stats cache write failed", "error", err)
		}
	}
	s.writeJSON(w, http.StatusOK, overview)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (s *Server) handleMigrationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.MigrationStatus(r.Context())
	if err != nil {
		s.logger.Error("migration status failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read migration status")
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		s.writeError(w, http.StatusServiceUnavailable, "metrics collector not initialized")
		return
	}
	s.writeJSON(w, http.StatusOK, s.collector.Runtime())
}
