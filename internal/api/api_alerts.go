// Package api - Raw, invalid, and converged alert endpoints
package api

import (
	"net/http"
	"strconv"

	"github.com/quillsec/alertconv/pkg/types"
)

// Converged list items carry the resolved subtype display name alongside
// the stored columns.
type convergedNetworkAttackView struct {
	*types.ConvergedNetworkAttack
	AlarmSubtypeName string `json:"alarm_subtype_name"`
}

type convergedMaliciousSampleView struct {
	*types.ConvergedMaliciousSample
	AlarmSubtypeName string `json:"alarm_subtype_name"`
}

type convergedHostBehaviorView struct {
	*types.ConvergedHostBehavior
	AlarmSubtypeName string `json:"alarm_subtype_name"`
}

// subtypeName resolves a subtype code through the alarm-type dictionary.
// Unknown families and codes resolve to the empty string.
func (s *Server) subtypeName(family types.AlertFamily, subtype int32) string {
	for _, at := range s.alarmTypes {
		if at.Code == int16(family) {
			return at.Subtypes[strconv.FormatInt(int64(subtype), 10)]
		}
	}
	return ""
}

// =============================================================================
// RAW ALERTS
// =============================================================================

func (s *Server) handleListNetworkAttacks(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListNetworkAttacks(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list network attacks failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list network attacks")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleGetNetworkAttack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	rec, err := s.store.GetNetworkAttack(r.Context(), id)
	if err != nil {
		s.logger.Error("get network attack failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get network attack")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "network attack not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListMaliciousSamples(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListMaliciousSamples(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list malicious samples failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list malicious samples")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleGetMaliciousSample(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	rec, err := s.store.GetMaliciousSample(r.Context(), id)
	if err != nil {
		s.logger.Error("get malicious sample failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get malicious sample")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "malicious sample not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListHostBehaviors(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListHostBehaviors(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list host behaviors failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list host behaviors")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleGetHostBehavior(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	rec, err := s.store.GetHostBehavior(r.Context(), id)
	if err != nil {
		s.logger.Error("get host behavior failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get host behavior")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "host behavior not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListInvalidAlerts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListInvalidAlerts(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list invalid alerts failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list invalid alerts")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

// =============================================================================
// CONVERGED ALERTS
// =============================================================================

func (s *Server) handleListConvergedNetworkAttacks(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListConvergedNetworkAttacks(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list converged network attacks failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list converged network attacks")
		return
	}
	views := make([]convergedNetworkAttackView, 0, len(items))
	for _, rec := range items {
		views = append(views, convergedNetworkAttackView{rec, s.subtypeName(types.FamilyNetworkAttack, rec.AlarmSubtype)})
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: views, Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleGetConvergedNetworkAttack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	rec, err := s.store.GetConvergedNetworkAttack(r.Context(), id)
	if err != nil {
		s.logger.Error("get converged network attack failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get converged network attack")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "converged network attack not found")
		return
	}
	s.writeJSON(w, http.StatusOK, convergedNetworkAttackView{rec, s.subtypeName(types.FamilyNetworkAttack, rec.AlarmSubtype)})
}

func (s *Server) handleConvergedNetworkAttackRaw(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	items, err := s.store.ListRawNetworkAttacksByConvergedID(r.Context(), id)
	if err != nil {
		s.logger.Error("list raw alerts for converged failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list raw alerts")
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(items))
}

func (s *Server) handleListConvergedMaliciousSamples(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListConvergedMaliciousSamples(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list converged malicious samples failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list converged malicious samples")
		return
	}
	views := make([]convergedMaliciousSampleView, 0, len(items))
	for _, rec := range items {
		views = append(views, convergedMaliciousSampleView{rec, s.subtypeName(types.FamilyMaliciousSample, rec.AlarmSubtype)})
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: views, Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleGetConvergedMaliciousSample(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	rec, err := s.store.GetConvergedMaliciousSample(r.Context(), id)
	if err != nil {
		s.logger.Error("get converged malicious sample failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get converged malicious sample")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "converged malicious sample not found")
		return
	}
	s.writeJSON(w, http.StatusOK, convergedMaliciousSampleView{rec, s.subtypeName(types.FamilyMaliciousSample, rec.AlarmSubtype)})
}

func (s *Server) handleConvergedMaliciousSampleRaw(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	items, err := s.store.ListRawMaliciousSamplesByConvergedID(r.Context(), id)
	if err != nil {
		s.logger.Error("list raw alerts for converged failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list raw alerts")
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(items))
}

func (s *Server) handleListConvergedHostBehaviors(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListConvergedHostBehaviors(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list converged host behaviors failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list converged host behaviors")
		return
	}
	views := make([]convergedHostBehaviorView, 0, len(items))
	for _, rec := range items {
		views = append(views, convergedHostBehaviorView{rec, s.subtypeName(types.FamilyHostBehavior, rec.AlarmSubtype)})
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: views, Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleGetConvergedHostBehavior(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	rec, err := s.store.GetConvergedHostBehavior(r.Context(), id)
	if err != nil {
		s.logger.Error("get converged host behavior failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get converged host behavior")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "converged host behavior not found")
		return
	}
	s.writeJSON(w, http.StatusOK, convergedHostBehaviorView{rec, s.subtypeName(types.FamilyHostBehavior, rec.AlarmSubtype)})
}

func (s *Server) handleConvergedHostBehaviorRaw(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	items, err := s.store.ListRawHostBehaviorsByConvergedID(r.Context(), id)
	if err != nil {
		s.logger.Error("list raw alerts for converged failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list raw alerts")
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(items))
}
