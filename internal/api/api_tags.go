// Package api - Tag dictionary and alert-tag association endpoints
package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// TAG DICTIONARY
// =============================================================================

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)
	search := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")

	items, total, err := s.store.ListTags(r.Context(), search, category, limit, offset)
	if err != nil {
		s.logger.Error("list tags failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleAllTags(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListAllTags(r.Context())
	if err != nil {
		s.logger.Error("list all tags failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(items))
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var tag types.Tag
	if err := s.readJSON(r, &tag); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if tag.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if tag.Category == "" {
		s.writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	if err := s.store.CreateTag(r.Context(), &tag); err != nil {
		if errors.Is(err, store.ErrDuplicateTag) {
			s.writeError(w, http.StatusConflict, "tag name already exists")
			return
		}
		s.logger.Error("create tag failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}
	s.writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	tag, err := s.store.GetTag(r.Context(), id)
	if err != nil {
		s.logger.Error("get tag failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get tag")
		return
	}
	if tag == nil {
		s.writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	s.writeJSON(w, http.StatusOK, tag)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	var tag types.Tag
	if err := s.readJSON(r, &tag); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if tag.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if tag.Category == "" {
		s.writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	tag.ID = id

	updated, err := s.store.UpdateTag(r.Context(), &tag)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTag) {
			s.writeError(w, http.StatusConflict, "tag name already exists")
			return
		}
		s.logger.Error("update tag failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update tag")
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	ok, err := s.store.DeleteTag(r.Context(), id)
	if err != nil {
		s.logger.Error("delete tag failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete tag")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlertsByTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListAlertsByTag(r.Context(), id, limit, offset)
	if err != nil {
		s.logger.Error("list alerts by tag failed", "tag_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list alerts for tag")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

// =============================================================================
// ALERT-TAG ASSOCIATIONS
// =============================================================================

// alertRef extracts and validates the alert_id/alert_type query pair every
// association endpoint shares.
func alertRef(r *http.Request) (uuid.UUID, string, string) {
	id, err := uuid.Parse(r.URL.Query().Get("alert_id"))
	if err != nil {
		return uuid.Nil, "", "invalid alert_id"
	}
	alertType := r.URL.Query().Get("alert_type")
	if !validFamilyWord(alertType) {
		return uuid.Nil, "", "alert_type must be one of network_attack, malicious_sample, host_behavior"
	}
	return id, alertType, ""
}

func (s *Server) handleListAlertTags(w http.ResponseWriter, r *http.Request) {
	alertID, alertType, msg := alertRef(r)
	if msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	items, err := s.store.ListTagsForAlert(r.Context(), alertID, alertType)
	if err != nil {
		s.logger.Error("list alert tags failed", "alert_id", alertID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list alert tags")
		return
	}
	s.writeJSON(w, http.StatusOK, emptyIfNil(items))
}

type attachRequest struct {
	AlertID   uuid.UUID   `json:"alert_id"`
	AlertType string      `json:"alert_type"`
	TagID     uuid.UUID   `json:"tag_id"`
	TagIDs    []uuid.UUID `json:"tag_ids"`
}

func (s *Server) attachTags(w http.ResponseWriter, r *http.Request, alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) {
	attached, err := s.store.AttachTags(r.Context(), alertID, alertType, tagIDs)
	if err != nil {
		if errors.Is(err, store.ErrTagNotFound) {
			s.writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		s.logger.Error("attach tags failed", "alert_id", alertID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to attach tags")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"attached": attached})
}

func (s *Server) handleAttachTag(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AlertID == uuid.Nil {
		s.writeError(w, http.StatusBadRequest, "alert_id is required")
		return
	}
	if !validFamilyWord(req.AlertType) {
		s.writeError(w, http.StatusBadRequest, "alert_type must be one of network_attack, malicious_sample, host_behavior")
		return
	}
	if req.TagID == uuid.Nil {
		s.writeError(w, http.StatusBadRequest, "tag_id is required")
		return
	}
	s.attachTags(w, r, req.AlertID, req.AlertType, []uuid.UUID{req.TagID})
}

func (s *Server) handleAttachTagsBatch(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AlertID == uuid.Nil {
		s.writeError(w, http.StatusBadRequest, "alert_id is required")
		return
	}
	if !validFamilyWord(req.AlertType) {
		s.writeError(w, http.StatusBadRequest, "alert_type must be one of network_attack, malicious_sample, host_behavior")
		return
	}
	if len(req.TagIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "tag_ids must name at least one tag")
		return
	}
	s.attachTags(w, r, req.AlertID, req.AlertType, req.TagIDs)
}

func (s *Server) handleDetachTag(w http.ResponseWriter, r *http.Request) {
	alertID, alertType, msg := alertRef(r)
	if msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	tagID, err := uuid.Parse(r.URL.Query().Get("tag_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag_id")
		return
	}
	ok, err := s.store.DetachTag(r.Context(), alertID, alertType, tagID)
	if err != nil {
		s.logger.Error("detach tag failed", "alert_id", alertID, "tag_id", tagID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to detach tag")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "tag mapping not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachAllTags(w http.ResponseWriter, r *http.Request) {
	alertID, alertType, msg := alertRef(r)
	if msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	detached, err := s.store.DetachAllTags(r.Context(), alertID, alertType)
	if err != nil {
		s.logger.Error("detach all tags failed", "alert_id", alertID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to detach tags")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"detached": detached})
}
