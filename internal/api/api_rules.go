// Package api - Field dictionary and rule endpoints
package api

import (
	"net/http"

	"github.com/quillsec/alertconv/internal/dsl"
	"github.com/quillsec/alertconv/internal/fields"
	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// FIELD DICTIONARY
// =============================================================================

func (s *Server) handleAlertFields(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("alert_type"); name != "" {
		list := s.fields.ForFamily(fields.SectionFor(name))
		if list == nil {
			s.writeError(w, http.StatusBadRequest, "unknown alert_type")
			return
		}
		s.writeJSON(w, http.StatusOK, list)
		return
	}
	s.writeJSON(w, http.StatusOK, s.fields.Families())
}

func (s *Server) handleFieldGroups(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, fields.CommonGroups())
}

// =============================================================================
// RULE VALIDATION
// =============================================================================

func validOperator(op string) bool {
	switch op {
	case types.OpEq, types.OpNe, types.OpContains, types.OpNotContains, types.OpRegex:
		return true
	}
	return false
}

// validateFilterRule returns an error message, or "" when the rule is sound.
func validateFilterRule(rule *types.FilterRule) string {
	if rule.Name == "" {
		return "name is required"
	}
	if !validFamilyWord(rule.AlertType) {
		return "alert_type must be one of network_attack, malicious_sample, host_behavior"
	}
	if rule.Field == "" {
		return "field is required"
	}
	if !validOperator(rule.Operator) {
		return "operator must be one of eq, ne, contains, not_contains, regex"
	}
	return ""
}

func validateTagRule(rule *types.TagRule) string {
	if rule.Name == "" {
		return "name is required"
	}
	if !validFamilyWord(rule.AlertType) {
		return "alert_type must be one of network_attack, malicious_sample, host_behavior"
	}
	if rule.ConditionField == "" {
		return "condition_field is required"
	}
	if !validOperator(rule.ConditionOperator) {
		return "condition_operator must be one of eq, ne, contains, not_contains, regex"
	}
	if len(rule.Tags) == 0 {
		return "tags must name at least one tag"
	}
	return ""
}

// =============================================================================
// FILTER RULES
// =============================================================================

func (s *Server) handleListFilterRules(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListFilterRules(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list filter rules failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list filter rules")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleCreateFilterRule(w http.ResponseWriter, r *http.Request) {
	var rule types.FilterRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateFilterRule(&rule); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.CreateFilterRule(r.Context(), &rule); err != nil {
		s.logger.Error("create filter rule failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create filter rule")
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetFilterRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, err := s.store.GetFilterRule(r.Context(), id)
	if err != nil {
		s.logger.Error("get filter rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get filter rule")
		return
	}
	if rule == nil {
		s.writeError(w, http.StatusNotFound, "filter rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateFilterRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var rule types.FilterRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateFilterRule(&rule); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	rule.ID = id

	updated, err := s.store.UpdateFilterRule(r.Context(), &rule)
	if err != nil {
		s.logger.Error("update filter rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update filter rule")
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "filter rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteFilterRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	ok, err := s.store.DeleteFilterRule(r.Context(), id)
	if err != nil {
		s.logger.Error("delete filter rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete filter rule")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "filter rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TAG RULES
// =============================================================================

func (s *Server) handleListTagRules(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListTagRules(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list tag rules failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tag rules")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleCreateTagRule(w http.ResponseWriter, r *http.Request) {
	var rule types.TagRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateTagRule(&rule); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.CreateTagRule(r.Context(), &rule); err != nil {
		s.logger.Error("create tag rule failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create tag rule")
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetTagRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, err := s.store.GetTagRule(r.Context(), id)
	if err != nil {
		s.logger.Error("get tag rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get tag rule")
		return
	}
	if rule == nil {
		s.writeError(w, http.StatusNotFound, "tag rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateTagRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var rule types.TagRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateTagRule(&rule); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	rule.ID = id

	updated, err := s.store.UpdateTagRule(r.Context(), &rule)
	if err != nil {
		s.logger.Error("update tag rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update tag rule")
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "tag rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTagRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	ok, err := s.store.DeleteTagRule(r.Context(), id)
	if err != nil {
		s.logger.Error("delete tag rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete tag rule")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "tag rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DSL RULES (convergence and correlation)
// =============================================================================

// compileRequest accepts the statement under either key; rule editors send
// "rule", the batch importer sends the stored column name.
type compileRequest struct {
	Rule    string `json:"rule"`
	DSLRule string `json:"dsl_rule"`
}

func (req compileRequest) statement() string {
	if req.Rule != "" {
		return req.Rule
	}
	return req.DSLRule
}

func (s *Server) handleCompileConverge(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeJSON(w, http.StatusOK, dsl.CompileConverge(req.statement(), s.fields))
}

func (s *Server) handleCompileCorrelate(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeJSON(w, http.StatusOK, dsl.CompileCorrelate(req.statement(), s.fields))
}

func (s *Server) handleListConvergenceRules(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListConvergenceRules(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list convergence rules failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list convergence rules")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleCreateConvergenceRule(w http.ResponseWriter, r *http.Request) {
	var rule types.ConvergenceRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rule.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if resp := dsl.CompileConverge(rule.DSLRule, s.fields); !resp.Success {
		s.writeError(w, http.StatusBadRequest, resp.Error)
		return
	}
	if err := s.store.CreateConvergenceRule(r.Context(), &rule); err != nil {
		s.logger.Error("create convergence rule failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create convergence rule")
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetConvergenceRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, err := s.store.GetConvergenceRule(r.Context(), id)
	if err != nil {
		s.logger.Error("get convergence rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get convergence rule")
		return
	}
	if rule == nil {
		s.writeError(w, http.StatusNotFound, "convergence rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateConvergenceRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var rule types.ConvergenceRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rule.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if resp := dsl.CompileConverge(rule.DSLRule, s.fields); !resp.Success {
		s.writeError(w, http.StatusBadRequest, resp.Error)
		return
	}
	rule.ID = id

	updated, err := s.store.UpdateConvergenceRule(r.Context(), &rule)
	if err != nil {
		s.logger.Error("update convergence rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update convergence rule")
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "convergence rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteConvergenceRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	ok, err := s.store.DeleteConvergenceRule(r.Context(), id)
	if err != nil {
		s.logger.Error("delete convergence rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete convergence rule")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "convergence rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCorrelationRules(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	limit, offset := limitOffset(page, pageSize)

	items, total, err := s.store.ListCorrelationRules(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list correlation rules failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list correlation rules")
		return
	}
	s.writeJSON(w, http.StatusOK, pageResponse{Data: emptyIfNil(items), Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleCreateCorrelationRule(w http.ResponseWriter, r *http.Request) {
	var rule types.CorrelationRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rule.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if resp := dsl.CompileCorrelate(rule.DSLRule, s.fields); !resp.Success {
		s.writeError(w, http.StatusBadRequest, resp.Error)
		return
	}
	if err := s.store.CreateCorrelationRule(r.Context(), &rule); err != nil {
		s.logger.Error("create correlation rule failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create correlation rule")
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetCorrelationRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, err := s.store.GetCorrelationRule(r.Context(), id)
	if err != nil {
		s.logger.Error("get correlation rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get correlation rule")
		return
	}
	if rule == nil {
		s.writeError(w, http.StatusNotFound, "correlation rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateCorrelationRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var rule types.CorrelationRule
	if err := s.readJSON(r, &rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rule.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if resp := dsl.CompileCorrelate(rule.DSLRule, s.fields); !resp.Success {
		s.writeError(w, http.StatusBadRequest, resp.Error)
		return
	}
	rule.ID = id

	updated, err := s.store.UpdateCorrelationRule(r.Context(), &rule)
	if err != nil {
		s.logger.Error("update correlation rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update correlation rule")
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "correlation rule not found")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCorrelationRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	ok, err := s.store.DeleteCorrelationRule(r.Context(), id)
	if err != nil {
		s.logger.Error("delete correlation rule failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete correlation rule")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "correlation rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
