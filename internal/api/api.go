// Package api provides the admin HTTP surface for the alert pipeline.
//
// # Endpoints
//
// Field dictionary:
//   - GET  /api/v1/alert-fields - Field definitions (all families or ?alert_type=)
//   - GET  /api/v1/alert-fields/groups - Common field display groups
//
// Rules (same shape for filter, tag, convergence, correlation):
//   - GET    /api/v1/rules/filter - List rules (paged)
//   - POST   /api/v1/rules/filter - Create rule
//   - GET    /api/v1/rules/filter/{id} - Get rule
//   - PUT    /api/v1/rules/filter/{id} - Update rule
//   - DELETE /api/v1/rules/filter/{id} - Delete rule
//   - POST   /api/v1/rules/convergence/compile - Compile a CONVERGE statement
//   - POST   /api/v1/rules/correlation/compile - Compile a CORRELATE statement
//
// Raw alerts:
//   - GET  /api/v1/alerts/network-attacks - List raw network attacks (paged)
//   - GET  /api/v1/alerts/network-attacks/{id} - Get one raw alert
//   - GET  /api/v1/alerts/malicious-samples[/{id}] - Same for samples
//   - GET  /api/v1/alerts/host-behaviors[/{id}] - Same for host behaviors
//   - GET  /api/v1/alerts/invalid - List dead-lettered alerts (paged)
//
// Converged alerts:
//   - GET  /api/v1/converged/network-attacks - List converged (paged, subtype names resolved)
//   - GET  /api/v1/converged/network-attacks/{id} - Get one converged record
//   - GET  /api/v1/converged/network-attacks/{id}/raw - Raw alerts folded into it
//   - Same shape under /converged/malicious-samples and /converged/host-behaviors
//
// Tags:
//   - GET    /api/v1/tags - List tags (paged, ?search=&category=)
//   - POST   /api/v1/tags - Create tag
//   - GET    /api/v1/tags/all - Every tag, unpaged
//   - GET    /api/v1/tags/{id} - Get tag
//   - PUT    /api/v1/tags/{id} - Update tag
//   - DELETE /api/v1/tags/{id} - Delete tag (cascades mappings)
//   - GET    /api/v1/tags/{id}/alerts - Alerts carrying the tag (paged)
//   - GET    /api/v1/alert-tags?alert_id=&alert_type= - Tags on one alert
//   - POST   /api/v1/alert-tags - Attach one tag
//   - POST   /api/v1/alert-tags/batch - Attach several tags
//   - DELETE /api/v1/alert-tags?alert_id=&alert_type=&tag_id= - Detach one tag
//   - DELETE /api/v1/alert-tags/all?alert_id=&alert_type= - Detach every tag
//
// Publishing:
//   - GET  /api/v1/publish/config - Auto-publish configuration
//   - PUT  /api/v1/publish/config - Update enabled/window/interval
//   - POST /api/v1/publish/run - Publish one window now, returns {"sent_count": N}
//   - GET  /api/v1/publish/logs - Push log (paged, ?alert_type=)
//
// Operations:
//   - GET /api/v1/threat-events - List threat events (paged)
//   - PUT /api/v1/threat-events/{id} - Update a threat event
//   - GET /api/v1/alarm-types - Alarm type dictionary
//   - GET /api/v1/stats/overview - Pipeline totals (cached 30s)
//   - GET /api/v1/ops/migrations - Schema migration status
//   - GET /api/v1/ops/runtime - Process and pipeline runtime snapshot
//   - GET /api/v1/health - Health check
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/db/migrate"
	"github.com/quillsec/alertconv/internal/cache"
	"github.com/quillsec/alertconv/internal/config"
	"github.com/quillsec/alertconv/internal/fields"
	"github.com/quillsec/alertconv/internal/metrics"
	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/pkg/types"
)

// cacheKeyStatsOverview caches the stats overview response; the counts
// behind it are table scans.
const cacheKeyStatsOverview = "stats_overview"

// AlertStore serves raw, invalid, and converged alert queries.
type AlertStore interface {
	ListNetworkAttacks(ctx context.Context, limit, offset int) ([]*types.NetworkAttackRecord, int, error)
	GetNetworkAttack(ctx context.Context, id uuid.UUID) (*types.NetworkAttackRecord, error)
	ListMaliciousSamples(ctx context.Context, limit, offset int) ([]*types.MaliciousSampleRecord, int, error)
	GetMaliciousSample(ctx context.Context, id uuid.UUID) (*types.MaliciousSampleRecord, error)
	ListHostBehaviors(ctx context.Context, limit, offset int) ([]*types.HostBehaviorRecord, int, error)
	GetHostBehavior(ctx context.Context, id uuid.UUID) (*types.HostBehaviorRecord, error)
	ListInvalidAlerts(ctx context.Context, limit, offset int) ([]*types.InvalidAlertRecord, int, error)

	ListConvergedNetworkAttacks(ctx context.Context, limit, offset int) ([]*types.ConvergedNetworkAttack, int, error)
	GetConvergedNetworkAttack(ctx context.Context, id uuid.UUID) (*types.ConvergedNetworkAttack, error)
	ListConvergedMaliciousSamples(ctx context.Context, limit, offset int) ([]*types.ConvergedMaliciousSample, int, error)
	GetConvergedMaliciousSample(ctx context.Context, id uuid.UUID) (*types.ConvergedMaliciousSample, error)
	ListConvergedHostBehaviors(ctx context.Context, limit, offset int) ([]*types.ConvergedHostBehavior, int, error)
	GetConvergedHostBehavior(ctx context.Context, id uuid.UUID) (*types.ConvergedHostBehavior, error)

	ListRawNetworkAttacksByConvergedID(ctx context.Context, convergedID uuid.UUID) ([]*types.NetworkAttackRecord, error)
	ListRawMaliciousSamplesByConvergedID(ctx context.Context, convergedID uuid.UUID) ([]*types.MaliciousSampleRecord, error)
	ListRawHostBehaviorsByConvergedID(ctx context.Context, convergedID uuid.UUID) ([]*types.HostBehaviorRecord, error)

	StatsOverview(ctx context.Context) (*store.Overview, error)
}

// RuleStore serves CRUD for the four rule families.
type RuleStore interface {
	CreateFilterRule(ctx context.Context, r *types.FilterRule) error
	GetFilterRule(ctx context.Context, id uuid.UUID) (*types.FilterRule, error)
	ListFilterRules(ctx context.Context, limit, offset int) ([]*types.FilterRule, int, error)
	UpdateFilterRule(ctx context.Context, r *types.FilterRule) (*types.FilterRule, error)
	DeleteFilterRule(ctx context.Context, id uuid.UUID) (bool, error)

	CreateTagRule(ctx context.Context, r *types.TagRule) error
	GetTagRule(ctx context.Context, id uuid.UUID) (*types.TagRule, error)
	ListTagRules(ctx context.Context, limit, offset int) ([]*types.TagRule, int, error)
	UpdateTagRule(ctx context.Context, r *types.TagRule) (*types.TagRule, error)
	DeleteTagRule(ctx context.Context, id uuid.UUID) (bool, error)

	CreateConvergenceRule(ctx context.Context, r *types.ConvergenceRule) error
	GetConvergenceRule(ctx context.Context, id uuid.UUID) (*types.ConvergenceRule, error)
	ListConvergenceRules(ctx context.Context, limit, offset int) ([]*types.ConvergenceRule, int, error)
	UpdateConvergenceRule(ctx context.Context, r *types.ConvergenceRule) (*types.ConvergenceRule, error)
	DeleteConvergenceRule(ctx context.Context, id uuid.UUID) (bool, error)

	CreateCorrelationRule(ctx context.Context, r *types.CorrelationRule) error
	GetCorrelationRule(ctx context.Context, id uuid.UUID) (*types.CorrelationRule, error)
	ListCorrelationRules(ctx context.Context, limit, offset int) ([]*types.CorrelationRule, int, error)
	UpdateCorrelationRule(ctx context.Context, r *types.CorrelationRule) (*types.CorrelationRule, error)
	DeleteCorrelationRule(ctx context.Context, id uuid.UUID) (bool, error)
}

// TagStore serves the tag dictionary and alert-tag mappings.
type TagStore interface {
	CreateTag(ctx context.Context, t *types.Tag) error
	GetTag(ctx context.Context, id uuid.UUID) (*types.Tag, error)
	ListTags(ctx context.Context, search, category string, limit, offset int) ([]*types.Tag, int, error)
	ListAllTags(ctx context.Context) ([]types.Tag, error)
	UpdateTag(ctx context.Context, t *types.Tag) (*types.Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) (bool, error)

	AttachTags(ctx context.Context, alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) (int, error)
	DetachTag(ctx context.Context, alertID uuid.UUID, alertType string, tagID uuid.UUID) (bool, error)
	DetachAllTags(ctx context.Context, alertID uuid.UUID, alertType string) (int, error)
	ListTagsForAlert(ctx context.Context, alertID uuid.UUID, alertType string) ([]types.Tag, error)
	ListAlertsByTag(ctx context.Context, tagID uuid.UUID, limit, offset int) ([]types.AlertTagMapping, int, error)
}

// PublishStore serves the auto-publish configuration and push logs.
type PublishStore interface {
	GetPushConfig(ctx context.Context) (*types.PushConfig, error)
	UpdatePushConfig(ctx context.Context, enabled bool, windowMinutes, intervalSeconds int32) (*types.PushConfig, error)
	ListPushLogs(ctx context.Context, family *types.AlertFamily, limit, offset int) ([]types.PushLog, int, error)
}

// ThreatStore serves threat events.
type ThreatStore interface {
	ListThreatEvents(ctx context.Context, limit, offset int) ([]*types.ThreatEvent, int, error)
	GetThreatEvent(ctx context.Context, id uuid.UUID) (*types.ThreatEvent, error)
	UpdateThreatEvent(ctx context.Context, e *types.ThreatEvent) (*types.ThreatEvent, error)
}

// Store is the persistence surface the API serves from. *store.Store
// satisfies it; tests substitute fakes.
type Store interface {
	AlertStore
	RuleStore
	TagStore
	PublishStore
	ThreatStore

	MigrationStatus(ctx context.Context) (*migrate.Status, error)
}

// PublishRunner triggers one synchronous publish pass. *worker.Publisher
// satisfies it.
type PublishRunner interface {
	PublishWindow(ctx context.Context, windowMinutes int32) (int, error)
}

// Server is the admin HTTP API server.
type Server struct {
	store      Store
	publisher  PublishRunner
	fields     *fields.Dictionary
	alarmTypes []config.AlarmTypeConfig
	collector  *metrics.Collector
	cache      *cache.Cache
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewServer creates the API server. collector and responseCache may be nil;
// the endpoints backed by them degrade gracefully.
func NewServer(
	st Store,
	publisher PublishRunner,
	dict *fields.Dictionary,
	alarmTypes []config.AlarmTypeConfig,
	collector *metrics.Collector,
	responseCache *cache.Cache,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:      st,
		publisher:  publisher,
		fields:     dict,
		alarmTypes: alarmTypes,
		collector:  collector,
		cache:      responseCache,
		logger:     logger.With("component", "api"),
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Mux returns the underlying ServeMux for registering additional routes.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"duration", time.Since(start))
}

func (s *Server) registerRoutes() {
	// Health
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	// Field dictionary
	s.mux.HandleFunc("GET /api/v1/alert-fields", s.handleAlertFields)
	s.mux.HandleFunc("GET /api/v1/alert-fields/groups", s.handleFieldGroups)

	// Filter rules
	s.mux.HandleFunc("GET /api/v1/rules/filter", s.handleListFilterRules)
	s.mux.HandleFunc("POST /api/v1/rules/filter", s.handleCreateFilterRule)
	s.mux.HandleFunc("GET /api/v1/rules/filter/{id}", s.handleGetFilterRule)
	s.mux.HandleFunc("PUT /api/v1/rules/filter/{id}", s.handleUpdateFilterRule)
	s.mux.HandleFunc("DELETE /api/v1/rules/filter/{id}", s.handleDeleteFilterRule)

	// Tag rules
	s.mux.HandleFunc("GET /api/v1/rules/tag", s.handleListTagRules)
	s.mux.HandleFunc("POST /api/v1/rules/tag", s.handleCreateTagRule)
	s.mux.HandleFunc("GET /api/v1/rules/tag/{id}", s.handleGetTagRule)
	s.mux.HandleFunc("PUT /api/v1/rules/tag/{id}", s.handleUpdateTagRule)
	s.mux.HandleFunc("DELETE /api/v1/rules/tag/{id}", s.handleDeleteTagRule)

	// Convergence rules (DSL-validated on write)
	s.mux.HandleFunc("GET /api/v1/rules/convergence", s.handleListConvergenceRules)
	s.mux.HandleFunc("POST /api/v1/rules/convergence", s.handleCreateConvergenceRule)
	s.mux.HandleFunc("GET /api/v1/rules/convergence/{id}", s.handleGetConvergenceRule)
	s.mux.HandleFunc("PUT /api/v1/rules/convergence/{id}", s.handleUpdateConvergenceRule)
	s.mux.HandleFunc("DELETE /api/v1/rules/convergence/{id}", s.handleDeleteConvergenceRule)
	s.mux.HandleFunc("POST /api/v1/rules/convergence/compile", s.handleCompileConverge)

	// Correlation rules
	s.mux.HandleFunc("GET /api/v1/rules/correlation", s.handleListCorrelationRules)
	s.mux.HandleFunc("POST /api/v1/rules/correlation", s.handleCreateCorrelationRule)
	s.mux.HandleFunc("GET /api/v1/rules/correlation/{id}", s.handleGetCorrelationRule)
	s.mux.HandleFunc("PUT /api/v1/rules/correlation/{id}", s.handleUpdateCorrelationRule)
	s.mux.HandleFunc("DELETE /api/v1/rules/correlation/{id}", s.handleDeleteCorrelationRule)
	s.mux.HandleFunc("POST /api/v1/rules/correlation/compile", s.handleCompileCorrelate)

	// Raw alerts
	s.mux.HandleFunc("GET /api/v1/alerts/network-attacks", s.handleListNetworkAttacks)
	s.mux.HandleFunc("GET /api/v1/alerts/network-attacks/{id}", s.handleGetNetworkAttack)
	s.mux.HandleFunc("GET /api/v1/alerts/malicious-samples", s.handleListMaliciousSamples)
	s.mux.HandleFunc("GET /api/v1/alerts/malicious-samples/{id}", s.handleGetMaliciousSample)
	s.mux.HandleFunc("GET /api/v1/alerts/host-behaviors", s.handleListHostBehaviors)
	s.mux.HandleFunc("GET /api/v1/alerts/host-behaviors/{id}", s.handleGetHostBehavior)
	s.mux.HandleFunc("GET /api/v1/alerts/invalid", s.handleListInvalidAlerts)

	// Converged alerts
	s.mux.HandleFunc("GET /api/v1/converged/network-attacks", s.handleListConvergedNetworkAttacks)
	s.mux.HandleFunc("GET /api/v1/converged/network-attacks/{id}", s.handleGetConvergedNetworkAttack)
	s.mux.HandleFunc("GET /api/v1/converged/network-attacks/{id}/raw", s.handleConvergedNetworkAttackRaw)
	s.mux.HandleFunc("GET /api/v1/converged/malicious-samples", s.handleListConvergedMaliciousSamples)
	s.mux.HandleFunc("GET /api/v1/converged/malicious-samples/{id}", s.handleGetConvergedMaliciousSample)
	s.mux.HandleFunc("GET /api/v1/converged/malicious-samples/{id}/raw", s.handleConvergedMaliciousSampleRaw)
	s.mux.HandleFunc("GET /api/v1/converged/host-behaviors", s.handleListConvergedHostBehaviors)
	s.mux.HandleFunc("GET /api/v1/converged/host-behaviors/{id}", s.handleGetConvergedHostBehavior)
	s.mux.HandleFunc("GET /api/v1/converged/host-behaviors/{id}/raw", s.handleConvergedHostBehaviorRaw)

	// Tags
	s.mux.HandleFunc("GET /api/v1/tags", s.handleListTags)
	s.mux.HandleFunc("POST /api/v1/tags", s.handleCreateTag)
	s.mux.HandleFunc("GET /api/v1/tags/all", s.handleAllTags)
	s.mux.HandleFunc("GET /api/v1/tags/{id}", s.handleGetTag)
	s.mux.HandleFunc("PUT /api/v1/tags/{id}", s.handleUpdateTag)
	s.mux.HandleFunc("DELETE /api/v1/tags/{id}", s.handleDeleteTag)
	s.mux.HandleFunc("GET /api/v1/tags/{id}/alerts", s.handleAlertsByTag)

	// Alert-tag mappings
	s.mux.HandleFunc("GET /api/v1/alert-tags", s.handleListAlertTags)
	s.mux.HandleFunc("POST /api/v1/alert-tags", s.handleAttachTag)
	s.mux.HandleFunc("POST /api/v1/alert-tags/batch", s.handleAttachTagsBatch)
	s.mux.HandleFunc("DELETE /api/v1/alert-tags", s.handleDetachTag)
	s.mux.HandleFunc("DELETE /api/v1/alert-tags/all", s.handleDetachAllTags)

	// Publishing
	s.mux.HandleFunc("GET /api/v1/publish/config", s.handleGetPublishConfig)
	s.mux.HandleFunc("PUT /api/v1/publish/config", s.handleUpdatePublishConfig)
	s.mux.HandleFunc("POST /api/v1/publish/run", s.handlePublishRun)
	s.mux.HandleFunc("GET /api/v1/publish/logs", s.handleListPushLogs)

	// Threat events
	s.mux.HandleFunc("GET /api/v1/threat-events", s.handleListThreatEvents)
	s.mux.HandleFunc("PUT /api/v1/threat-events/{id}", s.handleUpdateThreatEvent)

	// Dictionaries and stats
	s.mux.HandleFunc("GET /api/v1/alarm-types", s.handleAlarmTypes)
	s.mux.HandleFunc("GET /api/v1/stats/overview", s.handleStatsOverview)

	// Operations
	s.mux.HandleFunc("GET /api/v1/ops/migrations", s.handleMigrationStatus)
	s.mux.HandleFunc("GET /api/v1/ops/runtime", s.handleRuntime)
}

// =============================================================================
// HEALTH
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// pageResponse is the envelope for every paged list.
type pageResponse struct {
	Data     any `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// pageParams reads ?page= and ?page_size= with defaults and a cap. Invalid
// or non-positive values fall back to the defaults.
func pageParams(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = config.DefaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}
	if pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}
	return page, pageSize
}

// limitOffset converts page params to the store's LIMIT/OFFSET form.
func limitOffset(page, pageSize int) (limit, offset int) {
	return pageSize, (page - 1) * pageSize
}

// emptyIfNil keeps list responses as JSON arrays, never null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// pathUUID parses the {id} path segment.
func pathUUID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

// validFamilyWord reports whether v is one of the three family words used
// in rule alert_type columns and tag mappings.
func validFamilyWord(v string) bool {
	switch v {
	case "network_attack", "malicious_sample", "host_behavior":
		return true
	}
	return false
}

func (s *Server) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
