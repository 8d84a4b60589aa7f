package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/db/migrate"
	"github.com/quillsec/alertconv/internal/config"
	"github.com/quillsec/alertconv/internal/fields"
	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/internal/testutil"
	"github.com/quillsec/alertconv/pkg/types"
)

// mockStore implements the Store methods each test sets a func field for;
// anything a handler was not expected to call panics through the embedded
// nil interface.
type mockStore struct {
	Store

	listNetworkAttacks   func(limit, offset int) ([]*types.NetworkAttackRecord, int, error)
	getNetworkAttack     func(id uuid.UUID) (*types.NetworkAttackRecord, error)
	listInvalidAlerts    func(limit, offset int) ([]*types.InvalidAlertRecord, int, error)
	listConvergedNA      func(limit, offset int) ([]*types.ConvergedNetworkAttack, int, error)
	getConvergedNA       func(id uuid.UUID) (*types.ConvergedNetworkAttack, error)
	listRawNAByConverged func(convergedID uuid.UUID) ([]*types.NetworkAttackRecord, error)

	createFilterRule      func(r *types.FilterRule) error
	listFilterRules       func(limit, offset int) ([]*types.FilterRule, int, error)
	updateFilterRule      func(r *types.FilterRule) (*types.FilterRule, error)
	deleteFilterRule      func(id uuid.UUID) (bool, error)
	createConvergenceRule func(r *types.ConvergenceRule) error

	createTag        func(t *types.Tag) error
	listTags         func(search, category string, limit, offset int) ([]*types.Tag, int, error)
	listAllTags      func() ([]types.Tag, error)
	updateTag        func(t *types.Tag) (*types.Tag, error)
	deleteTag        func(id uuid.UUID) (bool, error)
	attachTags       func(alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) (int, error)
	detachTag        func(alertID uuid.UUID, alertType string, tagID uuid.UUID) (bool, error)
	detachAllTags    func(alertID uuid.UUID, alertType string) (int, error)
	listTagsForAlert func(alertID uuid.UUID, alertType string) ([]types.Tag, error)

	getPushConfig    func() (*types.PushConfig, error)
	updatePushConfig func(enabled bool, windowMinutes, intervalSeconds int32) (*types.PushConfig, error)
	listPushLogs     func(family *types.AlertFamily, limit, offset int) ([]types.PushLog, int, error)

	listThreatEvents  func(limit, offset int) ([]*types.ThreatEvent, int, error)
	updateThreatEvent func(e *types.ThreatEvent) (*types.ThreatEvent, error)
	statsOverview     func() (*store.Overview, error)
	migrationStatus   func() (*migrate.Status, error)
}

func (m *mockStore) ListNetworkAttacks(ctx context.Context, limit, offset int) ([]*types.NetworkAttackRecord, int, error) {
	return m.listNetworkAttacks(limit, offset)
}

func (m *mockStore) GetNetworkAttack(ctx context.Context, id uuid.UUID) (*types.NetworkAttackRecord, error) {
	return m.getNetworkAttack(id)
}

func (m *mockStore) ListInvalidAlerts(ctx context.Context, limit, offset int) ([]*types.InvalidAlertRecord, int, error) {
	return m.listInvalidAlerts(limit, offset)
}

func (m *mockStore) ListConvergedNetworkAttacks(ctx context.Context, limit, offset int) ([]*types.ConvergedNetworkAttack, int, error) {
	return m.listConvergedNA(limit, offset)
}

func (m *mockStore) GetConvergedNetworkAttack(ctx context.Context, id uuid.UUID) (*types.ConvergedNetworkAttack, error) {
	return m.getConvergedNA(id)
}

func (m *mockStore) ListRawNetworkAttacksByConvergedID(ctx context.Context, convergedID uuid.UUID) ([]*types.NetworkAttackRecord, error) {
	return m.listRawNAByConverged(convergedID)
}

func (m *mockStore) CreateFilterRule(ctx context.Context, r *types.FilterRule) error {
	return m.createFilterRule(r)
}

func (m *mockStore) ListFilterRules(ctx context.Context, limit, offset int) ([]*types.FilterRule, int, error) {
	return m.listFilterRules(limit, offset)
}

func (m *mockStore) UpdateFilterRule(ctx context.Context, r *types.FilterRule) (*types.FilterRule, error) {
	return m.updateFilterRule(r)
}

func (m *mockStore) DeleteFilterRule(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.deleteFilterRule(id)
}

func (m *mockStore) CreateConvergenceRule(ctx context.Context, r *types.ConvergenceRule) error {
	return m.createConvergenceRule(r)
}

func (m *mockStore) CreateTag(ctx context.Context, t *types.Tag) error {
	return m.createTag(t)
}

func (m *mockStore) ListTags(ctx context.Context, search, category string, limit, offset int) ([]*types.Tag, int, error) {
	return m.listTags(search, category, limit, offset)
}

func (m *mockStore) ListAllTags(ctx context.Context) ([]types.Tag, error) {
	return m.listAllTags()
}

func (m *mockStore) UpdateTag(ctx context.Context, t *types.Tag) (*types.Tag, error) {
	return m.updateTag(t)
}

func (m *mockStore) DeleteTag(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.deleteTag(id)
}

func (m *mockStore) AttachTags(ctx context.Context, alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) (int, error) {
	return m.attachTags(alertID, alertType, tagIDs)
}

func (m *mockStore) DetachTag(ctx context.Context, alertID uuid.UUID, alertType string, tagID uuid.UUID) (bool, error) {
	return m.detachTag(alertID, alertType, tagID)
}

func (m *mockStore) DetachAllTags(ctx context.Context, alertID uuid.UUID, alertType string) (int, error) {
	return m.detachAllTags(alertID, alertType)
}

func (m *mockStore) ListTagsForAlert(ctx context.Context, alertID uuid.UUID, alertType string) ([]types.Tag, error) {
	return m.listTagsForAlert(alertID, alertType)
}

func (m *mockStore) GetPushConfig(ctx context.Context) (*types.PushConfig, error) {
	return m.getPushConfig()
}

func (m *mockStore) UpdatePushConfig(ctx context.Context, enabled bool, windowMinutes, intervalSeconds int32) (*types.PushConfig, error) {
	return m.updatePushConfig(enabled, windowMinutes, intervalSeconds)
}

func (m *mockStore) ListPushLogs(ctx context.Context, family *types.AlertFamily, limit, offset int) ([]types.PushLog, int, error) {
	return m.listPushLogs(family, limit, offset)
}

func (m *mockStore) ListThreatEvents(ctx context.Context, limit, offset int) ([]*types.ThreatEvent, int, error) {
	return m.listThreatEvents(limit, offset)
}

func (m *mockStore) UpdateThreatEvent(ctx context.Context, e *types.ThreatEvent) (*types.ThreatEvent, error) {
	return m.updateThreatEvent(e)
}

func (m *mockStore) StatsOverview(ctx context.Context) (*store.Overview, error) {
	return m.statsOverview()
}

func (m *mockStore) MigrationStatus(ctx context.Context) (*migrate.Status, error) {
	return m.migrationStatus()
}

// mockPublisher implements PublishRunner, recording requested windows.
type mockPublisher struct {
	windows []int32
	sent    int
	err     error
}

func (m *mockPublisher) PublishWindow(ctx context.Context, windowMinutes int32) (int, error) {
	m.windows = append(m.windows, windowMinutes)
	if m.err != nil {
		return 0, m.err
	}
	return m.sent, nil
}

func testAlarmTypes() []config.AlarmTypeConfig {
	return []config.AlarmTypeConfig{
		{Code: 1, Name: "网络攻击", Category: "network_attack", Subtypes: map[string]string{"1001": "SQL注入", "1002": "XSS攻击"}},
		{Code: 2, Name: "恶意样本", Category: "malicious_sample", Subtypes: map[string]string{"2001": "木马"}},
		{Code: 3, Name: "主机行为", Category: "host_behavior", Subtypes: map[string]string{"3001": "进程注入"}},
	}
}

func newTestServer(ms *mockStore, pub PublishRunner) *Server {
	return NewServer(ms, pub, fields.Builtin(), testAlarmTypes(), nil, nil, testutil.NewTestLogger())
}

// doRequest runs one request through the full handler chain.
func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(testutil.MustJSON(body))
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

// =============================================================================
// CORE
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "GET", "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["time"] == "" {
		t.Error("expected a timestamp")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "OPTIONS", "/api/v1/tags", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected wildcard origin, got %q", origin)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "GET", "/api/v1/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		page     int
		pageSize int
	}{
		{"defaults", "", 1, config.DefaultPageSize},
		{"explicit", "page=3&page_size=50", 3, 50},
		{"zero falls back", "page=0&page_size=0", 1, config.DefaultPageSize},
		{"negative falls back", "page=-2&page_size=-7", 1, config.DefaultPageSize},
		{"garbage falls back", "page=abc&page_size=xyz", 1, config.DefaultPageSize},
		{"capped", "page_size=9999", 1, config.MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/x?"+tt.query, nil)
			page, pageSize := pageParams(req)
			if page != tt.page || pageSize != tt.pageSize {
				t.Errorf("got page=%d size=%d, want page=%d size=%d",
					page, pageSize, tt.page, tt.pageSize)
			}
		})
	}
}

func TestLimitOffset(t *testing.T) {
	limit, offset := limitOffset(1, 20)
	if limit != 20 || offset != 0 {
		t.Errorf("page 1: got limit=%d offset=%d", limit, offset)
	}
	limit, offset = limitOffset(3, 50)
	if limit != 50 || offset != 100 {
		t.Errorf("page 3: got limit=%d offset=%d", limit, offset)
	}
}

// =============================================================================
// ALERT ENDPOINTS
// =============================================================================

func TestListNetworkAttacksPaging(t *testing.T) {
	var gotLimit, gotOffset int
	ms := &mockStore{
		listNetworkAttacks: func(limit, offset int) ([]*types.NetworkAttackRecord, int, error) {
			gotLimit, gotOffset = limit, offset
			return []*types.NetworkAttackRecord{testutil.FixtureNetworkAttackRecord()}, 41, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/alerts/network-attacks?page=2&page_size=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotLimit != 10 || gotOffset != 10 {
		t.Errorf("expected limit=10 offset=10, got limit=%d offset=%d", gotLimit, gotOffset)
	}

	var body struct {
		Data     []json.RawMessage `json:"data"`
		Total    int               `json:"total"`
		Page     int               `json:"page"`
		PageSize int               `json:"page_size"`
	}
	decodeBody(t, rec, &body)
	if body.Total != 41 || body.Page != 2 || body.PageSize != 10 {
		t.Errorf("unexpected envelope: total=%d page=%d page_size=%d",
			body.Total, body.Page, body.PageSize)
	}
	if len(body.Data) != 1 {
		t.Errorf("expected 1 item, got %d", len(body.Data))
	}
}

func TestGetNetworkAttackInvalidID(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "GET", "/api/v1/alerts/network-attacks/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "invalid alert id" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestGetNetworkAttackNotFound(t *testing.T) {
	ms := &mockStore{
		getNetworkAttack: func(id uuid.UUID) (*types.NetworkAttackRecord, error) {
			return nil, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/alerts/network-attacks/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListInvalidAlertsEmptyIsArray(t *testing.T) {
	ms := &mockStore{
		listInvalidAlerts: func(limit, offset int) ([]*types.InvalidAlertRecord, int, error) {
			return nil, 0, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/alerts/invalid", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"data":[]`)) {
		t.Errorf("empty list must serialize as [], got %s", rec.Body.String())
	}
}

func TestListConvergedSubtypeNames(t *testing.T) {
	known := testutil.FixtureConvergedNetworkAttack()
	unknown := testutil.FixtureConvergedNetworkAttack(func(r *types.ConvergedNetworkAttack) {
		r.AlarmSubtype = 9999
	})
	ms := &mockStore{
		listConvergedNA: func(limit, offset int) ([]*types.ConvergedNetworkAttack, int, error) {
			return []*types.ConvergedNetworkAttack{known, unknown}, 2, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/converged/network-attacks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data []map[string]any `json:"data"`
	}
	decodeBody(t, rec, &body)
	if len(body.Data) != 2 {
		t.Fatalf("expected 2 items, got %d", len(body.Data))
	}
	if name := body.Data[0]["alarm_subtype_name"]; name != "SQL注入" {
		t.Errorf("subtype 1001: expected SQL注入, got %v", name)
	}
	if name := body.Data[1]["alarm_subtype_name"]; name != "" {
		t.Errorf("unknown subtype: expected empty name, got %v", name)
	}
	if count, ok := body.Data[0]["convergence_count"].(float64); !ok || count != 1 {
		t.Errorf("expected convergence_count 1, got %v", body.Data[0]["convergence_count"])
	}
}

func TestGetConvergedNotFound(t *testing.T) {
	ms := &mockStore{
		getConvergedNA: func(id uuid.UUID) (*types.ConvergedNetworkAttack, error) {
			return nil, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/converged/network-attacks/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "converged network attack not found" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestConvergedRawLineage(t *testing.T) {
	convergedID := uuid.New()
	var gotID uuid.UUID
	ms := &mockStore{
		listRawNAByConverged: func(id uuid.UUID) ([]*types.NetworkAttackRecord, error) {
			gotID = id
			return []*types.NetworkAttackRecord{
				testutil.FixtureNetworkAttackRecord(),
				testutil.FixtureNetworkAttackRecord(),
			}, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/converged/network-attacks/"+convergedID.String()+"/raw", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotID != convergedID {
		t.Errorf("expected lookup for %s, got %s", convergedID, gotID)
	}

	var items []json.RawMessage
	decodeBody(t, rec, &items)
	if len(items) != 2 {
		t.Errorf("expected 2 raw alerts, got %d", len(items))
	}
}
