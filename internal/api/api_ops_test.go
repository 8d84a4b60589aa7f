package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/db/migrate"
	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/internal/testutil"
	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// THREAT EVENTS
// =============================================================================

func TestListThreatEvents(t *testing.T) {
	ms := &mockStore{
		listThreatEvents: func(limit, offset int) ([]*types.ThreatEvent, int, error) {
			return []*types.ThreatEvent{
				{ID: uuid.New(), Name: testutil.Ptr("定向钓鱼活动")},
			}, 1, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/threat-events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data  []types.ThreatEvent `json:"data"`
		Total int                 `json:"total"`
	}
	decodeBody(t, rec, &body)
	if body.Total != 1 || len(body.Data) != 1 {
		t.Fatalf("unexpected envelope total=%d len=%d", body.Total, len(body.Data))
	}
	if body.Data[0].Name == nil || *body.Data[0].Name != "定向钓鱼活动" {
		t.Errorf("unexpected event %+v", body.Data[0])
	}
}

func TestUpdateThreatEvent(t *testing.T) {
	id := uuid.New()
	var gotID uuid.UUID
	ms := &mockStore{
		updateThreatEvent: func(e *types.ThreatEvent) (*types.ThreatEvent, error) {
			gotID = e.ID
			return e, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "PUT", "/api/v1/threat-events/"+id.String(), map[string]any{
		"name":           "定向钓鱼活动",
		"dispose_status": "已处置",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != id {
		t.Errorf("expected path id %s, got %s", id, gotID)
	}
	var updated types.ThreatEvent
	decodeBody(t, rec, &updated)
	if updated.DisposeStatus == nil || *updated.DisposeStatus != "已处置" {
		t.Errorf("unexpected event %+v", updated)
	}
}

func TestUpdateThreatEventNotFound(t *testing.T) {
	ms := &mockStore{
		updateThreatEvent: func(e *types.ThreatEvent) (*types.ThreatEvent, error) {
			return nil, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "PUT", "/api/v1/threat-events/"+uuid.NewString(), map[string]any{"name": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doRequest(t, s, "PUT", "/api/v1/threat-events/nope", map[string]any{"name": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

// =============================================================================
// DICTIONARIES AND STATS
// =============================================================================

func TestAlarmTypes(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "GET", "/api/v1/alarm-types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body []struct {
		Code     int16             `json:"code"`
		Name     string            `json:"name"`
		Subtypes map[string]string `json:"subtypes"`
	}
	decodeBody(t, rec, &body)
	if len(body) != 3 {
		t.Fatalf("expected 3 alarm types, got %d", len(body))
	}
	if body[0].Name != "网络攻击" || body[0].Subtypes["1001"] != "SQL注入" {
		t.Errorf("unexpected dictionary entry %+v", body[0])
	}
}

func TestStatsOverview(t *testing.T) {
	ms := &mockStore{
		statsOverview: func() (*store.Overview, error) {
			return &store.Overview{
				NetworkAttack:    store.FamilyOverview{Raw: 100, Converged: 40},
				MaliciousSample:  store.FamilyOverview{Raw: 50, Converged: 25},
				HostBehavior:     store.FamilyOverview{Raw: 30, Converged: 12},
				InvalidAlerts:    7,
				PublishedLast24h: 19,
			}, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/stats/overview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body store.Overview
	decodeBody(t, rec, &body)
	if body.NetworkAttack.Raw != 100 || body.NetworkAttack.Converged != 40 {
		t.Errorf("unexpected network attack totals %+v", body.NetworkAttack)
	}
	if body.InvalidAlerts != 7 || body.PublishedLast24h != 19 {
		t.Errorf("unexpected totals %+v", body)
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestMigrationStatus(t *testing.T) {
	ms := &mockStore{
		migrationStatus: func() (*migrate.Status, error) {
			return &migrate.Status{
				Applied: []migrate.Record{{Version: 1, Name: "001_network_attacks"}},
				Pending: []string{"007_threat_events"},
			}, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/ops/migrations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var status migrate.Status
	decodeBody(t, rec, &status)
	if len(status.Applied) != 1 || len(status.Pending) != 1 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestRuntimeWithoutCollector(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "GET", "/api/v1/ops/runtime", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a collector, got %d", rec.Code)
	}
}
