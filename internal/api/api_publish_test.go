package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/internal/testutil"
	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// PUSH CONFIG
// =============================================================================

func TestGetPublishConfig(t *testing.T) {
	ms := &mockStore{
		getPushConfig: func() (*types.PushConfig, error) {
			return testutil.FixturePushConfig(), nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/publish/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cfg types.PushConfig
	decodeBody(t, rec, &cfg)
	if !cfg.Enabled || cfg.WindowMinutes != 5 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestGetPublishConfigMissingSeed(t *testing.T) {
	ms := &mockStore{
		getPushConfig: func() (*types.PushConfig, error) { return nil, nil },
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/publish/config", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdatePublishConfig(t *testing.T) {
	var gotEnabled bool
	var gotWindow, gotInterval int32
	ms := &mockStore{
		updatePushConfig: func(enabled bool, windowMinutes, intervalSeconds int32) (*types.PushConfig, error) {
			gotEnabled, gotWindow, gotInterval = enabled, windowMinutes, intervalSeconds
			return testutil.FixturePushConfig(func(c *types.PushConfig) {
				c.Enabled = enabled
				c.WindowMinutes = windowMinutes
				c.IntervalSeconds = intervalSeconds
			}), nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "PUT", "/api/v1/publish/config", map[string]any{
		"enabled":          true,
		"window_minutes":   10,
		"interval_seconds": 120,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !gotEnabled || gotWindow != 10 || gotInterval != 120 {
		t.Errorf("store got enabled=%v window=%d interval=%d", gotEnabled, gotWindow, gotInterval)
	}
	var cfg types.PushConfig
	decodeBody(t, rec, &cfg)
	if cfg.WindowMinutes != 10 {
		t.Errorf("expected updated row back, got %+v", cfg)
	}
}

func TestUpdatePublishConfigValidation(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "PUT", "/api/v1/publish/config", map[string]any{
		"enabled":          true,
		"window_minutes":   0,
		"interval_seconds": 60,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero window: expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "window_minutes must be > 0" {
		t.Errorf("unexpected message %q", msg)
	}

	rec = doRequest(t, s, "PUT", "/api/v1/publish/config", map[string]any{
		"enabled":          true,
		"window_minutes":   5,
		"interval_seconds": -1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative interval: expected 400, got %d", rec.Code)
	}
}

// =============================================================================
// MANUAL RUN
// =============================================================================

func TestPublishRun(t *testing.T) {
	pub := &mockPublisher{sent: 7}
	s := newTestServer(&mockStore{}, pub)

	rec := doRequest(t, s, "POST", "/api/v1/publish/run", map[string]int{"window_minutes": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]int
	decodeBody(t, rec, &body)
	if body["sent_count"] != 7 {
		t.Errorf("expected sent_count=7, got %d", body["sent_count"])
	}
	if len(pub.windows) != 1 || pub.windows[0] != 5 {
		t.Errorf("expected one 5-minute window, got %v", pub.windows)
	}
}

func TestPublishRunValidation(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestServer(&mockStore{}, pub)

	for _, window := range []int{0, -10} {
		rec := doRequest(t, s, "POST", "/api/v1/publish/run", map[string]int{"window_minutes": window})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("window %d: expected 400, got %d", window, rec.Code)
		}
		if msg := errorMessage(t, rec); msg != "window_minutes must be > 0" {
			t.Errorf("unexpected message %q", msg)
		}
	}
	if len(pub.windows) != 0 {
		t.Errorf("publisher must not run on invalid input, got %v", pub.windows)
	}
}

func TestPublishRunFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("redis down")}
	s := newTestServer(&mockStore{}, pub)

	rec := doRequest(t, s, "POST", "/api/v1/publish/run", map[string]int{"window_minutes": 5})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

// =============================================================================
// PUSH LOGS
// =============================================================================

func TestListPushLogs(t *testing.T) {
	pushedAt := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	var gotFamily *types.AlertFamily
	ms := &mockStore{
		listPushLogs: func(family *types.AlertFamily, limit, offset int) ([]types.PushLog, int, error) {
			gotFamily = family
			return []types.PushLog{{
				ID:          uuid.New(),
				AlertType:   types.FamilyMaliciousSample,
				ConvergedID: uuid.New(),
				PushedAt:    pushedAt,
			}}, 1, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/publish/logs?alert_type=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotFamily == nil || *gotFamily != types.FamilyMaliciousSample {
		t.Fatalf("expected family filter 2, got %v", gotFamily)
	}

	var body struct {
		Data []types.PushLogView `json:"data"`
	}
	decodeBody(t, rec, &body)
	if len(body.Data) != 1 {
		t.Fatalf("expected 1 log, got %d", len(body.Data))
	}
	if body.Data[0].AlertTypeName != "恶意样本" {
		t.Errorf("expected display name 恶意样本, got %q", body.Data[0].AlertTypeName)
	}
	if body.Data[0].PushedAt != pushedAt.UnixMilli() {
		t.Errorf("expected epoch millis %d, got %d", pushedAt.UnixMilli(), body.Data[0].PushedAt)
	}
}

func TestListPushLogsUnfiltered(t *testing.T) {
	var gotFamily *types.AlertFamily
	called := false
	ms := &mockStore{
		listPushLogs: func(family *types.AlertFamily, limit, offset int) ([]types.PushLog, int, error) {
			called = true
			gotFamily = family
			return nil, 0, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/publish/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !called || gotFamily != nil {
		t.Errorf("expected unfiltered query, called=%v family=%v", called, gotFamily)
	}
}

func TestListPushLogsBadFamily(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "GET", "/api/v1/publish/logs?alert_type=9", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "alert_type must be 1, 2 or 3" {
		t.Errorf("unexpected message %q", msg)
	}
}
