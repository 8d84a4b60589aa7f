package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/internal/testutil"
	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// TAG DICTIONARY
// =============================================================================

func TestCreateTag(t *testing.T) {
	assigned := uuid.New()
	ms := &mockStore{
		createTag: func(tg *types.Tag) error {
			tg.ID = assigned
			return nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "POST", "/api/v1/tags", map[string]string{
		"name":     "勒索软件",
		"category": "恶意行为",
		"color":    "#c0392b",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created types.Tag
	decodeBody(t, rec, &created)
	if created.ID != assigned || created.Name != "勒索软件" {
		t.Errorf("unexpected tag %+v", created)
	}
}

func TestCreateTagValidation(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "POST", "/api/v1/tags", map[string]string{"category": "c"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name: expected 400, got %d", rec.Code)
	}
	rec = doRequest(t, s, "POST", "/api/v1/tags", map[string]string{"name": "n"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing category: expected 400, got %d", rec.Code)
	}
}

func TestCreateTagDuplicate(t *testing.T) {
	ms := &mockStore{
		createTag: func(tg *types.Tag) error { return store.ErrDuplicateTag },
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "POST", "/api/v1/tags", map[string]string{
		"name":     "木马",
		"category": "恶意行为",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "tag name already exists" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestListTagsPassesFilters(t *testing.T) {
	var gotSearch, gotCategory string
	var gotLimit, gotOffset int
	ms := &mockStore{
		listTags: func(search, category string, limit, offset int) ([]*types.Tag, int, error) {
			gotSearch, gotCategory = search, category
			gotLimit, gotOffset = limit, offset
			return []*types.Tag{testutil.FixtureTag()}, 1, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/tags?search=木&category=恶意行为&page=2&page_size=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotSearch != "木" || gotCategory != "恶意行为" {
		t.Errorf("filters not passed: search=%q category=%q", gotSearch, gotCategory)
	}
	if gotLimit != 10 || gotOffset != 10 {
		t.Errorf("expected limit=10 offset=10, got limit=%d offset=%d", gotLimit, gotOffset)
	}
}

func TestAllTags(t *testing.T) {
	ms := &mockStore{
		listAllTags: func() ([]types.Tag, error) {
			return []types.Tag{*testutil.FixtureTag(), *testutil.FixtureTag()}, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/tags/all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tags []types.Tag
	decodeBody(t, rec, &tags)
	if len(tags) != 2 {
		t.Errorf("expected 2 tags, got %d", len(tags))
	}
}

func TestUpdateTagNotFound(t *testing.T) {
	ms := &mockStore{
		updateTag: func(tg *types.Tag) (*types.Tag, error) { return nil, nil },
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "PUT", "/api/v1/tags/"+uuid.NewString(), map[string]string{
		"name":     "n",
		"category": "c",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteTag(t *testing.T) {
	ms := &mockStore{
		deleteTag: func(id uuid.UUID) (bool, error) { return true, nil },
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "DELETE", "/api/v1/tags/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	ms.deleteTag = func(id uuid.UUID) (bool, error) { return false, nil }
	rec = doRequest(t, s, "DELETE", "/api/v1/tags/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing tag, got %d", rec.Code)
	}
}

// =============================================================================
// ALERT-TAG ASSOCIATIONS
// =============================================================================

func TestListAlertTags(t *testing.T) {
	alertID := uuid.New()
	var gotType string
	ms := &mockStore{
		listTagsForAlert: func(id uuid.UUID, alertType string) ([]types.Tag, error) {
			gotType = alertType
			return []types.Tag{*testutil.FixtureTag()}, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "GET", "/api/v1/alert-tags?alert_id="+alertID.String()+"&alert_type=network_attack", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotType != "network_attack" {
		t.Errorf("expected network_attack, got %q", gotType)
	}
	var tags []types.Tag
	decodeBody(t, rec, &tags)
	if len(tags) != 1 {
		t.Errorf("expected 1 tag, got %d", len(tags))
	}
}

func TestListAlertTagsValidation(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	rec := doRequest(t, s, "GET", "/api/v1/alert-tags?alert_type=network_attack", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing alert_id: expected 400, got %d", rec.Code)
	}
	rec = doRequest(t, s, "GET", "/api/v1/alert-tags?alert_id="+uuid.NewString()+"&alert_type=attack", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad alert_type: expected 400, got %d", rec.Code)
	}
}

func TestAttachTag(t *testing.T) {
	var gotIDs []uuid.UUID
	ms := &mockStore{
		attachTags: func(alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) (int, error) {
			gotIDs = tagIDs
			return 1, nil
		},
	}
	s := newTestServer(ms, nil)

	tagID := uuid.New()
	rec := doRequest(t, s, "POST", "/api/v1/alert-tags", map[string]any{
		"alert_id":   uuid.NewString(),
		"alert_type": "malicious_sample",
		"tag_id":     tagID.String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(gotIDs) != 1 || gotIDs[0] != tagID {
		t.Errorf("expected single tag %s, got %v", tagID, gotIDs)
	}
	var body map[string]int
	decodeBody(t, rec, &body)
	if body["attached"] != 1 {
		t.Errorf("expected attached=1, got %d", body["attached"])
	}
}

func TestAttachTagValidation(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing alert_id", map[string]any{"alert_type": "network_attack", "tag_id": uuid.NewString()}},
		{"bad alert_type", map[string]any{"alert_id": uuid.NewString(), "alert_type": "x", "tag_id": uuid.NewString()}},
		{"missing tag_id", map[string]any{"alert_id": uuid.NewString(), "alert_type": "network_attack"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, "POST", "/api/v1/alert-tags", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestAttachTagUnknownTag(t *testing.T) {
	ms := &mockStore{
		attachTags: func(alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) (int, error) {
			return 0, store.ErrTagNotFound
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "POST", "/api/v1/alert-tags", map[string]any{
		"alert_id":   uuid.NewString(),
		"alert_type": "host_behavior",
		"tag_id":     uuid.NewString(),
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAttachTagsBatch(t *testing.T) {
	ms := &mockStore{
		attachTags: func(alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) (int, error) {
			// One of the three is already attached.
			return len(tagIDs) - 1, nil
		},
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "POST", "/api/v1/alert-tags/batch", map[string]any{
		"alert_id":   uuid.NewString(),
		"alert_type": "network_attack",
		"tag_ids":    []string{uuid.NewString(), uuid.NewString(), uuid.NewString()},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]int
	decodeBody(t, rec, &body)
	if body["attached"] != 2 {
		t.Errorf("expected attached=2, got %d", body["attached"])
	}

	rec = doRequest(t, s, "POST", "/api/v1/alert-tags/batch", map[string]any{
		"alert_id":   uuid.NewString(),
		"alert_type": "network_attack",
		"tag_ids":    []string{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty tag_ids: expected 400, got %d", rec.Code)
	}
}

func TestDetachTag(t *testing.T) {
	ms := &mockStore{
		detachTag: func(alertID uuid.UUID, alertType string, tagID uuid.UUID) (bool, error) {
			return true, nil
		},
	}
	s := newTestServer(ms, nil)

	query := "?alert_id=" + uuid.NewString() + "&alert_type=network_attack&tag_id=" + uuid.NewString()
	rec := doRequest(t, s, "DELETE", "/api/v1/alert-tags"+query, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	ms.detachTag = func(alertID uuid.UUID, alertType string, tagID uuid.UUID) (bool, error) {
		return false, nil
	}
	rec = doRequest(t, s, "DELETE", "/api/v1/alert-tags"+query, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing mapping, got %d", rec.Code)
	}
}

func TestDetachAllTags(t *testing.T) {
	ms := &mockStore{
		detachAllTags: func(alertID uuid.UUID, alertType string) (int, error) { return 3, nil },
	}
	s := newTestServer(ms, nil)

	rec := doRequest(t, s, "DELETE", "/api/v1/alert-tags/all?alert_id="+uuid.NewString()+"&alert_type=host_behavior", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int
	decodeBody(t, rec, &body)
	if body["detached"] != 3 {
		t.Errorf("expected detached=3, got %d", body["detached"])
	}
}
