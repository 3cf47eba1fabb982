package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/telkomfield/visitbot/internal/gateway"
	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/session"
)

type stubLister struct {
	subs      []gateway.Submission
	lastLimit int
}

func (s *stubLister) List(ctx context.Context, limit int) ([]gateway.Submission, error) {
	s.lastLimit = limit
	return s.subs, nil
}

type stubHandler struct {
	prompts []models.Prompt
	last    models.Event
}

func (h *stubHandler) Handle(ctx context.Context, ev models.Event) ([]models.Prompt, error) {
	h.last = ev
	return h.prompts, nil
}

func newTestServer(t *testing.T, store session.Store, lister SubmissionLister, handler *stubHandler) *Server {
	t.Helper()
	if store == nil {
		store = session.NewMemoryStore()
	}
	if lister == nil {
		lister = &stubLister{}
	}
	if handler == nil {
		handler = &stubHandler{}
	}
	return NewServer(store, lister, handler)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealthReportsActiveSessions(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	sess, err := store.GetOrCreate(ctx, "628111")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	sess.State = models.StateCode
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	srv := newTestServer(t, store, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", health["status"])
	}
	if health["active_sessions"] != float64(1) {
		t.Errorf("expected 1 active session, got %v", health["active_sessions"])
	}
}

func TestSessionEndpointRedactsPhoto(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	sess, err := store.GetOrCreate(ctx, "628111")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	sess.State = models.StateCompleted
	sess.Values[models.FieldCode] = "SA001"
	sess.Values[models.FieldEvidencePhoto] = base64.StdEncoding.EncodeToString([]byte("jpegbytes"))
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	srv := newTestServer(t, store, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/628111", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, base64.StdEncoding.EncodeToString([]byte("jpegbytes"))) {
		t.Error("session view must not contain the raw photo payload")
	}
	if !strings.Contains(body, "SA001") {
		t.Errorf("session view missing collected value: %s", body)
	}
	if !strings.Contains(body, "photo_bytes") {
		t.Errorf("session view missing photo size: %s", body)
	}
}

func TestSessionEndpointRejectsMissingID(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmissionsEndpoint(t *testing.T) {
	lister := &stubLister{subs: []gateway.Submission{{
		ID:        1,
		UserID:    "628111",
		Values:    []string{"SA001"},
		PhotoLink: "/var/lib/visitbot/images/SA001_15-08-2025_Visit.jpg",
		CreatedAt: time.Now(),
	}}}
	srv := newTestServer(t, nil, lister, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submissions?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lister.lastLimit != 5 {
		t.Errorf("expected limit 5 passed through, got %d", lister.lastLimit)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("unexpected status %q", resp.Status)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submissions?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submissions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lister.lastLimit != defaultSubmissionLimit {
		t.Errorf("expected default limit %d, got %d", defaultSubmissionLimit, lister.lastLimit)
	}
}

func TestEventsEndpointReturnsPrompts(t *testing.T) {
	handler := &stubHandler{prompts: []models.Prompt{{Text: "Please enter your SA code."}}}
	srv := newTestServer(t, nil, nil, handler)

	body := `{"user_id":"628111","kind":"selection","selection":"start_form"}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if handler.last.Selection != models.TriggerStart {
		t.Errorf("handler saw wrong event: %+v", handler.last)
	}
	if !strings.Contains(rec.Body.String(), "Please enter your SA code.") {
		t.Errorf("response missing prompt text: %s", rec.Body.String())
	}
}

func TestEventsEndpointRejectsInvalidEvent(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	cases := []string{
		`{"kind":"text","text":"hello"}`,
		`{"user_id":"628111","kind":"text"}`,
		`{"user_id":"628111","kind":"mystery","text":"x"}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestEventsEndpointMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
