package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reliefwatch/reliefwatch/internal/database"
	"github.com/reliefwatch/reliefwatch/internal/llm"
	"github.com/reliefwatch/reliefwatch/internal/rank"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

type mockProvider struct {
	response   string
	err        error
	configured bool
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return m.configured }

var _ llm.Provider = (*mockProvider)(nil)

func newTestServer(t *testing.T, db *database.DB, provider llm.Provider) *Server {
	t.Helper()
	var ranker *rank.Ranker
	if provider != nil {
		ranker = rank.New(provider, 2048)
	}
	srv, err := New(db, ranker, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func insertHeadline(t *testing.T, db *database.DB, n int) int64 {
	t.Helper()
	id, err := db.InsertHeadline(
		fmt.Sprintf("Quake %d hits province", n),
		fmt.Sprintf("https://example.com/quake-%d", n),
		"earthquake",
		ptr(fmt.Sprintf("2023-12-%02dT10:37:00+08:00", n)),
		ptr("Article body."),
	)
	if err != nil {
		t.Fatalf("InsertHeadline: %v", err)
	}
	return id
}

func insertTemplate(t *testing.T, db *database.DB, headlineID int64, title string) int64 {
	t.Helper()
	id, err := db.InsertReliefTemplate(headlineID, title, "Relief *description*.", 500000, ptr("2023-12-10"),
		[]database.InkindItem{{Item: "Rice", ItemDesc: "25kg sacks", Quantity: 200}})
	if err != nil {
		t.Fatalf("InsertReliefTemplate: %v", err)
	}
	return id
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRecentDisasterRoute(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= 3; i++ {
		insertHeadline(t, db, i)
	}
	srv := newTestServer(t, db, nil)

	rec := get(t, srv, "/headlines/recent-disaster")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []headlineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 headlines, got %d", len(out))
	}
	// Newest posted first.
	if out[0].Title != "Quake 3 hits province" {
		t.Errorf("expected newest first, got %q", out[0].Title)
	}
	if out[0].DisasterType != "earthquake" {
		t.Errorf("unexpected disaster type %q", out[0].DisasterType)
	}
}

func TestRecentDisasterPagination(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= 15; i++ {
		insertHeadline(t, db, i)
	}
	srv := newTestServer(t, db, nil)

	var page1, page2 []headlineResponse
	json.Unmarshal(get(t, srv, "/headlines/recent-disaster?p=1&c=10").Body.Bytes(), &page1)
	json.Unmarshal(get(t, srv, "/headlines/recent-disaster?p=2&c=10").Body.Bytes(), &page2)

	if len(page1) != 10 || len(page2) != 5 {
		t.Fatalf("expected 10+5, got %d+%d", len(page1), len(page2))
	}
}

func TestGeneratedReliefsRoute(t *testing.T) {
	db := openTestDB(t)
	h1 := insertHeadline(t, db, 1)
	h2 := insertHeadline(t, db, 2)
	id1 := insertTemplate(t, db, h1, "Effort One")
	id2 := insertTemplate(t, db, h2, "Effort Two")

	// Model ranks the second listed effort as most urgent.
	srv := newTestServer(t, db, &mockProvider{configured: true, response: "[2, 1]"})

	rec := get(t, srv, "/headlines/generated-relief-effort")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []reliefResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 reliefs, got %d", len(out))
	}
	if out[0].Urgency != 1 || out[1].Urgency != 2 {
		t.Errorf("expected urgency order 1,2, got %d,%d", out[0].Urgency, out[1].Urgency)
	}
	if out[0].ReliefTitle != "Effort Two" {
		t.Errorf("expected most urgent first, got %q", out[0].ReliefTitle)
	}
	if len(out[0].InkindDonation) != 1 || out[0].InkindDonation[0].Quantity != 200 {
		t.Errorf("unexpected inkind %+v", out[0].InkindDonation)
	}
	if out[0].HeadlineTitle == "" || out[0].Link == "" {
		t.Error("expected joined headline fields")
	}

	// Ranks are persisted, not just rendered.
	t1, _ := db.GetReliefTemplateByID(id1)
	t2, _ := db.GetReliefTemplateByID(id2)
	if t1.UrgencyRank != 2 || t2.UrgencyRank != 1 {
		t.Errorf("expected persisted ranks 2,1, got %d,%d", t1.UrgencyRank, t2.UrgencyRank)
	}
}

func TestGeneratedReliefsRankFallback(t *testing.T) {
	db := openTestDB(t)
	h1 := insertHeadline(t, db, 1)
	h2 := insertHeadline(t, db, 2)
	insertTemplate(t, db, h1, "Effort One")
	insertTemplate(t, db, h2, "Effort Two")

	srv := newTestServer(t, db, &mockProvider{configured: true, response: "no ranking today"})

	rec := get(t, srv, "/headlines/generated-relief-effort")
	if rec.Code != http.StatusOK {
		t.Fatalf("ranking failure must not fail the listing, got %d", rec.Code)
	}

	var out []reliefResponse
	json.Unmarshal(rec.Body.Bytes(), &out)
	for _, r := range out {
		if r.Urgency != -1 {
			t.Errorf("expected fallback urgency -1, got %d", r.Urgency)
		}
	}
}

func TestUseReliefRoute(t *testing.T) {
	db := openTestDB(t)
	hid := insertHeadline(t, db, 1)
	tid := insertTemplate(t, db, hid, "Effort One")

	srv := newTestServer(t, db, nil)

	rec := post(t, srv, fmt.Sprintf("/headlines/use-generated-relief-effort/%d", tid))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "used successfully") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	// Second use conflicts; the flip is one-way.
	rec = post(t, srv, fmt.Sprintf("/headlines/use-generated-relief-effort/%d", tid))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already in use") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestUseReliefNotFound(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db, nil)

	rec := post(t, srv, "/headlines/use-generated-relief-effort/999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not found") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestUseReliefBadID(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db, nil)

	if rec := post(t, srv, "/headlines/use-generated-relief-effort/abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUsedReliefsDropFromListing(t *testing.T) {
	db := openTestDB(t)
	hid := insertHeadline(t, db, 1)
	tid := insertTemplate(t, db, hid, "Effort One")

	srv := newTestServer(t, db, nil)
	post(t, srv, fmt.Sprintf("/headlines/use-generated-relief-effort/%d", tid))

	var out []reliefResponse
	json.Unmarshal(get(t, srv, "/headlines/generated-relief-effort").Body.Bytes(), &out)
	if len(out) != 0 {
		t.Errorf("used relief should not be listed, got %d", len(out))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db, nil)

	if rec := post(t, srv, "/headlines/recent-disaster"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	if rec := get(t, srv, "/headlines/use-generated-relief-effort/1"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestSaveWithoutIngestor(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db, nil)

	if rec := post(t, srv, "/headlines/save"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	hid := insertHeadline(t, db, 1)
	insertTemplate(t, db, hid, "Effort One")

	srv := newTestServer(t, db, nil)
	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Quake 1 hits province") {
		t.Error("expected headline on dashboard")
	}
	if !strings.Contains(body, "Effort One") {
		t.Error("expected relief effort on dashboard")
	}
	if !strings.Contains(body, "<em>description</em>") {
		t.Error("expected markdown-rendered description")
	}
}
