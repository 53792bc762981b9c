package generate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reliefwatch/reliefwatch/internal/database"
)

// mockProvider replays scripted responses in order.
type mockProvider struct {
	responses  []string
	calls      int
	configured bool
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if m.calls >= len(m.responses) {
		return "", fmt.Errorf("unexpected call %d", m.calls)
	}
	resp := m.responses[m.calls]
	m.calls++
	if resp == "ERROR" {
		return "", fmt.Errorf("simulated provider failure")
	}
	return resp, nil
}

func (m *mockProvider) IsConfigured() bool { return m.configured }

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func insertHeadline(t *testing.T, db *database.DB, n int) int64 {
	t.Helper()
	id, err := db.InsertHeadline(
		fmt.Sprintf("Quake %d hits province", n),
		fmt.Sprintf("https://example.com/quake-%d", n),
		"earthquake",
		ptr("December 4, 2023 | 10:37am"),
		ptr("A powerful earthquake struck the province, displacing families."),
	)
	if err != nil {
		t.Fatalf("InsertHeadline: %v", err)
	}
	return id
}

const goodJSON = `{
  "relief_title": "Earthquake Response Drive",
  "description": "Food and shelter for displaced families.",
  "monetary_goal": 500000,
  "inkind_donation": [
    {"item": "Rice", "item_desc": "25kg sacks", "quantity": 200},
    {"item": "Blankets", "item_desc": "Thermal blankets", "quantity": 500}
  ],
  "deployment_date": "2023-12-10"
}`

func TestRunGeneratesAndPersists(t *testing.T) {
	db := openTestDB(t)
	hid := insertHeadline(t, db, 1)

	provider := &mockProvider{configured: true, responses: []string{
		"Draft plan: collect rice and blankets.",
		"```json\n" + goodJSON + "\n```",
	}}

	g := New(db, provider, 10, 2048, 0)
	result, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Generated != 1 || result.Failed != 0 {
		t.Fatalf("expected 1 generated, got %+v", result)
	}

	exists, err := db.HasTemplateForHeadline(hid)
	if err != nil || !exists {
		t.Fatalf("expected template for headline %d (err=%v)", hid, err)
	}

	details, err := db.GetReliefDetails(1, 10)
	if err != nil {
		t.Fatalf("GetReliefDetails: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("expected 1 detail, got %d", len(details))
	}
	d := details[0]
	if d.ReliefTitle != "Earthquake Response Drive" {
		t.Errorf("unexpected title %q", d.ReliefTitle)
	}
	if d.MonetaryGoal != 500000 {
		t.Errorf("unexpected goal %v", d.MonetaryGoal)
	}
	if len(d.Inkind) != 2 || d.Inkind[0].Quantity != 200 {
		t.Errorf("unexpected inkind %+v", d.Inkind)
	}
	if d.IsUsed {
		t.Error("new template should not be used")
	}
	if d.UrgencyRank != -1 {
		t.Errorf("expected default rank -1, got %d", d.UrgencyRank)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	db := openTestDB(t)
	insertHeadline(t, db, 1)
	h2 := insertHeadline(t, db, 2)
	insertHeadline(t, db, 3)

	// Headline 2's repair pass returns non-JSON; 1 and 3 still succeed.
	provider := &mockProvider{configured: true, responses: []string{
		"draft one", goodJSON,
		"draft two", "Sorry, I cannot produce JSON today.",
		"draft three", goodJSON,
	}}

	g := New(db, provider, 10, 2048, 0)
	result, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Generated != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 generated 1 failed, got %+v", result)
	}

	// The failed headline stays untemplated for a later run.
	remaining, err := db.GetUntemplatedHeadlines(1, 10)
	if err != nil {
		t.Fatalf("GetUntemplatedHeadlines: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != h2 {
		t.Fatalf("expected headline %d untemplated, got %+v", h2, remaining)
	}
}

func TestRunDraftPassError(t *testing.T) {
	db := openTestDB(t)
	insertHeadline(t, db, 1)

	provider := &mockProvider{configured: true, responses: []string{"ERROR"}}
	g := New(db, provider, 10, 2048, 0)
	result, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Generated != 0 {
		t.Fatalf("expected 1 failed, got %+v", result)
	}
}

func TestRunUnconfiguredProvider(t *testing.T) {
	db := openTestDB(t)
	g := New(db, &mockProvider{configured: false}, 10, 2048, 0)
	if _, err := g.Run(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured provider")
	}
}

func TestProcessSkipsTemplatedHeadline(t *testing.T) {
	db := openTestDB(t)
	hid := insertHeadline(t, db, 1)
	if _, err := db.InsertReliefTemplate(hid, "Existing", "desc", 1000, nil,
		[]database.InkindItem{{Item: "Water", Quantity: 10}}); err != nil {
		t.Fatalf("InsertReliefTemplate: %v", err)
	}

	provider := &mockProvider{configured: true}
	g := New(db, provider, 10, 2048, 0)

	h, err := db.GetHeadlineByID(hid)
	if err != nil {
		t.Fatalf("GetHeadlineByID: %v", err)
	}
	out := g.Process(context.Background(), h)
	if out.State == StatePersisted || out.Err == nil {
		t.Fatalf("expected failure for templated headline, got %+v", out)
	}
	if provider.calls != 0 {
		t.Errorf("provider should not be called, got %d calls", provider.calls)
	}
}

func TestValidateTemplate(t *testing.T) {
	tmpl, err := ValidateTemplate(map[string]any{
		"relief_title":    "Typhoon Aid",
		"description":     "Help for coastal towns.",
		"monetary_goal":   "PHP 250,000",
		"deployment_date": "December 10, 2023",
		"inkind_donation": []any{
			map[string]any{"item": "Canned goods", "item_desc": "Assorted", "quantity": float64(300)},
		},
	})
	if err != nil {
		t.Fatalf("ValidateTemplate: %v", err)
	}
	if tmpl.MonetaryGoal != 250000 {
		t.Errorf("expected string goal coerced, got %v", tmpl.MonetaryGoal)
	}
	if tmpl.DeploymentDate != "2023-12-10" {
		t.Errorf("expected normalized date, got %q", tmpl.DeploymentDate)
	}
	if len(tmpl.Inkind) != 1 || tmpl.Inkind[0].Quantity != 300 {
		t.Errorf("unexpected inkind %+v", tmpl.Inkind)
	}
}

func TestValidateTemplateErrors(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"relief_title":  "T",
			"description":   "D",
			"monetary_goal": float64(100),
			"inkind_donation": []any{
				map[string]any{"item": "Rice", "quantity": float64(5)},
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"nil object", nil},
		{"missing title", func(m map[string]any) { delete(m, "relief_title") }},
		{"empty description", func(m map[string]any) { m["description"] = "  " }},
		{"negative goal", func(m map[string]any) { m["monetary_goal"] = float64(-5) }},
		{"non-numeric goal", func(m map[string]any) { m["monetary_goal"] = "soon" }},
		{"zero quantity", func(m map[string]any) {
			m["inkind_donation"] = []any{map[string]any{"item": "Rice", "quantity": float64(0)}}
		}},
		{"empty inkind", func(m map[string]any) { m["inkind_donation"] = []any{} }},
		{"missing inkind", func(m map[string]any) { delete(m, "inkind_donation") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m map[string]any
			if tc.mutate != nil {
				m = base()
				tc.mutate(m)
			}
			if _, err := ValidateTemplate(m); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDraftPromptIncludesArticle(t *testing.T) {
	h := &database.Headline{
		Title:          "Quake hits province",
		DisasterType:   "earthquake",
		PostedDatetime: ptr("December 4, 2023 | 10:37am"),
		ArticleBody:    ptr("A powerful earthquake struck."),
	}
	p := draftPrompt(h)
	for _, want := range []string{"earthquake", "Quake hits province", "powerful earthquake"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
