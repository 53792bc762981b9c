// Package server exposes the HTTP API for browsing disaster headlines
// and managing generated relief efforts, plus a small operator
// dashboard.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/reliefwatch/reliefwatch/internal/database"
	"github.com/reliefwatch/reliefwatch/internal/ingest"
	"github.com/reliefwatch/reliefwatch/internal/rank"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

const (
	defaultPage  = 1
	defaultCount = 10
	maxCount     = 100
)

// Server is the HTTP server for the relief effort API.
type Server struct {
	db       *database.DB
	ranker   *rank.Ranker
	ingestor *ingest.Ingestor
	tmpl     *template.Template
	mux      *http.ServeMux
}

// New creates a new Server. ranker and ingestor may be nil; the
// affected endpoints then degrade (fallback ranks, save disabled).
func New(db *database.DB, ranker *rank.Ranker, ingestor *ingest.Ingestor) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	tmpl, err := template.New("index.html").Funcs(funcMap).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{db: db, ranker: ranker, ingestor: ingestor, tmpl: tmpl, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/headlines/recent-disaster", s.handleRecentDisaster)
	s.mux.HandleFunc("/headlines/generated-relief-effort", s.handleGeneratedReliefs)
	s.mux.HandleFunc("/headlines/use-generated-relief-effort/", s.handleUseRelief)
	s.mux.HandleFunc("/headlines/save", s.handleSave)
}

// headlineResponse is the JSON shape for a disaster headline.
type headlineResponse struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Link         string  `json:"link"`
	DisasterType string  `json:"disaster_type"`
	DatePosted   *string `json:"date_posted"`
}

// reliefResponse is the JSON shape for a generated relief effort.
type reliefResponse struct {
	ID             int64            `json:"id"`
	ReliefTitle    string           `json:"relief_title"`
	Description    string           `json:"description"`
	MonetaryGoal   float64          `json:"monetary_goal"`
	InkindDonation []inkindResponse `json:"inkind_donation"`
	DeploymentDate *string          `json:"deployment_date"`
	IsUsed         bool             `json:"is_used"`
	Urgency        int              `json:"urgency"`
	DisasterType   string           `json:"disaster_type"`
	HeadlineTitle  string           `json:"headline_title"`
	DatePosted     *string          `json:"date_posted"`
	Link           string           `json:"link"`
}

type inkindResponse struct {
	Item     string `json:"item"`
	ItemDesc string `json:"item_desc"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handleRecentDisaster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	page, count := pagination(r)
	headlines, err := s.db.GetRecentDisasterHeadlines(page, count)
	if err != nil {
		log.Printf("listing headlines: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]headlineResponse, len(headlines))
	for i, h := range headlines {
		out[i] = headlineResponse{
			ID:           h.ID,
			Title:        h.Title,
			Link:         h.Link,
			DisasterType: h.DisasterType,
			DatePosted:   h.PostedDatetime,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGeneratedReliefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	page, count := pagination(r)
	details, err := s.db.GetReliefDetails(page, count)
	if err != nil {
		log.Printf("listing relief efforts: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.applyRanks(r.Context(), details)

	// Most urgent first; unranked entries sink to the end.
	sort.SliceStable(details, func(i, j int) bool {
		ri, rj := details[i].UrgencyRank, details[j].UrgencyRank
		if ri == rank.Unranked {
			return false
		}
		if rj == rank.Unranked {
			return true
		}
		return ri < rj
	})

	out := make([]reliefResponse, len(details))
	for i, d := range details {
		inkind := make([]inkindResponse, len(d.Inkind))
		for j, it := range d.Inkind {
			inkind[j] = inkindResponse{Item: it.Item, ItemDesc: it.ItemDesc, Quantity: it.Quantity}
		}
		out[i] = reliefResponse{
			ID:             d.ID,
			ReliefTitle:    d.ReliefTitle,
			Description:    d.Description,
			MonetaryGoal:   d.MonetaryGoal,
			InkindDonation: inkind,
			DeploymentDate: d.DeploymentDate,
			IsUsed:         d.IsUsed,
			Urgency:        d.UrgencyRank,
			DisasterType:   d.DisasterType,
			HeadlineTitle:  d.HeadlineTitle,
			DatePosted:     d.PostedDatetime,
			Link:           d.Link,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// applyRanks recomputes urgency for the listed page and persists the
// result. Ranking failures leave the fallback rank in place and never
// fail the listing.
func (s *Server) applyRanks(ctx context.Context, details []database.ReliefDetail) {
	if s.ranker == nil || len(details) == 0 {
		return
	}

	candidates := make([]rank.Candidate, len(details))
	for i, d := range details {
		candidates[i] = rank.Candidate{
			TemplateID:    d.ID,
			ReliefTitle:   d.ReliefTitle,
			Description:   d.Description,
			HeadlineTitle: d.HeadlineTitle,
		}
	}

	ranks := s.ranker.Rank(ctx, candidates)
	for i := range details {
		details[i].UrgencyRank = ranks[details[i].ID]
	}
	if err := s.db.UpdateUrgencyRanks(ranks); err != nil {
		log.Printf("persisting urgency ranks: %v", err)
	}
}

func (s *Server) handleUseRelief(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	idText := strings.TrimPrefix(r.URL.Path, "/headlines/use-generated-relief-effort/")
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid relief effort id")
		return
	}

	switch err := s.db.UseReliefTemplate(id); {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "Generated relief effort not found")
	case errors.Is(err, database.ErrAlreadyUsed):
		writeError(w, http.StatusConflict, "Generated relief effort already in use")
	case err != nil:
		log.Printf("using relief effort %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"detail": "Generated relief effort used successfully"})
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.ingestor == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingestion not configured")
		return
	}

	result, err := s.ingestor.Run(r.Context())
	if err != nil {
		log.Printf("manual ingest: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detail":       "Headlines saved",
		"fetched":      result.Fetched,
		"new":          result.New,
		"duplicates":   result.Duplicates,
		"non_disaster": result.NonDisaster,
		"failed":       result.Failed,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	headlines, _ := s.db.GetRecentDisasterHeadlines(defaultPage, defaultCount)
	details, _ := s.db.GetReliefDetails(defaultPage, defaultCount)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = s.tmpl.Execute(w, map[string]any{
		"Stats":     stats,
		"Headlines": headlines,
		"Reliefs":   details,
	})
	if err != nil {
		log.Printf("rendering dashboard: %v", err)
	}
}

func pagination(r *http.Request) (page, count int) {
	page, count = defaultPage, defaultCount
	if v, err := strconv.Atoi(r.URL.Query().Get("p")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("c")); err == nil && v > 0 {
		count = v
	}
	if count > maxCount {
		count = maxCount
	}
	return page, count
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, ranker *rank.Ranker, ingestor *ingest.Ingestor, port int) error {
	srv, err := New(db, ranker, ingestor)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Server listening on http://127.0.0.1:%d", port)
	return http.ListenAndServe(addr, srv.Handler())
}
