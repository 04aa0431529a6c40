// Package httpapi exposes the monitoring results over a small read-only
// HTTP API.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pkiops/pkihealth/internal/domain"
	"github.com/pkiops/pkihealth/internal/httpapi/middleware"
	"github.com/pkiops/pkihealth/internal/repo"
)

// Monitor is the subset of the orchestrator the API needs.
type Monitor interface {
	Summary() domain.Summary
}

type Server struct {
	Logger  *zap.Logger
	Records repo.RecordStore
	Monitor Monitor

	APIKeys   []string
	RateRPM   int
	RateBurst int
}

func NewServer(l *zap.Logger, records repo.RecordStore, m Monitor) *Server {
	return &Server{Logger: l, Records: records, Monitor: m}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireKey(s.APIKeys))
		r.Use(middleware.RateLimit(s.RateRPM, s.RateBurst))
		r.Get("/api/records", s.handleListRecords)
		r.Get("/api/summary", s.handleSummary)
	})

	return r
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Records.List(r.Context())
	if err != nil {
		s.Logger.Error("list records", zap.Error(err))
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Monitor.Summary())
}
