// Package server exposes stored observations over HTTP. Read-only: all
// writes go through the ingestion CLI paths.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/macromap/econsync/internal/cache"
	"github.com/macromap/econsync/internal/ingest"
	"github.com/macromap/econsync/internal/query"
	"github.com/macromap/econsync/internal/registry"
)

// Server serves the read API.
type Server struct {
	query     *query.Service
	countries *registry.Registry
	ledger    *ingest.Ledger
	cache     *cache.Cache

	// AllowedOrigins configures CORS. Empty means allow all.
	AllowedOrigins []string
}

// New creates a Server. cache may be nil to disable response caching.
func New(q *query.Service, countries *registry.Registry, ledger *ingest.Ledger, c *cache.Cache) *Server {
	return &Server{query: q, countries: countries, ledger: ledger, cache: c}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/indicators", s.handleIndicators)
		r.Get("/indicators/{id}/values", s.handleValues)
		r.Get("/indicators/{id}/history", s.handleHistory)
		r.Get("/countries", s.handleCountries)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type indicatorInfo struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Source      string     `json:"source"`
	Name        string     `json:"name"`
	Unit        string     `json:"unit"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	updated, err := s.ledger.LastUpdated(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]indicatorInfo, 0, len(ingest.Catalog))
	for _, ind := range ingest.Catalog {
		info := indicatorInfo{
			ID:     ind.ID,
			Type:   string(ind.Type),
			Source: ind.Source,
			Name:   ind.Name,
			Unit:   ind.Unit,
		}
		if t, ok := updated[ind.JobName()]; ok {
			info.LastUpdated = &t
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := ingest.CatalogByID(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown indicator"})
		return
	}

	filter := query.ValuesFilter{
		CountryCode: r.URL.Query().Get("country"),
		From:        r.URL.Query().Get("from"),
		To:          r.URL.Query().Get("to"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	key := fmt.Sprintf("values:%s:%s:%s:%s:%d", id, filter.CountryCode, filter.From, filter.To, filter.Limit)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	points, err := s.query.Values(r.Context(), id, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if points == nil {
		points = []query.Point{}
	}
	if s.cache != nil {
		s.cache.Set(key, points)
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := ingest.CatalogByID(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown indicator"})
		return
	}

	country := r.URL.Query().Get("country")
	date := r.URL.Query().Get("date")
	if country == "" || date == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "country and date are required"})
		return
	}

	versions, err := s.query.History(r.Context(), id, country, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if versions == nil {
		versions = []query.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.countries.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if countries == nil {
		countries = []registry.Country{}
	}
	writeJSON(w, http.StatusOK, countries)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []ingest.RunEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("server: request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
