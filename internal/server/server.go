// Package server exposes the admin HTTP API: run creation, phase
// execution, article and newsletter inspection, and profile management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"newsroom/internal/config"
	"newsroom/internal/core"
	"newsroom/internal/export"
	"newsroom/internal/logger"
	"newsroom/internal/pipeline"
	"newsroom/internal/store"
)

// Server is the admin API server.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	pipeline *pipeline.Pipeline
	http     *http.Server
}

// NewServer wires the API around an existing store and pipeline.
func NewServer(cfg *config.Config, s *store.Store, p *pipeline.Pipeline) *Server {
	srv := &Server{cfg: cfg, store: s, pipeline: p}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", srv.handleListRuns)
		r.Get("/runs/{id}", srv.handleGetRun)
		r.Get("/runs/{id}/articles", srv.handleListArticles)
		r.Get("/runs/{id}/newsletter", srv.handleGetNewsletter)
		r.Get("/runs/{id}/export/json", srv.handleExportRun)
		r.Get("/profiles", srv.handleListProfiles)

		r.Group(func(r chi.Router) {
			r.Use(srv.requireAdmin)
			r.Post("/runs", srv.handleCreateRun)
			r.Post("/runs/{id}/phase/{name}", srv.handleRunPhase)
			r.Post("/profiles", srv.handleCreateProfile)
		})
	})

	srv.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return srv
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info("admin API listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*core.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type createRunRequest struct {
	Name             string   `json:"run_name"`
	Topic            string   `json:"prompt_topic"`
	Keywords         []string `json:"keywords"`
	SpecificURLs     []string `json:"specific_urls"`
	SourceURLs       []string `json:"source_urls"`
	LookbackDays     int      `json:"lookback_days"`
	Mode             string   `json:"mode"`
	MinFitScore      *float64 `json:"min_fit_score"`
	MaxTotalArticles *int     `json:"max_total_articles"`
	MaxPerDomain     *int     `json:"max_per_domain"`
	RankingEnabled   *bool    `json:"ranking_enabled"`
	ProfileID        string   `json:"profile_id"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Topic == "" && len(req.Keywords) == 0 && len(req.SpecificURLs) == 0 && len(req.SourceURLs) == 0 {
		writeError(w, http.StatusBadRequest, "a topic, keywords, or URLs are required")
		return
	}

	run := &core.Run{
		Name:             req.Name,
		Topic:            req.Topic,
		Keywords:         req.Keywords,
		SpecificURLs:     req.SpecificURLs,
		SourceURLs:       req.SourceURLs,
		LookbackDays:     req.LookbackDays,
		Mode:             core.RunMode(req.Mode),
		MinFitScore:      6.0,
		MaxTotalArticles: 12,
		MaxPerDomain:     4,
		RankingEnabled:   true,
		ProfileID:        req.ProfileID,
	}
	if run.LookbackDays <= 0 {
		run.LookbackDays = 7
	}
	if run.Mode == "" {
		run.Mode = core.ModeAuto
	}
	if req.MinFitScore != nil {
		run.MinFitScore = *req.MinFitScore
	}
	if req.MaxTotalArticles != nil {
		run.MaxTotalArticles = *req.MaxTotalArticles
	}
	if req.MaxPerDomain != nil {
		run.MaxPerDomain = *req.MaxPerDomain
	}
	if req.RankingEnabled != nil {
		run.RankingEnabled = *req.RankingEnabled
	}

	// Profile defaults fill only the lists the request left empty.
	if run.ProfileID != "" {
		profile, err := s.store.GetProfile(run.ProfileID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown profile")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(run.SourceURLs) == 0 {
			run.SourceURLs = profile.DefaultSourceURLs
		}
		if len(run.Keywords) == 0 {
			run.Keywords = profile.DefaultKeywords
		}
	}

	if err := s.store.CreateRun(run); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

type runDetail struct {
	Run    *core.Run     `json:"run"`
	Phases []*core.Phase `json:"phases"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	phases, err := s.store.ListPhases(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runDetail{Run: run, Phases: phases})
}

type runPhaseRequest struct {
	RunAll bool `json:"runAll"`
}

func (s *Server) handleRunPhase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := core.PhaseName(chi.URLParam(r, "name"))
	if !core.ValidPhase(name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown phase %q", name))
		return
	}

	var req runPhaseRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var results []*pipeline.Result
	var err error
	if req.RunAll {
		results, err = s.pipeline.RunFrom(r.Context(), id, name)
	} else {
		var res *pipeline.Result
		res, err = s.pipeline.RunPhase(r.Context(), id, name)
		if res != nil {
			results = []*pipeline.Result{res}
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "run or phase not found")
		return
	case errors.Is(err, pipeline.ErrPhaseConflict):
		writeError(w, http.StatusConflict, "phase is already in progress")
		return
	case err != nil:
		// Phase failures still carry partial results worth returning.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"results": results,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(id); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	articles, err := s.store.ListArticles(id, store.ArticleFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if articles == nil {
		articles = []*core.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleGetNewsletter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	newsletters, err := s.store.ListNewsletters(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(newsletters) == 0 {
		writeError(w, http.StatusNotFound, "no newsletter for this run")
		return
	}
	writeJSON(w, http.StatusOK, newsletters[0])
}

func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := export.RunJSON(s.store, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%s.json", id))
	_, _ = w.Write(data)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if profiles == nil {
		profiles = []*core.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var profile core.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if profile.Name == "" {
		writeError(w, http.StatusBadRequest, "profile name is required")
		return
	}
	profile.ID = ""
	profile.CreatedAt = time.Time{}
	if err := s.store.CreateProfile(&profile); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}
