// Package api serves stored calibration results over HTTP and streams live
// suite progress over a websocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"epicalib/adapters/db"
	"epicalib/domain/core"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
	apperrors "epicalib/internal/errors"
	"epicalib/internal/report"
	"epicalib/ports"
)

const defaultListLimit = 100

// TrialLister is implemented by stores that keep per-trial rows
type TrialLister interface {
	ListTrials(ctx context.Context, runID core.RunID) ([]db.TrialRow, error)
}

// Server is the read-only results API
type Server struct {
	router *chi.Mux
	store  ports.ResultStore
	hub    *ProgressHub
}

// NewServer creates the API. hub may be nil when no suite runs in process.
func NewServer(store ports.ResultStore, hub *ProgressHub) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  store,
		hub:    hub,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/api/runs", s.handleListRuns)
		r.Get("/api/runs/{id}", s.handleGetRun)
		r.Get("/api/runs/{id}/trials", s.handleListTrials)
		r.Get("/api/runs/{id}/report", s.handleRunReport)
		r.Get("/api/suites/{id}/report", s.handleSuiteReport)
	})

	if s.hub != nil {
		s.router.Get("/ws/progress", s.hub.HandleWebSocket)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "progress_clients": clients})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filters, err := parseRunFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}
	runs, err := s.store.ListRuns(r.Context(), filters)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []ports.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.outcome(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleListTrials(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.store.(TrialLister)
	if !ok {
		writeError(w, apperrors.NotFound("trial listing"))
		return
	}
	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	trials, err := lister.ListTrials(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	if trials == nil {
		trials = []db.TrialRow{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": runID, "trials": trials})
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.outcome(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeReport(w, r, outcome.Scenario.Name, []*scenario.Outcome{outcome})
}

func (s *Server) handleSuiteReport(w http.ResponseWriter, r *http.Request) {
	suiteID, err := core.ParseSuiteID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	runs, err := s.store.ListRuns(r.Context(), ports.RunFilters{SuiteID: &suiteID})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(runs) == 0 {
		writeError(w, apperrors.NotFound(fmt.Sprintf("suite %s", suiteID)))
		return
	}

	outcomes := make([]*scenario.Outcome, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		o, err := s.store.GetOutcome(r.Context(), runs[i].RunID)
		if err != nil {
			writeError(w, err)
			return
		}
		outcomes = append(outcomes, o)
	}
	writeReport(w, r, fmt.Sprintf("Calibration suite %s", suiteID), outcomes)
}

func (s *Server) outcome(r *http.Request) (*scenario.Outcome, error) {
	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return s.store.GetOutcome(r.Context(), runID)
}

func parseRunFilters(r *http.Request) (ports.RunFilters, error) {
	q := r.URL.Query()
	filters := ports.RunFilters{
		Scenario: q.Get("scenario"),
		Limit:    defaultListLimit,
	}
	if v := q.Get("suite_id"); v != "" {
		id := core.SuiteID(v)
		filters.SuiteID = &id
	}
	if v := q.Get("status"); v != "" {
		status := verdict.Status(v)
		if !status.Valid() {
			return filters, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", v))
		}
		filters.Status = &status
	}
	for name, dst := range map[string]*int{"limit": &filters.Limit, "offset": &filters.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filters, apperrors.InvalidInput(fmt.Sprintf("%s must be a non-negative integer", name))
		}
		*dst = n
	}
	return filters, nil
}

func writeReport(w http.ResponseWriter, r *http.Request, title string, outcomes []*scenario.Outcome) {
	md := report.Markdown(title, outcomes)
	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(md)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report.ToHTML(title, md))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeInvalidInput:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": apperrors.GetCode(err)})
}
