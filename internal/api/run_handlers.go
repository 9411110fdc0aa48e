package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/render"
	"github.com/vrsandeep/seo-batch/internal/store"
	"go.uber.org/zap"
)

type runResponse struct {
	Run    *models.BatchRun `json:"run"`
	Report render.Report    `json:"report"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "Could not list runs")
		return
	}
	RespondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, runResponse{Run: run, Report: render.RenderRun(run)})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteRun(chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrRunNotFound) {
		RespondWithError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete run", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "Could not delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportOutcomes(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	setAttachment(w, "text/csv; charset=utf-8", fmt.Sprintf("seo-results-%s.csv", run.ID))
	if err := render.WriteOutcomesCSV(w, run.Outcomes); err != nil {
		s.logger.Error("failed to write results export", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Server) handleExportLinks(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	setAttachment(w, "text/csv; charset=utf-8", fmt.Sprintf("link-analysis-%s.csv", run.ID))
	if err := render.WriteLinkDetailsCSV(w, render.CollectLinkDetails(run)); err != nil {
		s.logger.Error("failed to write link export", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Server) handleExportDomains(w http.ResponseWriter, r *http.Request) {
	risk, ok := render.ParseRisk(chi.URLParam(r, "kind"))
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Domain list must be toxic or suspicious")
		return
	}
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	setAttachment(w, "text/plain; charset=utf-8", fmt.Sprintf("%s-domains-%s.txt", risk, run.ID))
	if err := render.WriteDomainList(w, render.CollectLinkDetails(run), risk); err != nil {
		s.logger.Error("failed to write domain list", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// loadRun fetches the run named in the URL, writing the error response itself
// when it cannot.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*models.BatchRun, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(runID)
	if errors.Is(err, store.ErrRunNotFound) {
		RespondWithError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load run", zap.String("run_id", runID), zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "Could not load run")
		return nil, false
	}
	return run, true
}

func setAttachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
