package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vrsandeep/seo-batch/internal/batch"
	"github.com/vrsandeep/seo-batch/internal/jobs"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/orchestrator"
	"github.com/vrsandeep/seo-batch/internal/render"
	"go.uber.org/zap"
)

// Input modes accepted by POST /api/batch.
const (
	inputSimple = "simple"
	inputCSV    = "csv"
	inputManual = "manual"
)

// batchRequest is the body of POST /api/batch, as JSON or multipart form fields.
type batchRequest struct {
	Mode           string `json:"mode"`
	URLs           string `json:"urls"`
	Keywords       string `json:"keywords"`
	CSV            string `json:"csv"`
	Manual         string `json:"manual"`
	GenerationMode string `json:"generation_mode"`
	Brand          string `json:"brand"`
	BusinessType   string `json:"business_type"`
	TargetAudience string `json:"target_audience"`
}

type batchStartResponse struct {
	RunID string `json:"run_id"`
	Total int    `json:"total"`
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBatchRequest(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	form := s.batchForm(req)
	items, err := parseBatchItems(req, form)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := batch.Validate(items); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.NewString()
	jm := s.app.JobManager()
	reporter := &hubReporter{
		runID: runID,
		hub:   s.app.WsHub(),
		jobs:  jm,
		log:   orchestrator.LogReporter{Logger: s.logger.With(zap.String("run_id", runID))},
	}
	runner := s.app.NewRunner(form.Mode, reporter)
	runner.RunID = runID

	// Not tied to the request; stopped through the job manager on shutdown.
	err = jm.Start(context.Background(), runID, len(items), func(ctx context.Context) error {
		run, err := runner.Run(ctx, items)
		if run != nil {
			run.Mode = string(form.Mode)
			render.ReconcileRun(run)
			if serr := s.store.SaveRun(run); serr != nil {
				s.logger.Error("failed to save run", zap.String("run_id", run.ID), zap.Error(serr))
				if err == nil {
					err = serr
				}
			}
		}
		return err
	})
	if errors.Is(err, jobs.ErrJobRunning) {
		RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to start batch")
		return
	}

	RespondWithJSON(w, http.StatusAccepted, batchStartResponse{RunID: runID, Total: len(items)})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.JobManager().GetStatus())
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	if !s.app.JobManager().Cancel() {
		RespondWithError(w, http.StatusConflict, "No batch is running")
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// batchForm merges the request's form-level fields over the configured defaults.
func (s *Server) batchForm(req batchRequest) batch.Form {
	cfg := s.app.Config()
	return batch.Form{
		Mode:           batch.ParseMode(firstNonEmpty(req.GenerationMode, cfg.Batch.GenerationMode)),
		Brand:          firstNonEmpty(req.Brand, cfg.Form.Brand),
		BusinessType:   firstNonEmpty(req.BusinessType, cfg.Form.BusinessType),
		TargetAudience: firstNonEmpty(req.TargetAudience, cfg.Form.TargetAudience),
	}
}

func parseBatchItems(req batchRequest, form batch.Form) ([]models.WorkItem, error) {
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case inputSimple, "":
		return batch.ParseSimpleList(req.URLs, req.Keywords, form), nil
	case inputCSV:
		return batch.ParseCSV(req.CSV, form), nil
	case inputManual:
		return batch.ParseManual(req.Manual, form), nil
	}
	return nil, fmt.Errorf("unknown input mode %q", req.Mode)
}

// decodeBatchRequest reads a JSON body, or a multipart form whose optional
// csv_file replaces the csv field.
func decodeBatchRequest(r *http.Request) (batchRequest, error) {
	var req batchRequest
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeJSON(r, &req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return req, errors.New("invalid multipart form")
	}
	req = batchRequest{
		Mode:           r.FormValue("mode"),
		URLs:           r.FormValue("urls"),
		Keywords:       r.FormValue("keywords"),
		CSV:            r.FormValue("csv"),
		Manual:         r.FormValue("manual"),
		GenerationMode: r.FormValue("generation_mode"),
		Brand:          r.FormValue("brand"),
		BusinessType:   r.FormValue("business_type"),
		TargetAudience: r.FormValue("target_audience"),
	}
	file, _, err := r.FormFile("csv_file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, errors.New("invalid csv_file upload")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, errors.New("could not read csv_file")
	}
	req.CSV = strings.TrimPrefix(string(data), "\ufeff")
	if req.Mode == "" {
		req.Mode = inputCSV
	}
	return req, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
