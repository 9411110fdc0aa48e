package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vrsandeep/seo-batch/internal/backend"
	"github.com/vrsandeep/seo-batch/internal/batch"
	"github.com/vrsandeep/seo-batch/internal/langdetect"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/orchestrator"
	"github.com/vrsandeep/seo-batch/internal/progress"
	"github.com/vrsandeep/seo-batch/internal/render"
	"go.uber.org/zap"
)

// healthTimeout bounds the backend probe made by /api/health.
const healthTimeout = 3 * time.Second

// processRequest is the body of POST /api/process: the backend request plus
// the form fields used to compose user_query when it is left empty.
type processRequest struct {
	backend.ProcessRequest
	GenerationMode string `json:"generation_mode"`
	Brand          string `json:"brand"`
	BusinessType   string `json:"business_type"`
}

type processResponse struct {
	SessionID string                `json:"session_id"`
	Result    *models.ResultPayload `json:"result"`
	Card      render.Card           `json:"card"`
}

// handleProcess submits one request synchronously. Progress events of its
// session are relayed to the hub while the call is in flight.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, file, filename, err := decodeProcessRequest(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" && strings.TrimSpace(req.UserQuery) == "" && file == nil {
		RespondWithError(w, http.StatusBadRequest, "url or user_query is required")
		return
	}
	s.completeProcessRequest(&req)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = progress.NewSessionID()
		req.SessionID = sessionID
	}
	reporter := &hubReporter{
		runID: sessionID,
		hub:   s.app.WsHub(),
		log:   orchestrator.LogReporter{Logger: s.logger.With(zap.String("session_id", sessionID))},
	}
	ch := s.app.Dialer().Open(r.Context(), sessionID, progress.ConsumerFunc(reporter.Event))
	defer ch.Close()

	start := time.Now()
	var payload *models.ResultPayload
	if file != nil {
		payload, err = s.app.Backend().ProcessWithFile(r.Context(), req.ProcessRequest, filename, bytes.NewReader(file))
	} else {
		payload, err = s.app.Backend().Process(r.Context(), req.ProcessRequest)
	}
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	render.Reconcile(payload.LinkAnalysis)

	outcome := models.ItemOutcome{URL: req.URL, Succeeded: true, Payload: payload, Duration: time.Since(start)}
	RespondWithJSON(w, http.StatusOK, processResponse{
		SessionID: sessionID,
		Result:    payload,
		Card:      render.RenderOutcome(outcome),
	})
}

// completeProcessRequest fills topic, language and user_query the way a
// simple-list batch item would get them.
func (s *Server) completeProcessRequest(req *processRequest) {
	if req.URL == "" || req.UserQuery != "" {
		if req.Language == "" {
			req.Language = string(langdetect.Detect(req.Topic + " " + req.UserQuery))
		}
		return
	}
	cfg := s.app.Config()
	form := batch.Form{
		Mode:           batch.ParseMode(firstNonEmpty(req.GenerationMode, cfg.Batch.GenerationMode)),
		Brand:          firstNonEmpty(req.Brand, cfg.Form.Brand),
		BusinessType:   firstNonEmpty(req.BusinessType, cfg.Form.BusinessType),
		TargetAudience: firstNonEmpty(req.TargetAudience, cfg.Form.TargetAudience),
	}
	items := batch.ParseSimpleList(req.URL, req.Topic, form)
	if len(items) == 0 {
		return
	}
	item := items[0]
	req.UserQuery = item.QueryText
	if req.Topic == "" {
		req.Topic = item.Topic
	}
	if req.Keyword == "" {
		req.Keyword = item.Keyword
	}
	if len(req.Keywords) == 0 && req.Keyword != "" {
		req.Keywords = []string{req.Keyword}
	}
	if req.Language == "" {
		req.Language = string(item.Language)
	}
	if req.TargetAudience == "" {
		req.TargetAudience = item.TargetAudience
	}
}

func decodeProcessRequest(r *http.Request) (processRequest, []byte, string, error) {
	var req processRequest
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeJSON(r, &req); err != nil {
			return req, nil, "", err
		}
		return req, nil, "", nil
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return req, nil, "", errors.New("invalid multipart form")
	}
	req.UserQuery = r.FormValue("user_query")
	req.URL = r.FormValue("url")
	req.Topic = r.FormValue("topic")
	req.Keyword = r.FormValue("keyword")
	req.Domain = r.FormValue("domain")
	req.Language = r.FormValue("language")
	req.TargetAudience = r.FormValue("target_audience")
	req.SessionID = r.FormValue("session_id")
	req.GenerationMode = r.FormValue("generation_mode")
	req.Brand = r.FormValue("brand")
	req.BusinessType = r.FormValue("business_type")
	if kw := r.FormValue("keywords"); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				req.Keywords = append(req.Keywords, k)
			}
		}
	}
	if v := r.FormValue("target_word_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, nil, "", errors.New("target_word_count must be an integer")
		}
		req.TargetWordCount = n
	}
	req.MinRiskScore = int(render.DefaultMinRiskScore)
	if v := r.FormValue("min_risk_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return req, nil, "", errors.New("min_risk_score must be an integer between 0 and 100")
		}
		req.MinRiskScore = n
	}

	file, header, err := r.FormFile("csv_file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, "", nil
	}
	if err != nil {
		return req, nil, "", errors.New("invalid csv_file upload")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, "", errors.New("could not read csv_file")
	}
	return req, data, header.Filename, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req backend.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" || req.Topic == "" {
		RespondWithError(w, http.StatusBadRequest, "url and topic are required")
		return
	}
	if req.Language == "" {
		req.Language = string(langdetect.Detect(req.Topic))
	}
	resp, err := s.app.Backend().Generate(r.Context(), req)
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req backend.GenerateBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Items) == 0 {
		RespondWithError(w, http.StatusBadRequest, batch.ErrNoItems.Error())
		return
	}
	for i := range req.Items {
		if req.Items[i].Language == "" {
			req.Items[i].Language = string(langdetect.Detect(req.Items[i].Topic))
		}
	}
	resp, err := s.app.Backend().GenerateBatch(r.Context(), req)
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDetectLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"language": string(langdetect.Detect(req.Text))})
}

type healthResponse struct {
	Status       string          `json:"status"`
	Version      string          `json:"version"`
	Backend      *backend.Health `json:"backend,omitempty"`
	BackendError string          `json:"backend_error,omitempty"`
}

// handleHealth reports the local database and, without failing on it, the backend.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}

	resp := healthResponse{Status: "ok", Version: s.app.Version}
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	h, err := s.app.Backend().Health(ctx)
	if err != nil {
		resp.Status = "degraded"
		resp.BackendError = err.Error()
	} else {
		resp.Backend = h
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version})
}

// respondBackendError maps a failed backend call onto a 502, keeping the
// backend's status code and detail when it answered at all.
func (s *Server) respondBackendError(w http.ResponseWriter, err error) {
	s.logger.Warn("backend call failed", zap.Error(err))
	var he *backend.HTTPError
	if errors.As(err, &he) {
		RespondWithJSON(w, http.StatusBadGateway, errorResponse{
			Error:      he.Error(),
			StatusCode: he.StatusCode,
			Detail:     he.Detail,
		})
		return
	}
	RespondWithError(w, http.StatusBadGateway, err.Error())
}
