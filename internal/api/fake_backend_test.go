package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/vrsandeep/seo-batch/internal/backend"
	"github.com/vrsandeep/seo-batch/internal/models"
)

var backendUpgrader = websocket.Upgrader{}

// fakeBackend answers the backend API. URLs containing "fail" get a 500 with
// a FastAPI detail; the /ws/{id} endpoint pushes one step_update per session.
type fakeBackend struct {
	srv *httptest.Server

	mu        sync.Mutex
	processed []backend.ProcessRequest
	uploads   []string
	release   chan struct{} // when set, /process waits for it to close
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/process", fb.handleProcess)
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req backend.GenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(backend.GenerateResponse{
			Success:  true,
			URL:      req.URL,
			MetaTags: &models.MetaTags{Title: req.Topic + " | " + req.Language},
		})
	})
	mux.HandleFunc("/generate-batch", func(w http.ResponseWriter, r *http.Request) {
		var req backend.GenerateBatchRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := backend.GenerateBatchResponse{Success: true}
		for _, it := range req.Items {
			resp.Results = append(resp.Results, backend.GenerateResponse{Success: true, URL: it.URL})
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","system_type":"multi_agent","version":"2.0"}`))
	})
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := backendUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"step_update","step_info":"analysing"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) URL() string { return fb.srv.URL }

func (fb *fakeBackend) requests() []backend.ProcessRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]backend.ProcessRequest(nil), fb.processed...)
}

func (fb *fakeBackend) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req backend.ProcessRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.ParseMultipartForm(1 << 20)
		req.UserQuery = r.FormValue("user_query")
		req.URL = r.FormValue("url")
		req.MinRiskScore, _ = strconv.Atoi(r.FormValue("min_risk_score"))
		if f, _, err := r.FormFile("csv_file"); err == nil {
			data, _ := io.ReadAll(f)
			f.Close()
			fb.mu.Lock()
			fb.uploads = append(fb.uploads, string(data))
			fb.mu.Unlock()
		}
	} else {
		json.NewDecoder(r.Body).Decode(&req)
	}

	fb.mu.Lock()
	fb.processed = append(fb.processed, req)
	release := fb.release
	fb.mu.Unlock()
	if release != nil {
		<-release
	}

	if strings.Contains(req.URL, "fail") {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"generation failed"}`))
		return
	}
	score := 82.0
	payload := models.ResultPayload{
		Status:     models.StatusCompleted,
		TaskType:   "page_generation",
		MetaTags:   models.MetaTags{Title: req.Topic, Description: "desc of " + req.Topic},
		Content:    models.Content{Text: "<p>Body</p>", WordCount: 900},
		Validation: models.Validation{IsValid: true, OverallScore: &score},
		LinkAnalysis: &models.LinkAnalysis{
			AnalyzedLinks: models.AnalyzedLinks{
				TotalLinks: 2,
				LinkDetails: []models.LinkDetail{
					{Domain: "Spam.example", RiskScore: 80, Recommendation: models.RecommendDisavow},
					{Domain: "maybe.example", RiskScore: 35},
				},
			},
			DisavowFile: models.DisavowFile{Content: "domain:spam.example\ndomain:extra.example\n"},
		},
	}
	json.NewEncoder(w).Encode(payload)
}
