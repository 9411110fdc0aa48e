package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/seo-batch/internal/core"
	"github.com/vrsandeep/seo-batch/internal/jobs"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/testutil"
)

func doRequest(t *testing.T, h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postJSON(t *testing.T, h http.Handler, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return doRequest(t, h, http.MethodPost, path, "application/json", body)
}

func waitForBatch(t *testing.T, app *core.App) jobs.JobStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, app.JobManager().Wait(ctx))
	return app.JobManager().GetStatus()
}

type startResponse struct {
	RunID string `json:"run_id"`
	Total int    `json:"total"`
}

func startBatch(t *testing.T, h http.Handler, body map[string]string) startResponse {
	t.Helper()
	rr := postJSON(t, h, "/api/batch", body)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var resp startResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestBatchLifecycle(t *testing.T) {
	fb := newFakeBackend(t)
	server, app := testutil.SetupTestServer(t, fb.URL())
	router := server.Router()

	started := startBatch(t, router, map[string]string{
		"mode":     "simple",
		"urls":     "https://shop.example/blue-widgets\nhttps://shop.example/fail-page\n\nhttps://shop.example/red",
		"keywords": "сині віджети\n\n\nred shoes",
		"brand":    "Acme",
	})
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, 3, started.Total)

	status := waitForBatch(t, app)
	assert.Equal(t, jobs.StateSuccess, status.Status)
	assert.Equal(t, started.RunID, status.RunID)
	assert.Equal(t, 3, status.Current)

	reqs := fb.requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "uk", reqs[0].Language)
	assert.Equal(t, "сині віджети", reqs[0].Topic)
	assert.Contains(t, reqs[0].UserQuery, "Acme")
	assert.NotEmpty(t, reqs[0].SessionID)
	assert.Equal(t, "fail page", reqs[1].Topic)
	assert.Equal(t, "red shoes", reqs[2].Topic)

	t.Run("lists the stored run", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/api/runs", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var runs []models.RunSummary
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, started.RunID, runs[0].ID)
		assert.Equal(t, "auto", runs[0].Mode)
		assert.Equal(t, 2, runs[0].Totals.Succeeded)
		assert.Equal(t, 1, runs[0].Totals.Failed)
	})

	t.Run("returns the run with its report", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/api/runs/"+started.RunID, "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Run    models.BatchRun `json:"run"`
			Report struct {
				Totals models.Totals `json:"totals"`
				Cards  []struct {
					URL   string `json:"url"`
					Error string `json:"error"`
				} `json:"cards"`
			} `json:"report"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Len(t, body.Run.Outcomes, 3)
		assert.False(t, body.Run.Outcomes[1].Succeeded)
		assert.Contains(t, body.Run.Outcomes[1].Error, "generation failed")
		assert.InDelta(t, 66.67, body.Report.Totals.SuccessRate, 0.01)
		require.Len(t, body.Report.Cards, 3)
		assert.Equal(t, "https://shop.example/fail-page", body.Report.Cards[1].URL)
	})

	t.Run("exports results as csv", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/api/runs/"+started.RunID+"/export.csv", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
		body := rr.Body.String()
		assert.True(t, strings.HasPrefix(body, "\ufeff\"URL\",\"Status\""))
		assert.Contains(t, body, `"https://shop.example/fail-page","Failed"`)
	})

	t.Run("exports link details and domain lists", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/api/runs/"+started.RunID+"/links.csv", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Риск-скор")
		assert.Contains(t, rr.Body.String(), "extra.example")

		rr = doRequest(t, router, http.MethodGet, "/api/runs/"+started.RunID+"/domains/toxic", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		toxic := rr.Body.String()
		assert.Contains(t, toxic, "domain:spam.example\n")
		assert.Contains(t, toxic, "domain:extra.example\n")
		assert.NotContains(t, toxic, "maybe.example")

		rr = doRequest(t, router, http.MethodGet, "/api/runs/"+started.RunID+"/domains/suspicious", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "domain:maybe.example\n")

		rr = doRequest(t, router, http.MethodGet, "/api/runs/"+started.RunID+"/domains/clean", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("deletes the run", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodDelete, "/api/runs/"+started.RunID, "", nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		rr = doRequest(t, router, http.MethodGet, "/api/runs/"+started.RunID, "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		rr = doRequest(t, router, http.MethodDelete, "/api/runs/"+started.RunID, "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestStartBatch_Validation(t *testing.T) {
	fb := newFakeBackend(t)
	server, app := testutil.SetupTestServer(t, fb.URL())
	router := server.Router()

	testCases := []struct {
		name string
		body map[string]string
	}{
		{"empty url list", map[string]string{"mode": "simple", "urls": "\n  \n"}},
		{"csv without usable rows", map[string]string{"mode": "csv", "csv": "url,topic\nhttps://a.example"}},
		{"manual without rows", map[string]string{"mode": "manual"}},
		{"unknown mode", map[string]string{"mode": "spreadsheet", "urls": "https://a.example"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(t, router, "/api/batch", tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}

	rr := doRequest(t, router, http.MethodPost, "/api/batch", "application/json", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Empty(t, fb.requests(), "nothing is submitted when validation fails")
	assert.Equal(t, jobs.StateIdle, app.JobManager().GetStatus().Status)
}

func TestStartBatch_ConflictWhileRunning(t *testing.T) {
	fb := newFakeBackend(t)
	fb.release = make(chan struct{})
	server, app := testutil.SetupTestServer(t, fb.URL())
	router := server.Router()

	startBatch(t, router, map[string]string{"urls": "https://a.example/one"})

	rr := postJSON(t, router, "/api/batch", map[string]string{"urls": "https://a.example/two"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/api/batch/status", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var status jobs.JobStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, jobs.StateRunning, status.Status)

	close(fb.release)
	assert.Equal(t, jobs.StateSuccess, waitForBatch(t, app).Status)

	rr = doRequest(t, router, http.MethodPost, "/api/batch/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "nothing left to cancel")
}

func TestStartBatch_Cancel(t *testing.T) {
	fb := newFakeBackend(t)
	fb.release = make(chan struct{})
	defer close(fb.release)
	server, app := testutil.SetupTestServer(t, fb.URL())
	router := server.Router()

	started := startBatch(t, router, map[string]string{"urls": "https://a.example/one\nhttps://a.example/two"})
	require.Eventually(t, func() bool { return len(fb.requests()) == 1 }, 5*time.Second, 10*time.Millisecond)

	rr := doRequest(t, router, http.MethodPost, "/api/batch/cancel", "", nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, jobs.StateCancelled, waitForBatch(t, app).Status)

	run, err := server.Store().GetRun(started.RunID)
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 2)
	assert.False(t, run.Outcomes[0].Succeeded)
	assert.Equal(t, "cancelled", run.Outcomes[1].Error)
	assert.Len(t, fb.requests(), 1)
}

func TestStartBatch_MultipartCSV(t *testing.T) {
	fb := newFakeBackend(t)
	server, app := testutil.SetupTestServer(t, fb.URL())
	router := server.Router()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("generation_mode", "meta"))
	part, err := mw.CreateFormFile("csv_file", "pages.csv")
	require.NoError(t, err)
	part.Write([]byte("\ufeffurl,topic,brand\nhttps://a.example/1,Купить обувь,ShoeCo\nbroken-line\nhttps://a.example/2,Boots\n"))
	require.NoError(t, mw.Close())

	rr := doRequest(t, router, http.MethodPost, "/api/batch", mw.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var resp startResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	waitForBatch(t, app)
	reqs := fb.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "ru", reqs[0].Language)
	assert.Contains(t, reqs[0].UserQuery, "ShoeCo")
	assert.Equal(t, "Boots", reqs[1].Topic)

	run, err := server.Store().GetRun(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "meta", run.Mode)
}

func TestStartBatch_BroadcastsProgress(t *testing.T) {
	fb := newFakeBackend(t)
	server, app := testutil.SetupTestServer(t, fb.URL())
	ui := httptest.NewServer(server.Router())
	defer ui.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ui.URL, "http")+"/ws/progress", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.WsHub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	started := startBatch(t, ui.Config.Handler, map[string]string{"urls": "https://a.example/one\nhttps://a.example/two"})

	kinds := map[string]int{}
	var done models.ProgressUpdate
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for done.Kind != "done" {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var u models.ProgressUpdate
		require.NoError(t, json.Unmarshal(data, &u))
		assert.Equal(t, started.RunID, u.RunID)
		kinds[u.Kind]++
		if u.Kind == "done" {
			done = u
		}
	}

	assert.Equal(t, 2, kinds["item"])
	assert.GreaterOrEqual(t, kinds["log"], 3)
	assert.True(t, done.Done)
	require.NotNil(t, done.Totals)
	assert.Equal(t, 2, done.Totals.Succeeded)
}
