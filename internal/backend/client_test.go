package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/seo-batch/internal/batch"
	"github.com/vrsandeep/seo-batch/internal/models"
)

const processResponse = `{
	"status": "completed",
	"task_type": "page_generation",
	"meta_tags": {"title": "Blue Widgets", "description": "Best widgets", "h1": "Widgets"},
	"content": {"text": "<p>Hello</p>", "word_count": 1200, "readability_score": 71.5},
	"validation": {"is_valid": true, "issues": [], "recommendations": [], "overall_score": 87.5},
	"agent_results": {"meta_generator": {"success": true, "execution_time": 2.1, "errors": []}}
}`

func TestClient_Process(t *testing.T) {
	var got ProcessRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/process", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(processResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	item := models.WorkItem{
		URL: "https://x.com/blue-widgets", Topic: "blue widgets", Keyword: "blue widgets",
		Language: models.LanguageEnglish, QueryText: "do it",
	}
	payload, err := c.Process(context.Background(), ProcessRequestFromItem(item, "sess-1"))
	require.NoError(t, err)

	assert.Equal(t, "do it", got.UserQuery)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, []string{"blue widgets"}, got.Keywords)
	assert.Empty(t, got.TargetAudience)

	assert.True(t, payload.Completed())
	assert.Equal(t, "Blue Widgets", payload.MetaTags.Title)
	assert.Equal(t, 1200, payload.Content.WordCount)
	require.NotNil(t, payload.Validation.OverallScore)
	assert.InDelta(t, 87.5, *payload.Validation.OverallScore, 1e-9)
	assert.True(t, payload.AgentResults["meta_generator"].Success)
}

func TestClient_ProcessErrors(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"fastapi string detail", http.StatusBadRequest, `{"detail":"user_query is required"}`, "user_query is required"},
		{"fastapi validation detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body"],"msg":"bad"}]}`, `[{"loc":["body"],"msg":"bad"}]`},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down"},
		{"message field", http.StatusInternalServerError, `{"status":"error","message":"boom"}`, "boom"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, nil).Process(context.Background(), ProcessRequest{UserQuery: "q"})
			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr), "got %v", err)
			assert.Equal(t, tc.status, httpErr.StatusCode)
			assert.Equal(t, tc.wantDetail, httpErr.Detail)
			assert.Contains(t, err.Error(), tc.wantDetail)
		})
	}
}

func TestClient_ProcessDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Process(context.Background(), ProcessRequest{UserQuery: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding /process response")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Process(context.Background(), ProcessRequest{UserQuery: "q"})
	require.Error(t, err)
	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestClient_ProcessWithFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "analyse links", r.FormValue("user_query"))
		assert.Equal(t, "60", r.FormValue("min_risk_score"))
		assert.Equal(t, "sess", r.FormValue("session_id"))
		assert.Empty(t, r.FormValue("url"))

		f, hdr, err := r.FormFile("csv_file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "links.csv", hdr.Filename)
		assert.Equal(t, "domain,dr\nspam.com,1\n", string(data))

		w.Write([]byte(`{"status":"completed","link_analysis":{"analyzed_links":{"total_links":1,"toxic_links":1,
			"link_details":[{"domain":"spam.com","risk_score":80,"recommendation":"disavow"}]}}}`))
	}))
	defer srv.Close()

	req := ProcessRequest{UserQuery: "analyse links", MinRiskScore: 60, SessionID: "sess"}
	payload, err := NewClient(srv.URL, nil).ProcessWithFile(context.Background(), req, "links.csv", strings.NewReader("domain,dr\nspam.com,1\n"))
	require.NoError(t, err)
	require.NotNil(t, payload.LinkAnalysis)
	require.Len(t, payload.LinkAnalysis.AnalyzedLinks.LinkDetails, 1)
	assert.Equal(t, "spam.com", payload.LinkAnalysis.AnalyzedLinks.LinkDetails[0].Domain)
	assert.Nil(t, payload.LinkAnalysis.AnalyzedLinks.LinkDetails[0].DR)
}

func TestClient_Generate(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/generate", r.URL.Path)
			var req GenerateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Shoes", req.Topic)
			w.Write([]byte(`{"success":true,"meta_tags":{"title":"T","description":"D","h1":"H"}}`))
		}))
		defer srv.Close()

		resp, err := NewClient(srv.URL, nil).Generate(context.Background(), GenerateRequest{URL: "https://a.com", Topic: "Shoes"})
		require.NoError(t, err)
		require.NotNil(t, resp.MetaTags)
		assert.Equal(t, "T", resp.MetaTags.Title)
	})

	t.Run("failure envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"error":"quota exceeded"}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, nil).Generate(context.Background(), GenerateRequest{})
		assert.ErrorIs(t, err, ErrUnsuccessful)
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}

func TestClient_GenerateBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-batch", r.URL.Path)
		var req GenerateBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Items, 2)
		w.Write([]byte(`{"success":true,"results":[{"success":true,"url":"a"},{"success":false,"url":"b","error":"x"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, nil).GenerateBatch(context.Background(), GenerateBatchRequest{
		Items: []GenerateRequest{{URL: "a"}, {URL: "b"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.False(t, resp.Results[1].Success)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"status":"healthy","version":"2.0.0","agents":{"team_lead":"active"}}`))
	}))
	defer srv.Close()

	h, err := NewClient(srv.URL, nil).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "active", h.Agents["team_lead"])
}

func TestSubmitters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/process":
			w.Write([]byte(`{"status":"completed","meta_tags":{"title":"P"}}`))
		case "/generate":
			var req GenerateRequest
			json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, "BrandX", req.Brand)
			assert.Equal(t, "retail", req.BusinessType)
			assert.Equal(t, "sess", req.SessionID)
			w.Write([]byte(`{"success":true,"meta_tags":{"title":"G"}}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	item := models.WorkItem{URL: "https://a.com", Topic: "Shoes", Brand: "BrandX", BusinessType: "retail"}

	p, err := ProcessSubmitter{Client: c}.Submit(context.Background(), item, "sess")
	require.NoError(t, err)
	assert.Equal(t, "P", p.MetaTags.Title)

	g, err := GenerateSubmitter{Client: c}.Submit(context.Background(), item, "sess")
	require.NoError(t, err)
	assert.Equal(t, "G", g.MetaTags.Title)
	assert.Equal(t, TaskMetaGeneration, g.TaskType)
	assert.True(t, g.Completed())
}

func TestGenerateSubmitter_UsesRowBrand(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true,"meta_tags":{"title":"G"}}`))
	}))
	defer srv.Close()

	items := batch.ParseCSV("https://a.com,Shoes,BrandX,retail\nhttps://b.com,Boots", batch.Form{
		Mode:         batch.ModeMetaOnly,
		Brand:        "FormBrand",
		BusinessType: "FormBiz",
	})
	require.Len(t, items, 2)
	sub := GenerateSubmitter{Client: NewClient(srv.URL, nil)}

	_, err := sub.Submit(context.Background(), items[0], "s1")
	require.NoError(t, err)
	assert.Equal(t, "BrandX", got.Brand)
	assert.Equal(t, "retail", got.BusinessType)

	_, err = sub.Submit(context.Background(), items[1], "s2")
	require.NoError(t, err)
	assert.Equal(t, "FormBrand", got.Brand)
	assert.Equal(t, "FormBiz", got.BusinessType)
}
