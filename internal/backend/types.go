package backend

import "github.com/vrsandeep/seo-batch/internal/models"

// ProcessRequest is the body of POST /process.
type ProcessRequest struct {
	UserQuery       string   `json:"user_query"`
	URL             string   `json:"url,omitempty"`
	Topic           string   `json:"topic,omitempty"`
	Keyword         string   `json:"keyword,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	Language        string   `json:"language,omitempty"`
	TargetWordCount int      `json:"target_word_count,omitempty"`
	TargetAudience  string   `json:"target_audience,omitempty"`
	MinRiskScore    int      `json:"min_risk_score,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
}

// ProcessRequestFromItem builds the /process body for one work item.
func ProcessRequestFromItem(item models.WorkItem, sessionID string) ProcessRequest {
	req := ProcessRequest{
		UserQuery:      item.QueryText,
		URL:            item.URL,
		Topic:          item.Topic,
		Keyword:        item.Keyword,
		Language:       string(item.Language),
		TargetAudience: item.TargetAudience,
		SessionID:      sessionID,
	}
	if item.Keyword != "" {
		req.Keywords = []string{item.Keyword}
	}
	return req
}

// GenerateRequest is the body of POST /generate and one entry of /generate-batch.
type GenerateRequest struct {
	URL            string `json:"url"`
	Topic          string `json:"topic"`
	Keyword        string `json:"keyword,omitempty"`
	Language       string `json:"language,omitempty"`
	Brand          string `json:"brand,omitempty"`
	BusinessType   string `json:"business_type,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
}

// GenerateResponse is the success envelope returned by /generate.
type GenerateResponse struct {
	Success  bool             `json:"success"`
	URL      string           `json:"url,omitempty"`
	MetaTags *models.MetaTags `json:"meta_tags,omitempty"`
	Content  *models.Content  `json:"content,omitempty"`
	Error    string           `json:"error,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// GenerateBatchRequest is the body of POST /generate-batch.
type GenerateBatchRequest struct {
	Items     []GenerateRequest `json:"items"`
	SessionID string            `json:"session_id,omitempty"`
}

// GenerateBatchResponse is the success envelope returned by /generate-batch.
type GenerateBatchResponse struct {
	Success bool               `json:"success"`
	Results []GenerateResponse `json:"results"`
	Error   string             `json:"error,omitempty"`
	Message string             `json:"message,omitempty"`
}

// Health is the backend's /health document. Only the fields the UI shows are decoded.
type Health struct {
	Status     string            `json:"status"`
	SystemType string            `json:"system_type,omitempty"`
	Version    string            `json:"version,omitempty"`
	Agents     map[string]string `json:"agents,omitempty"`
}
