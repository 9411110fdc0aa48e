// Package backend is the HTTP client for the SEO generation service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/vrsandeep/seo-batch/internal/models"
	"go.uber.org/zap"
)

// Client talks to one backend instance. Submissions carry no client-side
// timeout: a generation request ends when the backend answers or ctx is done.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// BaseURL returns the backend address the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

// Process submits one JSON request to /process.
func (c *Client) Process(ctx context.Context, req ProcessRequest) (*models.ResultPayload, error) {
	var payload models.ResultPayload
	if err := c.postJSON(ctx, "/process", req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ProcessWithFile submits req to /process as a multipart form with the file
// attached as csv_file. Used for link analysis uploads.
func (c *Client) ProcessWithFile(ctx context.Context, req ProcessRequest, filename string, file io.Reader) (*models.ResultPayload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"user_query":      req.UserQuery,
		"url":             req.URL,
		"topic":           req.Topic,
		"keyword":         req.Keyword,
		"keywords":        strings.Join(req.Keywords, ","),
		"domain":          req.Domain,
		"language":        req.Language,
		"target_audience": req.TargetAudience,
		"session_id":      req.SessionID,
	}
	if req.TargetWordCount > 0 {
		fields["target_word_count"] = strconv.Itoa(req.TargetWordCount)
	}
	if req.MinRiskScore > 0 {
		fields["min_risk_score"] = strconv.Itoa(req.MinRiskScore)
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", name, err)
		}
	}

	part, err := mw.CreateFormFile("csv_file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copying %s into request: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finishing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", &buf)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var payload models.ResultPayload
	if err := c.do(httpReq, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Generate calls /generate and unwraps its success envelope.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.postJSON(ctx, "/generate", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, envelopeError(resp.Error, resp.Message)
	}
	return &resp, nil
}

// GenerateBatch calls /generate-batch and unwraps its success envelope.
func (c *Client) GenerateBatch(ctx context.Context, req GenerateBatchRequest) (*GenerateBatchResponse, error) {
	var resp GenerateBatchResponse
	if err := c.postJSON(ctx, "/generate-batch", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, envelopeError(resp.Error, resp.Message)
	}
	return &resp, nil
}

// Health fetches /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	var h Health
	if err := c.do(httpReq, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := newHTTPError(resp.StatusCode, body)
		c.logger.Debug("backend error response",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", httpErr.Detail))
		return httpErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
