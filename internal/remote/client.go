package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KaramelBytes/cleanloom-cli/internal/log"
	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

// DefaultBaseURL is where a locally started service listens.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// Client talks to the analysis/cleaning service. Requests are never retried:
// a failed upload or clean is surfaced to the caller as is.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient returns a client for baseURL with the given per-request timeout.
func NewClient(baseURL string, httpTimeout time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Upload sends the file as multipart field "file".
func (c *Client) Upload(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var wire struct {
		FileID   string          `json:"file_id"`
		Filename string          `json:"filename"`
		Preview  json.RawMessage `json:"preview"`
		Stats    Stats           `json:"stats"`
	}
	if err := c.doJSON(ctx, "upload", http.MethodPost, "/upload", &body, mw.FormDataContentType(), &wire); err != nil {
		return nil, err
	}
	preview, err := table.DecodePreview(wire.Preview, wire.Stats.Columns)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return &UploadResult{FileID: wire.FileID, Filename: wire.Filename, Preview: preview, Stats: wire.Stats}, nil
}

// Analyze asks the service for the issues in an uploaded file.
func (c *Client) Analyze(ctx context.Context, fileID string) (*AnalysisResult, error) {
	var out AnalysisResult
	if err := c.doJSON(ctx, "analyze", http.MethodPost, "/analyze/"+url.PathEscape(fileID), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clean applies the fixes for the selected issue ids.
func (c *Client) Clean(ctx context.Context, fileID string, selected []int) (*CleaningResult, error) {
	if selected == nil {
		selected = []int{}
	}
	payload, err := json.Marshal(map[string][]int{"selected_issues": selected})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var wire struct {
		FileID          string          `json:"file_id"`
		Changes         Changes         `json:"changes"`
		Stats           CleanStats      `json:"stats"`
		CleanedFilename string          `json:"cleaned_filename"`
		Preview         json.RawMessage `json:"preview"`
	}
	if err := c.doJSON(ctx, "clean", http.MethodPost, "/clean/"+url.PathEscape(fileID), bytes.NewReader(payload), "application/json", &wire); err != nil {
		return nil, err
	}
	preview, err := table.DecodePreview(wire.Preview, nil)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	return &CleaningResult{
		FileID:          wire.FileID,
		Changes:         wire.Changes,
		Stats:           wire.Stats,
		CleanedFilename: wire.CleanedFilename,
		Preview:         preview,
	}, nil
}

// Download fetches the cleaned data in format (sent lowercased).
func (c *Client) Download(ctx context.Context, fileID, format string) (*Export, error) {
	path := "/download/" + url.PathEscape(fileID) + "/" + url.PathEscape(strings.ToLower(format))
	resp, err := c.do(ctx, "download", http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "download", Err: err}
	}
	return &Export{
		Body:               body,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		ContentType:        resp.Header.Get("Content-Type"),
	}, nil
}

// History lists the files the service has processed, newest first.
func (c *Client) History(ctx context.Context) ([]HistoryRecord, error) {
	var out struct {
		Records []HistoryRecord `json:"records"`
	}
	if err := c.doJSON(ctx, "history", http.MethodGet, "/history", nil, "", &out); err != nil {
		return nil, err
	}
	if out.Records == nil {
		out.Records = []HistoryRecord{}
	}
	return out.Records, nil
}

// FileDetails returns the full service record for one file.
func (c *Client) FileDetails(ctx context.Context, fileID string) (*HistoryRecord, error) {
	var out HistoryRecord
	if err := c.doJSON(ctx, "file details", http.MethodGet, "/file/"+url.PathEscape(fileID), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, op, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// do sends one request and turns transport failures and non-2xx statuses
// into typed errors. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	lg := log.WithComponent("remote")
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		lg.Debug("request failed", "op", op, "method", method, "path", path, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	lg.Debug("request done", "op", op, "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		he := &HTTPError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(raw),
			RequestID:  extractRequestID(resp),
		}
		return nil, classifyHTTPError(he)
	}
	return resp, nil
}

// extractDetail pulls the "detail" field of an error body. Validation errors
// carry a list there; it is returned as compact JSON. Bodies without the field
// come back trimmed and shortened.
func extractDetail(raw []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if d, ok := obj["detail"]; ok {
			var s string
			if json.Unmarshal(d, &s) == nil {
				return s
			}
			var buf bytes.Buffer
			if json.Compact(&buf, d) == nil {
				return buf.String()
			}
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Correlation-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
