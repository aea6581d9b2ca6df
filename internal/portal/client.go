package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autoinspect/internal/inspection"
)

const maxResponseBytes = 1 << 20

// Options configure a Client.
type Options struct {
	BaseURL     string
	Token       string // opaque bearer token, passed through as-is
	InspectorID string
	ReportPath  string // default "/api/inspector/inspection-report"
	TaskPath    string // default "/api/inspector/tasks"
	Timeout     time.Duration

	HTTPClient *http.Client
}

// Client talks to the back-office portal REST API. Requests are sent once;
// retrying is left to the caller.
type Client struct {
	baseURL     string
	token       string
	inspectorID string
	reportPath  string
	taskPath    string
	timeout     time.Duration

	httpClient *http.Client
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("portal base URL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing portal base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reportPath := cleanPath(opts.ReportPath, "/api/inspector/inspection-report")
	taskPath := cleanPath(opts.TaskPath, "/api/inspector/tasks")

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL:     baseURL,
		token:       strings.TrimSpace(opts.Token),
		inspectorID: strings.TrimSpace(opts.InspectorID),
		reportPath:  reportPath,
		taskPath:    taskPath,
		timeout:     timeout,
		httpClient:  hc,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// FetchReport reads the stored inspection report.
func (c *Client) FetchReport(ctx context.Context, inspectionID string) (*inspection.Record, error) {
	if strings.TrimSpace(inspectionID) == "" {
		return nil, errors.New("inspection id required")
	}
	var rec inspection.Record
	if err := c.doJSON(ctx, http.MethodGet, c.reportPath+"/"+url.PathEscape(inspectionID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SubmitReport posts an assembled multipart body.
func (c *Client) SubmitReport(ctx context.Context, inspectionID string, body *inspection.Body) error {
	if strings.TrimSpace(inspectionID) == "" {
		return errors.New("inspection id required")
	}
	return c.doMultipart(ctx, c.reportPath+"/"+url.PathEscape(inspectionID), body.Data, body.ContentType, nil)
}

// FetchTask reads a task detail.
func (c *Client) FetchTask(ctx context.Context, taskID string) (*inspection.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("task id required")
	}
	var task inspection.Task
	if err := c.doJSON(ctx, http.MethodGet, c.taskPath+"/"+url.PathEscape(taskID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, out any) error {
	return c.do(ctx, method, path, nil, "", out)
}

func (c *Client) doMultipart(ctx context.Context, path string, payload []byte, contentType string, out any) error {
	return c.do(ctx, http.MethodPost, path, payload, contentType, out)
}

func (c *Client) do(ctx context.Context, method string, path string, payload []byte, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.setHeaders(req, contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.inspectorID != "" {
		req.Header.Set("X-Inspector-ID", c.inspectorID)
	}
}

// unwrapData strips a {"data": {...}} envelope when the portal sends one.
func unwrapData(raw []byte) []byte {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if _, hasID := env["id"]; hasID {
		return raw
	}
	if data, ok := env["data"]; ok {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return trimmed
		}
	}
	return raw
}

func cleanPath(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = def
	}
	return "/" + strings.Trim(p, "/")
}

var _ inspection.Portal = (*Client)(nil)
