// Package client is a minimal HTTP client for the foreman API, used by the
// CLI commands that talk to a running orchestrator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harrison/foreman/internal/server"
	"github.com/harrison/foreman/internal/store"
	"github.com/harrison/foreman/internal/workflow"
)

// Client talks to a foreman API server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

// CreateWorkflow submits a new workflow.
func (c *Client) CreateWorkflow(ctx context.Context, workflowType string, params map[string]any, priority int) (string, error) {
	req := server.CreateWorkflowRequest{
		WorkflowType: workflowType,
		Parameters:   params,
		Priority:     priority,
	}
	var resp server.CreateWorkflowResponse
	if err := c.do(ctx, http.MethodPost, "/api/workflows", req, &resp); err != nil {
		return "", err
	}
	return resp.WorkflowID, nil
}

// WorkflowStatus fetches the live status of a workflow.
func (c *Client) WorkflowStatus(ctx context.Context, workflowID string) (workflow.StatusReport, error) {
	var resp workflow.StatusReport
	err := c.do(ctx, http.MethodGet, "/api/workflows/"+url.PathEscape(workflowID), nil, &resp)
	return resp, err
}

// Agents fetches the agent fleet and its availability counts.
func (c *Client) Agents(ctx context.Context) (server.AgentsResponse, error) {
	var resp server.AgentsResponse
	err := c.do(ctx, http.MethodGet, "/api/agents", nil, &resp)
	return resp, err
}

// Queue fetches the task queue summary.
func (c *Client) Queue(ctx context.Context) (store.Counts, error) {
	var resp store.Counts
	err := c.do(ctx, http.MethodGet, "/api/queue", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope server.ErrorResponse
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
