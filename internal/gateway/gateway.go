// Package gateway is the HTTP client for the tool bridge that actually
// performs tasks. The orchestrator never talks to GitHub itself; it posts a
// tool invocation to the bridge and interprets the JSON reply.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harrison/foreman/internal/models"
)

// DefaultTimeout bounds a single bridge call.
const DefaultTimeout = 60 * time.Second

// operations maps task types to bridge tool names where they differ. Types
// not listed here use their own name as the tool name.
var operations = map[models.TaskType]string{
	models.TaskCreatePR: "create_pull_request",
	models.TaskMergePR:  "merge_pull_request",
	models.TaskListPRs:  "list_pull_requests",
}

// OperationFor returns the bridge tool name for a task type. The mapping is
// total: unmapped types pass through unchanged.
func OperationFor(taskType models.TaskType) string {
	if op, ok := operations[taskType]; ok {
		return op
	}
	return string(taskType)
}

// Bridge executes tasks by POSTing tool calls to a bridge endpoint. It
// implements the scheduler's Executor interface.
type Bridge struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// New creates a Bridge for the given base URL. A non-positive timeout falls
// back to DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

// SetHTTPClient replaces the underlying HTTP client; tests use this to
// inject transports.
func (b *Bridge) SetHTTPClient(c *http.Client) {
	b.client = c
}

type callRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Execute posts one tool call and decodes the JSON reply. Transport errors,
// timeouts, and non-2xx statuses all surface as errors; the scheduler turns
// any error into a failed task.
func (b *Bridge) Execute(ctx context.Context, taskType models.TaskType, params map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(callRequest{Tool: OperationFor(taskType), Arguments: params})
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", taskType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/call", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", taskType, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: bridge call: %w", taskType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: bridge returned HTTP %d: %s", taskType, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", taskType, err)
	}
	return result, nil
}
