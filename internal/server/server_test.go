package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/registry"
	"github.com/harrison/foreman/internal/store"
	"github.com/harrison/foreman/internal/workflow"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.TaskStore) {
	t.Helper()
	ts := store.New()
	reg := registry.New()
	require.NoError(t, reg.Register(models.Agent{
		ID:           "pr_agent",
		Capabilities: []models.TaskType{models.TaskCreatePR},
	}))

	wf := workflow.NewService(ts, nil)
	n := 0
	wf.SetIDFunc(func() string {
		n++
		return "workflow_" + string(rune('a'+n-1))
	})

	srv := httptest.NewServer(New(wf, reg, ts).Handler())
	t.Cleanup(srv.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/workflows", CreateWorkflowRequest{
		WorkflowType: "pr_with_report",
		Parameters:   map[string]any{"title": "Add retries"},
		Priority:     1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[CreateWorkflowResponse](t, resp)
	assert.Equal(t, "workflow_a", created.WorkflowID)
}

func TestCreateWorkflowUnknownType(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/workflows", CreateWorkflowRequest{
		WorkflowType: "teleport",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[ErrorResponse](t, resp)
	assert.Contains(t, body.Error, "unknown workflow type")
}

func TestCreateWorkflowMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/workflows", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWorkflowStatus(t *testing.T) {
	srv, ts := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/workflows", CreateWorkflowRequest{
		WorkflowType: "pr_with_report",
		Parameters:   map[string]any{"title": "t"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[CreateWorkflowResponse](t, resp)

	_, err := ts.Claim("workflow_a_create_pr", "pr_agent")
	require.NoError(t, err)
	_, err = ts.Complete("workflow_a_create_pr", map[string]any{"pr_number": 7})
	require.NoError(t, err)

	resp2, err := http.Get(srv.URL + "/api/workflows/" + created.WorkflowID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	report := decode[workflow.StatusReport](t, resp2)
	assert.Equal(t, models.WorkflowRunning, report.Status)
	assert.Equal(t, "1/2 tasks completed", report.Progress)
	assert.Len(t, report.Tasks, 2)
}

func TestWorkflowStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/workflows/workflow_missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgents(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/agents")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	agents := decode[AgentsResponse](t, resp)
	require.Len(t, agents.Agents, 1)
	assert.Equal(t, "pr_agent", agents.Agents[0].ID)
	assert.Equal(t, 1, agents.Counts.Available)
}

func TestQueue(t *testing.T) {
	srv, ts := newTestServer(t)
	require.NoError(t, ts.Add(models.Task{ID: "t1", Type: models.TaskCreatePR, Priority: 2}))

	resp, err := http.Get(srv.URL + "/api/queue")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	counts := decode[store.Counts](t, resp)
	assert.Equal(t, 1, counts.Queued)
	assert.Equal(t, 1, counts.Pending)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
