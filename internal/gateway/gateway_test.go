package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harrison/foreman/internal/models"
)

func TestOperationFor(t *testing.T) {
	tests := []struct {
		taskType models.TaskType
		want     string
	}{
		{models.TaskCreatePR, "create_pull_request"},
		{models.TaskMergePR, "merge_pull_request"},
		{models.TaskListPRs, "list_pull_requests"},
		{models.TaskCreateBranch, "create_branch"},
		{models.TaskPushBranch, "push_branch"},
		{models.TaskGenerateReport, "generate_report"},
	}
	for _, tt := range tests {
		if got := OperationFor(tt.taskType); got != tt.want {
			t.Errorf("OperationFor(%s) = %q, want %q", tt.taskType, got, tt.want)
		}
	}
}

func TestExecuteSuccess(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"pr_number": 42, "url": "https://example/pr/42"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	b := New(srv.URL, 0)
	result, err := b.Execute(context.Background(), models.TaskCreatePR, map[string]any{"title": "Add retries"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if gotPath != "/call" {
		t.Errorf("request path = %q, want /call", gotPath)
	}
	if gotBody["tool"] != "create_pull_request" {
		t.Errorf("tool = %v, want create_pull_request", gotBody["tool"])
	}
	args, ok := gotBody["arguments"].(map[string]any)
	if !ok || args["title"] != "Add retries" {
		t.Errorf("arguments = %v, want title passed through", gotBody["arguments"])
	}
	if result["pr_number"] != float64(42) {
		t.Errorf("result pr_number = %v, want 42", result["pr_number"])
	}
}

func TestExecuteNilParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, ok := body["arguments"].(map[string]any); !ok {
			t.Errorf("arguments = %v, want empty object not null", body["arguments"])
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL, 0).Execute(context.Background(), models.TaskListPRs, nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestExecuteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Execute(context.Background(), models.TaskCreatePR, nil)
	if err == nil {
		t.Fatal("Execute() should fail on HTTP 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream exploded") {
		t.Errorf("error %q should carry status and body", err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	_, err := New(srv.URL, 20*time.Millisecond).Execute(context.Background(), models.TaskCreatePR, nil)
	if err == nil {
		t.Fatal("Execute() should fail when the bridge exceeds the timeout")
	}
}

func TestExecuteTransportError(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL, time.Second).Execute(context.Background(), models.TaskCreatePR, nil)
	if err == nil {
		t.Fatal("Execute() should surface transport errors")
	}
}

func TestExecuteMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Execute(context.Background(), models.TaskCreatePR, nil)
	if err == nil {
		t.Fatal("Execute() should fail on a malformed response body")
	}
}
