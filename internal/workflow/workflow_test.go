package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.TaskStore) {
	t.Helper()
	ts := store.New()
	svc := NewService(ts, nil)
	n := 0
	svc.SetIDFunc(func() string {
		n++
		return "workflow_" + string(rune('a'+n-1))
	})
	return svc, ts
}

func TestCreateUnknownTypeLeavesNoState(t *testing.T) {
	svc, ts := newTestService(t)

	_, err := svc.Create("teleport_everything", nil, 2)
	require.ErrorIs(t, err, ErrUnknownWorkflowType)

	assert.Empty(t, svc.List())
	assert.Equal(t, 0, ts.Counts().Total)
}

func TestCreatePRWithReport(t *testing.T) {
	svc, ts := newTestService(t)

	params := map[string]any{"title": "Add retries", "source_branch": "feature/retries"}
	id, err := svc.Create(models.WorkflowPRWithReport, params, 2)
	require.NoError(t, err)
	require.Equal(t, "workflow_a", id)

	wf, err := svc.Get(id)
	require.NoError(t, err)
	require.Equal(t, []string{"workflow_a_create_pr", "workflow_a_generate_report"}, wf.TaskIDs)

	pr, err := ts.Get("workflow_a_create_pr")
	require.NoError(t, err)
	assert.Equal(t, models.TaskCreatePR, pr.Type)
	assert.Equal(t, 2, pr.Priority)
	assert.Equal(t, "Add retries", pr.Params["title"])
	assert.Empty(t, pr.Dependencies)

	report, err := ts.Get("workflow_a_generate_report")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Priority)
	require.Len(t, report.Dependencies, 1)
	dep := report.Dependencies[0]
	assert.Equal(t, "workflow_a_create_pr", dep.TaskID)
	assert.Equal(t, "pr_number", dep.ResultField)
	assert.Equal(t, "pr_number", dep.Param)
	assert.False(t, report.Ready())
}

func TestCreateFullBranchWorkflow(t *testing.T) {
	svc, ts := newTestService(t)

	id, err := svc.Create(models.WorkflowFullBranch, map[string]any{"branch_name": "feature/x"}, 1)
	require.NoError(t, err)

	wf, err := svc.Get(id)
	require.NoError(t, err)
	require.Len(t, wf.TaskIDs, 4)

	// Priority increases with position so earlier tasks dispatch first.
	for i, taskID := range wf.TaskIDs {
		task, err := ts.Get(taskID)
		require.NoError(t, err)
		assert.Equal(t, 1+i, task.Priority, "task %s", taskID)
	}

	pr, err := ts.Get("workflow_a_create_pr")
	require.NoError(t, err)
	require.Len(t, pr.Dependencies, 1)
	assert.Equal(t, "workflow_a_create_branch", pr.Dependencies[0].TaskID)
	assert.Equal(t, "head_branch", pr.Dependencies[0].Param)
}

func TestCreateSingleTask(t *testing.T) {
	svc, ts := newTestService(t)

	id, err := svc.Create(models.WorkflowSingleTask, map[string]any{"task_type": "list_prs"}, 2)
	require.NoError(t, err)

	wf, err := svc.Get(id)
	require.NoError(t, err)
	require.Len(t, wf.TaskIDs, 1)

	task, err := ts.Get(wf.TaskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.TaskListPRs, task.Type)
}

func TestCreateSingleTaskUnknownType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(models.WorkflowSingleTask, map[string]any{"task_type": "levitate"}, 2)
	require.ErrorIs(t, err, ErrUnknownTaskType)

	_, err = svc.Create(models.WorkflowSingleTask, nil, 2)
	require.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestStatusUnknownWorkflow(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Status("workflow_missing")
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("Status() error = %v, want ErrWorkflowNotFound", err)
	}
}

func TestStatusProgressAndDerivedStatus(t *testing.T) {
	svc, ts := newTestService(t)

	id, err := svc.Create(models.WorkflowPRWithReport, map[string]any{"title": "t"}, 2)
	require.NoError(t, err)

	report, err := svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRunning, report.Status)
	assert.Equal(t, "0/2 tasks completed", report.Progress)

	_, err = ts.Claim("workflow_a_create_pr", "pr_agent")
	require.NoError(t, err)
	_, err = ts.Complete("workflow_a_create_pr", map[string]any{"pr_number": 7})
	require.NoError(t, err)

	report, err = svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRunning, report.Status)
	assert.Equal(t, "1/2 tasks completed", report.Progress)

	require.NoError(t, ts.ResolveDependency("workflow_a_generate_report", "pr_number", 7))
	_, err = ts.Claim("workflow_a_generate_report", "report_agent")
	require.NoError(t, err)
	_, err = ts.Complete("workflow_a_generate_report", nil)
	require.NoError(t, err)

	report, err = svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowCompleted, report.Status)
	assert.Equal(t, "2/2 tasks completed", report.Progress)
}

func TestStatusBlockedAnnotation(t *testing.T) {
	svc, ts := newTestService(t)

	id, err := svc.Create(models.WorkflowPRWithReport, map[string]any{"title": "t"}, 2)
	require.NoError(t, err)

	_, err = ts.Claim("workflow_a_create_pr", "pr_agent")
	require.NoError(t, err)
	_, err = ts.Fail("workflow_a_create_pr", "HTTP 502 from bridge")
	require.NoError(t, err)

	report, err := svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowFailed, report.Status)

	var snap *TaskSnapshot
	for i := range report.Tasks {
		if report.Tasks[i].ID == "workflow_a_generate_report" {
			snap = &report.Tasks[i]
		}
	}
	require.NotNil(t, snap)
	assert.Equal(t, models.TaskPending, snap.Status, "dependent stays pending")
	assert.True(t, snap.Blocked, "dependent of failed upstream is reported blocked")
}

func TestListPreservesCreationOrder(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Create(models.WorkflowCreateBranch, map[string]any{"branch_name": "a"}, 2)
	require.NoError(t, err)
	second, err := svc.Create(models.WorkflowCreateBranch, map[string]any{"branch_name": "b"}, 2)
	require.NoError(t, err)

	got := svc.List()
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].ID)
	assert.Equal(t, second, got[1].ID)
}
