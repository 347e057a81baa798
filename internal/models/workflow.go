package models

import "time"

// WorkflowType names a known task-graph template. The set is closed but
// extensible: adding a type means adding a case to the workflow factory.
type WorkflowType string

const (
	WorkflowSingleTask   WorkflowType = "single_task"
	WorkflowPRWithReport WorkflowType = "pr_with_report"
	WorkflowCreateBranch WorkflowType = "create_branch"
	WorkflowBranchAndPR  WorkflowType = "branch_and_pr"
	WorkflowFullBranch   WorkflowType = "full_branch_workflow"
)

// WorkflowTypes returns every known workflow type in a stable order.
func WorkflowTypes() []WorkflowType {
	return []WorkflowType{
		WorkflowSingleTask,
		WorkflowPRWithReport,
		WorkflowCreateBranch,
		WorkflowBranchAndPR,
		WorkflowFullBranch,
	}
}

// Valid reports whether t is a member of the closed workflow type set.
func (t WorkflowType) Valid() bool {
	switch t {
	case WorkflowSingleTask, WorkflowPRWithReport, WorkflowCreateBranch, WorkflowBranchAndPR, WorkflowFullBranch:
		return true
	}
	return false
}

// WorkflowStatus is derived from the statuses of a workflow's tasks; it is
// computed on demand and never stored.
type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Workflow is an ordered collection of tasks created together from a single
// request. The record is immutable after creation: the task list is fixed,
// and status is always derived from the tasks themselves.
type Workflow struct {
	ID        string         `json:"workflow_id"`
	Type      WorkflowType   `json:"workflow_type"`
	TaskIDs   []string       `json:"tasks"`
	Params    map[string]any `json:"parameters"`
	Priority  int            `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeriveWorkflowStatus computes the workflow status from its tasks: failed if
// any task failed, completed if every task completed, running otherwise.
func DeriveWorkflowStatus(tasks []Task) WorkflowStatus {
	completed := 0
	for _, t := range tasks {
		switch t.Status {
		case TaskFailed:
			return WorkflowFailed
		case TaskCompleted:
			completed++
		}
	}
	if len(tasks) > 0 && completed == len(tasks) {
		return WorkflowCompleted
	}
	return WorkflowRunning
}
