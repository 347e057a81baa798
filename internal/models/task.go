package models

import (
	"errors"
	"time"
)

// TaskType identifies the capability required to execute a task. The set is
// closed: the workflow factory can only emit these types, and an agent
// advertises a subset of them as its capabilities.
type TaskType string

const (
	TaskCreateBranch   TaskType = "create_branch"
	TaskPushBranch     TaskType = "push_branch"
	TaskCreatePR       TaskType = "create_pr"
	TaskMergePR        TaskType = "merge_pr"
	TaskListPRs        TaskType = "list_prs"
	TaskGenerateReport TaskType = "generate_report"
)

// TaskTypes returns every known task type in a stable order.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskCreateBranch,
		TaskPushBranch,
		TaskCreatePR,
		TaskMergePR,
		TaskListPRs,
		TaskGenerateReport,
	}
}

// Valid reports whether t is a member of the closed task type set.
func (t TaskType) Valid() bool {
	switch t {
	case TaskCreateBranch, TaskPushBranch, TaskCreatePR, TaskMergePR, TaskListPRs, TaskGenerateReport:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of a task. Transitions are monotonic:
// pending -> running -> completed or failed. A terminal task never changes
// again, though its result remains readable by the dependency resolver.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskRunning
	case TaskRunning:
		return next == TaskCompleted || next == TaskFailed
	}
	return false
}

// DependencyRef is an explicit dependency edge: when the upstream task
// identified by TaskID completes, the value of its result field named
// ResultField is copied into this task's parameter named Param. A task is
// eligible for dispatch only once every edge is resolved.
type DependencyRef struct {
	TaskID      string `json:"task_id"`
	ResultField string `json:"result_field"`
	Param       string `json:"param"`
	Resolved    bool   `json:"resolved"`
}

// Task is the smallest unit of orchestrated work, executed by exactly one
// agent. Tasks are created by the workflow factory and mutated only by the
// task store under its lock.
type Task struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	Type          TaskType        `json:"type"`
	Priority      int             `json:"priority"` // lower = more urgent
	Params        map[string]any  `json:"params"`
	Dependencies  []DependencyRef `json:"dependencies,omitempty"`
	Status        TaskStatus      `json:"status"`
	AssignedAgent string          `json:"assigned_agent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Result        map[string]any  `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Validate checks that the task has the fields required for scheduling.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if !t.Type.Valid() {
		return errors.New("unknown task type " + string(t.Type))
	}
	for _, dep := range t.Dependencies {
		if dep.TaskID == "" {
			return errors.New("dependency upstream task id is required")
		}
		if dep.TaskID == t.ID {
			return errors.New("task depends on itself")
		}
		if dep.ResultField == "" || dep.Param == "" {
			return errors.New("dependency result field and param are required")
		}
	}
	return nil
}

// Ready reports whether every dependency edge has been resolved, i.e. the
// task's parameters are complete and it may be dispatched.
func (t *Task) Ready() bool {
	for _, dep := range t.Dependencies {
		if !dep.Resolved {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the task. The store hands out clones so
// callers can never mutate shared state.
func (t *Task) Clone() Task {
	c := *t
	if t.Params != nil {
		c.Params = make(map[string]any, len(t.Params))
		for k, v := range t.Params {
			c.Params[k] = v
		}
	}
	if t.Result != nil {
		c.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			c.Result[k] = v
		}
	}
	if t.Dependencies != nil {
		c.Dependencies = make([]DependencyRef, len(t.Dependencies))
		copy(c.Dependencies, t.Dependencies)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return c
}

// Duration returns the wall-clock execution time, or zero if the task has
// not both started and finished.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}
