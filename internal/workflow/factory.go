// Package workflow expands workflow types into task graphs and aggregates
// task state back into workflow status. The workflow record itself is
// immutable after creation; everything that changes lives in the task store.
package workflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/store"
)

var (
	// ErrUnknownWorkflowType is returned before any task is created.
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
	// ErrWorkflowNotFound is returned by lookups for unknown workflow ids.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrUnknownTaskType is returned when a single_task workflow names a task
	// type outside the closed set.
	ErrUnknownTaskType = errors.New("unknown task type")
)

// Recorder persists workflow records for audit. The scheduler has its own
// Recorder for task executions; both are satisfied by the history store.
type Recorder interface {
	RecordWorkflow(models.Workflow) error
}

// Service creates workflows and answers status queries. It owns the workflow
// records; tasks belong to the store.
type Service struct {
	mu        sync.Mutex
	store     *store.TaskStore
	recorder  Recorder
	workflows map[string]*models.Workflow
	order     []string
	now       func() time.Time
	newID     func() string
}

// NewService creates a workflow service backed by the given task store.
// recorder may be nil when no audit trail is configured.
func NewService(s *store.TaskStore, recorder Recorder) *Service {
	return &Service{
		store:     s,
		recorder:  recorder,
		workflows: make(map[string]*models.Workflow),
		now:       time.Now,
		newID: func() string {
			return "workflow_" + uuid.New().String()[:8]
		},
	}
}

// SetNow overrides the service clock for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// SetIDFunc overrides workflow id generation for tests.
func (s *Service) SetIDFunc(f func() string) {
	s.newID = f
}

// Create expands a workflow type into its task graph, inserts the tasks as
// one batch, and records the workflow. The type is validated before anything
// is created, so a rejected request leaves no partial state. Task priority is
// the workflow priority plus the task's position offset; lower is more
// urgent, so earlier tasks dispatch first.
func (s *Service) Create(workflowType models.WorkflowType, params map[string]any, priority int) (string, error) {
	if !workflowType.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownWorkflowType, workflowType)
	}

	id := s.newID()
	tasks, err := expand(id, workflowType, params, priority)
	if err != nil {
		return "", err
	}

	if err := s.store.Add(tasks...); err != nil {
		return "", fmt.Errorf("workflow %s: %w", id, err)
	}

	wf := &models.Workflow{
		ID:        id,
		Type:      workflowType,
		TaskIDs:   make([]string, len(tasks)),
		Params:    params,
		Priority:  priority,
		CreatedAt: s.now(),
	}
	for i, t := range tasks {
		wf.TaskIDs[i] = t.ID
	}

	s.mu.Lock()
	s.workflows[id] = wf
	s.order = append(s.order, id)
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.RecordWorkflow(*wf); err != nil {
			return "", fmt.Errorf("workflow %s: record: %w", id, err)
		}
	}
	return id, nil
}

// Get returns a copy of the workflow record.
func (s *Service) Get(id string) (models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return models.Workflow{}, fmt.Errorf("workflow %s: %w", id, ErrWorkflowNotFound)
	}
	return cloneWorkflow(wf), nil
}

// List returns all workflows in creation order.
func (s *Service) List() []models.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Workflow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneWorkflow(s.workflows[id]))
	}
	return out
}

func cloneWorkflow(wf *models.Workflow) models.Workflow {
	c := *wf
	c.TaskIDs = append([]string(nil), wf.TaskIDs...)
	if wf.Params != nil {
		c.Params = make(map[string]any, len(wf.Params))
		for k, v := range wf.Params {
			c.Params[k] = v
		}
	}
	return c
}

// expand builds the task list for a workflow type. Task ids embed the
// workflow id and task type, matching the "<workflow>_<type>" convention used
// throughout logs and status output.
func expand(workflowID string, workflowType models.WorkflowType, params map[string]any, priority int) ([]models.Task, error) {
	task := func(taskType models.TaskType, offset int, p map[string]any, deps ...models.DependencyRef) models.Task {
		return models.Task{
			ID:           fmt.Sprintf("%s_%s", workflowID, taskType),
			WorkflowID:   workflowID,
			Type:         taskType,
			Priority:     priority + offset,
			Params:       copyParams(p),
			Dependencies: deps,
		}
	}
	taskID := func(taskType models.TaskType) string {
		return fmt.Sprintf("%s_%s", workflowID, taskType)
	}

	switch workflowType {
	case models.WorkflowSingleTask:
		taskType, _ := params["task_type"].(string)
		tt := models.TaskType(taskType)
		if !tt.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
		}
		return []models.Task{task(tt, 0, params)}, nil

	case models.WorkflowPRWithReport:
		return []models.Task{
			task(models.TaskCreatePR, 0, params),
			task(models.TaskGenerateReport, 1, nil,
				models.DependencyRef{TaskID: taskID(models.TaskCreatePR), ResultField: "pr_number", Param: "pr_number"}),
		}, nil

	case models.WorkflowCreateBranch:
		return []models.Task{
			task(models.TaskCreateBranch, 0, params),
			task(models.TaskPushBranch, 1, params),
		}, nil

	case models.WorkflowBranchAndPR:
		return []models.Task{
			task(models.TaskCreateBranch, 0, params),
			task(models.TaskCreatePR, 1, params,
				models.DependencyRef{TaskID: taskID(models.TaskCreateBranch), ResultField: "branch_name", Param: "head_branch"}),
		}, nil

	case models.WorkflowFullBranch:
		return []models.Task{
			task(models.TaskCreateBranch, 0, params),
			task(models.TaskPushBranch, 1, params),
			task(models.TaskCreatePR, 2, params,
				models.DependencyRef{TaskID: taskID(models.TaskCreateBranch), ResultField: "branch_name", Param: "head_branch"}),
			task(models.TaskGenerateReport, 3, nil,
				models.DependencyRef{TaskID: taskID(models.TaskCreatePR), ResultField: "pr_number", Param: "pr_number"}),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflowType, workflowType)
}

func copyParams(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
