package workflow

import (
	"fmt"

	"github.com/harrison/foreman/internal/models"
)

// TaskSnapshot is a task as reported by a status query. Blocked is computed,
// not stored: a pending task is blocked when an unresolved dependency edge
// points at a failed upstream task, meaning the value it waits for will never
// arrive. The task itself stays pending.
type TaskSnapshot struct {
	models.Task
	Blocked bool `json:"blocked,omitempty"`
}

// StatusReport is the full answer to a workflow status query.
type StatusReport struct {
	Workflow models.Workflow       `json:"workflow"`
	Status   models.WorkflowStatus `json:"status"`
	Tasks    []TaskSnapshot        `json:"tasks"`
	Progress string                `json:"progress"`
}

// Status aggregates the live task state of a workflow. Everything here is
// derived per call: status from the task statuses, progress from the
// completed count, blocked from the dependency edges.
func (s *Service) Status(id string) (StatusReport, error) {
	wf, err := s.Get(id)
	if err != nil {
		return StatusReport{}, err
	}

	tasks := s.store.Snapshot(wf.TaskIDs)
	if len(tasks) != len(wf.TaskIDs) {
		return StatusReport{}, fmt.Errorf("workflow %s: task records missing from store", id)
	}

	byID := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	completed := 0
	snapshots := make([]TaskSnapshot, len(tasks))
	for i := range tasks {
		if tasks[i].Status == models.TaskCompleted {
			completed++
		}
		snapshots[i] = TaskSnapshot{
			Task:    tasks[i],
			Blocked: blocked(&tasks[i], byID),
		}
	}

	return StatusReport{
		Workflow: wf,
		Status:   models.DeriveWorkflowStatus(tasks),
		Tasks:    snapshots,
		Progress: fmt.Sprintf("%d/%d tasks completed", completed, len(tasks)),
	}, nil
}

func blocked(t *models.Task, byID map[string]*models.Task) bool {
	if t.Status != models.TaskPending {
		return false
	}
	for _, dep := range t.Dependencies {
		if dep.Resolved {
			continue
		}
		if up, ok := byID[dep.TaskID]; ok && up.Status == models.TaskFailed {
			return true
		}
	}
	return false
}
