// Package store holds every task created during the process lifetime,
// together with the ready queue the scheduler drains. A single mutex guards
// both so that a status transition and its matching queue operation are one
// atomic step; this is what prevents the scheduler loop and completion
// callbacks from double-dispatching a task.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/foreman/internal/models"
)

// ErrTaskNotFound is returned by lookups for unknown task identifiers.
var ErrTaskNotFound = errors.New("task not found")

// TransitionError reports an attempt to move a task to a status its current
// status does not permit.
type TransitionError struct {
	TaskID string
	From   models.TaskStatus
	To     models.TaskStatus
}

// Error implements the error interface for TransitionError.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid status transition %s -> %s", e.TaskID, e.From, e.To)
}

// TaskStore is the in-memory system of record for tasks. Tasks are never
// deleted; terminal tasks remain readable for status queries and dependency
// resolution.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	queue *priorityQueue
	now   func() time.Time
}

// Counts is a point-in-time summary of the store and queue.
type Counts struct {
	Queued    int `json:"queued"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// New creates an empty TaskStore.
func New() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*models.Task),
		queue: &priorityQueue{},
		now:   time.Now,
	}
}

// SetNow overrides the store clock; tests use this for deterministic
// timestamps.
func (s *TaskStore) SetNow(now func() time.Time) {
	s.now = now
}

// Add validates and inserts a batch of tasks, enqueueing each at its own
// priority. The batch is all-or-nothing: a validation failure or duplicate
// identifier leaves the store untouched, so a rejected workflow never leaves
// partial state behind.
func (s *TaskStore) Add(tasks ...models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(tasks))
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return err
		}
		if _, exists := s.tasks[tasks[i].ID]; exists || seen[tasks[i].ID] {
			return fmt.Errorf("task %s: duplicate task id", tasks[i].ID)
		}
		seen[tasks[i].ID] = true
	}
	for i := range tasks {
		for _, dep := range tasks[i].Dependencies {
			if _, exists := s.tasks[dep.TaskID]; !exists && !seen[dep.TaskID] {
				return fmt.Errorf("task %s: dependency on unknown task %s", tasks[i].ID, dep.TaskID)
			}
		}
	}

	for i := range tasks {
		t := tasks[i].Clone()
		if t.Status == "" {
			t.Status = models.TaskPending
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now()
		}
		s.tasks[t.ID] = &t
		s.queue.push(t.ID, t.Priority)
	}
	return nil
}

// Get returns a copy of the task with the given id.
func (s *TaskStore) Get(id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return t.Clone(), nil
}

// Dequeue pops the most urgent queue entry. The entry may reference a task
// that has since been claimed; callers must check the task's status via the
// claim path rather than trust the queue.
func (s *TaskStore) Dequeue() (taskID string, priority int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.queue.pop()
	if !ok {
		return "", 0, false
	}
	return item.taskID, item.priority, true
}

// Enqueue re-inserts a task id at the given priority. Used by the scheduler
// to defer tasks that could not be dispatched this tick; no ready task is
// ever silently dropped.
func (s *TaskStore) Enqueue(taskID string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.push(taskID, priority)
}

// Claim atomically transitions a pending task to running, recording the
// assigned agent and start timestamp. Returns a TransitionError if the task
// is no longer pending, which is how a second concurrent claim loses.
func (s *TaskStore) Claim(id, agentID string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	if !t.Status.CanTransition(models.TaskRunning) {
		return models.Task{}, &TransitionError{TaskID: id, From: t.Status, To: models.TaskRunning}
	}
	now := s.now()
	t.Status = models.TaskRunning
	t.AssignedAgent = agentID
	t.StartedAt = &now
	return t.Clone(), nil
}

// Complete marks a running task completed and stores its result payload.
func (s *TaskStore) Complete(id string, result map[string]any) (models.Task, error) {
	return s.finish(id, models.TaskCompleted, result, "")
}

// Fail marks a running task failed and retains the error message.
func (s *TaskStore) Fail(id, errMsg string) (models.Task, error) {
	return s.finish(id, models.TaskFailed, nil, errMsg)
}

func (s *TaskStore) finish(id string, status models.TaskStatus, result map[string]any, errMsg string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	if !t.Status.CanTransition(status) {
		return models.Task{}, &TransitionError{TaskID: id, From: t.Status, To: status}
	}
	now := s.now()
	t.Status = status
	t.CompletedAt = &now
	if status == models.TaskCompleted {
		t.Result = result
	} else {
		t.Error = errMsg
	}
	return t.Clone(), nil
}

// Dependents returns copies of every pending task holding at least one
// unresolved dependency edge on the given upstream task.
func (s *TaskStore) Dependents(upstreamID string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Task
	for _, t := range s.tasks {
		if t.Status != models.TaskPending {
			continue
		}
		for _, dep := range t.Dependencies {
			if !dep.Resolved && dep.TaskID == upstreamID {
				out = append(out, t.Clone())
				break
			}
		}
	}
	return out
}

// ResolveDependency writes a literal value into a pending task's parameter
// map and marks the matching edge resolved. Resolving an already-resolved
// edge is a no-op, which makes the dependency-resolution pass idempotent.
func (s *TaskStore) ResolveDependency(taskID, param string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	if t.Status != models.TaskPending {
		return &TransitionError{TaskID: taskID, From: t.Status, To: t.Status}
	}
	for i := range t.Dependencies {
		if t.Dependencies[i].Param != param {
			continue
		}
		if t.Dependencies[i].Resolved {
			return nil
		}
		if t.Params == nil {
			t.Params = make(map[string]any)
		}
		t.Params[param] = value
		t.Dependencies[i].Resolved = true
		return nil
	}
	return fmt.Errorf("task %s: no dependency edge for param %q", taskID, param)
}

// Snapshot returns copies of the tasks with the given ids, preserving order.
// Unknown ids are skipped.
func (s *TaskStore) Snapshot(ids []string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.tasks[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Counts summarizes the store and queue for status queries.
func (s *TaskStore) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Counts{Queued: s.queue.Len(), Total: len(s.tasks)}
	for _, t := range s.tasks {
		switch t.Status {
		case models.TaskPending:
			c.Pending++
		case models.TaskRunning:
			c.Running++
		case models.TaskCompleted:
			c.Completed++
		case models.TaskFailed:
			c.Failed++
		}
	}
	return c
}
