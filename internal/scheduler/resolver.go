package scheduler

import (
	"github.com/harrison/foreman/internal/models"
)

// resolve propagates a completed task's result to its dependents: every
// pending task holding an unresolved edge on the completed task gets the
// named result field copied into the named parameter. The pass is idempotent
// because the store skips edges already marked resolved.
//
// A result missing the named field leaves the edge unresolved; the dependent
// stays pending and is reported as blocked by status queries once the
// upstream is terminal.
func (s *Scheduler) resolve(completed models.Task) {
	if completed.Status != models.TaskCompleted {
		return
	}
	for _, dependent := range s.store.Dependents(completed.ID) {
		for _, edge := range dependent.Dependencies {
			if edge.Resolved || edge.TaskID != completed.ID {
				continue
			}
			value, ok := completed.Result[edge.ResultField]
			if !ok {
				s.logger.LogWarning("task %s: result has no field %q needed by %s",
					completed.ID, edge.ResultField, dependent.ID)
				continue
			}
			if err := s.store.ResolveDependency(dependent.ID, edge.Param, value); err != nil {
				s.logger.LogWarning("task %s: resolve param %q: %v", dependent.ID, edge.Param, err)
			}
		}
	}
}
