// Package registry tracks worker agents and performs capability-based
// selection. The registry owns the busy/available state machine: an agent is
// marked busy and bound to its task inside Acquire, under the registry lock,
// so two concurrent selections can never pick the same agent.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/foreman/internal/models"
)

// ErrNoAgentAvailable means no registered agent is both available and capable
// of the requested task type. This is not a hard failure; the scheduler
// retries the task on a later tick.
var ErrNoAgentAvailable = errors.New("no agent available")

// ErrAgentNotFound is returned for operations on unknown agent identifiers.
var ErrAgentNotFound = errors.New("agent not found")

// Registry holds the set of worker agents. Agents are registered at startup
// from configuration, but registration is allowed at any time.
type Registry struct {
	mu     sync.Mutex
	agents map[string]*models.Agent
	order  []string // registration order, the deterministic tie-breaker
	now    func() time.Time
}

// CountsSnapshot summarizes agent availability.
type CountsSnapshot struct {
	Total     int `json:"total_agents"`
	Available int `json:"available_agents"`
	Busy      int `json:"busy_agents"`
	Offline   int `json:"offline_agents"`
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		agents: make(map[string]*models.Agent),
		now:    time.Now,
	}
}

// SetNow overrides the registry clock for tests.
func (r *Registry) SetNow(now func() time.Time) {
	r.now = now
}

// Register adds an agent. Status defaults to available and performance score
// to 1.0 when unset. Duplicate identifiers are rejected.
func (r *Registry) Register(a models.Agent) error {
	if a.ID == "" {
		return errors.New("agent id is required")
	}
	if len(a.Capabilities) == 0 {
		return fmt.Errorf("agent %s: at least one capability is required", a.ID)
	}
	for _, c := range a.Capabilities {
		if !c.Valid() {
			return fmt.Errorf("agent %s: unknown capability %q", a.ID, c)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID]; exists {
		return fmt.Errorf("agent %s: already registered", a.ID)
	}
	reg := a.Clone()
	if reg.Status == "" {
		reg.Status = models.AgentAvailable
	}
	if reg.PerformanceScore == 0 {
		reg.PerformanceScore = 1.0
	}
	reg.LastHeartbeat = r.now()
	r.agents[reg.ID] = &reg
	r.order = append(r.order, reg.ID)
	return nil
}

// Acquire selects the best available agent for the task type and atomically
// marks it busy on the given task. Eligible agents are those available with
// the capability; among them the highest performance score wins, with ties
// broken by registration order so selection is deterministic for a given
// registry snapshot.
func (r *Registry) Acquire(taskType models.TaskType, taskID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *models.Agent
	for _, id := range r.order {
		a := r.agents[id]
		if a.Status != models.AgentAvailable || !a.CanExecute(taskType) {
			continue
		}
		if best == nil || a.PerformanceScore > best.PerformanceScore {
			best = a
		}
	}
	if best == nil {
		return "", fmt.Errorf("task type %s: %w", taskType, ErrNoAgentAvailable)
	}

	best.Status = models.AgentBusy
	best.CurrentTask = taskID
	return best.ID, nil
}

// Release returns a busy agent to the available pool and clears its task
// binding. Releasing an agent that is not busy is an error; it indicates a
// bookkeeping bug in the caller.
func (r *Registry) Release(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, ErrAgentNotFound)
	}
	if a.Status != models.AgentBusy {
		return fmt.Errorf("agent %s: release of non-busy agent", agentID)
	}
	a.Status = models.AgentAvailable
	a.CurrentTask = ""
	return nil
}

// SetOffline removes an agent from scheduling consideration. A busy agent
// cannot be taken offline; its in-flight task must finish first.
func (r *Registry) SetOffline(agentID string) error {
	return r.setStatus(agentID, models.AgentOffline)
}

// SetAvailable returns an offline agent to the pool.
func (r *Registry) SetAvailable(agentID string) error {
	return r.setStatus(agentID, models.AgentAvailable)
}

func (r *Registry) setStatus(agentID string, status models.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, ErrAgentNotFound)
	}
	if a.Status == models.AgentBusy {
		return fmt.Errorf("agent %s: busy on task %s", agentID, a.CurrentTask)
	}
	a.Status = status
	return nil
}

// Heartbeat refreshes the last-heartbeat timestamp of every agent. In this
// single-process design agents are in-memory descriptors, so the refresh is
// unconditional.
func (r *Registry) Heartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, a := range r.agents {
		a.LastHeartbeat = now
	}
}

// Snapshot returns copies of all agents in registration order.
func (r *Registry) Snapshot() []models.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].Clone())
	}
	return out
}

// Counts summarizes agent availability for status queries.
func (r *Registry) Counts() CountsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := CountsSnapshot{Total: len(r.agents)}
	for _, a := range r.agents {
		switch a.Status {
		case models.AgentAvailable:
			c.Available++
		case models.AgentBusy:
			c.Busy++
		case models.AgentOffline:
			c.Offline++
		}
	}
	return c
}
