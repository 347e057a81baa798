package models

import "time"

// AgentStatus is the availability state of a worker agent.
type AgentStatus string

const (
	AgentAvailable AgentStatus = "available"
	AgentBusy      AgentStatus = "busy"
	AgentOffline   AgentStatus = "offline"
)

// Agent is a logical worker capable of executing tasks whose type appears in
// its capability set. Invariant: Status == AgentBusy exactly when CurrentTask
// is non-empty; the registry maintains this under its lock.
type Agent struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Capabilities     []TaskType  `json:"capabilities"`
	Status           AgentStatus `json:"status"`
	CurrentTask      string      `json:"current_task,omitempty"`
	PerformanceScore float64     `json:"performance_score"`
	LastHeartbeat    time.Time   `json:"last_heartbeat"`
}

// CanExecute reports whether the agent advertises the given task type.
func (a *Agent) CanExecute(t TaskType) bool {
	for _, c := range a.Capabilities {
		if c == t {
			return true
		}
	}
	return false
}

// Clone returns a copy of the agent safe to hand outside the registry.
func (a *Agent) Clone() Agent {
	c := *a
	if a.Capabilities != nil {
		c.Capabilities = make([]TaskType, len(a.Capabilities))
		copy(c.Capabilities, a.Capabilities)
	}
	return c
}
