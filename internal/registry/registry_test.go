package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/harrison/foreman/internal/models"
)

func prAgent(id string, score float64) models.Agent {
	return models.Agent{
		ID:               id,
		Name:             id,
		Capabilities:     []models.TaskType{models.TaskCreatePR, models.TaskMergePR, models.TaskListPRs},
		PerformanceScore: score,
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := New()
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r.SetNow(func() time.Time { return fixed })

	if err := r.Register(models.Agent{
		ID:           "pr_agent",
		Capabilities: []models.TaskType{models.TaskCreatePR},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	agents := r.Snapshot()
	if len(agents) != 1 {
		t.Fatalf("Snapshot() returned %d agents, want 1", len(agents))
	}
	a := agents[0]
	if a.Status != models.AgentAvailable {
		t.Errorf("default status = %s, want available", a.Status)
	}
	if a.PerformanceScore != 1.0 {
		t.Errorf("default score = %v, want 1.0", a.PerformanceScore)
	}
	if !a.LastHeartbeat.Equal(fixed) {
		t.Error("LastHeartbeat should be stamped at registration")
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := New()
	if err := r.Register(models.Agent{Capabilities: []models.TaskType{models.TaskCreatePR}}); err == nil {
		t.Error("Register() should reject missing id")
	}
	if err := r.Register(models.Agent{ID: "a"}); err == nil {
		t.Error("Register() should reject empty capabilities")
	}
	if err := r.Register(models.Agent{ID: "a", Capabilities: []models.TaskType{"fly"}}); err == nil {
		t.Error("Register() should reject unknown capability")
	}
	if err := r.Register(prAgent("dup", 1)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(prAgent("dup", 2)); err == nil {
		t.Error("Register() should reject duplicate id")
	}
}

func TestAcquirePicksHighestScore(t *testing.T) {
	r := New()
	if err := r.Register(prAgent("slow", 0.5)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(prAgent("fast", 0.9)); err != nil {
		t.Fatal(err)
	}

	id, err := r.Acquire(models.TaskCreatePR, "t1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if id != "fast" {
		t.Errorf("Acquire() = %q, want fast", id)
	}
}

func TestAcquireTieBreaksByRegistrationOrder(t *testing.T) {
	r := New()
	if err := r.Register(prAgent("second", 0.8)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(prAgent("third", 0.8)); err != nil {
		t.Fatal(err)
	}

	id, err := r.Acquire(models.TaskCreatePR, "t1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if id != "second" {
		t.Errorf("tie should keep the earlier registration, got %q", id)
	}
}

func TestAcquireMarksBusyAndBindsTask(t *testing.T) {
	r := New()
	if err := r.Register(prAgent("pr_agent", 1)); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Acquire(models.TaskCreatePR, "t1"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	a := r.Snapshot()[0]
	if a.Status != models.AgentBusy {
		t.Errorf("acquired agent status = %s, want busy", a.Status)
	}
	if a.CurrentTask != "t1" {
		t.Errorf("CurrentTask = %q, want t1", a.CurrentTask)
	}

	// The only capable agent is now busy.
	if _, err := r.Acquire(models.TaskMergePR, "t2"); !errors.Is(err, ErrNoAgentAvailable) {
		t.Errorf("Acquire() error = %v, want ErrNoAgentAvailable", err)
	}
}

func TestAcquireNoCapableAgent(t *testing.T) {
	r := New()
	if err := r.Register(prAgent("pr_agent", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire(models.TaskCreateBranch, "t1"); !errors.Is(err, ErrNoAgentAvailable) {
		t.Errorf("Acquire() error = %v, want ErrNoAgentAvailable", err)
	}
}

func TestRelease(t *testing.T) {
	r := New()
	if err := r.Register(prAgent("pr_agent", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire(models.TaskCreatePR, "t1"); err != nil {
		t.Fatal(err)
	}

	if err := r.Release("pr_agent"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	a := r.Snapshot()[0]
	if a.Status != models.AgentAvailable {
		t.Errorf("released agent status = %s, want available", a.Status)
	}
	if a.CurrentTask != "" {
		t.Errorf("released agent CurrentTask = %q, want empty", a.CurrentTask)
	}

	if err := r.Release("pr_agent"); err == nil {
		t.Error("Release() on available agent should fail")
	}
	if err := r.Release("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Release() error = %v, want ErrAgentNotFound", err)
	}
}

func TestSetOfflineAndAvailable(t *testing.T) {
	r := New()
	if err := r.Register(prAgent("pr_agent", 1)); err != nil {
		t.Fatal(err)
	}

	if err := r.SetOffline("pr_agent"); err != nil {
		t.Fatalf("SetOffline() error = %v", err)
	}
	if _, err := r.Acquire(models.TaskCreatePR, "t1"); !errors.Is(err, ErrNoAgentAvailable) {
		t.Errorf("offline agent should not be acquirable, got %v", err)
	}

	if err := r.SetAvailable("pr_agent"); err != nil {
		t.Fatalf("SetAvailable() error = %v", err)
	}
	if _, err := r.Acquire(models.TaskCreatePR, "t1"); err != nil {
		t.Errorf("Acquire() after SetAvailable error = %v", err)
	}

	// Busy agents cannot be taken offline.
	if err := r.SetOffline("pr_agent"); err == nil {
		t.Error("SetOffline() on busy agent should fail")
	}
	if err := r.SetOffline("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("SetOffline() error = %v, want ErrAgentNotFound", err)
	}
}

func TestHeartbeat(t *testing.T) {
	r := New()
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	r.SetNow(func() time.Time { return now })

	if err := r.Register(prAgent("pr_agent", 1)); err != nil {
		t.Fatal(err)
	}

	now = t0.Add(30 * time.Second)
	r.Heartbeat()

	if got := r.Snapshot()[0].LastHeartbeat; !got.Equal(now) {
		t.Errorf("LastHeartbeat = %v, want %v", got, now)
	}
}

func TestCounts(t *testing.T) {
	r := New()
	if err := r.Register(prAgent("a", 1)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(prAgent("b", 1)); err != nil {
		t.Fatal(err)
	}
	off := prAgent("c", 1)
	off.Status = models.AgentOffline
	if err := r.Register(off); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire(models.TaskCreatePR, "t1"); err != nil {
		t.Fatal(err)
	}

	got := r.Counts()
	want := CountsSnapshot{Total: 3, Available: 1, Busy: 1, Offline: 1}
	if got != want {
		t.Errorf("Counts() = %+v, want %+v", got, want)
	}
}
