// Package scheduler runs the dispatch loop: a fixed-interval tick that drains
// the ready queue, pairs dispatchable tasks with agents, and hands each pair
// to an executor on its own goroutine. The loop itself never blocks on task
// execution, so a slow bridge call cannot stall dispatch of other tasks.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/registry"
	"github.com/harrison/foreman/internal/store"
)

const (
	// DefaultTickInterval is how often the dispatch loop scans the queue.
	DefaultTickInterval = time.Second
	// DefaultHeartbeatInterval is how often agent heartbeats are refreshed.
	DefaultHeartbeatInterval = 30 * time.Second
)

// Executor performs a task against the external bridge and returns its
// result payload. The scheduler only depends on this interface; production
// wiring uses the gateway, tests use stubs.
type Executor interface {
	Execute(ctx context.Context, taskType models.TaskType, params map[string]any) (map[string]any, error)
}

// EventLogger receives the scheduler's lifecycle events.
type EventLogger interface {
	LogDispatch(task models.Task, agentID string)
	LogRequeue(task models.Task, reason string)
	LogTaskResult(task models.Task)
	LogWarning(format string, args ...any)
}

// Recorder persists finished task executions for audit.
type Recorder interface {
	RecordTask(models.Task) error
}

type nopLogger struct{}

func (nopLogger) LogDispatch(models.Task, string) {}
func (nopLogger) LogRequeue(models.Task, string)  {}
func (nopLogger) LogTaskResult(models.Task)       {}
func (nopLogger) LogWarning(string, ...any)       {}

// Options configures a Scheduler. Zero values fall back to defaults.
type Options struct {
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	Logger            EventLogger
	Recorder          Recorder
}

// Scheduler owns the dispatch loop and the completion path of every task.
type Scheduler struct {
	store    *store.TaskStore
	registry *registry.Registry
	executor Executor
	logger   EventLogger
	recorder Recorder

	tickInterval      time.Duration
	heartbeatInterval time.Duration

	cancel   context.CancelFunc
	loopDone chan struct{}
	wg       sync.WaitGroup
}

// New creates a Scheduler. The executor is required; logger and recorder are
// optional.
func New(s *store.TaskStore, r *registry.Registry, e Executor, opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Scheduler{
		store:             s,
		registry:          r,
		executor:          e,
		logger:            opts.Logger,
		recorder:          opts.Recorder,
		tickInterval:      opts.TickInterval,
		heartbeatInterval: opts.HeartbeatInterval,
	}
}

// Start launches the dispatch loop. The loop stops when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.loopDone = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels the loop and waits for it and all in-flight executions to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.loopDone
	}
	s.wg.Wait()
}

// Wait blocks until all in-flight executions have finished. Intended for
// tests that drive Tick directly.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.loopDone)

	tick := time.NewTicker(s.tickInterval)
	defer tick.Stop()
	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.Tick(ctx)
		case <-heartbeat.C:
			s.registry.Heartbeat()
		}
	}
}

// Tick drains the ready queue once. Entries that cannot be dispatched this
// pass, because their dependencies are unresolved or no agent is free, are
// requeued at their original priority after the pass, so nothing is dropped
// and nothing is popped twice in one tick. Exported so tests can drive the
// scheduler deterministically without the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	type entry struct {
		id       string
		priority int
	}
	var deferred []entry

	for {
		id, priority, ok := s.store.Dequeue()
		if !ok {
			break
		}
		task, err := s.store.Get(id)
		if err != nil {
			s.logger.LogWarning("queue entry for unknown task %s dropped", id)
			continue
		}
		// Stale entry: the task already ran or is running.
		if task.Status != models.TaskPending {
			continue
		}
		if !task.Ready() {
			deferred = append(deferred, entry{id, priority})
			continue
		}

		agentID, err := s.registry.Acquire(task.Type, task.ID)
		if err != nil {
			if errors.Is(err, registry.ErrNoAgentAvailable) {
				s.logger.LogRequeue(task, "no agent available")
				deferred = append(deferred, entry{id, priority})
				continue
			}
			s.logger.LogWarning("task %s: agent selection: %v", id, err)
			deferred = append(deferred, entry{id, priority})
			continue
		}

		claimed, err := s.store.Claim(id, agentID)
		if err != nil {
			// Lost the claim race; the agent goes back to the pool.
			if relErr := s.registry.Release(agentID); relErr != nil {
				s.logger.LogWarning("agent %s: release after failed claim: %v", agentID, relErr)
			}
			continue
		}

		s.logger.LogDispatch(claimed, agentID)
		s.wg.Add(1)
		go s.execute(ctx, claimed)
	}

	for _, e := range deferred {
		s.store.Enqueue(e.id, e.priority)
	}
}

// execute runs one claimed task to completion. It is the only place tasks
// reach a terminal status: success stores the result, failure stores the
// error, and in both cases the agent is released and the outcome recorded.
// Failed tasks are not retried.
func (s *Scheduler) execute(ctx context.Context, task models.Task) {
	defer s.wg.Done()

	result, execErr := s.executor.Execute(ctx, task.Type, task.Params)

	var final models.Task
	var err error
	if execErr != nil {
		final, err = s.store.Fail(task.ID, execErr.Error())
	} else {
		final, err = s.store.Complete(task.ID, result)
	}
	if err != nil {
		s.logger.LogWarning("task %s: finish: %v", task.ID, err)
		final = task
	}

	if err := s.registry.Release(task.AssignedAgent); err != nil {
		s.logger.LogWarning("agent %s: release: %v", task.AssignedAgent, err)
	}

	if execErr == nil {
		s.resolve(final)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordTask(final); err != nil {
			s.logger.LogWarning("task %s: record: %v", final.ID, err)
		}
	}
	s.logger.LogTaskResult(final)
}
