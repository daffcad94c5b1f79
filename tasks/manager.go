/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package tasks implements the long-running task manager. It owns the task
// table for the lifetime of the process: creation, concurrent execution,
// progress tracking, status queries, cooperative cancellation, and explicit
// removal of finished records.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PivotLLM/Foreman/logging"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether this status is absorbing. A terminal task never
// changes again; the only thing left to do with it is reap it.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrNotFound indicates the task id was never issued or has been reaped.
	ErrNotFound = errors.New("task not found")

	// ErrStillRunning indicates a reap was attempted on a non-terminal task.
	ErrStillRunning = errors.New("task is still running")

	// ErrCancelled is returned by a handler that observed the cancel flag and
	// stopped. The manager maps it to the cancelled terminal state.
	ErrCancelled = errors.New("task cancelled")
)

// Snapshot is a read-only copy of a task's current state.
type Snapshot struct {
	ID              string      `json:"id"`
	Status          Status      `json:"status"`
	Progress        string      `json:"progress,omitempty"`
	Result          interface{} `json:"result,omitempty"`
	Error           string      `json:"error,omitempty"`
	CancelRequested bool        `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Func is the body of a long-running task. The context is the manager's
// lifecycle context, cancelled at shutdown. The job handle publishes progress
// and exposes the cancel flag; a handler that wants to honor cancellation
// returns ErrCancelled after observing it.
type Func func(ctx context.Context, job *Job) (interface{}, error)

// record is a table entry. All access goes through the manager's mutex; the
// snapshot inside is the single source of truth for the task.
type record struct {
	snap Snapshot
}

// Manager owns the task table and runs task handlers on background goroutines.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*record
	logger  *logging.Logger
	journal *journal
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Manager
type Option func(*Manager)

// WithJournal enables the terminal-task journal at the given path. Terminal
// snapshots are written there for audit; the journal is never read back.
func WithJournal(path string) Option {
	return func(m *Manager) {
		m.journal = newJournal(path)
	}
}

// New creates a task manager. The logger may be nil.
func New(logger *logging.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		tasks:  make(map[string]*record),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Spawn allocates a new pending task and begins executing fn on a background
// goroutine. It returns the task id immediately without waiting for the
// handler to start or finish.
func (m *Manager) Spawn(fn Func) string {
	id := "task-" + uuid.New().String()
	now := time.Now()

	m.mu.Lock()
	m.tasks[id] = &record{snap: Snapshot{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Infof("Task %s spawned", id)
	}

	m.wg.Add(1)
	go m.execute(id, fn)
	return id
}

// execute runs one task handler to completion. A panic in the handler is
// recorded as a failed terminal state; it must never take the process down.
func (m *Manager) execute(id string, fn Func) {
	defer m.wg.Done()

	m.markRunning(id)

	var result interface{}
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("task handler panicked: %v", rec)
			}
		}()
		result, err = fn(m.ctx, &Job{id: id, manager: m})
	}()

	m.finish(id, result, err)
}

func (m *Manager) markRunning(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[id]
	if !ok {
		return
	}
	rec.snap.Status = StatusRunning
	rec.snap.UpdatedAt = time.Now()
}

// finish commits the terminal state. The result or error payload is written
// exactly once, here, by the task's own goroutine.
func (m *Manager) finish(id string, result interface{}, err error) {
	m.mu.Lock()
	rec, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		rec.snap.Status = StatusCompleted
		rec.snap.Result = result
	case errors.Is(err, ErrCancelled):
		rec.snap.Status = StatusCancelled
	default:
		rec.snap.Status = StatusFailed
		rec.snap.Error = err.Error()
	}
	rec.snap.UpdatedAt = time.Now()
	snap := rec.snap
	m.mu.Unlock()

	if m.logger != nil {
		if snap.Status == StatusFailed {
			m.logger.Warnf("Task %s finished: status=%s error=%s", id, snap.Status, snap.Error)
		} else {
			m.logger.Infof("Task %s finished: status=%s", id, snap.Status)
		}
	}

	if m.journal != nil {
		if jerr := m.journal.record(snap); jerr != nil && m.logger != nil {
			m.logger.Warnf("Failed to journal task %s: %v", id, jerr)
		}
	}
}

// Status returns a read-only copy of the task's current state, or false if
// the id was never issued or has been reaped.
func (m *Manager) Status(id string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return rec.snap, true
}

// Cancel sets the cancel flag on a task. Cancellation is cooperative: the
// running handler must poll the flag and exit voluntarily; a handler that
// never checks runs to completion regardless. Cancelling a task that has
// already finished is a no-op, not an error.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if rec.snap.Status.Terminal() {
		return nil
	}
	rec.snap.CancelRequested = true
	rec.snap.UpdatedAt = time.Now()
	return nil
}

// Reap removes a terminal task's record from the table, freeing its memory.
// Reaping a task that has not finished is rejected.
func (m *Manager) Reap(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !rec.snap.Status.Terminal() {
		return ErrStillRunning
	}
	delete(m.tasks, id)
	return nil
}

// List returns snapshots of all tasks, oldest first. A non-empty filter
// restricts the result to tasks in that status.
func (m *Manager) List(filter Status) []Snapshot {
	m.mu.Lock()
	out := make([]Snapshot, 0, len(m.tasks))
	for _, rec := range m.tasks {
		if filter != "" && rec.snap.Status != filter {
			continue
		}
		out = append(out, rec.snap)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Active returns the number of tasks that have not reached a terminal state.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.tasks {
		if !rec.snap.Status.Terminal() {
			n++
		}
	}
	return n
}

// Shutdown cancels the lifecycle context and waits up to grace for running
// handlers to finish. Handlers still running after the grace period are
// abandoned with a warning; their goroutines exit with the process.
func (m *Manager) Shutdown(grace time.Duration) {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		if m.logger != nil {
			m.logger.Warnf("Shutdown grace period (%v) elapsed with %d task(s) still running; abandoning them", grace, m.Active())
		}
	}
}

// Job is the handle a running handler uses to publish progress and observe
// cancellation. It is bound to one task id; the handler never owns the task
// record itself.
type Job struct {
	id      string
	manager *Manager
}

// ID returns the task id this job is bound to.
func (j *Job) ID() string {
	return j.id
}

// SetProgress publishes a progress indicator. Updates after the task has
// reached a terminal state are ignored.
func (j *Job) SetProgress(progress string) {
	m := j.manager
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[j.id]
	if !ok || rec.snap.Status.Terminal() {
		return
	}
	rec.snap.Progress = progress
	rec.snap.UpdatedAt = time.Now()
}

// Cancelled reports whether cancellation has been requested for this task.
func (j *Job) Cancelled() bool {
	m := j.manager
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[j.id]
	if !ok {
		return true
	}
	return rec.snap.CancelRequested
}
