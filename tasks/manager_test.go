/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// waitTerminal polls until the task reaches a terminal state.
func waitTerminal(t *testing.T, m *Manager, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := m.Status(id); ok && snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach a terminal state", id)
	return Snapshot{}
}

func TestSpawnCompletes(t *testing.T) {
	m := New(nil)

	id := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		return map[string]interface{}{"answer": 42}, nil
	})

	if !strings.HasPrefix(id, "task-") {
		t.Errorf("id = %s, want task- prefix", id)
	}

	snap := waitTerminal(t, m, id)
	if snap.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", snap.Status)
	}
	result, ok := snap.Result.(map[string]interface{})
	if !ok || result["answer"] != 42 {
		t.Errorf("Result = %v, want answer=42", snap.Result)
	}
	if snap.Error != "" {
		t.Errorf("Error = %s, want empty", snap.Error)
	}
}

func TestSpawnFailure(t *testing.T) {
	m := New(nil)

	id := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		return nil, errors.New("disk full")
	})

	snap := waitTerminal(t, m, id)
	if snap.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", snap.Status)
	}
	if snap.Error != "disk full" {
		t.Errorf("Error = %s, want disk full", snap.Error)
	}
	if snap.Result != nil {
		t.Errorf("Result = %v, want nil", snap.Result)
	}
}

func TestProgressVisibleWhileRunning(t *testing.T) {
	m := New(nil)

	reported := make(chan struct{})
	release := make(chan struct{})
	id := m.Spawn(func(_ context.Context, job *Job) (interface{}, error) {
		job.SetProgress("halfway")
		close(reported)
		<-release
		return "done", nil
	})

	<-reported
	snap, ok := m.Status(id)
	if !ok {
		t.Fatal("task not found")
	}
	if snap.Progress != "halfway" {
		t.Errorf("Progress = %s, want halfway", snap.Progress)
	}
	if snap.Status.Terminal() {
		t.Errorf("Status = %s before release", snap.Status)
	}

	close(release)
	snap = waitTerminal(t, m, id)
	if snap.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", snap.Status)
	}
}

func TestCooperativeCancel(t *testing.T) {
	m := New(nil)

	polling := make(chan struct{})
	id := m.Spawn(func(_ context.Context, job *Job) (interface{}, error) {
		close(polling)
		for !job.Cancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, ErrCancelled
	})

	<-polling
	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel() = %v", err)
	}

	snap := waitTerminal(t, m, id)
	if snap.Status != StatusCancelled {
		t.Errorf("Status = %s, want cancelled", snap.Status)
	}
	if !snap.CancelRequested {
		t.Error("CancelRequested = false, want true")
	}
	if snap.Error != "" {
		t.Errorf("Error = %s, want empty", snap.Error)
	}
}

func TestCancelIgnoredByHandler(t *testing.T) {
	// A handler that never checks the flag runs to completion; the cancel
	// request is recorded but does not affect the outcome.
	m := New(nil)

	cancelled := make(chan struct{})
	id := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		<-cancelled
		return "finished anyway", nil
	})

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel() = %v", err)
	}
	close(cancelled)

	snap := waitTerminal(t, m, id)
	if snap.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", snap.Status)
	}
	if snap.Result != "finished anyway" {
		t.Errorf("Result = %v, want finished anyway", snap.Result)
	}
}

func TestCancelTerminalIsNoOp(t *testing.T) {
	m := New(nil)

	id := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		return "done", nil
	})
	before := waitTerminal(t, m, id)

	if err := m.Cancel(id); err != nil {
		t.Errorf("Cancel() on terminal task = %v, want nil", err)
	}

	after, ok := m.Status(id)
	if !ok {
		t.Fatal("task not found")
	}
	if after != before {
		t.Errorf("snapshot changed by post-terminal cancel: %+v != %+v", after, before)
	}
}

func TestCancelUnknownTask(t *testing.T) {
	m := New(nil)
	if err := m.Cancel("task-does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel() = %v, want ErrNotFound", err)
	}
}

func TestReapLifecycle(t *testing.T) {
	m := New(nil)

	release := make(chan struct{})
	id := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		<-release
		return nil, nil
	})

	// Reaping a running task is rejected and leaves the record intact
	if err := m.Reap(id); !errors.Is(err, ErrStillRunning) {
		t.Errorf("Reap() while running = %v, want ErrStillRunning", err)
	}
	if _, ok := m.Status(id); !ok {
		t.Fatal("record removed by rejected reap")
	}

	close(release)
	waitTerminal(t, m, id)

	if err := m.Reap(id); err != nil {
		t.Fatalf("Reap() = %v", err)
	}
	if _, ok := m.Status(id); ok {
		t.Error("task still present after reap")
	}
	if err := m.Reap(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Reap() = %v, want ErrNotFound", err)
	}
}

func TestPanicBecomesFailed(t *testing.T) {
	m := New(nil)

	id := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		panic("handler bug")
	})

	snap := waitTerminal(t, m, id)
	if snap.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", snap.Status)
	}
	if !strings.Contains(snap.Error, "panicked") || !strings.Contains(snap.Error, "handler bug") {
		t.Errorf("Error = %s, want panic description", snap.Error)
	}
}

func TestListAndFilter(t *testing.T) {
	m := New(nil)

	done := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		return nil, nil
	})
	waitTerminal(t, m, done)

	release := make(chan struct{})
	running := m.Spawn(func(_ context.Context, _ *Job) (interface{}, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	all := m.List("")
	if len(all) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(all))
	}
	// Oldest first
	if all[0].ID != done {
		t.Errorf("List()[0] = %s, want %s", all[0].ID, done)
	}

	completed := m.List(StatusCompleted)
	if len(completed) != 1 || completed[0].ID != done {
		t.Errorf("List(completed) = %v, want [%s]", completed, done)
	}

	if got := m.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
	_ = running
}

func TestShutdownCancelsLifecycleContext(t *testing.T) {
	m := New(nil)

	id := m.Spawn(func(ctx context.Context, _ *Job) (interface{}, error) {
		<-ctx.Done()
		return nil, ErrCancelled
	})

	start := time.Now()
	m.Shutdown(5 * time.Second)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Shutdown took %v, want prompt return", elapsed)
	}

	snap, ok := m.Status(id)
	if !ok {
		t.Fatal("task not found after shutdown")
	}
	if snap.Status != StatusCancelled {
		t.Errorf("Status = %s, want cancelled", snap.Status)
	}
}

func TestJobProgressAfterTerminalIgnored(t *testing.T) {
	m := New(nil)

	jobCh := make(chan *Job, 1)
	id := m.Spawn(func(_ context.Context, job *Job) (interface{}, error) {
		jobCh <- job
		return nil, nil
	})
	job := <-jobCh
	waitTerminal(t, m, id)

	job.SetProgress("too late")
	snap, _ := m.Status(id)
	if snap.Progress == "too late" {
		t.Error("progress updated after terminal state")
	}
}
