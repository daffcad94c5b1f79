/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/schema"
	"github.com/PivotLLM/Foreman/tasks"
)

func newDispatcher(t *testing.T, descs ...*registry.Descriptor) *Dispatcher {
	t.Helper()
	reg := registry.New()
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("Register(%s) = %v", d.Name, err)
		}
	}
	return New(reg, tasks.New(nil), nil)
}

func sumDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name: "sum",
		Schema: schema.Object{Fields: []schema.Field{
			{Name: "a", Kind: schema.Number, Required: true},
			{Name: "b", Kind: schema.Number, Required: true},
		}},
		Sync: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{
				"sum": registry.NumberArg(args, "a", 0) + registry.NumberArg(args, "b", 0),
			}, nil
		},
	}
}

func TestDispatchSync(t *testing.T) {
	d := newDispatcher(t, sumDescriptor())

	result, err := d.Dispatch(context.Background(), Invocation{
		Tool:      "sum",
		Arguments: map[string]interface{}{"a": 2.0, "b": 3.0},
	})
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if result.Accepted() {
		t.Error("Accepted() = true for sync tool")
	}

	value, ok := result.Value.(map[string]interface{})
	if !ok {
		t.Fatalf("Value = %T, want map", result.Value)
	}
	if value["sum"] != 5.0 {
		t.Errorf("sum = %v, want 5", value["sum"])
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newDispatcher(t, sumDescriptor())

	_, err := d.Dispatch(context.Background(), Invocation{Tool: "nope"})
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("Dispatch() = %v, want UnknownToolError", err)
	}
	if unknown.Name != "nope" {
		t.Errorf("Name = %s, want nope", unknown.Name)
	}
}

func TestDispatchValidationRejectsBeforeHandler(t *testing.T) {
	invoked := false
	desc := &registry.Descriptor{
		Name: "strict",
		Schema: schema.Object{Fields: []schema.Field{
			{Name: "a", Kind: schema.Number, Required: true},
			{Name: "b", Kind: schema.Number, Required: true},
		}},
		Sync: func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			invoked = true
			return nil, nil
		},
	}
	d := newDispatcher(t, desc)

	_, err := d.Dispatch(context.Background(), Invocation{
		Tool:      "strict",
		Arguments: map[string]interface{}{"a": 2.0},
	})

	var missing *schema.MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Dispatch() = %v, want MissingFieldError", err)
	}
	if missing.Field != "b" {
		t.Errorf("Field = %s, want b", missing.Field)
	}
	if invoked {
		t.Error("handler invoked despite validation failure")
	}
}

func TestDispatchContainsHandlerPanic(t *testing.T) {
	desc := &registry.Descriptor{
		Name: "explode",
		Sync: func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			panic("boom")
		},
	}
	d := newDispatcher(t, desc)

	_, err := d.Dispatch(context.Background(), Invocation{Tool: "explode"})
	var fault *HandlerFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("Dispatch() = %v, want HandlerFaultError", err)
	}
	if fault.Tool != "explode" {
		t.Errorf("Tool = %s, want explode", fault.Tool)
	}
	if !strings.Contains(fault.Error(), "boom") {
		t.Errorf("Error() = %s, want to contain boom", fault.Error())
	}
}

func TestDispatchAsyncReturnsTaskID(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	desc := &registry.Descriptor{
		Name: "slow",
		Async: func(_ context.Context, _ map[string]interface{}, _ registry.Progress) (interface{}, error) {
			close(started)
			<-release
			return "done", nil
		},
	}

	reg := registry.New()
	if err := reg.Register(desc); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	manager := tasks.New(nil)
	d := New(reg, manager, nil)

	result, err := d.Dispatch(context.Background(), Invocation{Tool: "slow"})
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if !result.Accepted() {
		t.Fatal("Accepted() = false for async tool")
	}
	if !strings.HasPrefix(result.TaskID, "task-") {
		t.Errorf("TaskID = %s, want task- prefix", result.TaskID)
	}
	if result.Value != nil {
		t.Errorf("Value = %v, want nil", result.Value)
	}

	// Dispatch returned while the handler is still running
	<-started
	snap, ok := manager.Status(result.TaskID)
	if !ok {
		t.Fatal("task not found after dispatch")
	}
	if snap.Status.Terminal() {
		t.Errorf("Status = %s before handler finished", snap.Status)
	}

	close(release)
	waitTerminal(t, manager, result.TaskID)

	snap, _ = manager.Status(result.TaskID)
	if snap.Status != tasks.StatusCompleted {
		t.Errorf("Status = %s, want completed", snap.Status)
	}
	if snap.Result != "done" {
		t.Errorf("Result = %v, want done", snap.Result)
	}
}

func waitTerminal(t *testing.T, m *tasks.Manager, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := m.Status(id); ok && snap.Status.Terminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach a terminal state", id)
}
