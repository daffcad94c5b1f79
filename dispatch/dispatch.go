/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package dispatch routes decoded tool invocations to their handlers. It
// resolves the tool by name, validates arguments against the declared schema,
// and either executes the handler inline (synchronous tools) or hands it to
// the task manager (long-running tools).
package dispatch

import (
	"context"
	"fmt"

	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/tasks"
)

// Invocation is one request to execute a tool with concrete arguments. It is
// transient: it exists only for the duration of dispatch.
type Invocation struct {
	Tool      string
	Arguments map[string]interface{}
}

// Result is the outcome of a dispatch. For synchronous tools Value holds the
// handler's return value. For long-running tools TaskID is the accepted task
// id and Value is nil; the handler continues independently.
type Result struct {
	TaskID string      `json:"task_id,omitempty"`
	Value  interface{} `json:"value,omitempty"`
}

// Accepted reports whether this result is an accepted background task.
func (r *Result) Accepted() bool {
	return r.TaskID != ""
}

// UnknownToolError reports an invocation naming a tool that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// HandlerFaultError reports a synchronous handler that panicked. The fault is
// contained at the dispatch boundary and reported as a structured error.
type HandlerFaultError struct {
	Tool  string
	Fault interface{}
}

func (e *HandlerFaultError) Error() string {
	return fmt.Sprintf("tool %s: handler fault: %v", e.Tool, e.Fault)
}

// Dispatcher routes invocations through the registry and validator to the
// correct execution mode.
type Dispatcher struct {
	registry *registry.Registry
	tasks    *tasks.Manager
	logger   *logging.Logger
}

// New creates a dispatcher. The logger may be nil.
func New(reg *registry.Registry, manager *tasks.Manager, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		tasks:    manager,
		logger:   logger,
	}
}

// Dispatch resolves, validates, and executes one invocation. Validation and
// lookup errors are returned to the caller unchanged and are never retried
// here. Every call yields a result or a structured error, never a fault.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (*Result, error) {
	desc, ok := d.registry.Get(inv.Tool)
	if !ok {
		return nil, &UnknownToolError{Name: inv.Tool}
	}

	if err := desc.Schema.Validate(inv.Arguments); err != nil {
		return nil, err
	}

	if desc.IsAsync() {
		args := inv.Arguments
		id := d.tasks.Spawn(func(taskCtx context.Context, job *tasks.Job) (interface{}, error) {
			return desc.Async(taskCtx, args, job)
		})
		if d.logger != nil {
			d.logger.Infof("Tool %s accepted as task %s", inv.Tool, id)
		}
		return &Result{TaskID: id}, nil
	}

	value, err := d.callSync(ctx, desc, inv.Arguments)
	if err != nil {
		return nil, err
	}
	return &Result{Value: value}, nil
}

// callSync invokes a synchronous handler, containing any panic as a
// HandlerFaultError so it cannot propagate past the dispatcher.
func (d *Dispatcher) callSync(ctx context.Context, desc *registry.Descriptor, args map[string]interface{}) (value interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if d.logger != nil {
				d.logger.Errorf("Tool %s handler panicked: %v", desc.Name, rec)
			}
			value = nil
			err = &HandlerFaultError{Tool: desc.Name, Fault: rec}
		}
	}()
	return desc.Sync(ctx, args)
}
