/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package registry maps tool names to their capability descriptors. The
// registry is populated once during process composition and is read-only
// afterwards, so lookups need no locking.
package registry

import (
	"context"
	"fmt"

	"github.com/PivotLLM/Foreman/schema"
)

// Progress is the interface an asynchronous handler uses to publish progress
// and observe cancellation. Cancellation is cooperative: the handler polls
// Cancelled at safe points and exits voluntarily.
type Progress interface {
	SetProgress(progress string)
	Cancelled() bool
}

// SyncFunc is a synchronous tool handler. It blocks the calling request for
// the duration of the invocation.
type SyncFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// AsyncFunc is a long-running tool handler. It is executed on a background
// task and reports progress through p.
type AsyncFunc func(ctx context.Context, args map[string]interface{}, p Progress) (interface{}, error)

// Annotations carries protocol hints about a tool's behavior.
type Annotations struct {
	ReadOnly    bool
	Destructive bool
	OpenWorld   bool
}

// Descriptor describes one registered tool. Exactly one of Sync or Async is
// set; the dispatcher branches exhaustively on which.
type Descriptor struct {
	Name        string
	Description string
	Annotations Annotations
	Schema      schema.Object
	Sync        SyncFunc
	Async       AsyncFunc
}

// IsAsync reports whether this descriptor's handler runs as a background task.
func (d *Descriptor) IsAsync() bool {
	return d.Async != nil
}

// DuplicateNameError reports an attempt to register a tool name twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// Registry holds the registered tool descriptors in registration order.
type Registry struct {
	byName map[string]*Descriptor
	order  []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor. It fails on a duplicate name, a missing name,
// or a descriptor that does not declare exactly one handler kind. The
// parameter schema is compiled here so dispatch never pays compilation cost.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("descriptor must have a name")
	}
	if (d.Sync == nil) == (d.Async == nil) {
		return fmt.Errorf("tool %s must declare exactly one of a sync or async handler", d.Name)
	}
	if _, exists := r.byName[d.Name]; exists {
		return &DuplicateNameError{Name: d.Name}
	}
	if err := d.Schema.Compile(); err != nil {
		return fmt.Errorf("tool %s: %w", d.Name, err)
	}

	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Get returns the descriptor for name, if registered.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// List returns all descriptors in registration order, for deterministic
// discovery responses.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
