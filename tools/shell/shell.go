/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package shell implements the bash and bash_task tools. bash runs a command
// synchronously within the request; bash_task runs one as a background task
// with streamed progress and cooperative cancellation.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/schema"
	"github.com/PivotLLM/Foreman/tasks"
)

// DefaultShell is the shell used to run commands
const DefaultShell = "sh"

// cancelPollInterval is how often a running task checks the cancel flag
const cancelPollInterval = time.Second

// Executor runs shell commands
type Executor struct {
	shell  string
	logger *logging.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithShell sets the shell executable
func WithShell(shell string) Option {
	return func(e *Executor) {
		e.shell = shell
	}
}

// New creates a shell executor with the given options
func New(logger *logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		shell:  DefaultShell,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result represents the outcome of a shell command
type Result struct {
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Reason   string `json:"reason,omitempty"`
}

// Run executes a command and waits for it to finish. A non-zero exit is a
// reported result, not an error; errors mean the command could not run.
func (e *Executor) Run(ctx context.Context, command, cwd string) (*Result, error) {
	if cwd != "" {
		if err := global.EnsureDir(cwd); err != nil {
			return nil, fmt.Errorf("failed to create working directory %s: %w", cwd, err)
		}
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.logger != nil {
		e.logger.Infof("Shell: running command (%d bytes)", len(command))
	}

	err := cmd.Run()
	result := &Result{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute command: %w", err)
	}
	return result, nil
}

// Descriptor returns the synchronous bash tool descriptor
func (e *Executor) Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        global.ToolBash,
		Description: "Execute a shell command and return its output. Commands run non-interactively; use absolute paths or set cwd. For commands that take minutes or longer, use bash_task instead.",
		Annotations: registry.Annotations{Destructive: true},
		Schema: schema.Object{Fields: []schema.Field{
			{Name: "command", Kind: schema.String, Description: "The shell command to execute", Required: true},
			{Name: "cwd", Kind: schema.String, Description: "Working directory for the command (created if missing)"},
		}},
		Sync: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return e.Run(ctx,
				registry.StringArg(args, "command", ""),
				registry.StringArg(args, "cwd", ""))
		},
	}
}

// TaskDescriptor returns the long-running bash_task tool descriptor
func (e *Executor) TaskDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        global.ToolBashTask,
		Description: "Start a long-running shell command as a background task and return a task id immediately. Check progress with task_status, stop it with task_cancel, and free the record with task_reap once finished.",
		Annotations: registry.Annotations{Destructive: true},
		Schema: schema.Object{Fields: []schema.Field{
			{Name: "command", Kind: schema.String, Description: "The shell command to execute", Required: true},
			{Name: "cwd", Kind: schema.String, Description: "Working directory for the command (created if missing)"},
			{Name: "reason", Kind: schema.String, Description: "Why this task is being started (recorded with the result)"},
		}},
		Async: e.runTask,
	}
}

// runTask executes a command as a background task, streaming output line
// counts as progress. Cancellation kills the process; the handler then
// reports the cancelled state.
func (e *Executor) runTask(ctx context.Context, args map[string]interface{}, p registry.Progress) (interface{}, error) {
	command := registry.StringArg(args, "command", "")
	cwd := registry.StringArg(args, "cwd", "")
	reason := registry.StringArg(args, "reason", "")

	if cwd != "" {
		if err := global.EnsureDir(cwd); err != nil {
			return nil, fmt.Errorf("failed to create working directory %s: %w", cwd, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.shell, "-c", command)
	cmd.Dir = cwd

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	p.SetProgress("command started")

	// Watch the cancel flag and kill the process when it is set
	watchDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watchDone:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if p.Cancelled() {
					cancel()
					return
				}
			}
		}
	}()

	var mu sync.Mutex
	var stdout, stderr bytes.Buffer
	lines := 0

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			mu.Lock()
			stdout.WriteString(scanner.Text())
			stdout.WriteByte('\n')
			lines++
			n := lines
			mu.Unlock()
			p.SetProgress(fmt.Sprintf("%d output line(s) captured", n))
		}
	}()
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			mu.Lock()
			stderr.WriteString(scanner.Text())
			stderr.WriteByte('\n')
			mu.Unlock()
		}
	}()

	readers.Wait()
	waitErr := cmd.Wait()
	close(watchDone)

	if p.Cancelled() {
		if e.logger != nil {
			e.logger.Infof("Shell task cancelled after %d output line(s)", lines)
		}
		return nil, tasks.ErrCancelled
	}

	result := &Result{
		Success: waitErr == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Reason:  reason,
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("command did not finish: %w", waitErr)
	}
	return result, nil
}

// Available reports whether the configured shell can be found.
func (e *Executor) Available() bool {
	_, err := exec.LookPath(e.shell)
	return err == nil
}
