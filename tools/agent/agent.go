/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package agent implements the aider tool. It spawns the aider CLI in
// non-interactive mode to perform coding work in a directory, running as a
// background task because agent sessions routinely take minutes.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/schema"
	"github.com/PivotLLM/Foreman/tasks"
)

// DefaultAiderPath is the default path to the aider CLI
const DefaultAiderPath = "aider"

// cancelPollInterval is how often a running session checks the cancel flag
const cancelPollInterval = time.Second

// Agent executes aider sessions
type Agent struct {
	aiderPath string
	model     string
	apiKey    string
	timeout   time.Duration
	logger    *logging.Logger
}

// Result represents the outcome of an aider session
type Result struct {
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	Error    string        `json:"error,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Option configures an Agent
type Option func(*Agent)

// WithAiderPath sets the path to the aider CLI executable
func WithAiderPath(path string) Option {
	return func(a *Agent) {
		a.aiderPath = path
	}
}

// WithModel sets the model aider should use
func WithModel(model string) Option {
	return func(a *Agent) {
		a.model = model
	}
}

// WithAPIKey sets the Anthropic API key passed to aider
func WithAPIKey(key string) Option {
	return func(a *Agent) {
		a.apiKey = key
	}
}

// WithTimeout sets the session timeout
func WithTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		a.timeout = timeout
	}
}

// New creates a new Agent with the given options
func New(logger *logging.Logger, opts ...Option) *Agent {
	a := &Agent{
		aiderPath: DefaultAiderPath,
		timeout:   global.DefaultAgentTimeoutSeconds * time.Second,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Execute runs one aider session in the given directory. Extra holds
// additional aider CLI options appended verbatim. A non-zero exit is reported
// in the result; errors mean the session could not run at all.
func (a *Agent) Execute(ctx context.Context, directory, message string, extra ...string) (*Result, error) {
	if directory == "" {
		return nil, fmt.Errorf("directory must not be empty")
	}
	if !global.DirExists(directory) {
		return nil, fmt.Errorf("directory does not exist: %s", directory)
	}
	if message == "" {
		return nil, fmt.Errorf("message must not be empty")
	}

	args := []string{
		"--message", message,
		"--yes-always",
		"--no-detect-urls",
	}

	if a.apiKey != "" {
		args = append(args, "--api-key", "anthropic="+a.apiKey)
	}

	if a.model != "" {
		args = append(args, "--model", a.model)
	}

	args = append(args, extra...)

	execCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, a.aiderPath, args...)
	cmd.Dir = directory

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if a.logger != nil {
		a.logger.Infof("Agent: starting aider in %s, timeout %v", directory, a.timeout)
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Output:   stdout.String(),
		Duration: duration,
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			result.Error = "session timed out"
			result.ExitCode = -1
			if a.logger != nil {
				a.logger.Warnf("Agent: session timed out after %v", a.timeout)
			}
			return result, nil
		}

		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			result.Error = stderr.String()
			if a.logger != nil {
				a.logger.Warnf("Agent: aider exited with code %d", result.ExitCode)
			}
			return result, nil
		}

		result.Error = err.Error()
		result.ExitCode = -1
		if a.logger != nil {
			a.logger.Errorf("Agent: failed to execute aider: %v", err)
		}
		return result, fmt.Errorf("failed to execute aider: %w", err)
	}

	result.Success = true
	if a.logger != nil {
		a.logger.Infof("Agent: session completed in %v, output size=%d bytes", duration, len(result.Output))
	}

	return result, nil
}

// IsAvailable checks if the aider CLI is available
func (a *Agent) IsAvailable() bool {
	_, err := exec.LookPath(a.aiderPath)
	return err == nil
}

// Descriptor returns the aider tool descriptor
func (a *Agent) Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        global.ToolAider,
		Description: "Start an AI coding agent session as a background task and return a task id immediately. The agent edits files in the given directory according to the message. Check progress with task_status; results arrive when the session ends.",
		Annotations: registry.Annotations{Destructive: true},
		Schema: schema.Object{Fields: []schema.Field{
			{Name: "directory", Kind: schema.String, Description: "Absolute path of the directory to work in (must exist)", Required: true},
			{Name: "message", Kind: schema.String, Description: "Instructions describing the coding work to perform", Required: true},
			{Name: "options", Kind: schema.Array, Description: "Additional aider CLI options, passed through verbatim"},
		}},
		Async: a.runTask,
	}
}

// runTask executes one session as a background task. The session itself is
// not interruptible mid-flight, so cancellation is watched from the side and
// kills the process.
func (a *Agent) runTask(ctx context.Context, args map[string]interface{}, p registry.Progress) (interface{}, error) {
	directory := registry.StringArg(args, "directory", "")
	message := registry.StringArg(args, "message", "")
	options := registry.StringSliceArg(args, "options")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	defer close(watchDone)
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

	p.SetProgress("agent session running in " + directory)

	result, err := a.Execute(runCtx, directory, message, options...)
	if p.Cancelled() {
		return nil, tasks.ErrCancelled
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
