/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package server wires the tool registry, dispatcher, and task manager to an
// MCP server speaking the stdio transport. It owns the protocol boundary:
// requests are decoded here, routed through the dispatcher, and results
// encoded back, so handlers never see transport details.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PivotLLM/Foreman/config"
	"github.com/PivotLLM/Foreman/dispatch"
	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/schema"
	"github.com/PivotLLM/Foreman/tasks"
	"github.com/PivotLLM/Foreman/tools/agent"
	"github.com/PivotLLM/Foreman/tools/scrape"
	"github.com/PivotLLM/Foreman/tools/search"
	"github.com/PivotLLM/Foreman/tools/shell"
)

// Server wraps the MCP server with our services
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	tasks      *tasks.Manager
	agent      *agent.Agent
	shell      *shell.Executor
	mcpServer  *server.MCPServer
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	manager := tasks.New(logger, tasks.WithJournal(cfg.JournalFile()))
	reg := registry.New()

	mcpServer := server.NewMCPServer(
		global.ProgramName,
		global.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	srv := &Server{
		config:     cfg,
		logger:     logger,
		registry:   reg,
		dispatcher: dispatch.New(reg, manager, logger),
		tasks:      manager,
		shell:      shell.New(logger),
		mcpServer:  mcpServer,
	}

	agentOpts := []agent.Option{agent.WithTimeout(cfg.AgentTimeout())}
	if cfg.AgentAiderPath() != "" {
		agentOpts = append(agentOpts, agent.WithAiderPath(cfg.AgentAiderPath()))
	}
	if cfg.AgentModel() != "" {
		agentOpts = append(agentOpts, agent.WithModel(cfg.AgentModel()))
	}
	if cfg.AgentAPIKey() != "" {
		agentOpts = append(agentOpts, agent.WithAPIKey(cfg.AgentAPIKey()))
	}
	srv.agent = agent.New(logger, agentOpts...)

	if err := srv.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return srv, nil
}

// registerTools builds the registry from configured tools and exposes each
// entry, plus the task lifecycle and system tools, over MCP.
func (s *Server) registerTools() error {
	var descriptors []*registry.Descriptor

	if key := s.config.SearchAPIKey(); key != "" {
		descriptors = append(descriptors, search.NewClient(key, s.logger).Descriptor())
	} else {
		s.logger.Warnf("No search API key configured, %s disabled", global.ToolBraveSearch)
	}

	if key := s.config.ScrapeAPIKey(); key != "" {
		descriptors = append(descriptors, scrape.NewClient(key, s.logger).Descriptor())
	} else {
		s.logger.Warnf("No scrape API key configured, %s disabled", global.ToolScrapeURL)
	}

	descriptors = append(descriptors, s.shell.Descriptor(), s.shell.TaskDescriptor())

	if s.agent.IsAvailable() {
		descriptors = append(descriptors, s.agent.Descriptor())
	} else {
		s.logger.Warnf("aider executable not found, %s disabled", global.ToolAider)
	}

	for _, desc := range descriptors {
		if !s.config.ToolEnabled(desc.Name) {
			s.logger.Infof("Tool %s disabled by configuration", desc.Name)
			continue
		}
		if err := s.registry.Register(desc); err != nil {
			return err
		}
		s.mcpServer.AddTool(s.mcpTool(desc), s.dispatchHandler(desc.Name))
	}

	// Task lifecycle tools operate on the manager directly rather than
	// through the dispatcher; they must stay available even when every
	// registry tool is disabled.
	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolTaskStatus,
			mcp.WithDescription("Get the status of a background task, including progress and the result once it has ended."),
			mcp.WithString("id",
				mcp.Description("Task id returned when the task was started"),
				mcp.Required(),
			),
		), s.handleTaskStatus)

	s.mcpServer.AddTool(
		s.defaultTool(global.ToolTaskCancel,
			mcp.WithDescription("Request cancellation of a background task. Cancellation is cooperative: the task stops at its next checkpoint. Cancelling an already-ended task has no effect."),
			mcp.WithString("id",
				mcp.Description("Task id to cancel"),
				mcp.Required(),
			),
		), s.handleTaskCancel)

	s.mcpServer.AddTool(
		s.defaultTool(global.ToolTaskReap,
			mcp.WithDescription("Remove an ended task's record. Fails if the task is still running; cancel it first."),
			mcp.WithString("id",
				mcp.Description("Task id to remove"),
				mcp.Required(),
			),
		), s.handleTaskReap)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolTaskList,
			mcp.WithDescription("List background tasks, optionally filtered by status."),
			mcp.WithString("status",
				mcp.Description("Filter by status: pending, running, completed, failed, cancelled (optional)"),
			),
		), s.handleTaskList)

	// System tools
	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolHealth,
			mcp.WithDescription("Check server health. Reports version, registered tools, active tasks, and any configuration issues."),
		), s.handleHealth)

	return nil
}

// mcpTool converts a registry descriptor into an MCP tool definition
func (s *Server) mcpTool(desc *registry.Descriptor) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(desc.Description)}

	for _, field := range desc.Schema.Fields {
		var fieldOpts []mcp.PropertyOption
		if field.Description != "" {
			fieldOpts = append(fieldOpts, mcp.Description(field.Description))
		}
		if field.Required {
			fieldOpts = append(fieldOpts, mcp.Required())
		}

		switch field.Kind {
		case schema.Number:
			opts = append(opts, mcp.WithNumber(field.Name, fieldOpts...))
		case schema.Boolean:
			opts = append(opts, mcp.WithBoolean(field.Name, fieldOpts...))
		case schema.Array:
			opts = append(opts, mcp.WithArray(field.Name, fieldOpts...))
		case schema.Map:
			opts = append(opts, mcp.WithObject(field.Name, fieldOpts...))
		default:
			opts = append(opts, mcp.WithString(field.Name, fieldOpts...))
		}
	}

	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(desc.Annotations.ReadOnly),
		DestructiveHint: mcp.ToBoolPtr(desc.Annotations.Destructive),
		OpenWorldHint:   mcp.ToBoolPtr(desc.Annotations.OpenWorld),
	}))

	return mcp.NewTool(desc.Name, opts...)
}

// readOnlyTool creates a tool with read-only annotations
// ReadOnly: true, Destructive: false, OpenWorld: false
func (s *Server) readOnlyTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(true),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}))
	return mcp.NewTool(name, opts...)
}

// defaultTool creates a tool with default annotations (non-destructive)
// ReadOnly: false, Destructive: false, OpenWorld: false
func (s *Server) defaultTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(false),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}))
	return mcp.NewTool(name, opts...)
}

// Run starts the MCP server with graceful shutdown
func (s *Server) Run() error {
	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := server.ServeStdio(s.mcpServer)
		// ServeStdio returns when stdin is closed (EOF) or on error
		errChan <- err
	}()

	s.logger.Infof("MCP server started successfully")

	// Wait for shutdown signal, stdin close, or error
	select {
	case <-sigChan:
		s.logger.Info("Shutdown signal received")
		s.drainTasks()
		s.logger.Info("Server stopped")
		// Flush logs before exiting
		if err := s.logger.Sync(); err != nil {
			s.logger.Warnf("Failed to flush logs on shutdown: %v", err)
		}
		return nil

	case err := <-errChan:
		if err != nil {
			s.logger.Errorf("Server error: %v", err)
			// Still drain tasks before exiting on error
			s.drainTasks()
			return fmt.Errorf("server error: %w", err)
		}
		// nil error means stdin was closed (EOF) - normal exit
		s.logger.Info("Connection closed")
		s.drainTasks()
		s.logger.Info("Server exiting")
		return nil
	}
}

// drainTasks cancels outstanding background tasks and waits for them to stop,
// up to the configured grace period.
func (s *Server) drainTasks() {
	if n := s.tasks.Active(); n > 0 {
		s.logger.Infof("Waiting for %d active task(s) to stop...", n)
	}
	s.tasks.Shutdown(s.config.ShutdownGrace())
}
