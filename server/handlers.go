/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/PivotLLM/Foreman/dispatch"
	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/tasks"
)

// createJSONResult creates an MCP tool result with JSON content
func createJSONResult(data interface{}) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError("Failed to create JSON result"), nil
	}
	return result, nil
}

// logToolCall logs an MCP tool invocation at INFO level
func (s *Server) logToolCall(toolName string, params map[string]string) {
	var parts []string
	for k, v := range params {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if len(parts) == 0 {
		s.logger.Infof("Tool %s called", toolName)
	} else {
		s.logger.Infof("Tool %s called: %s", toolName, strings.Join(parts, ", "))
	}
}

// dispatchHandler returns the MCP handler for a registry tool. Every registry
// tool goes through the same path: decode arguments, dispatch, encode the
// outcome. Dispatch errors come back as tool errors, not protocol errors.
func (s *Server) dispatchHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.logToolCall(name, nil)

		result, err := s.dispatcher.Dispatch(ctx, dispatch.Invocation{
			Tool:      name,
			Arguments: req.GetArguments(),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if result.Accepted() {
			return createJSONResult(map[string]interface{}{
				"task_id": result.TaskID,
				"status":  string(tasks.StatusPending),
				"note":    "task accepted; poll task_status for progress and results",
			})
		}
		return createJSONResult(result.Value)
	}
}

// handleTaskStatus handles the task_status MCP tool
func (s *Server) handleTaskStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "id", "")
	s.logToolCall(global.ToolTaskStatus, map[string]string{"id": id})

	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	snap, ok := s.tasks.Status(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", id)), nil
	}
	return createJSONResult(snap)
}

// handleTaskCancel handles the task_cancel MCP tool
func (s *Server) handleTaskCancel(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "id", "")
	s.logToolCall(global.ToolTaskCancel, map[string]string{"id": id})

	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := s.tasks.Cancel(id); err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to cancel task: %v", err)), nil
	}

	return createJSONResult(map[string]interface{}{
		"id":     id,
		"status": "cancellation requested",
	})
}

// handleTaskReap handles the task_reap MCP tool
func (s *Server) handleTaskReap(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "id", "")
	s.logToolCall(global.ToolTaskReap, map[string]string{"id": id})

	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := s.tasks.Reap(id); err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", id)), nil
		}
		if errors.Is(err, tasks.ErrStillRunning) {
			return mcp.NewToolResultError(fmt.Sprintf("task %s is still running; cancel it before reaping", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to reap task: %v", err)), nil
	}

	return createJSONResult(map[string]interface{}{
		"id":     id,
		"status": "reaped",
	})
}

// handleTaskList handles the task_list MCP tool
func (s *Server) handleTaskList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := mcp.ParseString(req, "status", "")
	s.logToolCall(global.ToolTaskList, map[string]string{"status": status})

	if status != "" {
		switch tasks.Status(status) {
		case tasks.StatusPending, tasks.StatusRunning, tasks.StatusCompleted, tasks.StatusFailed, tasks.StatusCancelled:
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid status filter: %s", status)), nil
		}
	}

	list := s.tasks.List(tasks.Status(status))
	return createJSONResult(map[string]interface{}{
		"count": len(list),
		"tasks": list,
	})
}

// handleHealth handles the health MCP tool
func (s *Server) handleHealth(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolHealth, nil)

	var issues []string
	if s.config.SearchAPIKey() == "" {
		issues = append(issues, "no search API key configured; brave_search unavailable")
	}
	if s.config.ScrapeAPIKey() == "" {
		issues = append(issues, "no scrape API key configured; scrape_url unavailable")
	}
	if !s.shell.Available() {
		issues = append(issues, "shell executable not found; bash and bash_task will fail")
	}
	if !s.agent.IsAvailable() {
		issues = append(issues, "aider executable not found; aider unavailable")
	}

	result := map[string]interface{}{
		"healthy":      len(issues) == 0,
		"version":      global.Version,
		"tools":        s.registry.Names(),
		"active_tasks": s.tasks.Active(),
		"config":       s.config.ConfigPath(),
	}
	if len(issues) > 0 {
		result["issues"] = issues
	}
	return createJSONResult(result)
}
