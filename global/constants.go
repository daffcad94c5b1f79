/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import "fmt"

//goland:noinspection GoCommentStart,GoUnusedConst
const (
	// Configuration constants
	ConfigEnvVar          = "FOREMAN_CONFIG"
	DefaultBaseDir        = "~/.foreman"
	DefaultConfigFileName = "config.json"
	DefaultLogFileName    = "foreman.log"
	DefaultJournalName    = "tasks.json"

	// MCP Tool Names - Web
	ToolBraveSearch = "brave_search"
	ToolScrapeURL   = "scrape_url"

	// MCP Tool Names - Shell
	ToolBash     = "bash"
	ToolBashTask = "bash_task"

	// MCP Tool Names - Code Agent
	ToolAider = "aider"

	// MCP Tool Names - Task Lifecycle
	ToolTaskStatus = "task_status"
	ToolTaskCancel = "task_cancel"
	ToolTaskReap   = "task_reap"
	ToolTaskList   = "task_list"

	// MCP Tool Names - System
	ToolHealth = "health"

	// Default Values
	DefaultSearchCount          = 10
	MaxSearchCount              = 20
	DefaultHTTPTimeoutSeconds   = 30
	DefaultAgentTimeoutSeconds  = 1800
	DefaultShutdownGraceSeconds = 30

	// Log Levels
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
	LogLevelFatal = "FATAL"

	// API Key Prefix
	EnvKeyPrefix = "env:"
)

// ValidateSearchCount validates and normalizes a search result count.
// Returns the validated count or an error if out of bounds.
// If count is 0, returns DefaultSearchCount.
func ValidateSearchCount(count int) (int, error) {
	if count == 0 {
		return DefaultSearchCount, nil
	}
	if count < 1 {
		return 0, fmt.Errorf("count must be at least 1")
	}
	if count > MaxSearchCount {
		return 0, fmt.Errorf("count must be at most %d", MaxSearchCount)
	}
	return count, nil
}
