package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KainAber/md2do/internal/utils"
)

// loadFromEnv overrides config from MD2DO_* environment variables and records
// each override in sources when it is non-nil.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	mark := func(field string) {
		if sources != nil {
			sources[field] = SourceEnv
		}
	}
	str := func(key, field string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
			mark(field)
		}
	}
	boolean := func(key, field string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = boolFromString(v)
			mark(field)
		}
	}

	str("MD2DO_TODO", "todo_file", &cfg.TodoFile)
	str("MD2DO_VIEWS_DIR", "views_dir", &cfg.ViewsDir)
	str("MD2DO_LOG_DIR", "log_dir", &cfg.LogDir)
	str("MD2DO_PROMPT_DIR", "prompt_dir", &cfg.PromptDir)
	str("MD2DO_HISTORY", "history_file", &cfg.HistoryFile)
	str("MD2DO_HOOK", "hook_command", &cfg.HookCommand)
	str("MD2DO_COMMIT_PREFIX", "commit_prefix", &cfg.CommitPrefix)
	str("MD2DO_MODEL", "model.name", &cfg.Model.Name)
	str("MD2DO_BASE_URL", "model.base_url", &cfg.Model.BaseURL)
	str("MD2DO_LOG_LEVEL", "log_level", &cfg.LogLevel)
	str("MD2DO_LOG_FORMAT", "log_format", &cfg.LogFormat)

	boolean("MD2DO_GIT_INIT", "git_init", &cfg.GitInit)
	boolean("MD2DO_REFRESH_VIEWS", "refresh_views", &cfg.RefreshViews)
	boolean("MD2DO_LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	boolean("MD2DO_LOG_CALLER", "log_caller", &cfg.LogCaller)

	if v := os.Getenv("MD2DO_MAX_FUNCTION_CALLS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("MD2DO_MAX_FUNCTION_CALLS: %w", err)
		}
		cfg.MaxFunctionCalls = n
		mark("max_function_calls")
	}
	if v := os.Getenv("MD2DO_EXIT_KEYWORDS"); v != "" {
		cfg.ExitKeywords = utils.SplitAndTrim(v, ",")
		mark("exit_keywords")
	}

	// Any non-empty DEBUG turns on debug logging.
	if os.Getenv("DEBUG") != "" {
		cfg.LogLevel = "debug"
		mark("log_level")
	}
	return nil
}

// boolFromString parses common truthy spellings. Anything else is false.
func boolFromString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
