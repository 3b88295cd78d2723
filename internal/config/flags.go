package config

import (
	"flag"

	"github.com/KainAber/md2do/internal/utils"
)

// parseFlags defines the global flags on fs, parses args and applies only the
// flags that were set explicitly. A nil fs gets a fresh ContinueOnError set.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("md2do", flag.ContinueOnError)
	}

	v := *cfg
	m := cfg.Model
	var exitKeywords string

	fs.StringVar(&v.TodoFile, "todo", cfg.TodoFile, "Path to the todo markdown file")
	fs.StringVar(&v.ViewsDir, "views-dir", cfg.ViewsDir, "Directory for saved views")
	fs.StringVar(&v.PromptDir, "prompt-dir", cfg.PromptDir, "Directory with prompt template overrides")
	fs.StringVar(&v.LogDir, "log-dir", cfg.LogDir, "Log directory")
	fs.StringVar(&v.HistoryFile, "history", cfg.HistoryFile, "Command journal database")
	fs.IntVar(&v.MaxFunctionCalls, "max-calls", cfg.MaxFunctionCalls, "Maximum function calls per command")
	fs.StringVar(&exitKeywords, "exit-keywords", "", "Comma-separated words that end the session")
	fs.BoolVar(&v.RefreshViews, "refresh-views", cfg.RefreshViews, "Re-materialize saved views after each commit")
	fs.StringVar(&v.CommitPrefix, "commit-prefix", cfg.CommitPrefix, "Commit message marker")
	fs.BoolVar(&v.GitInit, "git-init", cfg.GitInit, "Initialize a git repo if missing")
	fs.IntVar(&v.GitTimeoutSeconds, "git-timeout", cfg.GitTimeoutSeconds, "Timeout in seconds for each git command")
	fs.StringVar(&v.HookCommand, "hook", cfg.HookCommand, "Hook command to run after each commit")

	fs.StringVar(&m.Name, "model", cfg.Model.Name, "Chat model name")
	fs.StringVar(&m.BaseURL, "base-url", cfg.Model.BaseURL, "Chat completions API base URL")
	fs.Float64Var(&m.Temperature, "temperature", cfg.Model.Temperature, "Sampling temperature")
	fs.IntVar(&m.MaxTokens, "max-tokens", cfg.Model.MaxTokens, "Maximum tokens per model reply")
	fs.IntVar(&m.MaxRetries, "max-retries", cfg.Model.MaxRetries, "Retries for rate-limited or failed model requests")

	fs.StringVar(&v.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&v.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json, logfmt)")
	fs.BoolVar(&v.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Show timestamps in console logs")
	fs.BoolVar(&v.LogCaller, "log-caller", cfg.LogCaller, "Show caller location in console logs")

	if err := fs.Parse(args); err != nil {
		return err
	}

	apply := map[string]struct {
		field string
		set   func()
	}{
		"todo":           {"todo_file", func() { cfg.TodoFile = v.TodoFile }},
		"views-dir":      {"views_dir", func() { cfg.ViewsDir = v.ViewsDir }},
		"prompt-dir":     {"prompt_dir", func() { cfg.PromptDir = v.PromptDir }},
		"log-dir":        {"log_dir", func() { cfg.LogDir = v.LogDir }},
		"history":        {"history_file", func() { cfg.HistoryFile = v.HistoryFile }},
		"max-calls":      {"max_function_calls", func() { cfg.MaxFunctionCalls = v.MaxFunctionCalls }},
		"exit-keywords":  {"exit_keywords", func() { cfg.ExitKeywords = utils.SplitAndTrim(exitKeywords, ",") }},
		"refresh-views":  {"refresh_views", func() { cfg.RefreshViews = v.RefreshViews }},
		"commit-prefix":  {"commit_prefix", func() { cfg.CommitPrefix = v.CommitPrefix }},
		"git-init":       {"git_init", func() { cfg.GitInit = v.GitInit }},
		"git-timeout":    {"git_timeout_seconds", func() { cfg.GitTimeoutSeconds = v.GitTimeoutSeconds }},
		"hook":           {"hook_command", func() { cfg.HookCommand = v.HookCommand }},
		"model":          {"model.name", func() { cfg.Model.Name = m.Name }},
		"base-url":       {"model.base_url", func() { cfg.Model.BaseURL = m.BaseURL }},
		"temperature":    {"model.temperature", func() { cfg.Model.Temperature = m.Temperature }},
		"max-tokens":     {"model.max_tokens", func() { cfg.Model.MaxTokens = m.MaxTokens }},
		"max-retries":    {"model.max_retries", func() { cfg.Model.MaxRetries = m.MaxRetries }},
		"log-level":      {"log_level", func() { cfg.LogLevel = v.LogLevel }},
		"log-format":     {"log_format", func() { cfg.LogFormat = v.LogFormat }},
		"log-timestamps": {"log_timestamps", func() { cfg.LogTimestamps = v.LogTimestamps }},
		"log-caller":     {"log_caller", func() { cfg.LogCaller = v.LogCaller }},
	}

	fs.Visit(func(f *flag.Flag) {
		b, ok := apply[f.Name]
		if !ok {
			return
		}
		b.set()
		if sources != nil {
			sources[b.field] = SourceFlag
		}
	})
	return nil
}
