package config

import "time"

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, lowest priority first.
	Files []string
	// Unknown lists keys present in a config file that map to no field.
	Unknown []string
}

// Default values.
const (
	DefaultTodoFile         = "todo.md"
	DefaultViewsDir         = "views"
	DefaultLogDir           = "~/.md2do"
	DefaultHistoryFile      = ".md2do/history.db"
	DefaultMaxFunctionCalls = 20
	DefaultCommitPrefix     = "Update todo:"
	DefaultGitTimeout       = 30

	DefaultModelName     = "gpt-4o-mini"
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
	DefaultAPIKeyFile    = "openai_api_config.yml"
	DefaultTopP          = 1.0
	DefaultMaxTokens     = 512
	DefaultModelTimeout  = 60
	DefaultModelRetries  = 2
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	userConfigDirName    = ".md2do"
	configFileName       = "md2do.toml"
	hiddenConfigFileName = ".md2do.toml"
	osConfigSubdirName   = "md2do"
)

// DefaultExitKeywords returns the words that end an interactive session.
func DefaultExitKeywords() []string {
	return []string{"exit", "quit"}
}

// Config holds the full configuration for md2do.
type Config struct {
	// Paths
	TodoFile    string `toml:"todo_file"`
	ViewsDir    string `toml:"views_dir"`
	PromptDir   string `toml:"prompt_dir"`
	LogDir      string `toml:"log_dir"`
	HistoryFile string `toml:"history_file"`

	// Dispatch loop
	MaxFunctionCalls int      `toml:"max_function_calls"`
	ExitKeywords     []string `toml:"exit_keywords"`
	RefreshViews     bool     `toml:"refresh_views"`

	// Git
	CommitPrefix      string `toml:"commit_prefix"`
	GitInit           bool   `toml:"git_init"`
	GitTimeoutSeconds int    `toml:"git_timeout_seconds"`

	// Hooks
	HookCommand string `toml:"hook_command"`

	Model ModelConfig `toml:"model"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Project root (computed)
	ProjectRoot string `toml:"-"`
}

// ModelConfig configures the chat-completions endpoint.
type ModelConfig struct {
	BaseURL        string  `toml:"base_url"`
	Name           string  `toml:"name"`
	APIKey         string  `toml:"api_key"`
	APIKeyEnv      string  `toml:"api_key_env"`
	APIKeyFile     string  `toml:"api_key_file"`
	Temperature    float64 `toml:"temperature"`
	TopP           float64 `toml:"top_p"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
}

// GitTimeout returns the per-command git timeout.
func (c *Config) GitTimeout() time.Duration {
	if c.GitTimeoutSeconds <= 0 {
		return DefaultGitTimeout * time.Second
	}
	return time.Duration(c.GitTimeoutSeconds) * time.Second
}

// Timeout returns the HTTP timeout for a single model request.
func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return DefaultModelTimeout * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

