package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.md2do/md2do.toml or OS-specific config dir)
// 3. Project config file (md2do.toml or .md2do.toml in current directory)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
// Sources is keyed by the dotted TOML key (for example "model.name").
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	cws := &ConfigWithSources{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}
	cfg := cws.Config

	setDefaults(cfg)
	for _, field := range configFields() {
		cws.Sources[field] = SourceDefault
	}

	if path := findUserConfigFile(); path != "" {
		if err := cws.loadFile(path, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
	}
	if path := findProjectConfigFile(); path != "" {
		if err := cws.loadFile(path, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg, cws.Sources); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := parseFlags(cfg, fs, args, cws.Sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	return cws, nil
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"todo_file",
		"views_dir",
		"prompt_dir",
		"log_dir",
		"history_file",
		"max_function_calls",
		"exit_keywords",
		"refresh_views",
		"commit_prefix",
		"git_init",
		"git_timeout_seconds",
		"hook_command",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
		"model.base_url",
		"model.name",
		"model.api_key",
		"model.api_key_env",
		"model.api_key_file",
		"model.temperature",
		"model.top_p",
		"model.max_tokens",
		"model.timeout_seconds",
		"model.max_retries",
	}
}

// loadConfigFile decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func loadConfigFile(cfg *Config, path string) (toml.MetaData, error) {
	return toml.DecodeFile(path, cfg)
}

func (cws *ConfigWithSources) loadFile(path string, source ConfigSource) error {
	md, err := loadConfigFile(cws.Config, path)
	if err != nil {
		return err
	}
	cws.Files = append(cws.Files, path)
	for _, field := range configFields() {
		if md.IsDefined(strings.Split(field, ".")...) {
			cws.Sources[field] = source
		}
	}
	for _, key := range md.Undecoded() {
		cws.Unknown = append(cws.Unknown, path+": "+key.String())
	}
	return nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.TodoFile = DefaultTodoFile
	cfg.ViewsDir = DefaultViewsDir
	cfg.LogDir = DefaultLogDir
	cfg.HistoryFile = DefaultHistoryFile
	cfg.MaxFunctionCalls = DefaultMaxFunctionCalls
	cfg.ExitKeywords = DefaultExitKeywords()
	cfg.CommitPrefix = DefaultCommitPrefix
	cfg.GitInit = true
	cfg.GitTimeoutSeconds = DefaultGitTimeout
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat

	cfg.Model = ModelConfig{
		BaseURL:        DefaultBaseURL,
		Name:           DefaultModelName,
		APIKeyEnv:      DefaultAPIKeyEnv,
		APIKeyFile:     DefaultAPIKeyFile,
		TopP:           DefaultTopP,
		MaxTokens:      DefaultMaxTokens,
		TimeoutSeconds: DefaultModelTimeout,
		MaxRetries:     DefaultModelRetries,
	}
}

// finalizeConfig computes derived values and validates the result.
func finalizeConfig(cfg *Config) error {
	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.TodoFile = cfg.resolve(cfg.TodoFile)
	cfg.ViewsDir = cfg.resolve(cfg.ViewsDir)
	cfg.HistoryFile = cfg.resolve(cfg.HistoryFile)
	cfg.PromptDir = cfg.resolve(cfg.PromptDir)
	cfg.Model.APIKeyFile = cfg.resolve(cfg.Model.APIKeyFile)
	cfg.Model.BaseURL = strings.TrimRight(cfg.Model.BaseURL, "/")

	var keywords []string
	for _, kw := range cfg.ExitKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	cfg.ExitKeywords = keywords

	return validate(cfg)
}

// resolve expands p and makes it absolute against the project root.
// Empty paths stay empty.
func (c *Config) resolve(p string) string {
	if p == "" {
		return ""
	}
	p = expandPath(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.ProjectRoot, p)
	}
	return filepath.Clean(p)
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.MaxFunctionCalls < 1 {
		errs = append(errs, fmt.Errorf("max_function_calls must be at least 1, got %d", cfg.MaxFunctionCalls))
	}
	if strings.TrimSpace(cfg.CommitPrefix) == "" {
		errs = append(errs, errors.New("commit_prefix must not be empty"))
	}
	if cfg.Model.Name == "" {
		errs = append(errs, errors.New("model.name must not be empty"))
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature must be within 0-2, got %g", cfg.Model.Temperature))
	}
	if cfg.Model.TopP < 0 || cfg.Model.TopP > 1 {
		errs = append(errs, fmt.Errorf("model.top_p must be within 0-1, got %g", cfg.Model.TopP))
	}
	if cfg.Model.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("model.max_tokens must be at least 1, got %d", cfg.Model.MaxTokens))
	}
	if cfg.Model.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("model.max_retries must not be negative, got %d", cfg.Model.MaxRetries))
	}
	return errors.Join(errs...)
}
