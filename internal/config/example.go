package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# md2do configuration file
# Values can be overridden by MD2DO_* environment variables or CLI flags.
# Relative paths are resolved against the directory md2do runs in.

# The markdown todo list
todo_file = "todo.md"

# Saved regex views (index views.md plus one file per view)
views_dir = "views"

# Directory with system.txt / user.txt prompt overrides
# prompt_dir = "prompts"

# Run logs (supports ~ expansion and %VAR% on Windows)
log_dir = "~/.md2do"

# Journal of resolved commands
history_file = ".md2do/history.db"

# Function calls allowed while resolving one command
max_function_calls = 20

# Words that end an interactive session
exit_keywords = ["exit", "quit"]

# Re-materialize every saved view after each commit
refresh_views = false

# Commits made by md2do start with this marker; rollback refuses other commits
commit_prefix = "Update todo:"

# Initialize a git repo if missing
git_init = true
git_timeout_seconds = 30

# Run after each commit as: <hook> <session-id> <command> <todo-path>
# hook_command = "/path/to/hook.sh"

# Console logging
log_level = "info"      # debug, info, warn, error
log_format = "text"     # text, json, logfmt
log_timestamps = false
log_caller = false

[model]
base_url = "https://api.openai.com/v1"
name = "gpt-4o-mini"
# api_key = ""                          # prefer api_key_env or api_key_file
api_key_env = "OPENAI_API_KEY"
api_key_file = "openai_api_config.yml"  # YAML with an "api key:" entry
temperature = 0.0
top_p = 1.0
max_tokens = 512
timeout_seconds = 60
max_retries = 2
`
}
