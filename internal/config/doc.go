// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.md2do/md2do.toml or OS-specific config directory)
// 3. Project config file (md2do.toml or .md2do.toml in the working directory)
// 4. Environment variables (MD2DO_*, plus DEBUG)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.md2do/md2do.toml (preferred)
// - Windows: %APPDATA%\md2do\md2do.toml
// - macOS: ~/Library/Application Support/md2do/md2do.toml
// - Linux/BSD: $XDG_CONFIG_HOME/md2do/md2do.toml or ~/.config/md2do/md2do.toml
//
// The model API key is resolved separately by ResolveAPIKey, which also reads
// the legacy openai_api_config.yml file.
package config
