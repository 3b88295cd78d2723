package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// findProjectConfigFile looks for a config file in the current directory.
func findProjectConfigFile() string {
	for _, name := range []string{configFileName, hiddenConfigFileName} {
		if fileExists(name) {
			return name
		}
	}
	return ""
}

// findUserConfigFile looks for a user-level config file.
// ~/.md2do/md2do.toml wins over the OS-specific config directory.
func findUserConfigFile() string {
	for _, p := range userConfigCandidates() {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// userConfigCandidates lists user config paths in lookup order.
func userConfigCandidates() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, userConfigDirName, configFileName))
	}
	if dir := osUserConfigDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, osConfigSubdirName, configFileName))
	}
	return paths
}

// osUserConfigDir returns the OS-specific user config directory.
// Returns empty string if the directory cannot be determined.
func osUserConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return os.Getenv("APPDATA")
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// ConfigFile returns the highest-priority config file that was read, or "".
func (cws *ConfigWithSources) ConfigFile() string {
	if len(cws.Files) == 0 {
		return ""
	}
	return cws.Files[len(cws.Files)-1]
}

// SourceOf reports where the value for a dotted TOML key came from.
func (cws *ConfigWithSources) SourceOf(field string) ConfigSource {
	if s, ok := cws.Sources[field]; ok {
		return s
	}
	return SourceDefault
}
