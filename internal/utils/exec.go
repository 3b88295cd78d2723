package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotExecutable is returned when a resolved path cannot be executed.
var ErrNotExecutable = errors.New("not executable")

// WindowsExecutableExtensions returns the lowercase executable extensions
// (with leading dot) listed in PATHEXT, or the default set if it is unset.
func WindowsExecutableExtensions() map[string]bool {
	exts := map[string]bool{}
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = ".COM;.EXE;.BAT;.CMD"
	}
	for _, ext := range SplitAndTrim(pathext, ";") {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[strings.ToLower(ext)] = true
	}
	return exts
}

// IsExecutable reports whether info describes a file the current platform
// would run. On Windows the decision is made by extension.
func IsExecutable(path string, info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		ext := strings.ToLower(filepath.Ext(path))
		return ext != "" && WindowsExecutableExtensions()[ext]
	}
	return info.Mode().Perm()&0111 != 0
}

// ResolveExecutable resolves binary either as a path or through PATH and
// verifies that the result is executable.
func ResolveExecutable(binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", errors.New("binary not configured")
	}
	if info, err := os.Stat(binary); err == nil {
		if !IsExecutable(binary, info) {
			return binary, fmt.Errorf("%s: %w", binary, ErrNotExecutable)
		}
		return binary, nil
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
