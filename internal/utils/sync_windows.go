//go:build windows

package utils

// syncDir is a no-op on Windows; directory handles cannot be fsynced.
func syncDir(dir string) error { return nil }
