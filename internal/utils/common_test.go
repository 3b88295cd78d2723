package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "exit,quit", []string{"exit", "quit"}},
		{"spaces", " exit , quit ", []string{"exit", "quit"}},
		{"empty parts", "exit,,quit,", []string{"exit", "quit"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitAndTrim(tt.in, ",")
			if len(got) != len(tt.want) {
				t.Fatalf("SplitAndTrim(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitAndTrim(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestJSONPointerToPath(t *testing.T) {
	tests := []struct {
		ptr  string
		want string
	}{
		{"", ""},
		{"#", ""},
		{"/row", "row"},
		{"#/row", "row"},
		{"/ops/0/content", "ops[0].content"},
		{"/a~1b/c~0d", "a/b.c~d"},
	}
	for _, tt := range tests {
		if got := JSONPointerToPath(tt.ptr); got != tt.want {
			t.Errorf("JSONPointerToPath(%q) = %q, want %q", tt.ptr, got, tt.want)
		}
	}
}

func TestStripANSI(t *testing.T) {
	in := "\x1b[31m[-old-]\x1b[m\x1b[32m{+new+}\x1b[m\x1b[K"
	if got := StripANSI(in); got != "[-old-]{+new+}" {
		t.Errorf("StripANSI() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefgh", 6); got != "abc..." {
		t.Errorf("Truncate() = %q, want abc...", got)
	}
	if got := Truncate("abc", 6); got != "abc" {
		t.Errorf("Truncate() = %q, want abc", got)
	}
}

func TestWindowsExecutableExtensions(t *testing.T) {
	t.Setenv("PATHEXT", "COM; .EXE ;.PS1")
	got := WindowsExecutableExtensions()
	for _, ext := range []string{".com", ".exe", ".ps1"} {
		if !got[ext] {
			t.Errorf("missing extension %q in %v", ext, got)
		}
	}
}

func TestResolveExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not used on windows")
	}
	dir := t.TempDir()

	script := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if got, err := ResolveExecutable(script); err != nil || got != script {
		t.Errorf("ResolveExecutable(script) = %q, %v", got, err)
	}

	plain := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plain, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveExecutable(plain); err == nil {
		t.Error("expected error for non-executable file")
	}

	if _, err := ResolveExecutable(""); err == nil {
		t.Error("expected error for empty binary")
	}
}
