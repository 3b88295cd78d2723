package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestStoreLoadBundled tests that bundled prompts are used without an override dir.
func TestStoreLoadBundled(t *testing.T) {
	store := NewStore("")
	for _, name := range []string{SystemPrompt, UserPrompt} {
		content, err := store.Load(name)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", name, err)
		}
		if content == "" {
			t.Errorf("Load(%s) returned empty content", name)
		}
	}
	if _, err := store.Load(""); err == nil {
		t.Error("Load() with empty name expected error, got nil")
	}
	if _, err := store.Load("missing.txt"); err == nil {
		t.Error("Load() of unknown prompt expected error, got nil")
	}
}

// TestStoreLoadOverride tests that files in the prompt dir win over bundled prompts.
func TestStoreLoadOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, UserPrompt), []byte("Command: {{.UserInput}}"), 0644); err != nil {
		t.Fatalf("Failed to write prompt: %v", err)
	}
	store := NewStore(dir)
	content, err := store.Load(UserPrompt)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if content != "Command: {{.UserInput}}" {
		t.Errorf("Load() = %q", content)
	}
	system, err := store.Load(SystemPrompt)
	if err != nil {
		t.Fatalf("Load(system) error = %v", err)
	}
	if !strings.Contains(system, "{{.NumberedTodo}}") {
		t.Errorf("system prompt did not fall back to bundled content")
	}
}

func TestRendererSystem(t *testing.T) {
	r := NewRenderer(NewStore(""))
	r.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	out, err := r.System("todo.md", "1: * Project\n2:   * Goal")
	if err != nil {
		t.Fatalf("System() error = %v", err)
	}
	for _, want := range []string{"1: * Project\n2:   * Goal", "todo.md", "2026-03-02 Monday", "available tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("System() missing %q", want)
		}
	}
}

func TestRendererUser(t *testing.T) {
	r := NewRenderer(NewStore(""))
	out, err := r.User("complete task A")
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if out != "complete task A" {
		t.Errorf("User() = %q", out)
	}
	if _, err := r.User("  "); err == nil {
		t.Error("User() with blank input expected error")
	}
}

func TestRenderValidation(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		data    Data
		wantErr string
	}{
		{"unknown prompt", "other.txt", Data{}, "unknown prompt"},
		{"system without path", SystemPrompt, Data{Now: "x"}, "requires TodoPath"},
		{"system without now", SystemPrompt, Data{TodoPath: "x"}, "requires Now"},
		{"user without input", UserPrompt, Data{}, "requires UserInput"},
	}
	r := NewRenderer(NewStore(""))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.prompt, tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Render() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRenderMissingKey(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, UserPrompt), []byte("{{.Missing}}"), 0644); err != nil {
		t.Fatalf("Failed to write prompt: %v", err)
	}
	r := NewRenderer(NewStore(dir))
	if _, err := r.User("x"); err == nil {
		t.Error("expected error for unknown template field")
	}
}

func TestRenderNilRenderer(t *testing.T) {
	var r *Renderer
	if _, err := r.Render(UserPrompt, Data{UserInput: "x"}); err == nil {
		t.Error("expected error for nil renderer")
	}
}

func TestWriteDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	created, err := WriteDefaults(dir)
	if err != nil {
		t.Fatalf("WriteDefaults() error = %v", err)
	}
	if len(created) != 2 {
		t.Errorf("created = %v", created)
	}
	created, err = WriteDefaults(dir)
	if err != nil {
		t.Fatalf("second WriteDefaults() error = %v", err)
	}
	if len(created) != 0 {
		t.Errorf("second run overwrote %v", created)
	}
}
