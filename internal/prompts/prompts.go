package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

const (
	SystemPrompt = "system.txt"
	UserPrompt   = "user.txt"
)

//go:embed defaults/*.txt
var defaults embed.FS

// Default returns the bundled prompt name.
func Default(name string) (string, error) {
	data, err := defaults.ReadFile("defaults/" + name)
	if err != nil {
		return "", fmt.Errorf("bundled prompt %q: %w", name, err)
	}
	return string(data), nil
}

// Store loads prompt assets, preferring files in dir over the bundled ones.
type Store struct {
	dir string
}

// NewStore creates a prompt store. An empty dir uses only bundled prompts.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the override directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads a prompt asset as a string.
func (s *Store) Load(name string) (string, error) {
	if name == "" {
		return "", errors.New("prompt name is empty")
	}
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt %q: %w", name, err)
		}
	}
	return Default(name)
}

// WriteDefaults copies the bundled prompts into dir without overwriting
// existing files. It returns the paths it created.
func WriteDefaults(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var created []string
	for _, name := range []string{SystemPrompt, UserPrompt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		content, err := Default(name)
		if err != nil {
			return created, err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return created, err
		}
		created = append(created, path)
	}
	return created, nil
}

// Data holds prompt template variables.
type Data struct {
	TodoPath     string
	NumberedTodo string
	UserInput    string
	Now          string
}

// NewSystemData builds data for the system prompt.
func NewSystemData(todoPath, numbered string, now time.Time) Data {
	return Data{
		TodoPath:     todoPath,
		NumberedTodo: numbered,
		Now:          now.Format("2006-01-02 Monday"),
	}
}

// Renderer renders templates with strict missing-key behavior.
type Renderer struct {
	store *Store
	now   func() time.Time
}

// NewRenderer creates a prompt renderer.
func NewRenderer(store *Store) *Renderer {
	return &Renderer{store: store, now: time.Now}
}

// Render loads and renders a prompt template with required variable checks.
func (r *Renderer) Render(name string, data Data) (string, error) {
	if r == nil || r.store == nil {
		return "", errors.New("prompt renderer is not initialized")
	}
	if err := validateRequired(name, data); err != nil {
		return "", err
	}
	raw, err := r.store.Load(name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

// System renders the system prompt around the numbered document.
func (r *Renderer) System(todoPath, numbered string) (string, error) {
	return r.Render(SystemPrompt, NewSystemData(todoPath, numbered, r.now()))
}

// User renders the user turn for input.
func (r *Renderer) User(input string) (string, error) {
	out, err := r.Render(UserPrompt, Data{UserInput: input})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

type requiredVar int

const (
	reqTodoPath requiredVar = iota
	reqUserInput
	reqNow
)

var requiredByPrompt = map[string][]requiredVar{
	SystemPrompt: {reqTodoPath, reqNow},
	UserPrompt:   {reqUserInput},
}

func validateRequired(name string, data Data) error {
	reqs, ok := requiredByPrompt[name]
	if !ok {
		return fmt.Errorf("unknown prompt %q", name)
	}
	for _, req := range reqs {
		switch req {
		case reqTodoPath:
			if data.TodoPath == "" {
				return fmt.Errorf("prompt %q requires TodoPath", name)
			}
		case reqUserInput:
			if strings.TrimSpace(data.UserInput) == "" {
				return fmt.Errorf("prompt %q requires UserInput", name)
			}
		case reqNow:
			if data.Now == "" {
				return fmt.Errorf("prompt %q requires Now", name)
			}
		default:
			return fmt.Errorf("prompt %q has unsupported requirement", name)
		}
	}
	return nil
}
