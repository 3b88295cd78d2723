// Package views maintains named regex filters over the todo document.
//
// The index file (views.md) holds one "name: pattern" line per view and each
// view is materialized as <name>.md containing the matching lines.
package views

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/utils"
)

// IndexFile is the name of the view index inside the views directory.
const IndexFile = "views.md"

var (
	ErrInvalidName    = errors.New("invalid view name")
	ErrInvalidPattern = errors.New("invalid regex pattern")
	ErrNotFound       = errors.New("view not found")
)

// Entry is one line of the index.
type Entry struct {
	Name    string
	Pattern string
}

// View is a materialized entry.
type View struct {
	Entry
	Path    string
	Matches []string
}

// Manager reads and writes views under Dir.
type Manager struct {
	Dir string
}

// NewManager creates a manager for dir.
func NewManager(dir string) *Manager {
	return &Manager{Dir: dir}
}

// IndexPath returns the path of the index file.
func (m *Manager) IndexPath() string {
	return filepath.Join(m.Dir, IndexFile)
}

// ViewPath returns the path of the materialized view name.
func (m *Manager) ViewPath(name string) string {
	return filepath.Join(m.Dir, name+".md")
}

// ValidateName rejects names that are empty or would escape the views
// directory or corrupt the index.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name != strings.TrimSpace(name):
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\:`), strings.Contains(name, ".."), strings.ContainsAny(name, "\r\n"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case name+".md" == IndexFile:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

// Compile compiles pattern, wrapping failures in ErrInvalidPattern.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w - %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// Match returns the 1-based rows of lines matched by pattern.
func Match(pattern string, lines []string) ([]int, error) {
	re, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	return matchRows(re, lines), nil
}

func matchRows(re *regexp.Regexp, lines []string) []int {
	var rows []int
	for i, line := range lines {
		if re.MatchString(line) {
			rows = append(rows, i+1)
		}
	}
	return rows
}

// Create saves the view name with pattern and materializes it against lines.
// Creating an existing view replaces its index entry and match file.
func (m *Manager) Create(name, pattern string, lines []string) (View, error) {
	if err := ValidateName(name); err != nil {
		return View{}, err
	}
	re, err := Compile(pattern)
	if err != nil {
		return View{}, err
	}

	index, err := m.readIndex()
	if err != nil {
		return View{}, err
	}
	entry := name + ": " + pattern
	updated := false
	for i, line := range index {
		if strings.HasPrefix(line, name+":") {
			index[i] = entry
			updated = true
			break
		}
	}
	if !updated {
		index = append(index, entry)
	}
	if err := utils.WriteFileAtomic(m.IndexPath(), []byte(todo.JoinLines(index))); err != nil {
		return View{}, fmt.Errorf("write view index: %w", err)
	}

	return m.materialize(Entry{Name: name, Pattern: pattern}, re, lines)
}

func (m *Manager) materialize(entry Entry, re *regexp.Regexp, lines []string) (View, error) {
	rows := matchRows(re, lines)
	matches := make([]string, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, lines[row-1])
	}
	path := m.ViewPath(entry.Name)
	if err := utils.WriteFileAtomic(path, []byte(todo.JoinLines(matches))); err != nil {
		return View{}, fmt.Errorf("write view %s: %w", entry.Name, err)
	}
	return View{Entry: entry, Path: path, Matches: matches}, nil
}

// List returns the index entries in file order. A missing index is empty.
func (m *Manager) List() ([]Entry, error) {
	index, err := m.readIndex()
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, line := range index {
		name, pattern, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		entries = append(entries, Entry{
			Name:    strings.TrimSpace(name),
			Pattern: strings.TrimPrefix(pattern, " "),
		})
	}
	return entries, nil
}

// Get returns the entry for name.
func (m *Manager) Get(name string) (Entry, error) {
	entries, err := m.List()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Refresh re-materializes every indexed view against lines. Entries with an
// invalid name or pattern are skipped and reported in the returned error.
func (m *Manager) Refresh(lines []string) ([]View, error) {
	entries, err := m.List()
	if err != nil {
		return nil, err
	}
	var views []View
	var errs []error
	for _, e := range entries {
		if err := ValidateName(e.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		re, err := Compile(e.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("view %s: %w", e.Name, err))
			continue
		}
		v, err := m.materialize(e, re, lines)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		views = append(views, v)
	}
	return views, errors.Join(errs...)
}

func (m *Manager) readIndex() ([]string, error) {
	data, err := os.ReadFile(m.IndexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read view index: %w", err)
	}
	return todo.SplitLines(string(data)), nil
}
