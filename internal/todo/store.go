package todo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/KainAber/md2do/internal/utils"
)

// Store reads and writes the todo document.
type Store struct {
	path string
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document as lines. A missing file is an empty document.
func (s *Store) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read todo file: %w", err)
	}
	return SplitLines(string(data)), nil
}

// Save replaces the document with lines.
func (s *Store) Save(lines []string) error {
	if err := utils.WriteFileAtomic(s.path, []byte(JoinLines(lines))); err != nil {
		return fmt.Errorf("write todo file: %w", err)
	}
	return nil
}

// Apply loads the document, applies op, and persists the result. It returns
// the lines before and after the operation.
func (s *Store) Apply(op Op) (before, after []string, err error) {
	before, err = s.Load()
	if err != nil {
		return nil, nil, err
	}
	after, err = ApplyOne(before, op)
	if err != nil {
		return before, before, err
	}
	if err := s.Save(after); err != nil {
		return before, before, err
	}
	return before, after, nil
}

// SplitLines splits content into lines. "\r\n" is accepted and a single
// trailing newline does not produce an extra empty line.
func SplitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

// JoinLines joins lines with "\n" and no trailing newline.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// Numbered renders lines as "N: line" with 1-based row numbers.
func Numbered(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d: %s", i+1, line)
	}
	return b.String()
}
