package vcs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/KainAber/md2do/internal/todo"
)

type snapshot struct {
	message string
	content string
}

// Memory is an in-process VersionControl used in tests. It keeps committed
// snapshots of a single working file.
type Memory struct {
	mu      sync.Mutex
	path    string
	commits []snapshot

	// FailDiff and FailCommit, when set, are returned by the matching calls.
	FailDiff   error
	FailCommit error
}

// NewMemory returns an empty repository tracking the file at path.
func NewMemory(path string) *Memory {
	return &Memory{path: path}
}

// Seed records an initial commit with message and content.
func (m *Memory) Seed(message, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append(m.commits, snapshot{message: message, content: content})
}

// Commits returns the commit messages, oldest first.
func (m *Memory) Commits() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.commits))
	for _, c := range m.commits {
		out = append(out, c.message)
	}
	return out
}

func (m *Memory) head() string {
	if len(m.commits) == 0 {
		return ""
	}
	return m.commits[len(m.commits)-1].content
}

func readWorking(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return string(data), err
}

// Diff compares the file with the latest snapshot line by line.
func (m *Memory) Diff(_ context.Context, path string) (string, error) {
	if m.FailDiff != nil {
		return "", m.FailDiff
	}
	working, err := readWorking(path)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	head := m.head()
	m.mu.Unlock()
	if working == head {
		return "", nil
	}
	return lineDiff(todo.SplitLines(head), todo.SplitLines(working)), nil
}

// Commit snapshots the file. Committing an unchanged file is an error, as
// with git.
func (m *Memory) Commit(_ context.Context, path, message string) error {
	if m.FailCommit != nil {
		return m.FailCommit
	}
	working, err := readWorking(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commits) > 0 && working == m.head() {
		return errors.New("nothing to commit")
	}
	m.commits = append(m.commits, snapshot{message: message, content: working})
	return nil
}

// LastCommitMessage returns the latest message or ErrNoCommits.
func (m *Memory) LastCommitMessage(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commits) == 0 {
		return "", ErrNoCommits
	}
	return m.commits[len(m.commits)-1].message, nil
}

// ResetHard drops the latest snapshot and restores the working file.
func (m *Memory) ResetHard(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commits) < 2 {
		return errors.New("memory: cannot reset past the first commit")
	}
	m.commits = m.commits[:len(m.commits)-1]
	return os.WriteFile(m.path, []byte(m.head()), 0644)
}

// lineDiff renders a minimal line diff in git's plain word-diff notation.
func lineDiff(before, after []string) string {
	n, m := len(before), len(after)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if before[i] == after[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var b strings.Builder
	b.WriteString("@@ -1 +1 @@\n")
	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && before[i] == after[j]:
			i++
			j++
		case i < n && (j == m || lcs[i+1][j] >= lcs[i][j+1]):
			fmt.Fprintf(&b, "[-%s-]\n", before[i])
			i++
		default:
			fmt.Fprintf(&b, "{+%s+}\n", after[j])
			j++
		}
	}
	return b.String()
}
