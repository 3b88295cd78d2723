// Package vcs records document changes as commits and computes the diffs
// shown to the user and the model.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/KainAber/md2do/internal/utils"
)

var (
	// ErrNoCommits is returned when the repository has no commits.
	ErrNoCommits = errors.New("no commits")
	// ErrNotOwned is returned when the latest commit lacks the marker.
	ErrNotOwned = errors.New("latest commit was not made by md2do")
)

// VersionControl is the set of repository operations md2do needs.
type VersionControl interface {
	// Diff returns the raw word diff of path against the last commit.
	Diff(ctx context.Context, path string) (string, error)
	// Commit stages and commits path.
	Commit(ctx context.Context, path, message string) error
	// LastCommitMessage returns the subject of the latest commit.
	LastCommitMessage(ctx context.Context) (string, error)
	// ResetHard drops the latest commit and restores the working tree.
	ResetHard(ctx context.Context) error
}

// DefaultMarker prefixes every commit message written by md2do.
const DefaultMarker = "Update todo:"

// Log ties a VersionControl to the todo document.
type Log struct {
	VC     VersionControl
	Path   string
	Marker string
}

// NewLog creates a change log for path. An empty marker selects DefaultMarker.
func NewLog(vc VersionControl, path, marker string) *Log {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Log{VC: vc, Path: path, Marker: marker}
}

// Diff returns the cleaned diff of uncommitted document changes, or "" when
// there are none.
func (l *Log) Diff(ctx context.Context) (string, error) {
	raw, err := l.VC.Diff(ctx, l.Path)
	if err != nil {
		return "", err
	}
	return CleanDiff(raw), nil
}

// CommitMessage returns the message used for command.
func (l *Log) CommitMessage(command string) string {
	return l.Marker + " " + command
}

// Commit records the document under a message naming command.
func (l *Log) Commit(ctx context.Context, command string) error {
	return l.VC.Commit(ctx, l.Path, l.CommitMessage(command))
}

// Rollback resets the latest commit if md2do made it.
func (l *Log) Rollback(ctx context.Context) error {
	msg, err := l.VC.LastCommitMessage(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg) == "" {
		return ErrNoCommits
	}
	if !strings.Contains(msg, l.Marker) {
		return fmt.Errorf("%w: %q", ErrNotOwned, msg)
	}
	if err := l.VC.ResetHard(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

var (
	scaffoldPrefixes = []string{"diff --git", "index", "---", "+++", "@@"}
	blankRuns        = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// CleanDiff strips color codes and diff scaffolding from raw and prefixes
// the result with "Changes:". An empty diff stays empty.
func CleanDiff(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		line = utils.StripANSI(line)
		for _, prefix := range scaffoldPrefixes {
			if strings.HasPrefix(line, prefix) {
				line = ""
				break
			}
		}
		lines[i] = line
	}
	content := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	content = strings.Trim(content, "\n")
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return "Changes:\n" + content
}
