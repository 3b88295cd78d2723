package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds each git invocation.
const DefaultTimeout = 30 * time.Second

// Run executes a git command in dir and returns its combined output.
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	logger := log.FromContext(ctx).With("dir", dir, "args", strings.Join(args, " "))
	logger.Debug("git run start")
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		preview := strings.TrimSpace(string(output))
		if len(preview) > 200 {
			preview = preview[:200]
		}
		logger.Debug("git run failed", "err", err, "output", preview)
		return string(output), fmt.Errorf("git %s failed: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	logger.Debug("git run ok", "output_len", len(output))
	return string(output), nil
}

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(ctx context.Context, dir string) bool {
	out, err := Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Init creates a repository in dir unless one already exists.
func Init(ctx context.Context, dir string) (bool, error) {
	if IsRepo(ctx, dir) {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, err
	}
	if _, err := Run(ctx, dir, "init"); err != nil {
		return false, err
	}
	return true, nil
}

// Git implements VersionControl with the git binary.
type Git struct {
	Dir     string
	Timeout time.Duration
}

// NewGit returns a Git rooted at dir.
func NewGit(dir string, timeout time.Duration) *Git {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Git{Dir: dir, Timeout: timeout}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()
	return Run(ctx, g.Dir, args...)
}

func (g *Git) rel(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	if rel, err := filepath.Rel(g.Dir, path); err == nil {
		return rel
	}
	return path
}

// Diff returns the plain word diff of path against HEAD, so staged but
// uncommitted changes still show. An untracked document is marked
// intent-to-add so its whole content shows as added. Before the first
// commit the diff is taken against the index.
func (g *Git) Diff(ctx context.Context, path string) (string, error) {
	rel := g.rel(path)
	if _, err := os.Stat(filepath.Join(g.Dir, rel)); err == nil {
		if _, err := g.run(ctx, "ls-files", "--error-unmatch", "--", rel); err != nil {
			if _, err := g.run(ctx, "add", "--intent-to-add", "--", rel); err != nil {
				return "", err
			}
		}
	}
	hasHead, err := g.hasHead(ctx)
	if err != nil {
		return "", err
	}
	args := []string{"diff", "-U1", "--word-diff=plain", "--no-color"}
	if hasHead {
		args = append(args, "HEAD")
	}
	return g.run(ctx, append(args, "--", rel)...)
}

// hasHead reports whether the repository has a commit. rev-parse exits 1
// for a missing HEAD; any other failure is returned.
func (g *Git) hasHead(ctx context.Context) (bool, error) {
	_, err := g.run(ctx, "rev-parse", "--verify", "-q", "HEAD")
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// Commit stages path and commits only that path.
func (g *Git) Commit(ctx context.Context, path, message string) error {
	rel := g.rel(path)
	if _, err := g.run(ctx, "add", "--", rel); err != nil {
		return err
	}
	_, err := g.run(ctx, "commit", "-m", message, "--", rel)
	return err
}

// LastCommitMessage returns the latest commit subject, or ErrNoCommits.
func (g *Git) LastCommitMessage(ctx context.Context) (string, error) {
	hasHead, err := g.hasHead(ctx)
	if err != nil {
		return "", err
	}
	if !hasHead {
		return "", ErrNoCommits
	}
	out, err := g.run(ctx, "log", "-1", "--format=%s")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ResetHard runs git reset --hard HEAD~1.
func (g *Git) ResetHard(ctx context.Context) error {
	_, err := g.run(ctx, "reset", "--hard", "HEAD~1")
	return err
}
