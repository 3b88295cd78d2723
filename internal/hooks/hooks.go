// Package hooks runs the user's post-commit hook command.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/KainAber/md2do/internal/utils"
)

// DefaultTimeout bounds a single hook run.
const DefaultTimeout = 30 * time.Second

// maxOutput caps the captured hook output.
const maxOutput = 4096

// Options configures a hook invocation.
type Options struct {
	// Command is the hook executable, optionally followed by fixed arguments.
	Command string
	// Session, UserCommand and TodoPath are appended as the last three arguments.
	Session     string
	UserCommand string
	TodoPath    string
	WorkDir     string
	Timeout     time.Duration
}

// Result describes a hook run. Ran is false when no hook is configured.
type Result struct {
	Ran      bool
	Command  string
	ExitCode int
	Output   string
	Duration time.Duration
}

// Invoke runs the hook as `<command> <session> <user-command> <todo-path>`.
// A non-zero exit status is returned as an error alongside a populated Result.
func Invoke(ctx context.Context, opts Options) (Result, error) {
	fields := strings.Fields(opts.Command)
	if len(fields) == 0 {
		return Result{}, nil
	}
	bin, err := utils.ResolveExecutable(fields[0])
	if err != nil {
		return Result{}, fmt.Errorf("hook %s: %w", fields[0], err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(fields[1:], opts.Session, opts.UserCommand, opts.TodoPath)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = opts.WorkDir
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Ran:      true,
		Command:  strings.Join(append([]string{bin}, args...), " "),
		Duration: time.Since(start),
		Output:   utils.Truncate(strings.TrimSpace(out.String()), maxOutput),
	}
	if runErr == nil {
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("hook %s: %w", fields[0], ctx.Err())
	}
	return res, fmt.Errorf("hook %s exited with %d: %w", fields[0], res.ExitCode, runErr)
}
