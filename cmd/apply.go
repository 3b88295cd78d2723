package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/KainAber/md2do/internal/config"
	"github.com/KainAber/md2do/internal/hooks"
	"github.com/KainAber/md2do/internal/loop"
	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/transcript"
)

// applyCommand applies a batch of edit operations without the model. Each
// operation is atomic on its own; operations that succeed are saved and
// committed even when others in the batch fail.
func applyCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("md2do apply", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "Read the batch from a file instead of stdin")
	dryRun := fs.Bool("dry-run", false, "Print the result without saving or committing")
	message := fs.String("m", "", "Commit message (defaults to the batch comment)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	data, err := readBatch(*file)
	if err != nil {
		return err
	}
	ops, comment, err := todo.ParseBatch(string(data))
	if err != nil {
		return fmt.Errorf("parse batch: %w", err)
	}
	if len(ops) == 0 {
		return errors.New("batch has no operations")
	}

	logger := consoleLogger(cfg)
	ctx = log.WithContext(ctx, logger)

	if *dryRun {
		lines, err := todo.NewStore(cfg.TodoFile).Load()
		if err != nil {
			return err
		}
		after, err := applyBatch(lines, ops)
		if after != nil {
			fmt.Fprintln(stdout, todo.Numbered(after))
		}
		return err
	}

	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	lines, err := ws.store.Load()
	if err != nil {
		return err
	}
	after, applyErr := applyBatch(lines, ops)
	if after == nil {
		return applyErr
	}
	if err := ws.store.Save(after); err != nil {
		return err
	}

	diff, err := ws.log.Diff(ctx)
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	if diff == "" {
		fmt.Fprintln(stdout, "No changes.")
		return applyErr
	}
	loop.NewConsolePresenter(stdout).Diff(diff)

	msg := *message
	if msg == "" {
		msg = comment
	}
	if msg == "" {
		msg = fmt.Sprintf("apply %d operations", len(ops))
	}
	if err := ws.log.Commit(ctx, msg); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	fmt.Fprintf(stdout, "Committed: %s\n", ws.log.CommitMessage(msg))

	if err := ws.refreshViews(); err != nil {
		logger.Warn("refresh views", "err", err)
	}

	session := uuid.NewString()
	if cfg.HookCommand != "" {
		res, err := hooks.Invoke(ctx, hooks.Options{
			Command:     cfg.HookCommand,
			Session:     session,
			UserCommand: msg,
			TodoPath:    cfg.TodoFile,
			WorkDir:     ws.dir,
		})
		if err != nil {
			logger.Warn("hook failed", "err", err)
		} else if res.Ran {
			logger.Info("ran hook", "command", res.Command, "duration", res.Duration)
		}
	}

	journalBatch(cfg, logger, transcript.Entry{
		Session:   session,
		Command:   msg,
		Diff:      diff,
		Committed: true,
		Calls:     batchCalls(ops, applyErr),
	})
	return applyErr
}

// applyBatch runs ops against lines. after is nil when nothing could be
// applied; otherwise a non-nil error lists the operations that failed.
func applyBatch(lines []string, ops []todo.Op) ([]string, error) {
	after, err := todo.Apply(lines, ops)
	if err == nil {
		return after, nil
	}
	var batchErr *todo.BatchError
	if !errors.As(err, &batchErr) {
		return nil, fmt.Errorf("apply batch: %w", err)
	}
	if len(batchErr.Failed) == len(ops) {
		return nil, fmt.Errorf("apply batch: %w", err)
	}
	return after, fmt.Errorf("apply batch: %w", err)
}

func readBatch(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read batch from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return data, nil
}

func batchCalls(ops []todo.Op, applyErr error) []transcript.Call {
	failed := make(map[int]error)
	var batchErr *todo.BatchError
	if errors.As(applyErr, &batchErr) {
		for _, f := range batchErr.Failed {
			failed[f.Index] = f.Err
		}
	}
	calls := make([]transcript.Call, 0, len(ops))
	for i, op := range ops {
		call := transcript.Call{Function: string(op.Kind), Arguments: op.String(), Result: "SUCCESS", OK: true}
		if err, ok := failed[i]; ok {
			call.Result, call.OK = "ERROR: "+err.Error(), false
		}
		calls = append(calls, call)
	}
	return calls
}

func journalBatch(cfg *config.Config, logger *log.Logger, entry transcript.Entry) {
	journal, err := transcript.Open(cfg.HistoryFile)
	if err != nil {
		logger.Warn("command history disabled", "err", err)
		return
	}
	defer journal.Close()
	if _, err := journal.Record(entry); err != nil {
		logger.Warn("record history", "err", err)
	}
}
