package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/KainAber/md2do/internal/config"
	"github.com/KainAber/md2do/internal/logging"
	"github.com/KainAber/md2do/internal/loop"
	"github.com/KainAber/md2do/internal/prompts"
	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/transcript"
	"github.com/KainAber/md2do/internal/ui"
	"github.com/KainAber/md2do/internal/utils"
	"github.com/KainAber/md2do/internal/views"
)

// viewsCommand lists, creates or refreshes views.
func viewsCommand(cfg *config.Config, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	mgr := views.NewManager(cfg.ViewsDir)
	store := todo.NewStore(cfg.TodoFile)

	switch sub {
	case "list":
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %v", args)
		}
		entries, err := mgr.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(stdout, "No views.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(stdout, "%s: %s\n", e.Name, e.Pattern)
		}
		return nil
	case "create":
		if len(args) != 2 {
			return errors.New("usage: md2do views create <name> <regex>")
		}
		lines, err := store.Load()
		if err != nil {
			return err
		}
		v, err := mgr.Create(args[0], args[1], lines)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created view %s with %d matching lines: %s\n", v.Name, len(v.Matches), v.Path)
		return nil
	case "refresh":
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %v", args)
		}
		lines, err := store.Load()
		if err != nil {
			return err
		}
		refreshed, err := mgr.Refresh(lines)
		for _, v := range refreshed {
			fmt.Fprintf(stdout, "%s: %d lines\n", v.Name, len(v.Matches))
		}
		return err
	default:
		return fmt.Errorf("unknown views subcommand: %s", sub)
	}
}

// rollbackCommand undoes the latest commit if md2do made it.
func rollbackCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	logger := consoleLogger(cfg)
	ctx = log.WithContext(ctx, logger)

	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	msg, err := ws.log.VC.LastCommitMessage(ctx)
	if err != nil {
		return err
	}
	if err := ws.log.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Fprintf(stdout, "Rolled back: %s\n", strings.TrimSpace(msg))
	if err := ws.refreshViews(); err != nil {
		logger.Warn("refresh views", "err", err)
	}
	return nil
}

// diffCommand prints uncommitted changes to the todo file.
func diffCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	ctx = log.WithContext(ctx, consoleLogger(cfg))
	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	diff, err := ws.log.Diff(ctx)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(stdout, "No uncommitted changes.")
		return nil
	}
	loop.NewConsolePresenter(stdout).Diff(diff)
	return nil
}

// showCommand prints the numbered document.
func showCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("md2do show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kindName := fs.String("kind", "", "Only lines of this kind")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	lines, err := todo.NewStore(cfg.TodoFile).Load()
	if err != nil {
		return err
	}
	if *kindName == "" {
		if len(lines) > 0 {
			fmt.Fprintln(stdout, todo.Numbered(lines))
		}
		return nil
	}
	kind, ok := todo.ParseKind(*kindName)
	if !ok {
		return fmt.Errorf("unknown kind %q (expected project|goal|available|blocked|completed|other)", *kindName)
	}
	for _, row := range todo.Filter(lines, kind) {
		fmt.Fprintf(stdout, "%d: %s\n", row, lines[row-1])
	}
	return nil
}

// tuiCommand launches the terminal viewer.
func tuiCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("md2do tui", flag.ContinueOnError)
	fs.SetOutput(stderr)
	highlight := fs.Bool("highlight", false, "Highlight markdown instead of colouring by line kind")
	refresh := fs.Duration("refresh", time.Second, "Reload interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return ui.RunTUI(ctx, ui.Options{
		Store:        todo.NewStore(cfg.TodoFile),
		Views:        views.NewManager(cfg.ViewsDir),
		Highlight:    *highlight,
		TickInterval: *refresh,
	})
}

// historyCommand lists journaled commands.
func historyCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("md2do history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 20, "Number of entries to show (0 = all)")
	session := fs.String("session", "", "Only entries of this session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if _, err := os.Stat(cfg.HistoryFile); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(stdout, "No history.")
		return nil
	}
	journal, err := transcript.Open(cfg.HistoryFile)
	if err != nil {
		return err
	}
	defer journal.Close()

	entries, err := journal.List(*n, *session)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No history.")
		return nil
	}
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

func printEntry(e transcript.Entry) {
	status := "no change"
	switch {
	case e.Error != "":
		status = "error"
	case e.Committed:
		status = "committed"
	}
	fmt.Fprintf(stdout, "#%d %s [%s] %s (%s)\n", e.ID, e.At.Local().Format("2006-01-02 15:04:05"), shortID(e.Session), e.Command, status)
	for _, c := range e.Calls {
		mark := "ok"
		if !c.OK {
			mark = "failed"
		}
		fmt.Fprintf(stdout, "    %s %s: %s\n", c.Function, c.Arguments, mark)
	}
	if e.Reply != "" {
		fmt.Fprintf(stdout, "    > %s\n", utils.Truncate(strings.ReplaceAll(e.Reply, "\n", " "), 120))
	}
	if e.Error != "" {
		fmt.Fprintf(stdout, "    error: %s\n", e.Error)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// tailCommand tails the latest session log.
func tailCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("md2do tail", flag.ContinueOnError)
	fs.SetOutput(stderr)
	follow := fs.Bool("f", false, "Follow the log (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the log (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logDir, err := logging.ProjectLogDir(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		return fmt.Errorf("finding log directory: %w", err)
	}
	logPath, err := logging.FindLatestLog(logDir)
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Fprintln(stdout, "No log files found.")
		return nil
	}

	fmt.Fprintf(stdout, "Tailing: %s\n", logPath)
	if *follow {
		fmt.Fprintln(stdout, "(Ctrl+C to stop)")
	}
	fmt.Fprintln(stdout)
	return logging.TailLog(ctx, stdout, logPath, *n, *follow)
}

// initCommand writes a project config file, the default prompts and an
// empty todo file. Existing files are left alone.
func initCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("md2do init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	withPrompts := fs.Bool("prompts", false, "Also copy the default prompts into prompt_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	configPath := filepath.Join(cfg.ProjectRoot, "md2do.toml")
	if err := createIfMissing(configPath, config.ExampleConfig()); err != nil {
		return err
	}
	if err := createIfMissing(cfg.TodoFile, ""); err != nil {
		return err
	}

	if *withPrompts {
		dir := cfg.PromptDir
		if dir == "" {
			dir = filepath.Join(cfg.ProjectRoot, ".md2do", "prompts")
		}
		created, err := prompts.WriteDefaults(dir)
		if err != nil {
			return fmt.Errorf("write prompts: %w", err)
		}
		for _, p := range created {
			fmt.Fprintf(stdout, "Created %s\n", p)
		}
	}

	if cfg.GitInit {
		ctx = log.WithContext(ctx, consoleLogger(cfg))
		if _, err := openWorkspace(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

func createIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stdout, "Exists  %s\n", path)
		return nil
	}
	if err := utils.WriteFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "Created %s\n", path)
	return nil
}
