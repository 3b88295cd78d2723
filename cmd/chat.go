package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/KainAber/md2do/internal/config"
	"github.com/KainAber/md2do/internal/loop"
	"github.com/KainAber/md2do/internal/prompts"
	"github.com/KainAber/md2do/internal/transcript"
)

// chatCommand runs the interactive session.
func chatCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("md2do chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	once := fs.String("once", "", "Resolve a single command and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	logger := consoleLogger(cfg)
	ctx = log.WithContext(ctx, logger)

	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	registry, err := ws.registry()
	if err != nil {
		return err
	}
	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	sink, err := openEventSink(cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	presenter := loop.NewConsolePresenter(stdout)
	deps := loop.Deps{
		Store:            ws.store,
		Registry:         registry,
		Gateway:          gw,
		Log:              ws.log,
		Renderer:         prompts.NewRenderer(prompts.NewStore(cfg.PromptDir)),
		Presenter:        presenter,
		Events:           sink.writer,
		Views:            ws.views,
		RefreshViews:     cfg.RefreshViews,
		HookCommand:      cfg.HookCommand,
		WorkDir:          ws.dir,
		MaxFunctionCalls: cfg.MaxFunctionCalls,
		ExitKeywords:     cfg.ExitKeywords,
	}
	// A journal held by another session is not fatal; commands still run.
	if journal, err := transcript.Open(cfg.HistoryFile); err != nil {
		logger.Warn("command history disabled", "err", err)
	} else {
		defer journal.Close()
		deps.Journal = journal
	}

	l, err := loop.New(deps)
	if err != nil {
		return err
	}
	logger.Debug("session started", "session", l.Session().ID, "todo", cfg.TodoFile, "log", sink.run.LogPath)

	if command := strings.TrimSpace(*once); command != "" {
		_, err := l.Handle(ctx, command)
		return err
	}

	fmt.Fprintf(stdout, "md2do: editing %s. Enter a command, or an empty line to quit.\n", cfg.TodoFile)
	return l.Run(ctx, loop.NewLineInput(stdin))
}
