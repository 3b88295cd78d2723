package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/KainAber/md2do/internal/config"
	"github.com/KainAber/md2do/internal/functions"
	"github.com/KainAber/md2do/internal/gateway"
	"github.com/KainAber/md2do/internal/logging"
	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/vcs"
	"github.com/KainAber/md2do/internal/views"
)

// newGateway builds the model client. Tests replace it with a scripted one.
var newGateway = func(cfg *config.Config) (gateway.Gateway, error) {
	key, _, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}
	return gateway.NewOpenAI(gateway.Options{
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Name,
		APIKey:      key,
		Temperature: cfg.Model.Temperature,
		TopP:        cfg.Model.TopP,
		MaxTokens:   cfg.Model.MaxTokens,
		Timeout:     cfg.Model.Timeout(),
		MaxRetries:  cfg.Model.MaxRetries,
	})
}

// workspace is the todo document with its change log and views.
type workspace struct {
	cfg   *config.Config
	dir   string
	store *todo.Store
	log   *vcs.Log
	views *views.Manager
}

// openWorkspace prepares the repository holding the todo file, creating it
// when git_init is set.
func openWorkspace(ctx context.Context, cfg *config.Config) (*workspace, error) {
	dir := filepath.Dir(cfg.TodoFile)
	if cfg.GitInit {
		created, err := vcs.Init(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("git init: %w", err)
		}
		if created {
			log.FromContext(ctx).Info("initialized git repository", "dir", dir)
		}
	} else if !vcs.IsRepo(ctx, dir) {
		return nil, fmt.Errorf("%s is not inside a git repository (run git init or set git_init = true)", dir)
	}

	git := vcs.NewGit(dir, cfg.GitTimeout())
	return &workspace{
		cfg:   cfg,
		dir:   dir,
		store: todo.NewStore(cfg.TodoFile),
		log:   vcs.NewLog(git, cfg.TodoFile, cfg.CommitPrefix),
		views: views.NewManager(cfg.ViewsDir),
	}, nil
}

func (w *workspace) registry() (*functions.Registry, error) {
	return functions.New(functions.Env{Store: w.store, Views: w.views, Log: w.log})
}

// refreshViews re-materializes saved views when refresh_views is on.
func (w *workspace) refreshViews() error {
	if !w.cfg.RefreshViews {
		return nil
	}
	lines, err := w.store.Load()
	if err != nil {
		return err
	}
	_, err = w.views.Refresh(lines)
	return err
}

// consoleLogger builds the charmbracelet logger configured by cfg.
func consoleLogger(cfg *config.Config) *log.Logger {
	opts := logging.DefaultConsoleLogOptions()
	opts.Level = logging.ParseLogLevel(cfg.LogLevel)
	opts.Formatter = logging.ParseLogFormatter(cfg.LogFormat)
	opts.ReportTimestamp = cfg.LogTimestamps
	opts.ReportCaller = cfg.LogCaller
	opts.Output = stderr
	return logging.NewLogger(opts)
}

// eventSink sends loop events to the session log file and the console.
type eventSink struct {
	writer logging.LogWriter
	run    *logging.RunLogger
}

func openEventSink(cfg *config.Config, logger *log.Logger) (*eventSink, error) {
	run, err := logging.NewRunLogger(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}
	logger.Debug("session log", "path", run.LogPath)
	return &eventSink{
		writer: logging.NewMultiLogWriter(run.EventWriter(), logging.NewConsoleLogWriterWithLogger(logger)),
		run:    run,
	}, nil
}

func (s *eventSink) Close() error {
	return s.run.Close()
}
