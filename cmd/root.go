// Package cmd implements the md2do command line.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KainAber/md2do/internal/config"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Process streams. Tests replace them.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Run executes the md2do CLI.
func Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("md2do", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	// No subcommand, or a flag in its place, means chat.
	subcommand := "chat"
	remaining := fs.Args()
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		subcommand = remaining[0]
		remaining = remaining[1:]
	}

	cfg := cws.Config
	switch subcommand {
	case "chat":
		return chatCommand(ctx, cfg, remaining)
	case "apply":
		return applyCommand(ctx, cfg, remaining)
	case "views":
		return viewsCommand(cfg, remaining)
	case "rollback":
		return rollbackCommand(ctx, cfg, remaining)
	case "diff":
		return diffCommand(ctx, cfg, remaining)
	case "show":
		return showCommand(cfg, remaining)
	case "tui":
		return tuiCommand(ctx, cfg, remaining)
	case "history":
		return historyCommand(cfg, remaining)
	case "tail":
		return tailCommand(ctx, cfg, remaining)
	case "init":
		return initCommand(ctx, cfg, remaining)
	case "doctor":
		return doctorCommand(ctx, cws, remaining)
	case "version":
		return versionCommand()
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Fprintf(stdout, "md2do version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "md2do - edit a markdown todo list in natural language")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  md2do [global options] [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  chat               Interactive session (default command)")
	fmt.Fprintln(w, "  apply              Apply a JSON batch of edit operations")
	fmt.Fprintln(w, "  views [sub]        List, create or refresh regex views")
	fmt.Fprintln(w, "  rollback           Undo the latest md2do commit")
	fmt.Fprintln(w, "  diff               Show uncommitted changes to the todo file")
	fmt.Fprintln(w, "  show               Print the numbered todo file")
	fmt.Fprintln(w, "  tui                Launch the terminal viewer")
	fmt.Fprintln(w, "  history            List journaled commands")
	fmt.Fprintln(w, "  tail               Tail the latest session log")
	fmt.Fprintln(w, "  init               Write a config file, prompts and an empty todo file")
	fmt.Fprintln(w, "  doctor             Check configuration and dependencies")
	fmt.Fprintln(w, "  version            Show version information")
	fmt.Fprintln(w, "  help               Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Chat Options:")
	fmt.Fprintln(w, "  -once string")
	fmt.Fprintln(w, "        Resolve a single command and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Apply Options:")
	fmt.Fprintln(w, "  -file string")
	fmt.Fprintln(w, "        Read the batch from a file instead of stdin")
	fmt.Fprintln(w, "  -dry-run")
	fmt.Fprintln(w, "        Print the result without saving or committing")
	fmt.Fprintln(w, "  -m string")
	fmt.Fprintln(w, "        Commit message (defaults to the batch comment)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Views Subcommands:")
	fmt.Fprintln(w, "  list | create <name> <regex> | refresh")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Show Options:")
	fmt.Fprintln(w, "  -kind string")
	fmt.Fprintln(w, "        Only lines of this kind (project|goal|available|blocked|completed|other)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "History Options:")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of entries to show (default 20, 0 = all)")
	fmt.Fprintln(w, "  -session string")
	fmt.Fprintln(w, "        Only entries of this session")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tail Options:")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the log (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
}
