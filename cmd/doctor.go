package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/KainAber/md2do/internal/config"
	"github.com/KainAber/md2do/internal/prompts"
	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/utils"
	"github.com/KainAber/md2do/internal/vcs"
	"github.com/KainAber/md2do/internal/views"
)

// doctorCommand checks configuration, dependencies and the files md2do uses.
func doctorCommand(ctx context.Context, cws *config.ConfigWithSources, args []string) error {
	fs := flag.NewFlagSet("md2do doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	cfg := cws.Config
	ctx = log.WithContext(ctx, consoleLogger(cfg))

	fmt.Fprintln(stdout, "md2do doctor")
	fmt.Fprintln(stdout, "============")
	fmt.Fprintln(stdout)

	allOK := true
	check := func(ok bool) {
		if !ok {
			allOK = false
		}
	}

	fmt.Fprintf(stdout, "Project root: %s\n", cfg.ProjectRoot)
	fmt.Fprintln(stdout)

	check(doctorConfig(cws, *verbose))
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Dependencies:")
	check(checkBinary("git", "git", true))
	if cfg.HookCommand != "" {
		fields := strings.Fields(cfg.HookCommand)
		check(checkBinary("hook", fields[0], true))
	}
	fmt.Fprintln(stdout)

	check(doctorRepository(ctx, cfg))
	fmt.Fprintln(stdout)

	check(doctorTodo(cfg, *verbose))
	fmt.Fprintln(stdout)

	check(doctorViews(cfg, *verbose))
	fmt.Fprintln(stdout)

	check(doctorPrompts(cfg))
	fmt.Fprintln(stdout)

	check(doctorModel(cfg))
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "Log directory: %s\n", cfg.LogDir)
	reportOptionalPath(cfg.LogDir, "will be created on first session")
	fmt.Fprintf(stdout, "History file: %s\n", cfg.HistoryFile)
	reportOptionalPath(cfg.HistoryFile, "will be created on first command")
	fmt.Fprintln(stdout)

	if allOK {
		fmt.Fprintln(stdout, "✅ All checks passed!")
		return nil
	}
	fmt.Fprintln(stdout, "⚠️  Some checks failed. md2do may not work correctly.")
	return errors.New("doctor checks failed")
}

func doctorConfig(cws *config.ConfigWithSources, verbose bool) bool {
	fmt.Fprintln(stdout, "Config:")
	if len(cws.Files) == 0 {
		fmt.Fprintln(stdout, "  ✅ No config file (defaults, environment and flags)")
	}
	for _, f := range cws.Files {
		fmt.Fprintf(stdout, "  ✅ Read %s\n", f)
	}
	for _, key := range cws.Unknown {
		fmt.Fprintf(stdout, "  ⚠️  Unknown key %s\n", key)
	}
	if verbose {
		keys := make([]string, 0, len(cws.Sources))
		for k := range cws.Sources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(stdout, "     %-22s %s\n", k, cws.Sources[k])
		}
	}
	return true
}

func doctorRepository(ctx context.Context, cfg *config.Config) bool {
	dir := filepath.Dir(cfg.TodoFile)
	fmt.Fprintf(stdout, "Repository: %s\n", dir)
	if _, err := utils.ResolveExecutable("git"); err != nil {
		fmt.Fprintln(stdout, "  ❌ git is not available")
		return false
	}
	switch {
	case vcs.IsRepo(ctx, dir):
		fmt.Fprintln(stdout, "  ✅ OK")
	case cfg.GitInit:
		fmt.Fprintln(stdout, "  ⚠️  Not a git repository (will be initialized)")
	default:
		fmt.Fprintln(stdout, "  ❌ Not a git repository and git_init is off")
		return false
	}
	return true
}

func doctorTodo(cfg *config.Config, verbose bool) bool {
	fmt.Fprintf(stdout, "Todo file: %s\n", cfg.TodoFile)
	info, err := os.Stat(cfg.TodoFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(stdout, "  ⚠️  Not found (starts empty)")
		return true
	case err != nil:
		fmt.Fprintf(stdout, "  ❌ Error: %v\n", err)
		return false
	case info.IsDir():
		fmt.Fprintln(stdout, "  ❌ Error: path is a directory")
		return false
	}
	lines, err := todo.NewStore(cfg.TodoFile).Load()
	if err != nil {
		fmt.Fprintf(stdout, "  ❌ %v\n", err)
		return false
	}
	fmt.Fprintf(stdout, "  ✅ OK (%d lines)\n", len(lines))
	if verbose {
		counts := todo.Counts(lines)
		for _, k := range []todo.Kind{todo.KindProject, todo.KindGoal, todo.KindAvailable, todo.KindBlocked, todo.KindCompleted, todo.KindOther} {
			fmt.Fprintf(stdout, "     %-10s %d\n", k, counts[k])
		}
	}
	return true
}

func doctorViews(cfg *config.Config, verbose bool) bool {
	mgr := views.NewManager(cfg.ViewsDir)
	fmt.Fprintf(stdout, "Views: %s\n", mgr.IndexPath())
	entries, err := mgr.List()
	if err != nil {
		fmt.Fprintf(stdout, "  ❌ %v\n", err)
		return false
	}
	ok := true
	for _, e := range entries {
		if err := views.ValidateName(e.Name); err != nil {
			fmt.Fprintf(stdout, "  ❌ %v\n", err)
			ok = false
			continue
		}
		if _, err := views.Compile(e.Pattern); err != nil {
			fmt.Fprintf(stdout, "  ❌ %s: %v\n", e.Name, err)
			ok = false
			continue
		}
		if verbose {
			fmt.Fprintf(stdout, "  ✅ %s: %s\n", e.Name, e.Pattern)
		}
	}
	if ok {
		fmt.Fprintf(stdout, "  ✅ OK (%d views)\n", len(entries))
	}
	return ok
}

func doctorPrompts(cfg *config.Config) bool {
	dir := cfg.PromptDir
	if dir == "" {
		dir = "(bundled)"
	}
	fmt.Fprintf(stdout, "Prompts: %s\n", dir)
	r := prompts.NewRenderer(prompts.NewStore(cfg.PromptDir))
	ok := true
	if _, err := r.System(cfg.TodoFile, "1: - [ ] example"); err != nil {
		fmt.Fprintf(stdout, "  ❌ %s: %v\n", prompts.SystemPrompt, err)
		ok = false
	}
	if _, err := r.User("example"); err != nil {
		fmt.Fprintf(stdout, "  ❌ %s: %v\n", prompts.UserPrompt, err)
		ok = false
	}
	if ok {
		fmt.Fprintln(stdout, "  ✅ OK")
	}
	return ok
}

func doctorModel(cfg *config.Config) bool {
	fmt.Fprintf(stdout, "Model: %s at %s\n", cfg.Model.Name, cfg.Model.BaseURL)
	_, origin, err := cfg.ResolveAPIKey()
	switch {
	case errors.Is(err, config.ErrNoAPIKey):
		fmt.Fprintf(stdout, "  ❌ No API key (set model.api_key, $%s or %s)\n", cfg.Model.APIKeyEnv, cfg.Model.APIKeyFile)
		return false
	case err != nil:
		fmt.Fprintf(stdout, "  ❌ API key: %v\n", err)
		return false
	}
	fmt.Fprintf(stdout, "  ✅ API key from %s\n", origin)
	return true
}

func reportOptionalPath(path, missing string) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stdout, "  ⚠️  Not found (%s)\n", missing)
			return
		}
		fmt.Fprintf(stdout, "  ❌ Error: %v\n", err)
		return
	}
	fmt.Fprintln(stdout, "  ✅ OK")
}

// checkBinary reports whether binary resolves to an executable.
func checkBinary(label, binary string, required bool) bool {
	resolved, err := utils.ResolveExecutable(binary)
	if err == nil {
		fmt.Fprintf(stdout, "  ✅ %s: %s\n", label, resolved)
		return true
	}
	if required {
		fmt.Fprintf(stdout, "  ❌ %s: %v\n", label, err)
		return false
	}
	fmt.Fprintf(stdout, "  ⚠️  %s: %v\n", label, err)
	return true
}
