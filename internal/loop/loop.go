// Package loop resolves user commands by letting the model call document
// functions until it produces a final answer.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KainAber/md2do/internal/functions"
	"github.com/KainAber/md2do/internal/gateway"
	"github.com/KainAber/md2do/internal/hooks"
	"github.com/KainAber/md2do/internal/logging"
	"github.com/KainAber/md2do/internal/prompts"
	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/transcript"
	"github.com/KainAber/md2do/internal/vcs"
	"github.com/KainAber/md2do/internal/views"
)

// DefaultMaxFunctionCalls bounds the function calls made for one command.
const DefaultMaxFunctionCalls = 20

// Journal records resolved commands.
type Journal interface {
	Record(transcript.Entry) (transcript.Entry, error)
}

// Deps are the collaborators of a Loop. Store, Registry, Gateway, Log and
// Renderer are required.
type Deps struct {
	Store     *todo.Store
	Registry  *functions.Registry
	Gateway   gateway.Gateway
	Log       *vcs.Log
	Renderer  *prompts.Renderer
	Presenter Presenter
	Events    logging.LogWriter
	Journal   Journal

	// Views is refreshed after each commit when RefreshViews is set.
	Views        *views.Manager
	RefreshViews bool

	HookCommand string
	HookTimeout time.Duration
	WorkDir     string

	MaxFunctionCalls int
	ExitKeywords     []string
}

// CallRecord is one executed function call.
type CallRecord struct {
	Function  string
	Arguments string
	Result    functions.Result
}

// Outcome describes how a command was resolved.
type Outcome struct {
	Command   string
	Reply     string
	Diff      string
	Calls     []CallRecord
	Committed bool
	// Err is the model failure that cut the command short, if any. The
	// command's turns are then left out of the session history.
	Err error
}

// Loop drives one interactive session.
type Loop struct {
	deps    Deps
	session *Session
	events  *logging.Emitter
}

// New validates deps and starts a session.
func New(deps Deps) (*Loop, error) {
	var missing []string
	if deps.Store == nil {
		missing = append(missing, "store")
	}
	if deps.Registry == nil {
		missing = append(missing, "registry")
	}
	if deps.Gateway == nil {
		missing = append(missing, "gateway")
	}
	if deps.Log == nil {
		missing = append(missing, "change log")
	}
	if deps.Renderer == nil {
		missing = append(missing, "prompt renderer")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("loop: missing %s", strings.Join(missing, ", "))
	}
	if deps.Presenter == nil {
		deps.Presenter = NopPresenter{}
	}
	if deps.MaxFunctionCalls <= 0 {
		deps.MaxFunctionCalls = DefaultMaxFunctionCalls
	}
	if deps.ExitKeywords == nil {
		deps.ExitKeywords = []string{"exit", "quit"}
	}

	session := NewSession()
	return &Loop{
		deps:    deps,
		session: session,
		events:  logging.NewEmitter(deps.Events, session.ID),
	}, nil
}

// Session returns the live session.
func (l *Loop) Session() *Session {
	return l.session
}

// IsExit reports whether input ends the session: empty input or an exit
// keyword, compared case-insensitively after trimming.
func (l *Loop) IsExit(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return true
	}
	for _, kw := range l.deps.ExitKeywords {
		if strings.EqualFold(strings.TrimSpace(kw), input) {
			return true
		}
	}
	return false
}

// Run reads commands from in until empty input, an exit keyword, EOF or
// cancellation. Only storage failures and cancellation end it with an error.
func (l *Loop) Run(ctx context.Context, in Input) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.deps.Presenter.Prompt()
		line, err := in.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if l.IsExit(line) {
			return nil
		}
		if _, err := l.Handle(ctx, line); err != nil {
			return err
		}
	}
}

// Handle resolves one command. Model and version-control failures are
// reported through the Outcome and the presenter; the returned error is
// reserved for failures that should end the session.
func (l *Loop) Handle(ctx context.Context, command string) (Outcome, error) {
	command = strings.TrimSpace(command)
	out := Outcome{Command: command}
	l.events.Emit(logging.LogEvent{Type: logging.EventCommand, Command: command})

	userTurn, err := l.deps.Renderer.User(command)
	if err != nil {
		return out, fmt.Errorf("render user prompt: %w", err)
	}
	working := append(l.session.History(), gateway.Message{Role: gateway.RoleUser, Content: userTurn})

	for {
		l.setState(StateModelCall)
		messages, err := l.conversation(working)
		if err != nil {
			l.setState(StateAwaitingInput)
			return out, err
		}
		reply, err := l.deps.Gateway.Complete(ctx, messages, l.deps.Registry.Definitions())
		if err != nil {
			out.Err = err
			l.fail(command, err)
			l.finalize(ctx, &out)
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			return out, nil
		}

		if !reply.IsCall() {
			out.Reply = reply.Content
			working = append(working, gateway.Message{Role: gateway.RoleAssistant, Content: reply.Content})
			break
		}

		if len(out.Calls) >= l.deps.MaxFunctionCalls {
			out.Reply = fmt.Sprintf("Stopped after %d function calls without a final answer. The changes made so far were kept.", len(out.Calls))
			working = append(working, gateway.Message{Role: gateway.RoleAssistant, Content: out.Reply})
			l.events.Emit(logging.LogEvent{Type: logging.EventError, Command: command, Content: out.Reply})
			break
		}

		call := *reply.FunctionCall
		l.setState(StateFunctionPending)
		l.events.Emit(logging.LogEvent{
			Type:      logging.EventFunctionCall,
			Command:   command,
			Function:  call.Name,
			Arguments: call.Arguments,
		})

		l.setState(StateFunctionCall)
		res := l.deps.Registry.Execute(ctx, call.Name, call.Arguments)
		if res.RolledBack {
			l.events.Emit(logging.LogEvent{Type: logging.EventRollback, Command: command, Content: res.Message})
		}
		content := res.Text()
		if diff := l.diff(ctx); diff != "" {
			content += "\n\n" + diff
		}
		l.events.Emit(logging.LogEvent{
			Type:     logging.EventFunctionResult,
			Command:  command,
			Function: call.Name,
			Result:   res.Kind.String(),
			Content:  content,
		})

		out.Calls = append(out.Calls, CallRecord{Function: call.Name, Arguments: call.Arguments, Result: res})
		working = append(working,
			gateway.Message{Role: gateway.RoleAssistant, FunctionCall: &call},
			gateway.Message{Role: gateway.RoleFunction, Name: call.Name, Content: content},
		)
	}

	l.events.Emit(logging.LogEvent{Type: logging.EventAssistantMessage, Command: command, Content: out.Reply})
	l.finalize(ctx, &out)
	l.session.history = working
	return out, nil
}

// conversation prepends a system turn built from the current document.
func (l *Loop) conversation(working []gateway.Message) ([]gateway.Message, error) {
	lines, err := l.deps.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load todo: %w", err)
	}
	system, err := l.deps.Renderer.System(l.deps.Store.Path(), todo.Numbered(lines))
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	messages := make([]gateway.Message, 0, len(working)+1)
	messages = append(messages, gateway.Message{Role: gateway.RoleSystem, Content: system})
	return append(messages, working...), nil
}

// finalize commits the command's changes, runs the hook, journals the
// command and presents the result. It runs even when the model failed so
// edits already on disk are recorded.
func (l *Loop) finalize(ctx context.Context, out *Outcome) {
	l.setState(StateFinalizing)
	// Edits are already on disk; record them even if the command was canceled.
	ctx = context.WithoutCancel(ctx)

	out.Diff = l.diff(ctx)
	if out.Diff != "" {
		if err := l.deps.Log.Commit(ctx, out.Command); err != nil {
			l.events.Emit(logging.LogEvent{Type: logging.EventError, Command: out.Command, Content: fmt.Sprintf("commit: %v", err)})
		} else {
			out.Committed = true
			l.events.Emit(logging.LogEvent{Type: logging.EventCommit, Command: out.Command, Content: l.deps.Log.CommitMessage(out.Command)})
			l.afterCommit(ctx, out.Command)
		}
	}

	l.record(out)
	l.session.Commands++

	if out.Diff != "" {
		l.deps.Presenter.Diff(out.Diff)
	}
	if out.Reply != "" {
		l.deps.Presenter.Reply(out.Reply)
	}
	l.setState(StateAwaitingInput)
}

func (l *Loop) afterCommit(ctx context.Context, command string) {
	if l.deps.HookCommand != "" {
		res, err := hooks.Invoke(ctx, hooks.Options{
			Command:     l.deps.HookCommand,
			Session:     l.session.ID,
			UserCommand: command,
			TodoPath:    l.deps.Store.Path(),
			WorkDir:     l.deps.WorkDir,
			Timeout:     l.deps.HookTimeout,
		})
		if res.Ran {
			l.events.Emit(logging.LogEvent{Type: logging.EventHook, Command: res.Command, ExitCode: res.ExitCode, Content: res.Output})
		}
		if err != nil {
			l.events.Emit(logging.LogEvent{Type: logging.EventError, Command: command, Content: fmt.Sprintf("hook: %v", err)})
		}
	}

	if l.deps.RefreshViews && l.deps.Views != nil {
		lines, err := l.deps.Store.Load()
		if err == nil {
			_, err = l.deps.Views.Refresh(lines)
		}
		if err != nil {
			l.events.Emit(logging.LogEvent{Type: logging.EventError, Command: command, Content: fmt.Sprintf("refresh views: %v", err)})
		}
	}
}

func (l *Loop) record(out *Outcome) {
	if l.deps.Journal == nil {
		return
	}
	entry := transcript.Entry{
		Session:   l.session.ID,
		Command:   out.Command,
		Reply:     out.Reply,
		Diff:      out.Diff,
		Committed: out.Committed,
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}
	for _, c := range out.Calls {
		entry.Calls = append(entry.Calls, transcript.Call{
			Function:  c.Function,
			Arguments: c.Arguments,
			Result:    c.Result.Text(),
			OK:        c.Result.OK(),
		})
	}
	if _, err := l.deps.Journal.Record(entry); err != nil {
		l.events.Emit(logging.LogEvent{Type: logging.EventError, Command: out.Command, Content: fmt.Sprintf("journal: %v", err)})
	}
}

// diff returns the cleaned uncommitted diff. Failures count as no change.
func (l *Loop) diff(ctx context.Context) string {
	d, err := l.deps.Log.Diff(ctx)
	if err != nil {
		l.events.Emit(logging.LogEvent{Type: logging.EventError, Content: fmt.Sprintf("diff: %v", err)})
		return ""
	}
	return d
}

func (l *Loop) fail(command string, err error) {
	l.events.Emit(logging.LogEvent{Type: logging.EventError, Command: command, Content: err.Error()})
	l.deps.Presenter.Error(err)
}

func (l *Loop) setState(s State) {
	if l.session.State == s {
		return
	}
	from := l.session.State
	l.session.State = s
	l.events.Emit(logging.LogEvent{Type: logging.EventState, Content: from.String() + " -> " + s.String()})
}
