package loop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/KainAber/md2do/internal/functions"
	"github.com/KainAber/md2do/internal/gateway"
	"github.com/KainAber/md2do/internal/logging"
	"github.com/KainAber/md2do/internal/prompts"
	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/transcript"
	"github.com/KainAber/md2do/internal/vcs"
	"github.com/KainAber/md2do/internal/views"
)

type recordingPresenter struct {
	prompts int
	replies []string
	diffs   []string
	errs    []error
}

func (p *recordingPresenter) Prompt()           { p.prompts++ }
func (p *recordingPresenter) Reply(text string) { p.replies = append(p.replies, text) }
func (p *recordingPresenter) Diff(diff string)  { p.diffs = append(p.diffs, diff) }
func (p *recordingPresenter) Error(err error)   { p.errs = append(p.errs, err) }

type captureWriter struct {
	mu     sync.Mutex
	events []logging.LogEvent
}

func (w *captureWriter) Write(e logging.LogEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	return nil
}

func (w *captureWriter) ofType(typ string) []logging.LogEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []logging.LogEvent
	for _, e := range w.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type memJournal struct {
	entries []transcript.Entry
}

func (j *memJournal) Record(e transcript.Entry) (transcript.Entry, error) {
	e.ID = uint64(len(j.entries) + 1)
	j.entries = append(j.entries, e)
	return e, nil
}

type harness struct {
	loop    *Loop
	store   *todo.Store
	mem     *vcs.Memory
	gw      *gateway.Scripted
	pres    *recordingPresenter
	events  *captureWriter
	journal *memJournal
	dir     string
}

func newHarness(t *testing.T, doc []string, steps ...gateway.Step) *harness {
	return newHarnessWith(t, doc, func(*Deps) {}, steps...)
}

func newHarnessWith(t *testing.T, doc []string, tweak func(*Deps), steps ...gateway.Step) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.md")
	store := todo.NewStore(path)
	if err := store.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mem := vcs.NewMemory(path)
	mem.Seed("initial", todo.JoinLines(doc))
	changeLog := vcs.NewLog(mem, path, "")
	viewMgr := views.NewManager(filepath.Join(dir, "views"))
	reg, err := functions.New(functions.Env{Store: store, Views: viewMgr, Log: changeLog})
	if err != nil {
		t.Fatalf("functions.New: %v", err)
	}

	h := &harness{
		store:   store,
		mem:     mem,
		gw:      gateway.NewScripted(steps...),
		pres:    &recordingPresenter{},
		events:  &captureWriter{},
		journal: &memJournal{},
		dir:     dir,
	}
	deps := Deps{
		Store:     store,
		Registry:  reg,
		Gateway:   h.gw,
		Log:       changeLog,
		Renderer:  prompts.NewRenderer(prompts.NewStore("")),
		Presenter: h.pres,
		Events:    h.events,
		Journal:   h.journal,
		Views:     viewMgr,
		WorkDir:   dir,
	}
	tweak(&deps)
	h.loop, err = New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func (h *harness) doc(t *testing.T) []string {
	t.Helper()
	lines, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return lines
}

func TestHandleFullCommandCycle(t *testing.T) {
	h := newHarness(t, []string{"- [ ] task A"},
		gateway.Call("replace_row", `{"row":1,"content":"- [x] task A"}`),
		gateway.Reply("Marked task A as done."),
	)

	out, err := h.loop.Handle(context.Background(), "complete task A")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := h.doc(t); !reflect.DeepEqual(got, []string{"- [x] task A"}) {
		t.Errorf("document = %q", got)
	}
	commits := h.mem.Commits()
	if len(commits) != 2 || commits[1] != "Update todo: complete task A" {
		t.Errorf("commits = %q, want exactly one new commit", commits)
	}
	if !out.Committed {
		t.Error("Committed = false")
	}
	if !strings.HasPrefix(out.Diff, "Changes:") || !strings.Contains(out.Diff, "[x] task A") {
		t.Errorf("Diff = %q", out.Diff)
	}
	if out.Reply != "Marked task A as done." {
		t.Errorf("Reply = %q", out.Reply)
	}
	if len(out.Calls) != 1 || !out.Calls[0].Result.OK() {
		t.Errorf("Calls = %+v", out.Calls)
	}
	if len(h.pres.diffs) != 1 || len(h.pres.replies) != 1 {
		t.Errorf("presented diffs=%d replies=%d", len(h.pres.diffs), len(h.pres.replies))
	}
}

func TestHandleRebuildsSystemTurnAndPairsCalls(t *testing.T) {
	h := newHarness(t, []string{"- [ ] task A"},
		gateway.Call("replace_row", `{"row":1,"content":"- [x] task A"}`),
		gateway.Reply("ok"),
	)
	if _, err := h.loop.Handle(context.Background(), "complete task A"); err != nil {
		t.Fatal(err)
	}

	reqs := h.gw.Requests()
	if len(reqs) != 2 {
		t.Fatalf("model calls = %d, want 2", len(reqs))
	}
	if reqs[0][0].Role != gateway.RoleSystem || !strings.Contains(reqs[0][0].Content, "1: - [ ] task A") {
		t.Errorf("first system turn = %q", reqs[0][0].Content)
	}
	if !strings.Contains(reqs[1][0].Content, "1: - [x] task A") {
		t.Errorf("second system turn not rebuilt: %q", reqs[1][0].Content)
	}

	second := reqs[1]
	if len(second) != 4 {
		t.Fatalf("second request has %d turns, want 4", len(second))
	}
	call, result := second[2], second[3]
	if call.Role != gateway.RoleAssistant || call.FunctionCall == nil || call.FunctionCall.Name != "replace_row" {
		t.Errorf("call turn = %+v", call)
	}
	if result.Role != gateway.RoleFunction || result.Name != "replace_row" {
		t.Errorf("result turn = %+v", result)
	}
	if !strings.HasPrefix(result.Content, "SUCCESS: Replaced row 1 with: - [x] task A") || !strings.Contains(result.Content, "Changes:") {
		t.Errorf("result content = %q", result.Content)
	}

	if got := h.loop.Session().Len(); got != 4 {
		t.Errorf("session history = %d turns, want 4", got)
	}
	for _, m := range h.loop.Session().History() {
		if m.Role == gateway.RoleSystem {
			t.Error("system turn stored in history")
		}
	}
}

func TestHandleWithoutChanges(t *testing.T) {
	h := newHarness(t, []string{"- [ ] task A"}, gateway.Reply("Nothing to do."))

	out, err := h.loop.Handle(context.Background(), "what is left?")
	if err != nil {
		t.Fatal(err)
	}
	if out.Committed || out.Diff != "" {
		t.Errorf("Committed=%v Diff=%q", out.Committed, out.Diff)
	}
	if len(h.mem.Commits()) != 1 {
		t.Errorf("commits = %q", h.mem.Commits())
	}
	if len(h.pres.diffs) != 0 {
		t.Error("empty diff was presented")
	}
}

func TestHandleUnknownFunction(t *testing.T) {
	h := newHarness(t, []string{"a"},
		gateway.Call("explode", `{}`),
		gateway.Reply("Sorry."),
	)

	out, err := h.loop.Handle(context.Background(), "do something odd")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Calls) != 1 || out.Calls[0].Result.Kind != functions.KindUnknownFunction {
		t.Fatalf("Calls = %+v", out.Calls)
	}
	reqs := h.gw.Requests()
	last := reqs[1][len(reqs[1])-1]
	if last.Content != "ERROR: Unknown function: explode" {
		t.Errorf("function turn = %q", last.Content)
	}
	if out.Committed {
		t.Error("committed without changes")
	}
}

func TestHandleModelFailure(t *testing.T) {
	h := newHarness(t, []string{"A", "B"},
		gateway.Call("delete_row", `{"row":1}`),
		gateway.Fail(gateway.ErrMalformedResponse),
	)

	out, err := h.loop.Handle(context.Background(), "drop A")
	if err != nil {
		t.Fatalf("Handle returned %v; model failures must not end the session", err)
	}
	if !errors.Is(out.Err, gateway.ErrMalformedResponse) {
		t.Errorf("Err = %v", out.Err)
	}
	if !out.Committed {
		t.Error("edit made before the failure was not committed")
	}
	if got := h.doc(t); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("document = %q", got)
	}
	if h.loop.Session().Len() != 0 {
		t.Errorf("failed command added %d turns to history", h.loop.Session().Len())
	}
	if len(h.pres.errs) != 1 {
		t.Errorf("presented errors = %d", len(h.pres.errs))
	}
	if h.loop.Session().State != StateAwaitingInput {
		t.Errorf("State = %v", h.loop.Session().State)
	}
}

func TestHandleMaxFunctionCalls(t *testing.T) {
	insert := gateway.Call("insert_row", `{"row":1,"content":"x"}`)
	h := newHarnessWith(t, []string{"a"},
		func(d *Deps) { d.MaxFunctionCalls = 2 },
		insert, insert, insert,
	)

	out, err := h.loop.Handle(context.Background(), "loop forever")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Calls) != 2 {
		t.Errorf("executed %d calls, want 2", len(out.Calls))
	}
	if !strings.Contains(out.Reply, "Stopped after 2 function calls") {
		t.Errorf("Reply = %q", out.Reply)
	}
	if got := h.doc(t); len(got) != 3 {
		t.Errorf("document = %q", got)
	}
	if !out.Committed {
		t.Error("edits were not committed")
	}
	// every stored call turn is answered
	hist := h.loop.Session().History()
	for i, m := range hist {
		if m.IsCall() && (i+1 >= len(hist) || hist[i+1].Role != gateway.RoleFunction) {
			t.Errorf("call at %d has no function result", i)
		}
	}
}

func TestHandleRollbackLeavesNothingToCommit(t *testing.T) {
	h := newHarness(t, []string{"A"},
		gateway.Call("rollback_previous_commit", `{}`),
		gateway.Reply("Rolled back."),
	)
	if err := h.store.Save([]string{"A", "B"}); err != nil {
		t.Fatal(err)
	}
	h.mem.Seed("Update todo: add B", "A\nB")

	out, err := h.loop.Handle(context.Background(), "undo that")
	if err != nil {
		t.Fatal(err)
	}
	if out.Committed {
		t.Error("rollback produced a commit")
	}
	if commits := h.mem.Commits(); !reflect.DeepEqual(commits, []string{"initial"}) {
		t.Errorf("commits = %q", commits)
	}
	if got := h.doc(t); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("document = %q", got)
	}
	if len(h.events.ofType(logging.EventRollback)) != 1 {
		t.Error("rollback event not logged")
	}
}

func TestHandleRollbackThenEditCommits(t *testing.T) {
	h := newHarness(t, []string{"A"},
		gateway.Call("rollback_previous_commit", `{}`),
		gateway.Call("insert_row", `{"row":2,"content":"C"}`),
		gateway.Reply("Replaced B with C."),
	)
	if err := h.store.Save([]string{"A", "B"}); err != nil {
		t.Fatal(err)
	}
	h.mem.Seed("Update todo: add B", "A\nB")

	out, err := h.loop.Handle(context.Background(), "swap B for C")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.doc(t); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("document = %q", got)
	}
	if !out.Committed {
		t.Errorf("Committed = false, diff %q", out.Diff)
	}
	want := []string{"initial", "Update todo: swap B for C"}
	if commits := h.mem.Commits(); !reflect.DeepEqual(commits, want) {
		t.Errorf("commits = %q, want %q", commits, want)
	}
	if diff, _ := h.loop.deps.Log.Diff(context.Background()); diff != "" {
		t.Errorf("uncommitted diff left behind: %q", diff)
	}
}

func TestHandleRollbackRefusedForForeignCommit(t *testing.T) {
	h := newHarness(t, []string{"A"},
		gateway.Call("rollback_previous_commit", `{}`),
		gateway.Reply("Cannot roll back."),
	)

	out, err := h.loop.Handle(context.Background(), "undo")
	if err != nil {
		t.Fatal(err)
	}
	if out.Calls[0].Result.Kind != functions.KindRefused {
		t.Errorf("Kind = %v", out.Calls[0].Result.Kind)
	}
	if got := h.doc(t); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("document = %q", got)
	}
	if len(h.mem.Commits()) != 1 {
		t.Errorf("commits = %q", h.mem.Commits())
	}
}

func TestHandleAccumulatesHistory(t *testing.T) {
	h := newHarness(t, []string{"a"}, gateway.Reply("one"), gateway.Reply("two"))
	ctx := context.Background()
	if _, err := h.loop.Handle(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.loop.Handle(ctx, "second"); err != nil {
		t.Fatal(err)
	}

	second := h.gw.Requests()[1]
	var roles []string
	for _, m := range second {
		roles = append(roles, m.Role)
	}
	want := []string{"system", "user", "assistant", "user"}
	if !reflect.DeepEqual(roles, want) {
		t.Errorf("roles = %v, want %v", roles, want)
	}
	if second[1].Content != "first" || second[3].Content != "second" {
		t.Errorf("user turns = %q, %q", second[1].Content, second[3].Content)
	}
	if h.loop.Session().Commands != 2 {
		t.Errorf("Commands = %d", h.loop.Session().Commands)
	}
}

func TestHandleCommitFailureIsReported(t *testing.T) {
	h := newHarness(t, []string{"a"},
		gateway.Call("replace_row", `{"row":1,"content":"b"}`),
		gateway.Reply("done"),
	)
	h.mem.FailCommit = errors.New("disk full")

	out, err := h.loop.Handle(context.Background(), "change a")
	if err != nil {
		t.Fatal(err)
	}
	if out.Committed {
		t.Error("Committed = true after a failed commit")
	}
	found := false
	for _, e := range h.events.ofType(logging.EventError) {
		if strings.Contains(e.Content, "disk full") {
			found = true
		}
	}
	if !found {
		t.Error("commit failure not logged")
	}
}

func TestHandleDiffFailureCountsAsNoChange(t *testing.T) {
	h := newHarness(t, []string{"a"},
		gateway.Call("replace_row", `{"row":1,"content":"b"}`),
		gateway.Reply("done"),
	)
	h.mem.FailDiff = errors.New("git exploded")

	out, err := h.loop.Handle(context.Background(), "change a")
	if err != nil {
		t.Fatal(err)
	}
	if out.Diff != "" || out.Committed {
		t.Errorf("Diff=%q Committed=%v", out.Diff, out.Committed)
	}
	if got := h.doc(t); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("document = %q", got)
	}
}

func TestHandleJournalsAndLogs(t *testing.T) {
	h := newHarness(t, []string{"- [ ] task A"},
		gateway.Call("replace_row", `{"row":1,"content":"- [x] task A"}`),
		gateway.Reply("done"),
	)
	if _, err := h.loop.Handle(context.Background(), "complete task A"); err != nil {
		t.Fatal(err)
	}

	if len(h.journal.entries) != 1 {
		t.Fatalf("journal entries = %d", len(h.journal.entries))
	}
	e := h.journal.entries[0]
	if e.Session != h.loop.Session().ID || e.Command != "complete task A" || !e.Committed {
		t.Errorf("entry = %+v", e)
	}
	if len(e.Calls) != 1 || e.Calls[0].Function != "replace_row" || !e.Calls[0].OK {
		t.Errorf("entry calls = %+v", e.Calls)
	}

	for _, typ := range []string{logging.EventCommand, logging.EventFunctionCall, logging.EventFunctionResult, logging.EventAssistantMessage, logging.EventCommit} {
		if len(h.events.ofType(typ)) == 0 {
			t.Errorf("no %s event", typ)
		}
	}
	var transitions []string
	for _, e := range h.events.ofType(logging.EventState) {
		transitions = append(transitions, e.Content)
		if e.Session != h.loop.Session().ID {
			t.Errorf("state event without session id: %+v", e)
		}
	}
	want := []string{
		"awaiting_input -> model_call",
		"model_call -> function_pending",
		"function_pending -> function_call",
		"function_call -> model_call",
		"model_call -> finalizing",
		"finalizing -> awaiting_input",
	}
	if !reflect.DeepEqual(transitions, want) {
		t.Errorf("transitions = %q\nwant %q", transitions, want)
	}
}

func TestHandleRefreshesViews(t *testing.T) {
	h := newHarnessWith(t, []string{"- [x] one", "- [ ] two"},
		func(d *Deps) { d.RefreshViews = true },
		gateway.Call("create_view", `{"name":"done","regex":"\\[x\\]"}`),
		gateway.Reply("view saved"),
		gateway.Call("replace_row", `{"row":2,"content":"- [x] two"}`),
		gateway.Reply("done"),
	)
	ctx := context.Background()
	if _, err := h.loop.Handle(ctx, "save done view"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.loop.Handle(ctx, "finish two"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(h.dir, "views", "done.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "- [x] one\n- [x] two" {
		t.Errorf("view file = %q", data)
	}
}

func TestHandleRunsHook(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook script is a shell script")
	}
	out := filepath.Join(t.TempDir(), "hook.out")
	script := filepath.Join(t.TempDir(), "hook.sh")
	body := "#!/bin/sh\nprintf '%s|%s' \"$2\" \"$3\" > \"" + out + "\"\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}

	h := newHarnessWith(t, []string{"a"},
		func(d *Deps) { d.HookCommand = script },
		gateway.Call("replace_row", `{"row":1,"content":"b"}`),
		gateway.Reply("done"),
	)
	if _, err := h.loop.Handle(context.Background(), "change a"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("hook did not run: %v", err)
	}
	if want := "change a|" + h.store.Path(); string(data) != want {
		t.Errorf("hook args = %q, want %q", data, want)
	}
	if len(h.events.ofType(logging.EventHook)) != 1 {
		t.Error("hook event not logged")
	}
}

func TestRunStopsAtExitKeyword(t *testing.T) {
	h := newHarness(t, []string{"a"}, gateway.Reply("ok"), gateway.Reply("never"))
	in := &StaticInput{Lines: []string{"hello", "  QUIT ", "after"}}

	if err := h.loop.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.gw.Remaining() != 1 {
		t.Errorf("model calls after exit keyword: remaining = %d", h.gw.Remaining())
	}
	if h.loop.Session().Commands != 1 {
		t.Errorf("Commands = %d", h.loop.Session().Commands)
	}
	if h.pres.prompts != 2 {
		t.Errorf("prompts = %d, want 2", h.pres.prompts)
	}
}

func TestRunEndsOnEmptyLineAndEOF(t *testing.T) {
	h := newHarness(t, []string{"a"}, gateway.Reply("ok"))
	if err := h.loop.Run(context.Background(), &StaticInput{Lines: []string{"", "hello"}}); err != nil {
		t.Fatal(err)
	}
	if h.gw.Remaining() != 1 {
		t.Error("empty line did not end the session")
	}

	if err := h.loop.Run(context.Background(), &StaticInput{Lines: []string{"hello"}}); err != nil {
		t.Fatalf("Run at EOF: %v", err)
	}
	if h.gw.Remaining() != 0 {
		t.Error("command before EOF was not handled")
	}
}

func TestRunCanceled(t *testing.T) {
	h := newHarness(t, []string{"a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.loop.Run(ctx, &StaticInput{Lines: []string{"hello"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestIsExit(t *testing.T) {
	h := newHarness(t, []string{"a"})
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"exit", true},
		{"Exit", true},
		{" quit ", true},
		{"exit now", false},
		{"add exit sign", false},
	}
	for _, tt := range tests {
		if got := h.loop.IsExit(tt.in); got != tt.want {
			t.Errorf("IsExit(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"store", "registry", "gateway", "change log", "prompt renderer"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	a, b := NewSession(), NewSession()
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("session ids %q and %q", a.ID, b.ID)
	}
	if a.State != StateAwaitingInput {
		t.Errorf("initial state = %v", a.State)
	}
}
