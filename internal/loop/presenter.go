package loop

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Presenter shows command results to the user.
type Presenter interface {
	Prompt()
	Reply(text string)
	Diff(diff string)
	Error(err error)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Prompt()      {}
func (NopPresenter) Reply(string) {}
func (NopPresenter) Diff(string)  {}
func (NopPresenter) Error(error)  {}

var (
	removedPattern = regexp.MustCompile(`\[-.*?-\]`)
	addedPattern   = regexp.MustCompile(`\{\+.*?\+\}`)
)

// ConsolePresenter writes to a terminal, colouring word-diff markers.
type ConsolePresenter struct {
	out      io.Writer
	prompt   string
	removed  lipgloss.Style
	added    lipgloss.Style
	header   lipgloss.Style
	errStyle lipgloss.Style
}

// NewConsolePresenter creates a presenter writing to w. Colours are used only
// when w is a terminal that supports them.
func NewConsolePresenter(w io.Writer) *ConsolePresenter {
	r := lipgloss.NewRenderer(w)
	return &ConsolePresenter{
		out:      w,
		prompt:   "> ",
		removed:  r.NewStyle().Foreground(lipgloss.Color("1")).Strikethrough(true),
		added:    r.NewStyle().Foreground(lipgloss.Color("2")),
		header:   r.NewStyle().Bold(true),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (p *ConsolePresenter) Prompt() {
	fmt.Fprint(p.out, p.prompt)
}

func (p *ConsolePresenter) Reply(text string) {
	fmt.Fprintln(p.out, strings.TrimRight(text, "\n"))
}

// Diff prints the diff with removals and additions highlighted.
func (p *ConsolePresenter) Diff(diff string) {
	fmt.Fprintln(p.out, p.ColorDiff(diff))
	fmt.Fprintln(p.out)
}

func (p *ConsolePresenter) Error(err error) {
	fmt.Fprintln(p.out, p.errStyle.Render("[Error]")+" "+err.Error())
}

// ColorDiff styles a cleaned word diff for display.
func (p *ConsolePresenter) ColorDiff(diff string) string {
	diff = removedPattern.ReplaceAllStringFunc(diff, func(s string) string { return p.removed.Render(s) })
	diff = addedPattern.ReplaceAllStringFunc(diff, func(s string) string { return p.added.Render(s) })
	if rest, ok := strings.CutPrefix(diff, "Changes:"); ok {
		diff = p.header.Render("Changes:") + rest
	}
	return diff
}

// Input supplies command lines.
type Input interface {
	ReadLine(ctx context.Context) (string, error)
}

// LineInput reads newline-terminated commands from a reader. Reads happen on
// a background goroutine so ReadLine can return on cancellation.
type LineInput struct {
	scanner *bufio.Scanner
	once    sync.Once
	lines   chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewLineInput creates an Input over r.
func NewLineInput(r io.Reader) *LineInput {
	return &LineInput{scanner: bufio.NewScanner(r), lines: make(chan lineResult)}
}

func (in *LineInput) start() {
	go func() {
		defer close(in.lines)
		for in.scanner.Scan() {
			in.lines <- lineResult{line: in.scanner.Text()}
		}
		if err := in.scanner.Err(); err != nil {
			in.lines <- lineResult{err: err}
		}
	}()
}

// ReadLine returns the next line, io.EOF at the end of input, or the
// context's error.
func (in *LineInput) ReadLine(ctx context.Context) (string, error) {
	in.once.Do(in.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-in.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

// StaticInput replays fixed lines, then reports io.EOF.
type StaticInput struct {
	Lines []string
}

func (s *StaticInput) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.Lines) == 0 {
		return "", io.EOF
	}
	line := s.Lines[0]
	s.Lines = s.Lines[1:]
	return line, nil
}
