// Package ui provides the optional terminal viewer.
package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/views"
)

// Options configures the viewer.
type Options struct {
	Store *todo.Store
	Views *views.Manager
	// Highlight renders lines through chroma's markdown lexer instead of the
	// per-kind colours.
	Highlight    bool
	TickInterval time.Duration
}

// RunTUI starts the viewer and blocks until the user quits.
func RunTUI(ctx context.Context, opts Options) error {
	if !IsTTY(os.Stdout) {
		return errors.New("tui requires a TTY")
	}
	program := tea.NewProgram(newModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type mode int

const (
	modeNormal mode = iota
	modeFilter
	modeName
)

type tickMsg time.Time

type model struct {
	store        *todo.Store
	views        *views.Manager
	highlight    bool
	tickInterval time.Duration

	lines   []string
	loadErr error

	mode  mode
	input textinput.Model

	// filter is the active regex; rows holds its 1-based matches, nil when
	// no filter is active.
	filter    string
	filterErr error
	rows      []int
	kind      todo.Kind

	saved   []views.Entry
	viewIdx int

	status   string
	showHelp bool
	height   int
	offset   int
}

func newModel(opts Options) *model {
	ti := textinput.New()
	ti.CharLimit = 256
	interval := opts.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &model{
		store:        opts.Store,
		views:        opts.Views,
		highlight:    opts.Highlight,
		tickInterval: interval,
		input:        ti,
		viewIdx:      -1,
	}
}

func (m *model) Init() tea.Cmd {
	m.reload()
	return tickCmd(m.tickInterval)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modeFilter:
			return m.updateFilter(msg)
		case modeName:
			return m.updateName(msg)
		}
		return m.updateNormal(msg)
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.clampOffset()
	case tickMsg:
		m.reload()
		return m, tickCmd(m.tickInterval)
	}
	return m, nil
}

func (m *model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r", "f5":
		m.reload()
		m.status = "Reloaded"
	case "/":
		m.mode = modeFilter
		m.input.Placeholder = "regex..."
		m.input.SetValue(m.filter)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "v":
		if m.filter == "" {
			m.status = "Set a filter with / before saving a view"
			return m, nil
		}
		m.mode = modeName
		m.input.Placeholder = "view name..."
		m.input.SetValue("")
		return m, m.input.Focus()
	case "tab":
		m.cycleView(1)
	case "shift+tab":
		m.cycleView(-1)
	case "esc", "0":
		m.clearFilter()
	case "1":
		m.setKind(todo.KindAvailable)
	case "2":
		m.setKind(todo.KindBlocked)
	case "3":
		m.setKind(todo.KindCompleted)
	case "j", "down":
		m.offset++
		m.clampOffset()
	case "k", "up":
		m.offset--
		m.clampOffset()
	case "h", "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

// updateFilter applies the pattern on every keystroke; enter keeps it, esc
// restores the previous one.
func (m *model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeNormal
		m.input.Blur()
		m.viewIdx = -1
		return m, nil
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.applyFilter(m.input.Value())
	return m, cmd
}

func (m *model) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		m.mode = modeNormal
		m.input.Blur()
		m.saveView(name)
		return m, nil
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) reload() {
	lines, err := m.store.Load()
	if err != nil {
		m.loadErr = err
		return
	}
	m.loadErr = nil
	m.lines = lines
	if m.views != nil {
		if saved, err := m.views.List(); err == nil {
			m.saved = saved
		}
	}
	m.recompute()
}

// applyFilter sets the regex filter. An invalid pattern keeps the last
// good result and reports the error.
func (m *model) applyFilter(pattern string) {
	if pattern == "" {
		m.filter, m.filterErr = "", nil
		m.recompute()
		return
	}
	if _, err := views.Compile(pattern); err != nil {
		m.filterErr = err
		return
	}
	m.filter, m.filterErr = pattern, nil
	m.kind = ""
	m.recompute()
}

func (m *model) setKind(k todo.Kind) {
	m.filter, m.filterErr, m.viewIdx = "", nil, -1
	m.kind = k
	m.recompute()
}

func (m *model) clearFilter() {
	m.filter, m.filterErr, m.kind, m.viewIdx = "", nil, "", -1
	m.recompute()
}

func (m *model) recompute() {
	switch {
	case m.filter != "":
		rows, err := views.Match(m.filter, m.lines)
		if err != nil {
			m.filterErr = err
			return
		}
		m.rows = rows
	case m.kind != "":
		m.rows = todo.Filter(m.lines, m.kind)
	default:
		m.rows = nil
	}
	m.clampOffset()
}

func (m *model) cycleView(step int) {
	if len(m.saved) == 0 {
		m.status = "No saved views"
		return
	}
	m.viewIdx = (m.viewIdx + step + len(m.saved)) % len(m.saved)
	entry := m.saved[m.viewIdx]
	m.applyFilter(entry.Pattern)
	m.status = "View " + entry.Name
}

func (m *model) saveView(name string) {
	if m.views == nil {
		m.status = "Views are not configured"
		return
	}
	v, err := m.views.Create(name, m.filter, m.lines)
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("Saved view %s (%d matches)", v.Name, len(v.Matches))
	if saved, err := m.views.List(); err == nil {
		m.saved = saved
		for i, e := range saved {
			if e.Name == v.Name {
				m.viewIdx = i
			}
		}
	}
}

// visibleRows returns the rows to draw: the filter result or every row.
func (m *model) visibleRows() []int {
	if m.rows != nil || m.filter != "" || m.kind != "" {
		return m.rows
	}
	all := make([]int, len(m.lines))
	for i := range all {
		all[i] = i + 1
	}
	return all
}

// bodyHeight is the number of document rows that fit on screen, or 0 when
// the terminal size is unknown.
func (m *model) bodyHeight() int {
	if m.height == 0 {
		return 0
	}
	return max(m.height-8, 1)
}

func (m *model) clampOffset() {
	limit := len(m.visibleRows()) - m.bodyHeight()
	if m.bodyHeight() == 0 || limit < 0 {
		limit = 0
	}
	m.offset = max(0, min(m.offset, limit))
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	kindStyles  = map[todo.Kind]lipgloss.Style{
		todo.KindProject:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		todo.KindGoal:      lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		todo.KindAvailable: lipgloss.NewStyle(),
		todo.KindBlocked:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		todo.KindCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Faint(true),
		todo.KindOther:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("md2do "+m.store.Path()) + "\n")

	if m.showHelp {
		writeHelp(&b)
		return b.String()
	}

	counts := todo.Counts(m.lines)
	fmt.Fprintf(&b, "%s\n\n", dimStyle.Render(fmt.Sprintf("available %d  blocked %d  completed %d  projects %d",
		counts[todo.KindAvailable], counts[todo.KindBlocked], counts[todo.KindCompleted], counts[todo.KindProject])))

	if m.loadErr != nil {
		b.WriteString(errorStyle.Render("Error loading todo file: "+m.loadErr.Error()) + "\n")
		return b.String()
	}

	rows := m.visibleRows()
	end := len(rows)
	if h := m.bodyHeight(); h > 0 && m.offset+h < end {
		end = m.offset + h
	}
	for _, row := range rows[min(m.offset, end):end] {
		b.WriteString(m.renderLine(row, m.lines[row-1]) + "\n")
	}
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("  (no matching lines)") + "\n")
	}
	b.WriteString("\n")

	switch m.mode {
	case modeFilter:
		b.WriteString("/" + m.input.View() + "\n")
	case modeName:
		b.WriteString("save as: " + m.input.View() + "\n")
	default:
		b.WriteString(m.filterLine() + "\n")
	}
	if m.filterErr != nil {
		b.WriteString(errorStyle.Render(m.filterErr.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(dimStyle.Render("/ filter  v save view  tab views  1-3 kinds  0 clear  r reload  h help  q quit") + "\n")
	return b.String()
}

func (m *model) filterLine() string {
	switch {
	case m.filter != "":
		return fmt.Sprintf("filter /%s/  %d of %d lines", m.filter, len(m.rows), len(m.lines))
	case m.kind != "":
		return fmt.Sprintf("kind %s  %d of %d lines", m.kind, len(m.rows), len(m.lines))
	}
	return fmt.Sprintf("%d lines", len(m.lines))
}

func (m *model) renderLine(row int, line string) string {
	num := dimStyle.Render(fmt.Sprintf("%4d ", row))
	if m.highlight {
		return num + highlightMarkdown(line)
	}
	return num + kindStyles[todo.LineKind(line)].Render(line)
}

// highlightMarkdown colours one line with chroma. Errors fall back to the
// plain line.
func highlightMarkdown(line string) string {
	if line == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, line, "markdown", "terminal256", "monokai"); err != nil {
		return line
	}
	return strings.TrimRight(buf.String(), "\r\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString("\nKeyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Reload the document\n")
	b.WriteString("  /            Edit the regex filter (enter keeps, esc cancels)\n")
	b.WriteString("  v            Save the current filter as a view\n")
	b.WriteString("  tab          Cycle through saved views\n")
	b.WriteString("  1 / 2 / 3    Show available / blocked / completed items\n")
	b.WriteString("  0, esc       Clear the filter\n")
	b.WriteString("  j, k         Scroll\n")
	b.WriteString("  h, ?         Toggle this help screen\n")
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
