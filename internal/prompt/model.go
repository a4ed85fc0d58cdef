// Package prompt implements the interactive instruction prompt.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	scrollbackSize = 200
	visibleEntries = 8
	inputLimit     = 256
)

// Handler runs instructions for the prompt.
type Handler interface {
	Handle(ctx context.Context, raw string) []string
	Render() string
	Prompt() string
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	echoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231"))

	lostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	gridStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)
)

// entry is one instruction and its results in the scrollback.
type entry struct {
	input string
	lines []string
}

// resultMsg carries the outcome of a submitted instruction.
type resultMsg struct {
	entry
	grid string
}

// Model is the bubbletea model for the prompt.
type Model struct {
	ctx        context.Context
	handler    Handler
	input      textinput.Model
	scrollback []entry
	grid       string
	recall     int
	busy       bool
	quitting   bool
}

// NewModel creates a prompt model over h.
func NewModel(ctx context.Context, h Handler) Model {
	ti := textinput.New()
	ti.Prompt = h.Prompt()
	ti.CharLimit = inputLimit
	ti.Focus()

	return Model{
		ctx:     ctx,
		handler: h,
		input:   ti,
		grid:    h.Render(),
		recall:  -1,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses and instruction results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			raw := m.input.Value()
			m.input.Reset()
			m.recall = -1
			m.busy = true
			return m, m.submit(raw)
		case tea.KeyUp:
			m.recallPrevious()
			return m, nil
		case tea.KeyDown:
			m.recallNext()
			return m, nil
		}

	case resultMsg:
		m.busy = false
		m.grid = msg.grid
		m.scrollback = append(m.scrollback, msg.entry)
		if len(m.scrollback) > scrollbackSize {
			m.scrollback = m.scrollback[len(m.scrollback)-scrollbackSize:]
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs raw off the update loop.
func (m Model) submit(raw string) tea.Cmd {
	return func() tea.Msg {
		lines := m.handler.Handle(m.ctx, raw)
		return resultMsg{entry: entry{input: raw, lines: lines}, grid: m.handler.Render()}
	}
}

func (m *Model) recallPrevious() {
	if len(m.scrollback) == 0 {
		return
	}
	if m.recall < 0 {
		m.recall = len(m.scrollback)
	}
	if m.recall > 0 {
		m.recall--
	}
	m.input.SetValue(m.scrollback[m.recall].input)
	m.input.CursorEnd()
}

func (m *Model) recallNext() {
	if m.recall < 0 {
		return
	}
	m.recall++
	if m.recall >= len(m.scrollback) {
		m.recall = -1
		m.input.Reset()
		return
	}
	m.input.SetValue(m.scrollback[m.recall].input)
	m.input.CursorEnd()
}

// View renders the scrollback, the grid and the input line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("gridwalker"))
	b.WriteString("\n\n")

	start := max(0, len(m.scrollback)-visibleEntries)
	for _, e := range m.scrollback[start:] {
		b.WriteString(echoStyle.Render("> " + e.input))
		b.WriteByte('\n')
		for _, line := range e.lines {
			if strings.HasSuffix(line, " LOST") {
				b.WriteString(lostStyle.Render(line))
			} else {
				b.WriteString(resultStyle.Render(line))
			}
			b.WriteByte('\n')
		}
	}

	b.WriteString(gridStyle.Render(strings.TrimSuffix(m.grid, "\n")))
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	b.WriteString(footerStyle.Render("\nh help • ↑/↓ recall • esc quit"))
	return b.String()
}

// Run starts the prompt on in/out and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, h Handler, in io.Reader, out io.Writer) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	_, err := tea.NewProgram(NewModel(ctx, h), opts...).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run prompt: %w", err)
	}
	return nil
}
