package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasm-frame-host/driver"
	"github.com/wippyai/wasm-frame-host/input"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// chromeRows is the number of terminal rows used by the title and footer.
const chromeRows = 3

// Options configures a Model.
type Options struct {
	Title  string
	FPS    int
	Keymap input.Keymap
	// Hold is how long a key counts as held after its last repeat.
	Hold  time.Duration
	Clock driver.Clock
}

type frameMsg time.Time

// Model steps a driver on a timer and renders its canvas.
type Model struct {
	ctx    context.Context
	driver *driver.Driver
	canvas *Canvas
	hold   *input.Hold
	keymap input.Keymap
	keys   keyHelp
	help   help.Model
	clock  driver.Clock
	title  string
	fps    int
	err    error
	warn   error
	done   bool
}

// New creates a model for a started driver presenting to canvas. Key
// presses are written to latch.
func New(ctx context.Context, d *driver.Driver, canvas *Canvas, latch *input.Latch, opts Options) *Model {
	if opts.FPS <= 0 {
		opts.FPS = driver.DefaultFPS
	}
	if opts.Keymap == nil {
		opts.Keymap = input.DefaultKeymap()
	}
	if opts.Clock == nil {
		opts.Clock = driver.SystemClock
	}
	if opts.Title == "" {
		opts.Title = "framehost"
	}
	return &Model{
		ctx:    ctx,
		driver: d,
		canvas: canvas,
		hold:   input.NewHold(latch, opts.Hold),
		keymap: opts.Keymap,
		keys:   newKeyHelp(opts.Keymap),
		help:   help.New(),
		clock:  opts.Clock,
		title:  opts.Title,
		fps:    opts.FPS,
	}
}

// Err returns the error that halted the driver, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tea.WindowSize(), m.tick())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Exit) {
			m.driver.Stop()
			m.done = true
			return m, tea.Quit
		}
		if m.err != nil {
			// Any key leaves the halt screen.
			m.done = true
			return m, tea.Quit
		}
		if f, ok := m.keymap.Lookup(msg.String()); ok {
			m.hold.Press(f, m.clock.Now())
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.canvas.Resize(msg.Width, msg.Height-chromeRows)

	case frameMsg:
		return m, m.step()
	}
	return m, nil
}

// step runs one frame and schedules the next.
func (m *Model) step() tea.Cmd {
	if m.done || m.err != nil {
		return nil
	}
	m.hold.Expire(m.clock.Now())
	err := m.driver.Step(m.ctx)

	switch m.driver.State() {
	case driver.StateHalted:
		m.err = m.driver.Stats().Err
		return nil
	case driver.StateStopped:
		m.done = true
		return tea.Quit
	}
	m.warn = err
	return m.tick()
}

func (m *Model) View() string {
	var b strings.Builder

	stats := m.driver.Stats()
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString(" ")
	b.WriteString(statStyle.Render(fmt.Sprintf("frame %d  t=%.1fs  dt=%s",
		stats.Frames, stats.Elapsed.Seconds(), stats.LastDelta.Round(time.Millisecond))))
	b.WriteString("\n")

	b.WriteString(m.canvas.Render())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Halted: %v", m.err)))
		b.WriteString("  ")
		b.WriteString(helpStyle.Render("press any key to exit"))
	case m.warn != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.warn)))
	default:
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

// TerminalSize returns the size of the terminal on stdout, or 80x24 when
// stdout is not a terminal.
func TerminalSize() (cols, rows int) {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 80, 24
}

// Run shows the model full screen until the driver stops or halts, or the
// user exits. It returns the halting error, if any.
func Run(ctx context.Context, m *Model, opts ...tea.ProgramOption) error {
	cols, rows := TerminalSize()
	m.canvas.Resize(cols, rows-chromeRows)

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return m.err
}
