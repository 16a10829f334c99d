package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/finmgr/finmgr/internal/types"
)

var (
	accentColor  = lipgloss.Color("#00E676")
	dimColor     = lipgloss.Color("#9E9E9E")
	errorColor   = lipgloss.Color("#FF5252")
	successColor = lipgloss.Color("#66BB6A")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	failedStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(successColor)

	countStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	containerStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

const barWidth = 40

type statusMsg struct {
	phase types.Phase
	text  string
}

type percentMsg float64

type doneMsg struct {
	linger time.Duration
}

type quitMsg struct{}

// model is the bubbletea model for the updater window.
type model struct {
	bar progress.Model

	title   string
	phase   types.Phase
	status  string
	percent float64
	total   int64
	done    bool
}

func newModel(title string, total int64) model {
	bar := progress.New(
		progress.WithSolidFill(string(accentColor)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return model{
		bar:    bar,
		title:  title,
		status: "Initializing...",
		total:  total,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.phase = msg.phase
		m.status = msg.text
		return m, nil

	case percentMsg:
		m.percent = clamp(float64(msg))
		return m, m.bar.SetPercent(m.percent)

	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd

	case doneMsg:
		m.done = true
		if msg.linger <= 0 {
			return m, tea.Quit
		}
		return m, tea.Tick(msg.linger, func(time.Time) tea.Msg { return quitMsg{} })

	case quitMsg:
		return m, tea.Quit
	}

	// Keys are ignored: a running update cannot be interrupted.
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.bar.View())
	b.WriteString("\n")

	if count := m.countText(); count != "" {
		b.WriteString(countStyle.Render(count))
		b.WriteString("\n")
	}

	switch m.phase {
	case types.PhaseFailed:
		b.WriteString(failedStyle.Render(m.status))
	case types.PhaseRestarting, types.PhaseDone:
		b.WriteString(doneStyle.Render(m.status))
	default:
		b.WriteString(statusStyle.Render(m.status))
	}

	return containerStyle.Render(b.String())
}

// countText shows bytes received while downloading.
func (m model) countText() string {
	if m.phase != types.PhaseDownloading {
		return ""
	}
	if m.total <= 0 {
		return fmt.Sprintf("%3.0f%%", m.percent*100)
	}
	received := uint64(m.percent * float64(m.total))
	return fmt.Sprintf("%s / %s", humanize.Bytes(received), humanize.Bytes(uint64(m.total)))
}

// TUI shows the updater progress window in the terminal.
type TUI struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

// NewTUI starts the progress window. total is the expected download size,
// 0 when unknown.
func NewTUI(w io.Writer, version string, total int64) *TUI {
	program := tea.NewProgram(
		newModel(fmt.Sprintf("Updating to %s...", version), total),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	t := &TUI{
		program: program,
		done:    make(chan struct{}),
	}

	go func() {
		_, _ = program.Run()
		close(t.done)
	}()

	return t
}

// Status implements update.Observer.
func (t *TUI) Status(phase types.Phase, message string) {
	t.program.Send(statusMsg{phase: phase, text: message})
}

// Progress implements update.Observer.
func (t *TUI) Progress(fraction float64) {
	t.program.Send(percentMsg(fraction))
}

// Finish shows the final state for linger, then closes the window.
func (t *TUI) Finish(linger time.Duration) {
	t.once.Do(func() {
		t.program.Send(doneMsg{linger: linger})

		select {
		case <-t.done:
		case <-time.After(linger + time.Second):
			t.program.Kill()
			<-t.done
		}
	})
}
