package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/triage"
)

const (
	defaultLogLines = 12
	defaultWidth    = 80
)

// ProgressMsg carries an engine progress event.
type ProgressMsg struct {
	Done           int
	Total          int
	Classification triage.Classification
}

// LogMsg carries an engine log line.
type LogMsg string

// FinishedMsg is sent once the engine has finished and delivered all events.
type FinishedMsg struct {
	Result engine.Result
}

// Stopper is the part of the engine the model controls.
type Stopper interface {
	Stop()
}

// Model is the bubbletea model of a single run.
type Model struct {
	title    string
	engine   Stopper
	keys     KeyMap
	bar      progress.Model
	logs     []string
	maxLogs  int
	done     int
	total    int
	counts   map[triage.Classification]int
	stopping bool
	finished bool
	result   engine.Result
	width    int
}

// NewModel creates the run view for eng.
func NewModel(title string, eng Stopper) Model {
	return Model{
		title:   title,
		engine:  eng,
		keys:    DefaultKeyMap(),
		bar:     progress.New(progress.WithDefaultGradient()),
		maxLogs: defaultLogLines,
		counts:  make(map[triage.Classification]int, len(triage.Classifications)),
		width:   defaultWidth,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles engine events, key presses and resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.counts[msg.Classification]++
		return m, nil

	case LogMsg:
		m.appendLog(string(msg))
		return m, nil

	case FinishedMsg:
		m.finished = true
		m.result = msg.Result
		if msg.Result.Total > 0 {
			m.done = msg.Result.Done
			m.total = msg.Result.Total
		}
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.finished {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if key.Matches(msg, m.keys.Stop) && !m.stopping {
		m.stopping = true
		m.engine.Stop()
		m.appendLog("Stopping after the current batch...")
	}
	return m, nil
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

// Result returns the engine result once the run has finished.
func (m Model) Result() (engine.Result, bool) {
	return m.result, m.finished
}

// Percent is the classified fraction of the run.
func (m Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// View renders the run view.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(fmt.Sprintf("  %d/%d\n", m.done, m.total))
	b.WriteString(classStyle(triage.Important).Render(fmt.Sprintf("Important: %d", m.counts[triage.Important])))
	b.WriteString("   ")
	b.WriteString(classStyle(triage.LowPriority).Render(fmt.Sprintf("Low Priority: %d", m.counts[triage.LowPriority])))
	b.WriteString("\n\n")

	lines := m.logs
	if len(lines) == 0 {
		lines = []string{"Starting..."}
	}
	b.WriteString(logStyle.Width(max(m.width-2, 20)).Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	switch {
	case m.finished && m.result.Err != nil:
		b.WriteString(errorStyle.Render("Failed: " + m.result.Err.Error()))
	case m.finished:
		b.WriteString(statusStyle.Render(fmt.Sprintf("Run %s: %s", m.result.Outcome, m.result.RunID)))
	case m.stopping:
		b.WriteString(statusStyle.Render("Stopping..."))
	default:
		b.WriteString(helpStyle.Render(m.keys.Stop.Help().Key + ": " + m.keys.Stop.Help().Desc))
	}
	b.WriteString("\n")
	return b.String()
}
