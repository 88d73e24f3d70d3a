package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/draft"
	"murmur/gesture"
	"murmur/log"
	"murmur/outbox"
	"murmur/recorder"
)

const barWidth = 24

type tickMsg time.Time

type tuiModel struct {
	inputs chan<- recorder.Input
	sink   *tuiSink

	// host units per terminal cell
	cellW, cellH float64
	pressed      bool
	hotkeyHelp   bool

	state          gesture.State
	cancelProgress float64
	lockProgress   float64
	elapsed        time.Duration
	level          float64
	noVoice        bool

	lastDraft *draft.Draft
	lastMemo  *outbox.Receipt
	lastErr   string
	sent      int

	deviceLine    string
	frame         int
	width, height int
}

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleLocked  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleDraft   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleDimBold = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleCancel  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	styleLock    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleLevel   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stylePanel   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

func newTUIModel(inputs chan<- recorder.Input, sink *tuiSink, cellW, cellH float64, hotkeyHelp bool) tuiModel {
	return tuiModel{inputs: inputs, sink: sink, cellW: cellW, cellH: cellH, hotkeyHelp: hotkeyHelp}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tuiTick(), m.sink.wait())
}

func (m tuiModel) send(in recorder.Input) {
	select {
	case m.inputs <- in:
	default:
		log.Warn("input queue full, dropping input from " + in.Source)
	}
}

func (m tuiModel) sample(p gesture.Phase, x, y int) {
	pos := gesture.Point{X: float64(x) * m.cellW, Y: float64(y) * m.cellH}
	m.send(recorder.SampleInput("mouse", gesture.Sample{Phase: p, Pos: pos}))
}

func (m tuiModel) command(c recorder.Command) {
	m.send(recorder.CommandInput("keyboard", c))
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			m.command(recorder.SendDraft)
		case "d":
			m.command(recorder.DiscardDraft)
		case "esc":
			m.command(recorder.CancelRecording)
		}

	case tea.MouseMsg:
		m = m.handleMouse(msg)

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case GestureMsg:
		r := msg.Result
		if r.State == gesture.Held && m.state == gesture.Idle {
			m.elapsed = 0
			m.level = 0
			m.noVoice = false
			m.lastErr = ""
		}
		m.state = r.State
		m.cancelProgress = r.CancelProgress
		m.lockProgress = r.LockProgress
		if r.Draft != "" {
			// sent or discarded
			m.lastDraft = nil
		}
		return m, m.sink.wait()

	case RecordingTickMsg:
		m.elapsed = msg.Elapsed
		return m, m.sink.wait()

	case AudioLevelMsg:
		m.level = m.level*0.6 + msg.Level*0.4
		return m, m.sink.wait()

	case SilenceWarningMsg:
		m.noVoice = msg.Active
		return m, m.sink.wait()

	case DraftReadyMsg:
		d := msg.Draft
		m.lastDraft = &d
		return m, m.sink.wait()

	case MemoSentMsg:
		r := msg.Receipt
		m.lastMemo = &r
		m.sent++
		return m, m.sink.wait()

	case ErrorMsg:
		m.lastErr = msg.Err.Error()
		return m, m.sink.wait()

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

// handleMouse maps the left button onto touch phases. A click on a locked
// recording stops it for review; a draft is only sent or discarded by key.
func (m tuiModel) handleMouse(msg tea.MouseMsg) tuiModel {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m
		}
		switch m.state {
		case gesture.Locked:
			m.send(recorder.CommandInput("mouse", recorder.StopAndReview))
			return m
		case gesture.Draft:
			return m
		}
		m.pressed = true
		m.sample(gesture.Began, msg.X, msg.Y)
	case tea.MouseActionMotion:
		if m.pressed {
			m.sample(gesture.Changed, msg.X, msg.Y)
		}
	case tea.MouseActionRelease:
		if m.pressed {
			m.pressed = false
			m.sample(gesture.Ended, msg.X, msg.Y)
		}
	}
	return m
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	lines = append(lines, m.statusLine())

	if m.state == gesture.Held || m.state == gesture.Locked {
		lines = append(lines, "")
		lines = append(lines, "level  "+renderBar(min(m.level*8, 1), styleLevel))
		lines = append(lines, "cancel "+renderBar(m.cancelProgress, styleCancel)+fmt.Sprintf(" %3.0f%%", m.cancelProgress*100))
		lines = append(lines, "lock   "+renderBar(m.lockProgress, styleLock)+fmt.Sprintf(" %3.0f%%", m.lockProgress*100))
		if m.noVoice {
			lines = append(lines, styleWarn.Render("⚠ no voice detected"))
		}
	}

	lines = append(lines, "")
	if m.lastDraft != nil {
		d := m.lastDraft
		lines = append(lines, styleDraft.Render("Draft")+fmt.Sprintf(" %s  %.1fs  (%s)", shortID(d.ID), d.Duration.Seconds(), d.Reason))
	}
	if m.lastMemo != nil {
		line := styleOK.Render(fmt.Sprintf("Sent #%d", m.sent)) + " " + filepath.Base(m.lastMemo.Path)
		if m.lastMemo.Copied {
			line += " " + styleOK.Render("[✓ path copied]")
		}
		lines = append(lines, line)
	}
	if m.lastErr != "" {
		lines = append(lines, styleErr.Render("Error: "+m.lastErr))
	}
	if m.deviceLine != "" {
		lines = append(lines, styleIdle.Render(m.deviceLine))
	}

	lines = append(lines, "")
	lines = append(lines, m.helpLines()...)
	lines = append(lines, styleDim.Render("murmur "+version))

	width := m.width - 2
	if width < 20 {
		width = 20
	}
	return stylePanel.Width(width).Render(strings.Join(lines, "\n"))
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case gesture.Held:
		dot := "●"
		if m.frame%10 >= 5 {
			dot = " "
		}
		return styleRec.Render(fmt.Sprintf("%s REC %.1fs", dot, m.elapsed.Seconds()))
	case gesture.Locked:
		return styleLocked.Render(fmt.Sprintf("● REC %.1fs  LOCKED", m.elapsed.Seconds()))
	case gesture.Draft:
		return styleDraft.Render("■ REVIEW")
	}
	return styleIdle.Render("○ STANDBY")
}

func (m tuiModel) helpLines() []string {
	key := func(k, text string) string { return styleDimBold.Render(k) + styleDim.Render(" "+text) }
	var help []string
	switch m.state {
	case gesture.Idle:
		help = append(help, key("hold mouse", "to record, release to send"))
		if m.hotkeyHelp {
			help = append(help, key("Ctrl+Shift+Space", "hold to record, tap for hands-free"))
		}
	case gesture.Held:
		help = append(help, key("drag sideways", "to cancel, drag up to lock"))
	case gesture.Locked:
		help = append(help, key("click", "stop & review")+"  "+key("enter", "send")+"  "+key("esc", "cancel"))
	case gesture.Draft:
		help = append(help, key("enter", "send")+"  "+key("d", "discard"))
	}
	help = append(help, key("q", "quit"))
	return help
}

func renderBar(progress float64, style lipgloss.Style) string {
	progress = max(0, min(progress, 1))
	filled := int(progress*barWidth + 0.5)
	return style.Render(strings.Repeat("█", filled)) + styleDim.Render(strings.Repeat("░", barWidth-filled))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
