// Package panel implements the operator display.
package panel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"matchbot/internal/config"
	"matchbot/internal/telemetry"
)

// ErrClosed is returned by WaitForCalibration once the UI has exited.
var ErrClosed = errors.New("panel closed")

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type pageMsg struct{ name string }
type scoreMsg struct{ score int }
type calibrationMsg struct{ text string }
type logMsg struct{ line string }
type poseMsg struct{ telemetry.PoseRow }
type adminMsg struct{ active bool }

const maxLogLines = 500

// controls is shared between the model and the panel.
type controls struct {
	colorA    atomic.Bool
	confirmed chan struct{}
	once      sync.Once
	// locked is set once calibration is confirmed; the color can no longer change.
	locked atomic.Bool
}

func (c *controls) confirm() {
	c.once.Do(func() {
		c.locked.Store(true)
		close(c.confirmed)
	})
}

// TUIPanel renders the match on a terminal. It is also a telemetry.Writer:
// events go to the log viewport and poses to the footer.
type TUIPanel struct {
	program    teaProgram
	ctl        *controls
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIPanel starts a bubbletea program. Quitting the UI interrupts the
// process.
func NewTUIPanel(cfg *config.Config, colorA bool) *TUIPanel {
	ctl := &controls{confirmed: make(chan struct{})}
	ctl.colorA.Store(colorA)
	w := &TUIPanel{ctl: ctl, done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg, ctl), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

func (w *TUIPanel) ShowPage(name string)           { w.program.Send(pageMsg{name: name}) }
func (w *TUIPanel) ShowScore(n int)                { w.program.Send(scoreMsg{score: n}) }
func (w *TUIPanel) ShowCalibrationStatus(s string) { w.program.Send(calibrationMsg{text: s}) }
func (w *TUIPanel) IsColorVariantA() bool          { return w.ctl.colorA.Load() }

// WaitForCalibration blocks until the operator presses enter.
func (w *TUIPanel) WaitForCalibration(ctx context.Context) error {
	select {
	case <-w.ctl.confirmed:
		return nil
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetAdminStatus updates the admin server indicator.
func (w *TUIPanel) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// WritePose implements telemetry.Writer.
func (w *TUIPanel) WritePose(row telemetry.PoseRow) error {
	w.program.Send(poseMsg{row})
	return nil
}

// WriteEvent implements telemetry.Writer.
func (w *TUIPanel) WriteEvent(e telemetry.EventRow) error {
	w.program.Send(logMsg{line: formatEvent(e)})
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIPanel) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

func formatEvent(e telemetry.EventRow) string {
	c := colorCyan
	switch e.Kind {
	case telemetry.EventEmergency, telemetry.EventMotionBlocked, telemetry.EventPathNotFound:
		c = colorRed
	case telemetry.EventObjectiveDone, telemetry.EventMatchStart:
		c = colorGreen
	case telemetry.EventObjectiveSkipped, telemetry.EventTrajectoryBlock:
		c = colorYellow
	case telemetry.EventMatchEnd:
		c = colorMagenta
	}
	line := fmt.Sprintf("%s%6.1fs%s %s%-18s%s", colorGray, float64(e.ElapsedMS)/1000, colorReset, c, e.Kind, colorReset)
	if e.Step != "" {
		line += " " + e.Step
	}
	if e.Detail != "" {
		line += fmt.Sprintf(" %s%s%s", colorGray, e.Detail, colorReset)
	}
	return line
}

type tuiModel struct {
	ctl        *controls
	cfg        *config.Config
	table      table.Model
	vp         viewport.Model
	logs       []string
	page       string
	score      int
	calib      string
	pose       telemetry.PoseRow
	havePose   bool
	admin      bool
	wrap       bool
	autoscroll bool
	help       bool
	height     int
}

func newTUIModel(cfg *config.Config, ctl *controls) tuiModel {
	cols := []table.Column{
		{Title: "Config", Width: 18},
		{Title: "Value", Width: 12},
		{Title: "Config", Width: 18},
		{Title: "Value", Width: 12},
	}
	rows := []table.Row{
		{"Table (mm)", fmt.Sprintf("%.0fx%.0f", cfg.Table.SizeX, cfg.Table.SizeY), "Match", fmt.Sprintf("%ds", cfg.MatchDurationS)},
		{"Resolution (mm)", fmt.Sprintf("%.0f", cfg.Table.Resolution), "Margin (mm)", fmt.Sprintf("%.0f", cfg.Table.Margin)},
		{"Heuristic", cfg.Pathfinding.Heuristic, "Clearance (mm)", fmt.Sprintf("%.0f", cfg.Motion.TrajectoryClearanceMM)},
		{"Dynamic zones", fmt.Sprintf("%d", len(cfg.Table.DynamicZones)), "Remote", fmt.Sprintf("%t", cfg.Remote.Active)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return tuiModel{
		ctl:        ctl,
		cfg:        cfg,
		table:      t,
		vp:         viewport.New(0, 0),
		page:       "init",
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "h", "?", "esc", "q":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if !m.ctl.locked.Load() {
				m.ctl.colorA.Store(!m.ctl.colorA.Load())
			}
		case "enter":
			m.ctl.confirm()
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		case "h", "?":
			m.help = true
		default:
			if !m.autoscroll {
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
	case pageMsg:
		m.page = msg.name
		m.updateViewportHeight()
	case scoreMsg:
		m.score = msg.score
	case calibrationMsg:
		m.calib = msg.text
		m.appendLog(fmt.Sprintf("%s%s%s", colorBlue, msg.text, colorReset))
	case logMsg:
		m.appendLog(msg.line)
	case poseMsg:
		m.pose, m.havePose = msg.PoseRow, true
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m *tuiModel) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.refreshViewport()
}

func (m *tuiModel) updateViewportHeight() {
	h := m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.renderBottom()) - 2
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			l = wordwrap.String(l, m.vp.Width)
		}
		lines = append(lines, l)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	scoreStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")).Padding(0, 2)
)

func (m tuiModel) colorBadge() string {
	name, bg := "colorOther", lipgloss.Color("12")
	if m.ctl.colorA.Load() {
		name, bg = "color0", lipgloss.Color("11")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(bg).Padding(0, 1).Render(name)
}

func (m tuiModel) renderHeader() string {
	switch m.page {
	case "init":
		hint := "tab: switch color  enter: start calibration"
		if m.ctl.locked.Load() {
			hint = m.calib
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("MATCHBOT"), m.colorBadge()),
			m.table.View(),
			hint)
	case "ready":
		return lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("READY"), m.colorBadge(), " pull the start cord")
	default:
		return lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("MATCH"), m.colorBadge(), " ", scoreStyle.Render(fmt.Sprintf("%d pts", m.score)))
	}
}

func (m tuiModel) renderBottom() string {
	indicator := func(on bool) string {
		c := lipgloss.Color("9")
		if on {
			c = lipgloss.Color("10")
		}
		return lipgloss.NewStyle().Foreground(c).Render("●")
	}
	pose := "pose n/a"
	if m.havePose {
		p := m.pose
		pose = fmt.Sprintf("%sPOSE%s x=%.0f y=%.0f θ=%.2f %s%s%s dir=%s queue=%d",
			colorBlue, colorReset, p.X, p.Y, p.Theta, colorYellow, p.Status, colorReset, p.Direction, p.Queue)
	}
	return fmt.Sprintf("%s | Admin %s | Wrap %s | Scroll %s | h help", pose, indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll))
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" tab    switch color before calibration",
		" enter  confirm calibration",
		" q      quit",
		" w      toggle wrap",
		" s      toggle auto-scroll",
		" h/?    toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	return strings.Join([]string{m.renderHeader(), divider, m.vp.View(), divider, m.renderBottom()}, "\n")
}

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)
