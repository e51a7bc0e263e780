package panel

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"matchbot/internal/config"
	"matchbot/internal/logging"
	"matchbot/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func testConfig() *config.Config {
	cfg := &config.Config{Table: config.Table{SizeX: 3000, SizeY: 2000}}
	cfg.ApplyDefaults()
	return cfg
}

func newTestPanel() (*TUIPanel, *fakeProgram) {
	p := &fakeProgram{}
	return &TUIPanel{program: p, ctl: &controls{confirmed: make(chan struct{})}}, p
}

func TestTUIPanelMessages(t *testing.T) {
	w, p := newTestPanel()
	w.ShowPage("score")
	w.ShowScore(12)
	if err := w.WriteEvent(telemetry.EventRow{Kind: telemetry.EventObjectiveDone, ElapsedMS: 1500, Detail: "1 grab"}); err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := w.WritePose(telemetry.PoseRow{X: 10}); err != nil {
		t.Fatalf("pose: %v", err)
	}
	w.SetAdminStatus(true)

	if _, ok := p.msgs[0].(pageMsg); !ok {
		t.Fatalf("expected pageMsg, got %T", p.msgs[0])
	}
	if m, ok := p.msgs[1].(scoreMsg); !ok || m.score != 12 {
		t.Fatalf("expected scoreMsg 12, got %#v", p.msgs[1])
	}
	lm, ok := p.msgs[2].(logMsg)
	if !ok || !strings.Contains(lm.line, "objective_done") || !strings.Contains(lm.line, "1.5s") {
		t.Fatalf("unexpected log message %#v", p.msgs[2])
	}
	if _, ok := p.msgs[3].(poseMsg); !ok {
		t.Fatalf("expected poseMsg, got %T", p.msgs[3])
	}
	if _, ok := p.msgs[4].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[4])
	}
}

func TestColorToggleAndCalibration(t *testing.T) {
	w, _ := newTestPanel()
	m := newTUIModel(testConfig(), w.ctl)
	if w.IsColorVariantA() {
		t.Fatalf("color should start as the other variant")
	}
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = mi.(tuiModel)
	if !w.IsColorVariantA() {
		t.Fatalf("tab should flip the color")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := w.WaitForCalibration(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline before confirmation, got %v", err)
	}

	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mi.(tuiModel)
	if err := w.WaitForCalibration(context.Background()); err != nil {
		t.Fatalf("calibration: %v", err)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = mi.(tuiModel)
	if !w.IsColorVariantA() {
		t.Fatalf("color must be locked after calibration")
	}
	if !strings.Contains(m.View(), "color0") {
		t.Fatalf("view should show the selected color")
	}
}

func TestWaitForCalibrationAfterClose(t *testing.T) {
	w, _ := newTestPanel()
	w.done = make(chan struct{})
	close(w.done)
	if err := w.WaitForCalibration(context.Background()); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestScoreAndWrap(t *testing.T) {
	m := newTUIModel(testConfig(), &controls{confirmed: make(chan struct{})})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(pageMsg{name: "score"})
	m = mi.(tuiModel)
	mi, _ = m.Update(scoreMsg{score: 42})
	m = mi.(tuiModel)
	if !strings.Contains(m.View(), "42 pts") {
		t.Fatalf("score not rendered")
	}

	mi, _ = m.Update(logMsg{line: "one two three four five six"})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestLogPanel(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPanel(true, logging.New(logging.Options{Output: &buf}))
	if err := p.WaitForCalibration(context.Background()); err != nil {
		t.Fatalf("calibration: %v", err)
	}
	if !p.IsColorVariantA() {
		t.Fatalf("color should be fixed to variant A")
	}
	p.ShowPage("ready")
	p.ShowScore(0)
	p.ShowScore(5)
	p.ShowScore(5)
	if p.Page() != "ready" || p.Score() != 5 {
		t.Fatalf("unexpected state page=%q score=%d", p.Page(), p.Score())
	}
	if n := strings.Count(buf.String(), "msg=score"); n != 1 {
		t.Fatalf("expected one score line, got %d:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "component=panel") {
		t.Fatalf("missing component attribute:\n%s", buf.String())
	}
}
