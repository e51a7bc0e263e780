package panel

import (
	"context"
	"log/slog"
	"sync"

	"matchbot/internal/logging"
)

// LogPanel is the headless panel: it logs what a screen would show,
// confirms calibration at once and keeps the color it was built with.
type LogPanel struct {
	log    *slog.Logger
	colorA bool

	mu    sync.Mutex
	page  string
	score int
}

// NewLogPanel returns a panel bound to colorA.
func NewLogPanel(colorA bool, log *slog.Logger) *LogPanel {
	return &LogPanel{log: logging.Component(log, "panel"), colorA: colorA}
}

func (p *LogPanel) ShowPage(name string) {
	p.mu.Lock()
	p.page = name
	p.mu.Unlock()
	p.log.Info("page", "page", name)
}

func (p *LogPanel) ShowScore(n int) {
	p.mu.Lock()
	changed := n != p.score
	p.score = n
	p.mu.Unlock()
	if changed {
		p.log.Info("score", "score", n)
	}
}

func (p *LogPanel) ShowCalibrationStatus(text string) { p.log.Info(text) }
func (p *LogPanel) IsColorVariantA() bool             { return p.colorA }

// WaitForCalibration returns immediately unless ctx is already done.
func (p *LogPanel) WaitForCalibration(ctx context.Context) error {
	return ctx.Err()
}

// Page returns the last page shown.
func (p *LogPanel) Page() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Score returns the last score shown.
func (p *LogPanel) Score() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}
