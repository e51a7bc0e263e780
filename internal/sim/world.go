package sim

import (
	"context"
	"log/slog"
	"time"

	"matchbot/internal/config"
	"matchbot/internal/logging"
	"matchbot/internal/proximity"
	"matchbot/internal/timeutil"
)

// World owns the simulated hardware and advances it on a fixed tick.
type World struct {
	Robot    *Robot
	Opponent *Opponent
	Actions  *Actions
	Start    *StartSwitch
	Scanner  *Scanner
	Sensors  []proximity.Sensor

	clock timeutil.Clock
	tick  time.Duration
	log   *slog.Logger
}

// NewWorld builds the hardware described by cfg.Sim. The opponent is nil
// when disabled.
func NewWorld(cfg *config.Config, clock timeutil.Clock, log *slog.Logger) *World {
	s := cfg.Sim
	var opp *Opponent
	if s.Opponent.Enabled {
		opp = NewOpponent(cfg.Table, s.Opponent)
	}
	robot := NewRobot(cfg.Table, s, opp, log)
	w := &World{
		Robot:    robot,
		Opponent: opp,
		Actions:  NewActions(clock, time.Duration(s.ActionDurationMS)*time.Millisecond, s.ActionFlags, log),
		Start: NewStartSwitch(clock,
			time.Duration(s.InsertDelayMS)*time.Millisecond,
			time.Duration(s.PullDelayMS)*time.Millisecond, log),
		Scanner: NewScanner(cfg.Detection, robot, opp),
		clock:   clock,
		tick:    s.Tick(),
		log:     logging.Component(log, "sim"),
	}
	for _, sc := range cfg.Detection.Sensors {
		w.Sensors = append(w.Sensors, NewRangeSensor(sc, cfg.Table, robot, opp))
	}
	return w
}

// Step advances the opponent then the robot by dt.
func (w *World) Step(dt time.Duration) {
	if w.Opponent != nil {
		w.Opponent.Step(dt)
	}
	w.Robot.Step(dt)
}

// Run steps the world every tick until ctx is done.
func (w *World) Run(ctx context.Context) error {
	w.log.Info("simulation started", "tick", w.tick, "opponent", w.Opponent != nil)
	ticker := w.clock.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			w.Step(w.tick)
		case <-ctx.Done():
			w.log.Info("simulation stopped")
			return nil
		}
	}
}
