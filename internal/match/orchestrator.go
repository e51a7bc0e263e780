// Package match drives a match: start-up sequence, the tick loop that
// executes the mission plan, and the end-of-match shutdown.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"matchbot/internal/config"
	"matchbot/internal/logging"
	"matchbot/internal/motion"
	"matchbot/internal/pathfind"
	"matchbot/internal/proximity"
	"matchbot/internal/strategy"
	"matchbot/internal/telemetry"
	"matchbot/internal/timeutil"
)

// ErrNotReady is returned when a lifecycle call comes out of order.
var ErrNotReady = errors.New("orchestrator not ready")

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Controller motion.Controller
	Sensors    []proximity.Sensor
	Scanner    proximity.Scanner
	Actions    ActionExecutor
	Panel      Panel
	Start      StartSwitch
	Remote     RemoteLink       // optional
	Telemetry  telemetry.Writer // optional
	Clock      timeutil.Clock   // defaults to the wall clock
	Logger     *slog.Logger
	// LoadPlan replaces reading the configured strategy file.
	LoadPlan func(color config.Color) (*strategy.Plan, error)
}

// Orchestrator owns the match. Tick and the lifecycle calls run on a
// single goroutine; Status, ToggleZone and the clock expiry are safe to
// call from others.
type Orchestrator struct {
	cfg     *config.Config
	deps    Deps
	log     *slog.Logger
	clock   timeutil.Clock
	tele    telemetry.Writer
	motion  *motion.Coordinator
	match   *Clock
	matchID string

	pf      atomic.Pointer[pathfind.Pathfinder]
	monitor *proximity.Monitor
	plan    *strategy.Plan

	state       atomic.Int32
	interrupted atomic.Bool
	endOnce     sync.Once
	ended       chan struct{}

	mu     sync.Mutex
	score  int
	frozen bool
	view   view

	// Tick goroutine only.
	detected     bool
	detectedSide proximity.Side
	job          *pathfind.Job
	stepStarted  time.Time
	blockedSince time.Time
	retries      int
	retryAt      time.Time
	lastPose     time.Time
}

// New wires an orchestrator. Nothing moves until Init.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("match: nil config")
	case deps.Controller == nil:
		return nil, errors.New("match: controller is required")
	case deps.Actions == nil:
		return nil, errors.New("match: action executor is required")
	case deps.Panel == nil:
		return nil, errors.New("match: panel is required")
	case deps.Start == nil:
		return nil, errors.New("match: start switch is required")
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.Discard{}
	}
	log := logging.Component(deps.Logger, "match")
	o := &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		log:     log,
		clock:   deps.Clock,
		tele:    deps.Telemetry,
		matchID: telemetry.NewMatchID(),
		match:   NewClock(deps.Clock, cfg.MatchDuration()),
		ended:   make(chan struct{}),
		motion: motion.NewCoordinator(deps.Controller, motion.Options{
			ChainSettle: cfg.Motion.ChainSettle(),
			Clearance:   cfg.Motion.TrajectoryClearanceMM,
			Clock:       deps.Clock,
			Logger:      deps.Logger,
		}),
	}
	o.view.objectiveID = -1
	return o, nil
}

// MatchID identifies the match in telemetry.
func (o *Orchestrator) MatchID() string { return o.matchID }

// State returns the lifecycle state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.log.Debug("state", "state", s)
}

// Ended is closed once the match has ended.
func (o *Orchestrator) Ended() <-chan struct{} { return o.ended }

// Score returns the current score.
func (o *Orchestrator) Score() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.score
}

// Init runs the start-up sequence up to the armed start cord.
func (o *Orchestrator) Init(ctx context.Context) error {
	if o.State() != AwaitingCalibration {
		return fmt.Errorf("%w: init in state %s", ErrNotReady, o.State())
	}
	p := o.deps.Panel
	p.ShowPage(PageInit)
	o.log.Info("waiting for calibration")
	if err := p.WaitForCalibration(ctx); err != nil {
		return err
	}

	p.ShowCalibrationStatus("initialising actuators")
	if err := o.deps.Actions.Init(); err != nil {
		return fmt.Errorf("init actions: %w", err)
	}
	colorA := p.IsColorVariantA()
	color := config.ColorOther
	if colorA {
		color = config.ColorA
	}
	o.mu.Lock()
	o.view.color = color
	o.mu.Unlock()
	if sp, ok := o.deps.Controller.(StartPositioner); ok {
		p.ShowCalibrationStatus("border calibration")
		if err := sp.GoStart(colorA); err != nil {
			o.log.Error("border calibration failed", "err", err)
		}
	}

	p.ShowCalibrationStatus("loading strategy")
	pf, err := pathfind.New(o.cfg.Table, o.cfg.Pathfinding, color, o.deps.Logger)
	if err != nil {
		return fmt.Errorf("init pathfinding: %w", err)
	}
	o.pf.Store(pf)
	mon, err := proximity.NewMonitor(o.cfg.Table, o.cfg.Detection, o.deps.Sensors, o.deps.Controller, o.deps.Scanner, o.deps.Logger)
	if err != nil {
		return fmt.Errorf("init detection: %w", err)
	}
	o.monitor = mon
	plan, err := o.loadPlan(color)
	if err != nil {
		return err
	}
	skipped, ok := plan.Start()
	o.plan = plan
	o.logSkipped(skipped)
	if !ok {
		return fmt.Errorf("%w: no runnable step for %s", strategy.ErrInvalidPlan, color)
	}
	o.refreshView()
	o.log.Info("strategy loaded", "color", color, "objectives", len(plan.Objectives))

	o.setState(AwaitingStartInsert)
	p.ShowCalibrationStatus("insert start cord")
	if err := o.deps.Start.WaitForState(ctx, true); err != nil {
		return err
	}
	o.setState(AwaitingStartPull)
	p.ShowPage(PageReady)
	o.log.Info("armed, waiting for start")
	return nil
}

func (o *Orchestrator) loadPlan(color config.Color) (*strategy.Plan, error) {
	if o.deps.LoadPlan != nil {
		return o.deps.LoadPlan(color)
	}
	return strategy.LoadPlan(o.cfg.StrategyFile, color)
}

// WaitForStart blocks until the cord is pulled, then starts the match
// clock and the first step.
func (o *Orchestrator) WaitForStart(ctx context.Context) error {
	if o.State() != AwaitingStartPull {
		return fmt.Errorf("%w: start in state %s", ErrNotReady, o.State())
	}
	if err := o.deps.Start.WaitForState(ctx, false); err != nil {
		return err
	}
	o.setState(Running)
	if err := o.match.Start(func() { o.endMatch("clock expired") }); err != nil {
		return err
	}
	o.log.Info("match started", "match_id", o.matchID, "duration", o.match.Duration())
	o.deps.Panel.ShowPage(PageScore)
	o.event(telemetry.EventMatchStart, "", string(o.color()))
	o.executeCurrent(ctx)
	o.deps.Panel.ShowScore(0)
	return nil
}

// Run ticks until the match ends or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.State() < Running {
		return fmt.Errorf("%w: run in state %s", ErrNotReady, o.State())
	}
	for o.Tick(ctx) {
		if err := ctx.Err(); err != nil {
			o.endMatch("cancelled")
			return err
		}
		o.clock.Sleep(o.cfg.Orchestrator.Yield())
	}
	return nil
}

// Play runs the whole match: Init, WaitForStart then Run.
func (o *Orchestrator) Play(ctx context.Context) error {
	if err := o.Init(ctx); err != nil {
		return err
	}
	if err := o.WaitForStart(ctx); err != nil {
		return err
	}
	return o.Run(ctx)
}

// Tick runs one iteration of the match loop and reports whether the match
// goes on.
func (o *Orchestrator) Tick(ctx context.Context) bool {
	if o.interrupted.Load() || o.match.Expired() {
		o.endMatch("clock expired")
		return false
	}
	if o.State() != Running {
		return false
	}
	o.sampleTelemetry()

	switch {
	case o.detected:
		o.checkCleared()
	case o.checkEmergency():
		return true
	case o.job != nil:
		o.awaitSearch(ctx)
	default:
		o.progress(ctx)
	}
	o.pollRemote()
	return !o.interrupted.Load()
}

func (o *Orchestrator) checkEmergency() bool {
	for _, side := range []proximity.Side{proximity.Front, proximity.Back} {
		d, hit := o.monitor.Check(side, false)
		if !hit {
			continue
		}
		o.log.Warn("obstacle detected, halting", "side", side, "sensor", d.Sensor, "distance", d.Distance, "point", d.Point)
		if err := o.motion.HaltTemporary(); err != nil {
			o.log.Error("halt failed", "err", err)
		}
		o.detected, o.detectedSide = true, side
		o.setDetected(true)
		o.event(telemetry.EventEmergency, "", fmt.Sprintf("%s %s %.0fmm", side, d.Sensor, d.Distance))
		return true
	}
	return false
}

func (o *Orchestrator) checkCleared() {
	if _, hit := o.monitor.Check(o.detectedSide, true); hit {
		return
	}
	resumed, err := o.motion.Resume()
	if err != nil {
		o.log.Error("resume failed", "err", err)
	}
	o.log.Info("obstacle cleared", "side", o.detectedSide, "trajectory", resumed)
	o.detected = false
	o.setDetected(false)
	o.event(telemetry.EventCleared, "", string(o.detectedSide))
}

// endMatch runs once, from the tick goroutine or the clock timer.
func (o *Orchestrator) endMatch(reason string) {
	o.endOnce.Do(func() {
		o.interrupted.Store(true)
		o.log.Info("match end", "reason", reason)
		if err := o.motion.Freeze(); err != nil {
			o.log.Error("final halt failed", "err", err)
		}
		if err := o.deps.Actions.StopAll(); err != nil {
			o.log.Error("stopping actions failed", "err", err)
		}
		o.mu.Lock()
		o.frozen = true
		score := o.score
		o.view.endReason = reason
		o.mu.Unlock()
		o.setState(MatchEnded)
		o.match.Stop()
		o.deps.Panel.ShowScore(score)
		o.event(telemetry.EventMatchEnd, "", reason)
		o.log.Info("final score", "score", score)
		close(o.ended)
	})
}

// Stop ends the match early.
func (o *Orchestrator) Stop(reason string) { o.endMatch(reason) }
