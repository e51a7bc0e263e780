package match

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"matchbot/internal/config"
	"matchbot/internal/geom"
	"matchbot/internal/logging"
	"matchbot/internal/motion"
	"matchbot/internal/proximity"
	"matchbot/internal/remote"
	"matchbot/internal/strategy"
	"matchbot/internal/telemetry"
	"matchbot/internal/timeutil"
)

// fakeController records commands and only moves when told to.
type fakeController struct {
	mu     sync.Mutex
	calls  []string
	status motion.Status
	queue  int
	pose   geom.Position
	dir    motion.Direction
}

func (f *fakeController) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeController) move(dir motion.Direction, waypoints int, format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(format, args...)
	f.status, f.dir = motion.Running, dir
	f.queue += waypoints
	return nil
}

func (f *fakeController) GoDistance(mm float64) error {
	dir := motion.Forward
	if mm < 0 {
		dir = motion.Backward
	}
	return f.move(dir, 0, "go %.0f", mm)
}

func (f *fakeController) GoToPrecise(p geom.Position) error {
	return f.move(motion.Forward, 1, "goto %.0f,%.0f", p.X, p.Y)
}

func (f *fakeController) GoToChained(p geom.Position) error {
	return f.move(motion.Forward, 1, "chain %.0f,%.0f", p.X, p.Y)
}

func (f *fakeController) GoToReverse(p geom.Position) error {
	return f.move(motion.Backward, 1, "back %.0f,%.0f", p.X, p.Y)
}

func (f *fakeController) FaceToward(p geom.Position) error {
	return f.move(motion.None, 0, "face %.0f,%.0f", p.X, p.Y)
}

func (f *fakeController) Turn(d float64) error { return f.move(motion.None, 0, "turn %.0f", d) }

func (f *fakeController) HaltImmediate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("halt")
	f.status, f.dir = motion.Halted, motion.None
	return nil
}

func (f *fakeController) ResetAfterHalt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reset")
	f.status = motion.Idle
	return nil
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop")
	f.queue = 0
	return nil
}

func (f *fakeController) SetSpeedPercent(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("speed %d", n)
	return nil
}

func (f *fakeController) GoStart(colorA bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start %t", colorA)
	return nil
}

func (f *fakeController) QueueLength() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue
}

func (f *fakeController) Status() motion.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) CurrentPose() geom.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pose
}

func (f *fakeController) CommandedDirection() motion.Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dir
}

func (f *fakeController) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

// arrive completes every outstanding motion.
func (f *fakeController) arrive() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.dir, f.queue = motion.Idle, motion.None, 0
}

func (f *fakeController) setStatus(s motion.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakeController) setQueue(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = n
}

type fakeActions struct {
	mu       sync.Mutex
	executed []string
	finished bool
	flag     string
	stopped  bool
}

func (a *fakeActions) Init() error { return nil }

func (a *fakeActions) ExecuteByID(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executed = append(a.executed, id)
	a.finished, a.flag = false, ""
	return nil
}

func (a *fakeActions) IsFinished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finished
}

func (a *fakeActions) LastRaisedFlag() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flag, a.flag != ""
}

func (a *fakeActions) StopAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	return nil
}

func (a *fakeActions) finish(flag string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished, a.flag = true, flag
}

type fakePanel struct {
	mu     sync.Mutex
	pages  []string
	scores []int
	colorA bool
}

func (p *fakePanel) ShowPage(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = append(p.pages, name)
}

func (p *fakePanel) ShowScore(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scores = append(p.scores, n)
}

func (p *fakePanel) ShowCalibrationStatus(string)                 {}
func (p *fakePanel) IsColorVariantA() bool                        { return p.colorA }
func (p *fakePanel) WaitForCalibration(ctx context.Context) error { return ctx.Err() }

type fakeSwitch struct {
	states []bool
}

func (s *fakeSwitch) WaitForState(ctx context.Context, inserted bool) error {
	s.states = append(s.states, inserted)
	return ctx.Err()
}

type fakeRemote struct {
	inbox []remote.Message
	sent  []remote.Message
}

func (r *fakeRemote) Poll() (remote.Message, bool) {
	if len(r.inbox) == 0 {
		return remote.Message{}, false
	}
	m := r.inbox[0]
	r.inbox = r.inbox[1:]
	return m, true
}

func (r *fakeRemote) Send(m remote.Message) error {
	r.sent = append(r.sent, m)
	return nil
}

type fakeSensor struct {
	mu      sync.Mutex
	reading float64
	ok      bool
}

func (s *fakeSensor) Name() string { return "front" }

func (s *fakeSensor) DistanceMillimeters() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading, s.ok
}

func (s *fakeSensor) Mount() geom.Position { return geom.Position{X: 100} }
func (s *fakeSensor) Threshold() float64   { return 200 }
func (s *fakeSensor) Side() proximity.Side { return proximity.Front }

func (s *fakeSensor) set(mm float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading, s.ok = mm, ok
}

type fakeScanner struct {
	mu     sync.Mutex
	points []geom.Position
}

func (s *fakeScanner) DetectedObstaclePoints() []geom.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

func (s *fakeScanner) set(points ...geom.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = points
}

// recordWriter keeps every telemetry row.
type recordWriter struct {
	mu     sync.Mutex
	poses  []telemetry.PoseRow
	events []telemetry.EventRow
}

func (w *recordWriter) WritePose(r telemetry.PoseRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.poses = append(w.poses, r)
	return nil
}

func (w *recordWriter) WriteEvent(r telemetry.EventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, r)
	return nil
}

func (w *recordWriter) count(kind telemetry.EventKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, e := range w.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type harness struct {
	o       *Orchestrator
	ctl     *fakeController
	actions *fakeActions
	panel   *fakePanel
	start   *fakeSwitch
	remote  *fakeRemote
	tele    *recordWriter
	clock   *timeutil.MockClock
	sensor  *fakeSensor
	scanner *fakeScanner
	ctx     context.Context
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Table: config.Table{
			SizeX:      3000,
			SizeY:      2000,
			Resolution: 50,
			DynamicZones: []config.Zone{
				{ID: "wall", Shape: "circle", Center: config.Point{X: 1500, Y: 1000}, Radius: 200, Active: true},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// newHarness builds an orchestrator around fakes without starting it.
func newHarness(t *testing.T, plan string, tweak func(*config.Config)) *harness {
	t.Helper()
	cfg := testConfig()
	if tweak != nil {
		tweak(cfg)
	}
	h := &harness{
		ctl:     &fakeController{pose: geom.Position{X: 300, Y: 300}},
		actions: &fakeActions{},
		panel:   &fakePanel{colorA: true},
		start:   &fakeSwitch{},
		remote:  &fakeRemote{},
		tele:    &recordWriter{},
		clock:   timeutil.NewMockClock(time.Unix(1000, 0)),
		sensor:  &fakeSensor{},
		scanner: &fakeScanner{},
		ctx:     context.Background(),
	}
	o, err := New(cfg, Deps{
		Controller: h.ctl,
		Sensors:    []proximity.Sensor{h.sensor},
		Scanner:    h.scanner,
		Actions:    h.actions,
		Panel:      h.panel,
		Start:      h.start,
		Remote:     h.remote,
		Telemetry:  h.tele,
		Clock:      h.clock,
		Logger:     logging.New(logging.Options{Level: slog.LevelError, Output: io.Discard}),
		LoadPlan: func(c config.Color) (*strategy.Plan, error) {
			return strategy.ParsePlan([]byte(plan), c)
		},
	})
	require.NoError(t, err)
	h.o = o
	return h
}

// startMatch runs the start-up sequence and pulls the cord. Commands
// sent during start-up are discarded; the first step's remain.
func startMatch(t *testing.T, plan string, tweak func(*config.Config)) *harness {
	t.Helper()
	h := newHarness(t, plan, tweak)
	require.NoError(t, h.o.Init(h.ctx))
	h.ctl.take()
	require.NoError(t, h.o.WaitForStart(h.ctx))
	return h
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	require.True(t, h.o.Tick(h.ctx), "match ended unexpectedly")
}
