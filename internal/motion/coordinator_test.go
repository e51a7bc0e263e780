package motion

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbot/internal/geom"
	"matchbot/internal/timeutil"
)

// fakeController records every command as a string.
type fakeController struct {
	mu     sync.Mutex
	calls  []string
	queue  int
	status Status
	pose   geom.Position
	dir    Direction
}

func (f *fakeController) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return nil
}

func (f *fakeController) GoDistance(mm float64) error       { return f.record("go %.0f", mm) }
func (f *fakeController) GoToPrecise(p geom.Position) error { return f.record("goto %.0f,%.0f", p.X, p.Y) }
func (f *fakeController) GoToChained(p geom.Position) error { return f.record("chain %.0f,%.0f", p.X, p.Y) }
func (f *fakeController) GoToReverse(p geom.Position) error { return f.record("back %.0f,%.0f", p.X, p.Y) }
func (f *fakeController) FaceToward(p geom.Position) error  { return f.record("face %.0f,%.0f", p.X, p.Y) }
func (f *fakeController) Turn(d float64) error              { return f.record("turn %.0f", d) }
func (f *fakeController) HaltImmediate() error              { return f.record("halt") }
func (f *fakeController) ResetAfterHalt() error             { return f.record("reset") }
func (f *fakeController) Stop() error                       { return f.record("stop") }
func (f *fakeController) SetSpeedPercent(n int) error       { return f.record("speed %d", n) }
func (f *fakeController) CurrentPose() geom.Position        { f.mu.Lock(); defer f.mu.Unlock(); return f.pose }
func (f *fakeController) CommandedDirection() Direction     { return f.dir }
func (f *fakeController) QueueLength() int                  { f.mu.Lock(); defer f.mu.Unlock(); return f.queue }
func (f *fakeController) Status() Status                    { f.mu.Lock(); defer f.mu.Unlock(); return f.status }

func (f *fakeController) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

func newTestCoordinator() (*Coordinator, *fakeController, *timeutil.MockClock) {
	ctl := &fakeController{}
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewCoordinator(ctl, Options{ChainSettle: 10 * time.Millisecond, Clock: clk})
	return c, ctl, clk
}

var path = []geom.Position{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 200, Y: 100}, {X: 300, Y: 100}}

func TestCommitTrajectory(t *testing.T) {
	c, ctl, clk := newTestCoordinator()
	require.NoError(t, c.CommitTrajectory(path))
	want := []string{"chain 100,0", "chain 200,100", "goto 300,100"}
	if diff := cmp.Diff(want, ctl.take()); diff != "" {
		t.Fatalf("unexpected commands (-want +got):\n%s", diff)
	}
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, clk.Sleeps())
	assert.Equal(t, path[1:], c.Queue())
}

func TestHaltTemporaryTrimsAndResume(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.CommitTrajectory(path))
	ctl.take()

	ctl.queue = 2
	ctl.pose = geom.Position{X: 120, Y: 10}
	require.NoError(t, c.HaltTemporary())
	assert.Equal(t, path[2:], c.Queue())
	assert.True(t, c.Halted())

	resumed, err := c.Resume()
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, []string{"halt", "reset", "chain 200,100", "goto 300,100"}, ctl.take())
	assert.False(t, c.Halted())
}

func TestHaltTemporaryKeepsQueueWhenControllerEmpty(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.CommitTrajectory(path))
	ctl.queue = 0
	require.NoError(t, c.HaltTemporary())
	assert.Len(t, c.Queue(), 3)
}

func TestResumeSingleStep(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.Execute(Command{Kind: KindGo, Distance: 250}))
	require.NoError(t, c.HaltTemporary())
	ctl.take()
	resumed, err := c.Resume()
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, []string{"reset", "go 250"}, ctl.take())
}

func TestHaltDefinitive(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.CommitTrajectory(path))
	ctl.take()
	require.NoError(t, c.HaltDefinitive())
	assert.Empty(t, c.Queue())
	assert.Equal(t, []string{"halt", "stop"}, ctl.take())

	require.NoError(t, c.Execute(Command{Kind: KindFace, Target: geom.Position{X: 1, Y: 2}}))
	assert.Equal(t, []string{"reset", "face 1,2"}, ctl.take())
}

func TestIsTrajectoryBlocked(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	obstacle := []geom.Position{{X: 250, Y: 200}}
	assert.False(t, c.IsTrajectoryBlocked(obstacle), "empty queue")

	require.NoError(t, c.CommitTrajectory([]geom.Position{{}, {X: 1000, Y: 0}}))
	ctl.queue = 1
	assert.False(t, c.IsTrajectoryBlocked([]geom.Position{{X: 500, Y: 151}}))
	assert.True(t, c.IsTrajectoryBlocked([]geom.Position{{X: 500, Y: 150}}))
	assert.True(t, c.IsTrajectoryBlocked([]geom.Position{{X: 2000, Y: 0}, {X: 900, Y: -100}}))
	assert.False(t, c.IsTrajectoryBlocked(nil))
}

func TestIsTrajectoryBlockedShortLegInsideClearance(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.CommitTrajectory([]geom.Position{{}, {X: 120, Y: 0}}))
	ctl.queue = 1
	assert.True(t, c.IsTrajectoryBlocked([]geom.Position{{X: 120, Y: 0}}), "obstacle on the goal")
	assert.True(t, c.IsTrajectoryBlocked([]geom.Position{{X: 50, Y: 20}}), "obstacle beside the whole leg")
	assert.False(t, c.IsTrajectoryBlocked([]geom.Position{{X: 60, Y: 160}}))
}

// gatedClock blocks Sleep until the test lets it return.
type gatedClock struct {
	*timeutil.MockClock
	sleeping chan struct{}
	release  chan struct{}
}

func (g *gatedClock) Sleep(d time.Duration) {
	g.sleeping <- struct{}{}
	<-g.release
}

func newGatedCoordinator() (*Coordinator, *fakeController, *gatedClock) {
	ctl := &fakeController{}
	clk := &gatedClock{
		MockClock: timeutil.NewMockClock(time.Unix(0, 0)),
		sleeping:  make(chan struct{}),
		release:   make(chan struct{}),
	}
	return NewCoordinator(ctl, Options{ChainSettle: 10 * time.Millisecond, Clock: clk}), ctl, clk
}

func TestFreezeDuringChainSettle(t *testing.T) {
	c, ctl, clk := newGatedCoordinator()
	errc := make(chan error, 1)
	go func() { errc <- c.CommitTrajectory(path) }()
	<-clk.sleeping

	frozen := make(chan error, 1)
	go func() { frozen <- c.Freeze() }()
	select {
	case err := <-frozen:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Freeze waited for the settle delay")
	}
	assert.Empty(t, c.Queue())

	close(clk.release)
	assert.ErrorIs(t, <-errc, ErrFrozen)
	assert.Equal(t, []string{"chain 100,0", "halt", "stop"}, ctl.take())
}

func TestHaltDuringChainSettleKeepsUnsentWaypoints(t *testing.T) {
	c, ctl, clk := newGatedCoordinator()
	errc := make(chan error, 1)
	go func() { errc <- c.CommitTrajectory(path) }()
	<-clk.sleeping

	ctl.mu.Lock()
	ctl.queue = 1
	ctl.mu.Unlock()
	require.NoError(t, c.HaltTemporary())
	close(clk.release)
	require.NoError(t, <-errc)

	assert.Equal(t, path[1:], c.Queue())
	assert.False(t, c.MovementEnded())
	assert.Equal(t, []string{"chain 100,0", "halt"}, ctl.take())
}

func TestMovementEnded(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.CommitTrajectory(path))
	ctl.queue, ctl.status = 1, Running
	assert.False(t, c.MovementEnded())
	ctl.queue, ctl.status = 0, Idle
	assert.True(t, c.MovementEnded())
	assert.Empty(t, c.Queue())
}

func TestBumpAndSpeed(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.Execute(Command{Kind: KindSetSpeed, Distance: 60}))
	require.NoError(t, c.Execute(Command{Kind: KindGo, Distance: -300, Bump: true}))
	require.NoError(t, c.FinishBump())
	assert.Equal(t, []string{"speed 60", "speed 30", "go -300", "halt", "reset", "speed 60"}, ctl.take())
}

func TestFreezeRejectsCommands(t *testing.T) {
	c, ctl, _ := newTestCoordinator()
	require.NoError(t, c.CommitTrajectory(path))
	ctl.take()
	require.NoError(t, c.Freeze())
	assert.Equal(t, []string{"halt", "stop"}, ctl.take())
	assert.ErrorIs(t, c.Execute(Command{Kind: KindGo, Distance: 10}), ErrFrozen)
	assert.ErrorIs(t, c.CommitTrajectory(path), ErrFrozen)
	resumed, err := c.Resume()
	assert.False(t, resumed)
	assert.ErrorIs(t, err, ErrFrozen)
	assert.Empty(t, ctl.take())
}
