package motion

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"matchbot/internal/geom"
	"matchbot/internal/logging"
	"matchbot/internal/timeutil"
)

// Kind selects a single-step motion command.
type Kind int

const (
	KindGo Kind = iota
	KindGoto
	KindGotoBack
	KindFace
	KindTurn
	KindSetSpeed
)

// Command is one single-step motion instruction.
type Command struct {
	Kind     Kind
	Target   geom.Position
	Distance float64 // mm for KindGo, degrees for KindTurn, percent for KindSetSpeed
	// Bump drives a KindGo at low speed until the robot stalls; see FinishBump.
	Bump bool
}

// ErrFrozen is returned by every command once Freeze has been called.
var ErrFrozen = errors.New("motion frozen")

// BumpSpeedPercent is the speed used while bumping into a wall.
const BumpSpeedPercent = 30

// Options tunes a Coordinator.
type Options struct {
	// ChainSettle separates two chained waypoint commands.
	ChainSettle time.Duration
	// Clearance is the radius around detected obstacles a trajectory must avoid.
	Clearance float64
	Clock     timeutil.Clock
	Logger    *slog.Logger
}

// Coordinator is the only owner of the trajectory queue.
type Coordinator struct {
	mu      sync.Mutex
	ctl     Controller
	log     *slog.Logger
	clock   timeutil.Clock
	settle  time.Duration
	radius  float64
	queue   []geom.Position
	unsent  int // tail of queue not yet sent to the controller
	gen     uint64
	current *Command
	halted  bool
	frozen  bool
	speed   int
}

// NewCoordinator wraps ctl.
func NewCoordinator(ctl Controller, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Clearance <= 0 {
		opts.Clearance = 150
	}
	return &Coordinator{
		ctl:    ctl,
		log:    logging.Component(opts.Logger, "motion"),
		clock:  opts.Clock,
		settle: opts.ChainSettle,
		radius: opts.Clearance,
		speed:  100,
	}
}

// Controller returns the wrapped controller.
func (c *Coordinator) Controller() Controller { return c.ctl }

func (c *Coordinator) resetIfHalted() error {
	if c.frozen {
		return ErrFrozen
	}
	if !c.halted {
		return nil
	}
	c.halted = false
	return c.ctl.ResetAfterHalt()
}

// CommitTrajectory replaces the trajectory queue with path[1:]. path[0] is
// the robot's own position and is not sent. Interior waypoints are sent
// as chained moves separated by the settle delay, the last one as a
// precise approach.
func (c *Coordinator) CommitTrajectory(path []geom.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resetIfHalted(); err != nil {
		return err
	}
	c.current = nil
	return c.commitLocked(path)
}

func (c *Coordinator) commitLocked(path []geom.Position) error {
	c.gen++
	c.queue = nil
	c.unsent = 0
	if len(path) < 2 {
		return nil
	}
	gen := c.gen
	c.queue = append([]geom.Position(nil), path[1:]...)
	c.unsent = len(c.queue)
	last := len(c.queue) - 1
	for i := 0; i <= last; i++ {
		if i > 0 && c.settle > 0 && !c.settleLocked(gen) {
			if c.frozen {
				return ErrFrozen
			}
			c.log.Debug("trajectory superseded", "sent", i, "waypoints", len(path)-1)
			return nil
		}
		p := c.queue[len(c.queue)-c.unsent]
		var err error
		if i < last {
			err = c.ctl.GoToChained(p)
		} else {
			err = c.ctl.GoToPrecise(p)
		}
		if err != nil {
			if i < last {
				return fmt.Errorf("chained waypoint %d: %w", i, err)
			}
			return fmt.Errorf("final waypoint: %w", err)
		}
		c.unsent--
	}
	c.log.Debug("trajectory committed", "waypoints", len(c.queue), "goal", c.queue[len(c.queue)-1])
	return nil
}

// settleLocked sleeps for the chain settle delay without holding c.mu. It
// reports false when a halt, freeze or new command replaced the trajectory
// meanwhile.
func (c *Coordinator) settleLocked(gen uint64) bool {
	c.mu.Unlock()
	c.clock.Sleep(c.settle)
	c.mu.Lock()
	return c.gen == gen && !c.frozen
}

// Execute runs a single-step command and forgets any committed trajectory.
func (c *Coordinator) Execute(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resetIfHalted(); err != nil {
		return err
	}
	c.gen++
	c.queue = nil
	c.unsent = 0
	if cmd.Kind != KindSetSpeed {
		cp := cmd
		c.current = &cp
	}
	return c.executeLocked(cmd)
}

func (c *Coordinator) executeLocked(cmd Command) error {
	switch cmd.Kind {
	case KindGo:
		if cmd.Bump {
			if err := c.ctl.SetSpeedPercent(BumpSpeedPercent); err != nil {
				return err
			}
		}
		return c.ctl.GoDistance(cmd.Distance)
	case KindGoto:
		return c.ctl.GoToPrecise(cmd.Target)
	case KindGotoBack:
		return c.ctl.GoToReverse(cmd.Target)
	case KindFace:
		return c.ctl.FaceToward(cmd.Target)
	case KindTurn:
		return c.ctl.Turn(cmd.Distance)
	case KindSetSpeed:
		c.speed = int(cmd.Distance)
		return c.ctl.SetSpeedPercent(c.speed)
	}
	return fmt.Errorf("unknown motion command %d", cmd.Kind)
}

// FinishBump ends a bump move: stop, clear the halt and restore the speed.
func (c *Coordinator) FinishBump() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrFrozen
	}
	c.current = nil
	return errors.Join(c.ctl.HaltImmediate(), c.ctl.ResetAfterHalt(), c.ctl.SetSpeedPercent(c.speed))
}

// HaltTemporary stops the robot and keeps only the waypoints the
// controller still reports as outstanding.
func (c *Coordinator) HaltTemporary() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.ctl.HaltImmediate()
	c.gen++
	c.halted = true
	c.trimLocked()
	c.log.Info("temporary halt", "remaining", len(c.queue))
	return err
}

// HaltDefinitive clears the queue and stops the controller.
func (c *Coordinator) HaltDefinitive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.queue = nil
	c.unsent = 0
	c.current = nil
	c.halted = true
	c.log.Info("definitive halt")
	return errors.Join(c.ctl.HaltImmediate(), c.ctl.Stop())
}

// Freeze halts definitively and rejects every later command.
func (c *Coordinator) Freeze() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.frozen = true
	c.queue = nil
	c.unsent = 0
	c.current = nil
	c.halted = true
	c.log.Info("motion frozen")
	return errors.Join(c.ctl.HaltImmediate(), c.ctl.Stop())
}

// Resume clears the halt. A remaining trajectory is re-committed from the
// live pose and Resume returns true; otherwise the interrupted single-step
// command, if any, is sent again and Resume returns false.
func (c *Coordinator) Resume() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resetIfHalted(); err != nil {
		return false, err
	}
	if len(c.queue) > 0 {
		path := append([]geom.Position{c.ctl.CurrentPose()}, c.queue...)
		c.log.Info("resuming trajectory", "waypoints", len(c.queue))
		return true, c.commitLocked(path)
	}
	if c.current != nil {
		c.log.Info("resuming command", "kind", c.current.Kind)
		return false, c.executeLocked(*c.current)
	}
	return false, nil
}

// trimLocked drops waypoints the controller has already reached. Waypoints
// not yet sent are always kept.
func (c *Coordinator) trimLocked() {
	n := c.ctl.QueueLength()
	sent := len(c.queue) - c.unsent
	if n > 0 && n < sent {
		c.queue = c.queue[sent-n:]
	}
}

// IsTrajectoryBlocked reports whether a segment of the live pose followed
// by the trajectory queue passes within the clearance radius of one of
// points. An empty queue is never blocked.
func (c *Coordinator) IsTrajectoryBlocked(points []geom.Position) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.halted {
		c.trimLocked()
	}
	if len(c.queue) == 0 || len(points) == 0 {
		return false
	}
	prev := c.ctl.CurrentPose().Vec()
	for _, wp := range c.queue {
		next := wp.Vec()
		for _, p := range points {
			if geom.SegmentIntersectsCircle(prev, next, p.Vec(), c.radius) {
				return true
			}
		}
		prev = next
	}
	return false
}

// MovementEnded reports whether the controller is idle with nothing
// buffered; the trajectory queue is then cleared.
func (c *Coordinator) MovementEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted || c.unsent > 0 || c.ctl.QueueLength() != 0 || c.ctl.Status() != Idle {
		return false
	}
	c.queue = nil
	return true
}

// Queue returns a copy of the trajectory queue.
func (c *Coordinator) Queue() []geom.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]geom.Position(nil), c.queue...)
}

// Blocked reports whether the controller is stalled.
func (c *Coordinator) Blocked() bool { return c.ctl.Status() == Blocked }

// Halted reports whether a halt is waiting for Resume.
func (c *Coordinator) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}
