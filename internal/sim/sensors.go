package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"matchbot/internal/config"
	"matchbot/internal/geom"
	"matchbot/internal/proximity"
)

// SensorRangeMM is the farthest distance a simulated range sensor reports.
const SensorRangeMM = 1000.0

// RangeSensor casts a ray from its mount and returns the distance to the
// first border or opponent it meets.
type RangeSensor struct {
	cfg      config.Sensor
	robot    *Robot
	opponent *Opponent
	sizeX    float64
	sizeY    float64
}

func NewRangeSensor(cfg config.Sensor, table config.Table, robot *Robot, opponent *Opponent) *RangeSensor {
	return &RangeSensor{cfg: cfg, robot: robot, opponent: opponent, sizeX: table.SizeX, sizeY: table.SizeY}
}

func (s *RangeSensor) Name() string         { return s.cfg.Name }
func (s *RangeSensor) Threshold() float64   { return s.cfg.ThresholdMM }
func (s *RangeSensor) Side() proximity.Side { return proximity.Side(s.cfg.Side) }
func (s *RangeSensor) Mount() geom.Position { return geom.Position{X: s.cfg.X, Y: s.cfg.Y, Theta: s.cfg.Theta} }

func (s *RangeSensor) DistanceMillimeters() (float64, bool) {
	pose := s.robot.CurrentPose()
	origin := geom.ToTableFrame(pose, s.Mount(), 0).Vec()
	heading := pose.Theta + s.cfg.Theta
	dir := r2.Vec{X: math.Cos(heading), Y: math.Sin(heading)}

	best := rayToBorder(origin, dir, s.sizeX, s.sizeY)
	if s.opponent != nil {
		if t, ok := rayToCircle(origin, dir, s.opponent.Position().Vec(), s.opponent.Radius()); ok && t < best {
			best = t
		}
	}
	if best > SensorRangeMM {
		return 0, false
	}
	return best, true
}

func rayToBorder(o, u r2.Vec, sizeX, sizeY float64) float64 {
	best := math.Inf(1)
	hit := func(t float64) {
		if t >= 0 && t < best {
			best = t
		}
	}
	if u.X > 0 {
		hit((sizeX - o.X) / u.X)
	} else if u.X < 0 {
		hit(-o.X / u.X)
	}
	if u.Y > 0 {
		hit((sizeY - o.Y) / u.Y)
	} else if u.Y < 0 {
		hit(-o.Y / u.Y)
	}
	return best
}

// rayToCircle returns the distance along the unit ray u from o to the
// circle; zero when o is inside it.
func rayToCircle(o, u, c r2.Vec, radius float64) (float64, bool) {
	oc := r2.Sub(o, c)
	b := r2.Dot(u, oc)
	cc := r2.Dot(oc, oc) - radius*radius
	if cc <= 0 {
		return 0, true
	}
	disc := b*b - cc
	if disc < 0 {
		return 0, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Scanner is the long range detector: it reports the opponent centre when
// it lies within range of the robot.
type Scanner struct {
	robot    *Robot
	opponent *Opponent
	rangeMM  float64
}

func NewScanner(det config.Detection, robot *Robot, opponent *Opponent) *Scanner {
	return &Scanner{robot: robot, opponent: opponent, rangeMM: det.ScannerRangeMM}
}

func (s *Scanner) DetectedObstaclePoints() []geom.Position {
	if s.opponent == nil {
		return nil
	}
	p := s.opponent.Position()
	if p.Distance(s.robot.CurrentPose()) > s.rangeMM {
		return nil
	}
	return []geom.Position{p}
}
