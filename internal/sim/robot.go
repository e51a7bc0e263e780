// Package sim provides simulated hardware for running a match without a
// robot: wheels, an opponent, range sensors, actuators and the start
// switch.
package sim

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"matchbot/internal/config"
	"matchbot/internal/geom"
	"matchbot/internal/logging"
	"matchbot/internal/motion"
)

// ErrHalted is returned for commands sent while the wheels are halted.
var ErrHalted = errors.New("sim: robot halted")

const (
	// BodyRadius is the footprint of the simulated robot.
	BodyRadius = 150.0
	arrivalMM  = 1.0
	alignedRad = 1e-3
)

type legKind int

const (
	legDrive legKind = iota
	legDistance
	legTurn
	legFace
)

type leg struct {
	kind     legKind
	target   geom.Position
	distance float64
	delta    float64
	reverse  bool
	waypoint bool
	resolved bool
	heading  float64
}

// Robot is a differential drive that executes queued legs. It implements
// motion.Controller.
type Robot struct {
	sizeX    float64
	sizeY    float64
	speed    float64
	turnRate float64
	start    geom.Position
	opponent *Opponent
	log      *slog.Logger

	mu       sync.Mutex
	pose     geom.Position
	legs     []leg
	status   motion.Status
	speedPct int
}

// NewRobot places the robot on the configured start pose. opponent may be nil.
func NewRobot(table config.Table, cfg config.Sim, opponent *Opponent, log *slog.Logger) *Robot {
	start := geom.Position{X: cfg.Start.X, Y: cfg.Start.Y, Theta: cfg.StartTheta}
	return &Robot{
		sizeX:    table.SizeX,
		sizeY:    table.SizeY,
		speed:    cfg.SpeedMMS,
		turnRate: cfg.TurnRateDegS * math.Pi / 180,
		start:    start,
		opponent: opponent,
		log:      logging.Component(log, "sim.robot"),
		pose:     start,
		status:   motion.Idle,
		speedPct: 100,
	}
}

// GoStart calibrates against the borders and parks on the start pose of
// the selected color.
func (r *Robot) GoStart(colorA bool) error {
	p := r.start
	if !colorA {
		p.X = r.sizeX - p.X
		p.Theta = normalize(math.Pi - p.Theta)
	}
	r.mu.Lock()
	r.pose = p
	r.legs = nil
	r.status = motion.Idle
	r.mu.Unlock()
	r.log.Info("start position reached", "pose", p.String())
	return nil
}

func (r *Robot) push(l leg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == motion.Halted {
		return ErrHalted
	}
	r.legs = append(r.legs, l)
	if r.status == motion.Idle {
		r.status = motion.Running
	}
	return nil
}

func (r *Robot) GoDistance(mm float64) error {
	return r.push(leg{kind: legDistance, distance: mm})
}

func (r *Robot) GoToPrecise(p geom.Position) error {
	return r.push(leg{kind: legDrive, target: p, waypoint: true, resolved: true})
}

func (r *Robot) GoToChained(p geom.Position) error {
	return r.push(leg{kind: legDrive, target: p, waypoint: true, resolved: true})
}

func (r *Robot) GoToReverse(p geom.Position) error {
	return r.push(leg{kind: legDrive, target: p, reverse: true, waypoint: true, resolved: true})
}

func (r *Robot) FaceToward(p geom.Position) error {
	return r.push(leg{kind: legFace, target: p})
}

func (r *Robot) Turn(degrees float64) error {
	return r.push(leg{kind: legTurn, delta: degrees * math.Pi / 180})
}

// HaltImmediate freezes the wheels. Queued legs are kept until
// ResetAfterHalt or Stop.
func (r *Robot) HaltImmediate() error {
	r.mu.Lock()
	r.status = motion.Halted
	r.mu.Unlock()
	return nil
}

func (r *Robot) ResetAfterHalt() error {
	r.mu.Lock()
	r.legs = nil
	r.status = motion.Idle
	r.mu.Unlock()
	return nil
}

func (r *Robot) Stop() error {
	r.mu.Lock()
	r.legs = nil
	if r.status != motion.Halted {
		r.status = motion.Idle
	}
	r.mu.Unlock()
	return nil
}

func (r *Robot) SetSpeedPercent(n int) error {
	r.mu.Lock()
	r.speedPct = max(0, min(100, n))
	r.mu.Unlock()
	return nil
}

func (r *Robot) QueueLength() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.legs {
		if l.waypoint {
			n++
		}
	}
	return n
}

func (r *Robot) Status() motion.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Robot) CurrentPose() geom.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pose
}

func (r *Robot) CommandedDirection() motion.Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == motion.Halted || r.status == motion.Idle || len(r.legs) == 0 {
		return motion.None
	}
	l := r.legs[0]
	switch {
	case l.kind == legDistance && !l.resolved:
		if l.distance < 0 {
			return motion.Backward
		}
		return motion.Forward
	case l.kind == legDrive || l.kind == legDistance:
		if l.reverse {
			return motion.Backward
		}
		return motion.Forward
	}
	return motion.None
}

// Step advances the wheels by dt.
func (r *Robot) Step(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == motion.Halted {
		return
	}
	budget := dt.Seconds()
	for len(r.legs) > 0 {
		l := &r.legs[0]
		r.resolve(l)
		used, done, blocked := r.advance(l, budget)
		if blocked {
			if r.status != motion.Blocked {
				r.log.Debug("blocked", "pose", r.pose.String())
			}
			r.status = motion.Blocked
			return
		}
		budget -= used
		if !done {
			break
		}
		r.legs = r.legs[1:]
	}
	if len(r.legs) == 0 {
		r.status = motion.Idle
	} else {
		r.status = motion.Running
	}
}

// resolve fixes relative legs against the pose they start from.
func (r *Robot) resolve(l *leg) {
	if l.resolved {
		return
	}
	l.resolved = true
	switch l.kind {
	case legDistance:
		u := r2.Vec{X: math.Cos(r.pose.Theta), Y: math.Sin(r.pose.Theta)}
		end := r2.Add(r.pose.Vec(), r2.Scale(l.distance, u))
		l.target = geom.FromVec(end)
		l.reverse = l.distance < 0
	case legTurn:
		l.heading = normalize(r.pose.Theta + l.delta)
	case legFace:
		to := r2.Sub(l.target.Vec(), r.pose.Vec())
		l.heading = math.Atan2(to.Y, to.X)
	}
}

func (r *Robot) advance(l *leg, budget float64) (used float64, done, blocked bool) {
	if l.kind == legTurn || l.kind == legFace {
		used, done = r.rotate(l.heading, budget)
		return used, done, false
	}
	to := r2.Sub(l.target.Vec(), r.pose.Vec())
	dist := r2.Norm(to)
	if dist < arrivalMM {
		r.pose.X, r.pose.Y = l.target.X, l.target.Y
		return 0, true, false
	}
	heading := math.Atan2(to.Y, to.X)
	if l.reverse {
		heading = normalize(heading + math.Pi)
	}
	used, aligned := r.rotate(heading, budget)
	if !aligned {
		return used, false, false
	}
	v := r.speed * float64(r.speedPct) / 100
	if v <= 0 {
		return budget, false, false
	}
	stride := math.Min(dist, v*(budget-used))
	if stride <= 0 {
		return budget, false, false
	}
	next := r2.Add(r.pose.Vec(), r2.Scale(stride/dist, to))
	if r.obstructed(next) {
		return budget, false, true
	}
	if stride >= dist-arrivalMM {
		r.pose.X, r.pose.Y = l.target.X, l.target.Y
		return used + stride/v, true, false
	}
	r.pose.X, r.pose.Y = next.X, next.Y
	return budget, false, false
}

func (r *Robot) rotate(heading, budget float64) (used float64, done bool) {
	diff := normalize(heading - r.pose.Theta)
	if math.Abs(diff) < alignedRad {
		r.pose.Theta = normalize(heading)
		return 0, true
	}
	if r.turnRate <= 0 {
		return budget, false
	}
	reach := r.turnRate * budget
	if math.Abs(diff) <= reach {
		r.pose.Theta = normalize(heading)
		return math.Abs(diff) / r.turnRate, true
	}
	r.pose.Theta = normalize(r.pose.Theta + math.Copysign(reach, diff))
	return budget, false
}

// obstructed reports whether moving to next pushes the body further into a
// border or into the opponent.
func (r *Robot) obstructed(next r2.Vec) bool {
	cur := r.pose.Vec()
	if penetration(next, r.sizeX, r.sizeY) > penetration(cur, r.sizeX, r.sizeY)+1e-9 {
		return true
	}
	if r.opponent == nil {
		return false
	}
	o := r.opponent.Position().Vec()
	reach := BodyRadius + r.opponent.Radius()
	dn := r2.Norm(r2.Sub(next, o))
	return dn < reach && dn < r2.Norm(r2.Sub(cur, o))
}

func penetration(p r2.Vec, sizeX, sizeY float64) float64 {
	edge := math.Min(math.Min(p.X, p.Y), math.Min(sizeX-p.X, sizeY-p.Y))
	return math.Max(0, BodyRadius-edge)
}

func normalize(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
