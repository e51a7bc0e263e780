package sim

import (
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"matchbot/internal/config"
	"matchbot/internal/geom"
)

// Opponent is the other team's robot. It patrols its waypoints in order or,
// without waypoints, walks between random points of the table.
type Opponent struct {
	speed     float64
	radius    float64
	sizeX     float64
	sizeY     float64
	waypoints []r2.Vec
	rand      *rand.Rand

	mu     sync.Mutex
	pos    r2.Vec
	target r2.Vec
	next   int
	parked bool
}

// NewOpponent seeds the walk from cfg.Seed, or from the wall clock when
// the seed is zero.
func NewOpponent(table config.Table, cfg config.Opponent) *Opponent {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	o := &Opponent{
		speed:  cfg.SpeedMMS,
		radius: cfg.Radius,
		sizeX:  table.SizeX,
		sizeY:  table.SizeY,
		rand:   rand.New(rand.NewSource(seed)),
	}
	for _, p := range cfg.Waypoints {
		o.waypoints = append(o.waypoints, r2.Vec{X: p.X, Y: p.Y})
	}
	if len(o.waypoints) > 0 {
		o.pos = o.waypoints[0]
		o.next = 1 % len(o.waypoints)
		o.target = o.waypoints[o.next]
	} else {
		o.pos = o.randomPoint()
		o.target = o.randomPoint()
	}
	return o
}

func (o *Opponent) randomPoint() r2.Vec {
	m := o.radius
	return r2.Vec{
		X: m + o.rand.Float64()*(o.sizeX-2*m),
		Y: m + o.rand.Float64()*(o.sizeY-2*m),
	}
}

func (o *Opponent) Radius() float64 { return o.radius }

func (o *Opponent) Position() geom.Position {
	o.mu.Lock()
	defer o.mu.Unlock()
	return geom.FromVec(o.pos)
}

// Place teleports the opponent and keeps it there until Release.
func (o *Opponent) Place(p geom.Position) {
	o.mu.Lock()
	o.pos = p.Vec()
	o.parked = true
	o.mu.Unlock()
}

// Release resumes the walk from the current position.
func (o *Opponent) Release() {
	o.mu.Lock()
	o.parked = false
	o.mu.Unlock()
}

// Step moves the opponent by dt towards its current target.
func (o *Opponent) Step(dt time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.parked {
		return
	}
	stride := o.speed * dt.Seconds()
	for stride > 0 {
		to := r2.Sub(o.target, o.pos)
		d := r2.Norm(to)
		if d > stride {
			o.pos = r2.Add(o.pos, r2.Scale(stride/d, to))
			return
		}
		o.pos = o.target
		stride -= d
		o.pickTarget()
		if d == 0 && stride > 0 && o.target == o.pos {
			return
		}
	}
}

func (o *Opponent) pickTarget() {
	if len(o.waypoints) == 0 {
		o.target = o.randomPoint()
		return
	}
	o.next = (o.next + 1) % len(o.waypoints)
	o.target = o.waypoints[o.next]
}
