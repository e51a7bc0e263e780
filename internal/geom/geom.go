// Table-frame geometry shared by the field, the pathfinder and the detectors.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Position is a pose on the table: millimeters and radians.
type Position struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta,omitempty" yaml:"theta,omitempty"`
}

// Vec returns the planar part of the position.
func (p Position) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// FromVec builds a position with a zero heading.
func FromVec(v r2.Vec) Position {
	return Position{X: v.X, Y: v.Y}
}

// Distance returns the planar distance to q.
func (p Position) Distance(q Position) float64 {
	return r2.Norm(r2.Sub(q.Vec(), p.Vec()))
}

func (p Position) String() string {
	return fmt.Sprintf("(%.0f, %.0f, %.2f)", p.X, p.Y, p.Theta)
}

// Shape is a closed region of the table.
type Shape interface {
	Contains(p r2.Vec) bool
	// Bounds returns the axis-aligned bounding box.
	Bounds() (min, max r2.Vec)
}

// Circle is a disk.
type Circle struct {
	Center r2.Vec
	Radius float64
}

func (c Circle) Contains(p r2.Vec) bool {
	return r2.Norm2(r2.Sub(p, c.Center)) <= c.Radius*c.Radius
}

func (c Circle) Bounds() (r2.Vec, r2.Vec) {
	d := r2.Vec{X: c.Radius, Y: c.Radius}
	return r2.Sub(c.Center, d), r2.Add(c.Center, d)
}

// Polygon is a simple polygon given by its vertices in order.
type Polygon struct {
	Points []r2.Vec
}

// Contains uses the even-odd rule.
func (pg Polygon) Contains(p r2.Vec) bool {
	in := false
	n := len(pg.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pg.Points[i], pg.Points[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				in = !in
			}
		}
	}
	return in
}

func (pg Polygon) Bounds() (r2.Vec, r2.Vec) {
	if len(pg.Points) == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	lo, hi := pg.Points[0], pg.Points[0]
	for _, p := range pg.Points[1:] {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	return lo, hi
}

// distance returns the distance from p to the polygon outline.
func (pg Polygon) distance(p r2.Vec) float64 {
	best := math.Inf(1)
	n := len(pg.Points)
	for i := 0; i < n; i++ {
		d := SegmentDistance(pg.Points[i], pg.Points[(i+1)%n], p)
		if d < best {
			best = d
		}
	}
	return best
}

// dilatedPolygon is a polygon grown by a margin with rounded corners.
type dilatedPolygon struct {
	poly   Polygon
	margin float64
}

func (d dilatedPolygon) Contains(p r2.Vec) bool {
	return d.poly.Contains(p) || d.poly.distance(p) <= d.margin
}

func (d dilatedPolygon) Bounds() (r2.Vec, r2.Vec) {
	lo, hi := d.poly.Bounds()
	m := r2.Vec{X: d.margin, Y: d.margin}
	return r2.Sub(lo, m), r2.Add(hi, m)
}

// Dilate grows s by margin millimeters. A non-positive margin returns s unchanged.
func Dilate(s Shape, margin float64) Shape {
	if margin <= 0 {
		return s
	}
	switch v := s.(type) {
	case Circle:
		return Circle{Center: v.Center, Radius: v.Radius + margin}
	case Polygon:
		return dilatedPolygon{poly: v, margin: margin}
	case dilatedPolygon:
		return dilatedPolygon{poly: v.poly, margin: v.margin + margin}
	default:
		return s
	}
}

// SegmentDistance returns the distance from p to the segment [a, b].
func SegmentDistance(a, b, p r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Norm2(ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := r2.Dot(r2.Sub(p, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}

// SegmentIntersectsCircle reports whether some point of the segment [a, b]
// lies within radius of c, including a segment wholly inside the disk. A
// degenerate segment never intersects.
func SegmentIntersectsCircle(a, b, c r2.Vec, radius float64) bool {
	if r2.Norm2(r2.Sub(b, a)) == 0 {
		return false
	}
	return SegmentDistance(a, b, c) <= radius
}

// ToTableFrame projects a range reading taken by a sensor mounted at mount
// (robot frame) into the table frame using the robot pose.
func ToTableFrame(robot, mount Position, distance float64) Position {
	local := r2.Add(mount.Vec(), r2.Scale(distance, r2.Vec{X: math.Cos(mount.Theta), Y: math.Sin(mount.Theta)}))
	world := r2.Add(robot.Vec(), r2.Rotate(local, robot.Theta, r2.Vec{}))
	return Position{X: world.X, Y: world.Y}
}
