// Package pathfind computes shortest paths over occupancy grid snapshots.
package pathfind

import (
	"container/heap"
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"matchbot/internal/field"
	"matchbot/internal/geom"
)

// ErrNotFound is returned when no path joins start and goal.
var ErrNotFound = errors.New("path not found")

// Path is an ordered list of table positions from start to goal.
type Path []geom.Position

// Options tunes the search.
type Options struct {
	// Heuristic is "euclidean" (default) or "octile".
	Heuristic string
	// TurnPenalty adds TurnPenalty*(1-cos θ) to the priority of a move that
	// changes direction by θ. Zero disables it.
	TurnPenalty float64
}

type direction struct{ dx, dy int }

var directions = []direction{
	{1, 0}, {0, 1}, {-1, 0}, {0, -1},
	{1, 1}, {-1, 1}, {-1, -1}, {1, -1},
}

type node struct {
	idx  int
	f, h float64
	seq  int
}

type openSet []node

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)   { *o = append(*o, x.(node)) }
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

func heuristic(kind string, ax, ay, bx, by int) float64 {
	dx := math.Abs(float64(ax - bx))
	dy := math.Abs(float64(ay - by))
	if kind == "octile" {
		return math.Max(dx, dy) + (math.Sqrt2-1)*math.Min(dx, dy)
	}
	return math.Hypot(dx, dy)
}

// Search runs A* on g from start to goal with 8-connectivity. Orthogonal
// moves cost one cell, diagonal moves √2 cells, and a diagonal move may not
// cut a blocked corner. Ties are broken by lower f, then lower h, then
// insertion order, so identical inputs expand identically.
//
// The returned path starts at the centre of the start cell and ends at the
// exact goal; collinear interior points are removed. A blocked or
// out-of-table start or goal returns ErrNotFound without searching.
func Search(ctx context.Context, g *field.Grid, start, goal r2.Vec, opts Options) (Path, error) {
	sx, sy := g.Cell(start)
	gx, gy := g.Cell(goal)
	if g.Blocked(sx, sy) || g.Blocked(gx, gy) {
		return nil, ErrNotFound
	}

	w := g.Width()
	n := w * g.Height()
	gScore := make([]float64, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	parent := make([]int32, n)
	closed := make([]bool, n)
	startIdx, goalIdx := sy*w+sx, gy*w+gx
	parent[startIdx] = -1
	gScore[startIdx] = 0

	open := &openSet{}
	seq := 0
	h0 := heuristic(opts.Heuristic, sx, sy, gx, gy)
	heap.Push(open, node{idx: startIdx, f: h0, h: h0, seq: seq})

	found := false
	for expanded := 0; open.Len() > 0; expanded++ {
		if expanded&1023 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cur := heap.Pop(open).(node)
		if closed[cur.idx] {
			continue
		}
		if cur.idx == goalIdx {
			found = true
			break
		}
		closed[cur.idx] = true
		cx, cy := cur.idx%w, cur.idx/w

		for _, d := range directions {
			nx, ny := cx+d.dx, cy+d.dy
			if g.Blocked(nx, ny) {
				continue
			}
			cost := 1.0
			if d.dx != 0 && d.dy != 0 {
				if g.Blocked(cx+d.dx, cy) || g.Blocked(cx, cy+d.dy) {
					continue
				}
				cost = math.Sqrt2
			}
			ni := ny*w + nx
			if closed[ni] {
				continue
			}
			tentative := gScore[cur.idx] + cost
			if tentative >= gScore[ni] {
				continue
			}
			gScore[ni] = tentative
			parent[ni] = int32(cur.idx)
			h := heuristic(opts.Heuristic, nx, ny, gx, gy)
			f := tentative + h
			if opts.TurnPenalty > 0 && parent[cur.idx] >= 0 {
				f += opts.TurnPenalty * turnCost(int(parent[cur.idx]), cur.idx, d, w)
			}
			seq++
			heap.Push(open, node{idx: ni, f: f, h: h, seq: seq})
		}
	}
	if !found {
		return nil, ErrNotFound
	}

	var cells []int
	for i := goalIdx; i >= 0; i = int(parent[i]) {
		cells = append(cells, i)
		if i == startIdx {
			break
		}
	}
	raw := make(Path, 0, len(cells)+1)
	for i := len(cells) - 1; i >= 0; i-- {
		c := g.Center(cells[i]%w, cells[i]/w)
		raw = append(raw, geom.Position{X: c.X, Y: c.Y})
	}
	if len(raw) == 1 {
		raw = append(raw, raw[0])
	}
	path := Simplify(raw)
	path[len(path)-1] = geom.Position{X: goal.X, Y: goal.Y}
	return path, nil
}

// turnCost returns 1-cos of the angle between the move into from->cur and d.
func turnCost(from, cur int, d direction, w int) float64 {
	in := r2.Vec{X: float64(cur%w - from%w), Y: float64(cur/w - from/w)}
	out := r2.Vec{X: float64(d.dx), Y: float64(d.dy)}
	return 1 - r2.Cos(in, out)
}

// Simplify removes interior points collinear with their neighbours. The
// first and last points are always kept, and Simplify(Simplify(p)) equals
// Simplify(p).
func Simplify(p Path) Path {
	if len(p) < 3 {
		return append(Path(nil), p...)
	}
	out := make(Path, 0, len(p))
	for _, pt := range p {
		for len(out) >= 2 && collinear(out[len(out)-2], out[len(out)-1], pt) {
			out = out[:len(out)-1]
		}
		out = append(out, pt)
	}
	return out
}

func collinear(a, b, c geom.Position) bool {
	ab := r2.Sub(b.Vec(), a.Vec())
	bc := r2.Sub(c.Vec(), b.Vec())
	return math.Abs(r2.Cross(ab, bc)) < 1e-9 && r2.Dot(ab, bc) >= 0
}
