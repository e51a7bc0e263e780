package field

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"matchbot/internal/geom"
)

// Grid is an immutable occupancy snapshot. Cells are addressed by column
// (cx) and row (cy); cell (cx, cy) covers
// [cx*res, (cx+1)*res) x [cy*res, (cy+1)*res).
type Grid struct {
	width, height int
	resolution    float64
	version       uint64
	blocked       []bool
}

func newGrid(sizeX, sizeY, res float64) *Grid {
	w := int(math.Ceil(sizeX / res))
	h := int(math.Ceil(sizeY / res))
	return &Grid{width: w, height: h, resolution: res, blocked: make([]bool, w*h)}
}

func (g *Grid) Width() int          { return g.width }
func (g *Grid) Height() int         { return g.height }
func (g *Grid) Resolution() float64 { return g.resolution }

// Version increases by one with every published change.
func (g *Grid) Version() uint64 { return g.version }

// InBounds reports whether the cell exists.
func (g *Grid) InBounds(cx, cy int) bool {
	return cx >= 0 && cy >= 0 && cx < g.width && cy < g.height
}

// Blocked reports whether the cell is occupied. Cells outside the table
// are blocked.
func (g *Grid) Blocked(cx, cy int) bool {
	if !g.InBounds(cx, cy) {
		return true
	}
	return g.blocked[cy*g.width+cx]
}

// BlockedAt reports whether the cell containing p is occupied.
func (g *Grid) BlockedAt(p r2.Vec) bool {
	cx, cy := g.Cell(p)
	return g.Blocked(cx, cy)
}

// Cell returns the cell containing p.
func (g *Grid) Cell(p r2.Vec) (int, int) {
	return int(math.Floor(p.X / g.resolution)), int(math.Floor(p.Y / g.resolution))
}

// Center returns the table coordinate of the centre of a cell.
func (g *Grid) Center(cx, cy int) r2.Vec {
	return r2.Vec{
		X: float64(cx)*g.resolution + g.resolution/2,
		Y: float64(cy)*g.resolution + g.resolution/2,
	}
}

// BlockedCount returns the number of occupied cells.
func (g *Grid) BlockedCount() int {
	n := 0
	for _, b := range g.blocked {
		if b {
			n++
		}
	}
	return n
}

// Equal compares dimensions and occupancy, ignoring the version.
func (g *Grid) Equal(o *Grid) bool {
	if g.width != o.width || g.height != o.height || g.resolution != o.resolution {
		return false
	}
	for i := range g.blocked {
		if g.blocked[i] != o.blocked[i] {
			return false
		}
	}
	return true
}

// cellsOf returns the indices of the cells whose centre lies in s.
func cellsOf(s geom.Shape, w, h int, res float64) []int {
	lo, hi := s.Bounds()
	x0 := clamp(int(math.Floor(lo.X/res)), 0, w-1)
	y0 := clamp(int(math.Floor(lo.Y/res)), 0, h-1)
	x1 := clamp(int(math.Floor(hi.X/res)), 0, w-1)
	y1 := clamp(int(math.Floor(hi.Y/res)), 0, h-1)
	var out []int
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			c := r2.Vec{X: float64(cx)*res + res/2, Y: float64(cy)*res + res/2}
			if s.Contains(c) {
				out = append(out, cy*w+cx)
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rasterize builds a grid covering sizeX by sizeY with every cell whose
// centre lies inside one of the shapes marked blocked.
func Rasterize(shapes []geom.Shape, sizeX, sizeY, res float64) *Grid {
	g := newGrid(sizeX, sizeY, res)
	for _, s := range shapes {
		for _, i := range cellsOf(s, g.width, g.height, res) {
			g.blocked[i] = true
		}
	}
	return g
}
