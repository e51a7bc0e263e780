// Package field maintains the occupancy grid of the table: static forbidden
// zones for the active color plus named dynamic zones toggled at runtime.
package field

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"matchbot/internal/config"
	"matchbot/internal/geom"
	"matchbot/internal/logging"
)

// ZoneState reports one dynamic zone.
type ZoneState struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

type dynamicZone struct {
	active bool
	cells  []int
}

// Field is the mutable obstacle model. Writers serialize on a mutex and
// publish a fresh immutable Grid; readers take snapshots without locking.
type Field struct {
	mu       sync.Mutex
	log      *slog.Logger
	coverage []uint16
	zones    map[string]*dynamicZone
	current  atomic.Pointer[Grid]
}

// New rasterizes the static forbidden zones that apply to color and the
// initially active dynamic zones, all dilated by the table margin.
func New(table config.Table, color config.Color, log *slog.Logger) (*Field, error) {
	if table.Resolution <= 0 || table.SizeX <= 0 || table.SizeY <= 0 {
		return nil, fmt.Errorf("%w: table dimensions", config.ErrInvalidConfig)
	}
	g := newGrid(table.SizeX, table.SizeY, table.Resolution)
	f := &Field{
		log:      logging.Component(log, "field"),
		coverage: make([]uint16, len(g.blocked)),
		zones:    make(map[string]*dynamicZone),
	}

	static := 0
	for _, z := range table.ForbiddenZones {
		if z.ColorExclusion == color {
			continue
		}
		s, err := z.Geometry()
		if err != nil {
			return nil, err
		}
		for _, i := range cellsOf(geom.Dilate(s, table.Margin), g.width, g.height, g.resolution) {
			f.coverage[i]++
		}
		static++
	}
	for _, z := range table.DynamicZones {
		s, err := z.Geometry()
		if err != nil {
			return nil, err
		}
		dz := &dynamicZone{
			active: z.Active,
			cells:  cellsOf(geom.Dilate(s, table.Margin), g.width, g.height, g.resolution),
		}
		if dz.active {
			for _, i := range dz.cells {
				f.coverage[i]++
			}
		}
		f.zones[z.ID] = dz
	}
	for i, c := range f.coverage {
		g.blocked[i] = c > 0
	}
	f.current.Store(g)

	f.log.Info("obstacle field built", "color", color, "static_zones", static,
		"dynamic_zones", len(f.zones), "cells", g.width*g.height, "blocked", g.BlockedCount())
	return f, nil
}

// Snapshot returns the current grid. The snapshot never changes.
func (f *Field) Snapshot() *Grid {
	return f.current.Load()
}

// Toggle activates or deactivates a dynamic zone and publishes a new grid.
// It returns false for unknown ids and for toggles that change nothing.
// A cell stays blocked while any other active zone still covers it.
func (f *Field) Toggle(id string, active bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	z, ok := f.zones[id]
	if !ok {
		f.log.Warn("toggle of unknown zone ignored", "zone", id, "active", active)
		return false
	}
	if z.active == active {
		f.log.Debug("zone already in requested state", "zone", id, "active", active)
		return false
	}
	z.active = active

	prev := f.current.Load()
	next := &Grid{
		width:      prev.width,
		height:     prev.height,
		resolution: prev.resolution,
		version:    prev.version + 1,
		blocked:    append([]bool(nil), prev.blocked...),
	}
	for _, i := range z.cells {
		if active {
			f.coverage[i]++
		} else {
			f.coverage[i]--
		}
		next.blocked[i] = f.coverage[i] > 0
	}
	f.current.Store(next)

	f.log.Info("zone toggled", "zone", id, "active", active, "cells", len(z.cells), "version", next.version)
	return true
}

// Zones lists the dynamic zones sorted by id.
func (f *Field) Zones() []ZoneState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ZoneState, 0, len(f.zones))
	for id, z := range f.zones {
		out = append(out, ZoneState{ID: id, Active: z.active})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
