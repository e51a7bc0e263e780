package pathfind

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"matchbot/internal/config"
	"matchbot/internal/field"
	"matchbot/internal/geom"
	"matchbot/internal/logging"
)

// ErrSearchInFlight is returned by Launch while another search runs.
var ErrSearchInFlight = errors.New("path search already in flight")

// Pathfinder owns the obstacle field of one robot and runs at most one
// background search at a time.
type Pathfinder struct {
	field *field.Field
	opts  Options
	log   *slog.Logger
	sem   *semaphore.Weighted
}

// New builds the obstacle field for color and wraps it in a Pathfinder.
func New(table config.Table, pf config.Pathfinding, color config.Color, log *slog.Logger) (*Pathfinder, error) {
	f, err := field.New(table, color, log)
	if err != nil {
		return nil, err
	}
	return &Pathfinder{
		field: f,
		opts:  Options{Heuristic: pf.Heuristic, TurnPenalty: pf.TurnPenalty},
		log:   logging.Component(log, "pathfinder"),
		sem:   semaphore.NewWeighted(1),
	}, nil
}

// ToggleZone forwards to the field. Safe from any goroutine; a search
// already running keeps the snapshot it started with.
func (p *Pathfinder) ToggleZone(id string, active bool) bool {
	return p.field.Toggle(id, active)
}

// Snapshot returns the current occupancy grid.
func (p *Pathfinder) Snapshot() *field.Grid { return p.field.Snapshot() }

// Zones lists the dynamic zones.
func (p *Pathfinder) Zones() []field.ZoneState { return p.field.Zones() }

// FindPath searches synchronously on the current snapshot.
func (p *Pathfinder) FindPath(ctx context.Context, start, goal geom.Position) (Path, error) {
	g := p.field.Snapshot()
	began := time.Now()
	path, err := Search(ctx, g, start.Vec(), goal.Vec(), p.opts)
	if err != nil {
		p.log.Info("no path", "start", start, "goal", goal, "grid_version", g.Version(), "err", err)
		return nil, err
	}
	p.log.Debug("path found", "start", start, "goal", goal, "points", len(path),
		"grid_version", g.Version(), "took", time.Since(began))
	return path, nil
}

// Launch starts a background search. It fails with ErrSearchInFlight when
// a previous job has not finished yet.
func (p *Pathfinder) Launch(ctx context.Context, start, goal geom.Position) (*Job, error) {
	if !p.sem.TryAcquire(1) {
		return nil, ErrSearchInFlight
	}
	jctx, cancel := context.WithCancel(ctx)
	j := &Job{Start: start, Goal: goal, done: make(chan struct{}), cancel: cancel}
	go func() {
		path, err := p.FindPath(jctx, start, goal)
		cancel()
		j.mu.Lock()
		j.path, j.err = path, err
		j.mu.Unlock()
		// Release before signalling so the consumer may launch again at once.
		p.sem.Release(1)
		close(j.done)
	}()
	return j, nil
}

// Job is the handle of one background search.
type Job struct {
	Start, Goal geom.Position

	mu     sync.Mutex
	path   Path
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// Done is closed once the result is available.
func (j *Job) Done() <-chan struct{} { return j.done }

// Finished reports without blocking whether the search has completed.
func (j *Job) Finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Result returns the path or the search error. It is only meaningful once
// Finished reports true.
func (j *Job) Result() (Path, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.path, j.err
}

// Cancel stops the search early; Result then reports the context error.
func (j *Job) Cancel() { j.cancel() }
