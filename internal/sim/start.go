package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"matchbot/internal/logging"
	"matchbot/internal/timeutil"
)

// StartSwitch is the start cord. A positive delay moves the cord by itself
// that long after someone starts waiting for it; otherwise only Insert and
// Pull move it.
type StartSwitch struct {
	clock       timeutil.Clock
	insertDelay time.Duration
	pullDelay   time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	inserted bool
	changed  chan struct{}
}

func NewStartSwitch(clock timeutil.Clock, insertDelay, pullDelay time.Duration, log *slog.Logger) *StartSwitch {
	return &StartSwitch{
		clock:       clock,
		insertDelay: insertDelay,
		pullDelay:   pullDelay,
		log:         logging.Component(log, "sim.start"),
		changed:     make(chan struct{}),
	}
}

func (s *StartSwitch) Insert() { s.set(true) }
func (s *StartSwitch) Pull()   { s.set(false) }

func (s *StartSwitch) Inserted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserted
}

func (s *StartSwitch) set(inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inserted == inserted {
		return
	}
	s.inserted = inserted
	close(s.changed)
	s.changed = make(chan struct{})
	s.log.Info("start cord", "inserted", inserted)
}

func (s *StartSwitch) WaitForState(ctx context.Context, inserted bool) error {
	s.mu.Lock()
	if s.inserted == inserted {
		s.mu.Unlock()
		return nil
	}
	delay := s.pullDelay
	if inserted {
		delay = s.insertDelay
	}
	s.mu.Unlock()
	if delay > 0 {
		t := s.clock.AfterFunc(delay, func() { s.set(inserted) })
		defer t.Stop()
	}
	for {
		s.mu.Lock()
		if s.inserted == inserted {
			s.mu.Unlock()
			return nil
		}
		ch := s.changed
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
