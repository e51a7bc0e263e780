package sim

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"matchbot/internal/logging"
	"matchbot/internal/timeutil"
)

// ErrUnknownAction is returned by ExecuteByID for an empty action id.
var ErrUnknownAction = errors.New("sim: unknown action")

// Actions plays actuator sequences: every action takes the same duration
// and may raise a flag when it finishes.
type Actions struct {
	clock    timeutil.Clock
	duration time.Duration
	flags    map[string]string
	log      *slog.Logger

	mu       sync.Mutex
	current  string
	started  time.Time
	running  bool
	lastFlag string
	history  []string
}

func NewActions(clock timeutil.Clock, duration time.Duration, flags map[string]string, log *slog.Logger) *Actions {
	return &Actions{clock: clock, duration: duration, flags: flags, log: logging.Component(log, "sim.actions")}
}

func (a *Actions) Init() error {
	a.log.Info("actuators initialised")
	return nil
}

func (a *Actions) ExecuteByID(id string) error {
	if id == "" {
		return ErrUnknownAction
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = id
	a.started = a.clock.Now()
	a.running = true
	a.lastFlag = ""
	a.history = append(a.history, id)
	a.log.Debug("action started", "action", id)
	return nil
}

func (a *Actions) IsFinished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running && a.clock.Since(a.started) >= a.duration {
		a.running = false
		a.lastFlag = a.flags[a.current]
		a.log.Debug("action finished", "action", a.current, "flag", a.lastFlag)
	}
	return !a.running
}

func (a *Actions) LastRaisedFlag() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastFlag, a.lastFlag != ""
}

func (a *Actions) StopAll() error {
	a.mu.Lock()
	a.running = false
	a.current = ""
	a.mu.Unlock()
	return nil
}

// History lists the actions started so far.
func (a *Actions) History() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.history...)
}
