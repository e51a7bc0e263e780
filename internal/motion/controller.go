// Package motion coordinates trajectories committed to the motion controller.
package motion

import "matchbot/internal/geom"

// Status is the controller's motion state.
type Status int

const (
	Idle Status = iota
	Running
	Halted
	Blocked
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Blocked:
		return "blocked"
	}
	return "unknown"
}

// Direction is the direction of the command being executed.
type Direction int

const (
	None Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return "none"
}

// Controller drives the wheels. Implementations refresh their state on
// their own goroutine; every accessor must be safe for concurrent use.
type Controller interface {
	GoDistance(mm float64) error
	// GoToPrecise stops exactly on p.
	GoToPrecise(p geom.Position) error
	// GoToChained passes through p without stopping.
	GoToChained(p geom.Position) error
	// GoToReverse reaches p driving backwards.
	GoToReverse(p geom.Position) error
	FaceToward(p geom.Position) error
	Turn(degrees float64) error
	HaltImmediate() error
	ResetAfterHalt() error
	// Stop drops every buffered command.
	Stop() error
	SetSpeedPercent(n int) error

	// QueueLength is the number of waypoints not reached yet, the one in
	// progress included.
	QueueLength() int
	Status() Status
	CurrentPose() geom.Position
	CommandedDirection() Direction
}
