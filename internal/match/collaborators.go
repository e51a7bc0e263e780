package match

import (
	"context"

	"matchbot/internal/remote"
)

// ActionExecutor runs predefined actuator sequences.
type ActionExecutor interface {
	Init() error
	ExecuteByID(id string) error
	IsFinished() bool
	// LastRaisedFlag returns the flag raised by the last finished action.
	LastRaisedFlag() (string, bool)
	StopAll() error
}

// Panel is the operator display.
type Panel interface {
	ShowPage(name string)
	ShowScore(n int)
	ShowCalibrationStatus(text string)
	IsColorVariantA() bool
	// WaitForCalibration blocks until the operator starts calibration.
	WaitForCalibration(ctx context.Context) error
}

// StartSwitch is the start cord.
type StartSwitch interface {
	// WaitForState blocks until the cord is inserted (true) or pulled (false).
	WaitForState(ctx context.Context, inserted bool) error
}

// RemoteLink exchanges messages with the partner robot.
type RemoteLink interface {
	Poll() (remote.Message, bool)
	Send(m remote.Message) error
}

// StartPositioner is implemented by controllers able to run their border
// calibration routine.
type StartPositioner interface {
	GoStart(colorA bool) error
}

// Page names shown on the panel.
const (
	PageInit  = "init"
	PageReady = "ready"
	PageScore = "score"
)
