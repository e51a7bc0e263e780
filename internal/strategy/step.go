package strategy

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"matchbot/internal/geom"
)

// StepType groups steps by the collaborator they drive.
type StepType int

const (
	Movement StepType = iota
	Manipulation
	Element
)

var stepTypeNames = map[StepType]string{
	Movement:     "MOVEMENT",
	Manipulation: "MANIPULATION",
	Element:      "ELEMENT",
}

func (t StepType) String() string {
	if s, ok := stepTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("StepType(%d)", int(t))
}

// ParseStepType is case-insensitive.
func ParseStepType(s string) (StepType, error) {
	for t, name := range stepTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown step type %q", ErrInvalidPlan, s)
}

func (t *StepType) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseStepType(n.Value)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t StepType) MarshalYAML() (any, error) { return t.String(), nil }

// SubType is the concrete instruction of a step.
type SubType int

const (
	None SubType = iota
	Go
	Goto
	GotoBack
	GotoChain
	GotoAstar
	Face
	Turn
	Wait
	WaitUntilClock
	SetSpeed
	AddZone
	DeleteZone
)

var subTypeNames = map[SubType]string{
	None:           "NONE",
	Go:             "GO",
	Goto:           "GOTO",
	GotoBack:       "GOTO_BACK",
	GotoChain:      "GOTO_CHAIN",
	GotoAstar:      "GOTO_ASTAR",
	Face:           "FACE",
	Turn:           "TURN",
	Wait:           "WAIT",
	WaitUntilClock: "WAIT_UNTIL_CLOCK",
	SetSpeed:       "SET_SPEED",
	AddZone:        "ADD_ZONE",
	DeleteZone:     "DELETE_ZONE",
}

func (s SubType) String() string {
	if n, ok := subTypeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SubType(%d)", int(s))
}

// ParseSubType is case-insensitive; WAIT_CHRONO is accepted for
// WAIT_UNTIL_CLOCK.
func ParseSubType(s string) (SubType, error) {
	if strings.EqualFold(s, "WAIT_CHRONO") {
		return WaitUntilClock, nil
	}
	for t, name := range subTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown step subtype %q", ErrInvalidPlan, s)
}

func (s *SubType) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseSubType(n.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s SubType) MarshalYAML() (any, error) { return s.String(), nil }

// Step is one atomic instruction.
type Step struct {
	Desc     string         `yaml:"desc,omitempty"`
	ActionID string         `yaml:"action_id,omitempty"`
	Type     StepType       `yaml:"type"`
	SubType  SubType        `yaml:"subtype,omitempty"`
	Dist     float64        `yaml:"dist,omitempty"`
	Timeout  int            `yaml:"timeout,omitempty"`
	Position *geom.Position `yaml:"position,omitempty"`
	ItemID   string         `yaml:"item_id,omitempty"`

	SkipFlag   string `yaml:"skip_flag,omitempty"`
	NeededFlag string `yaml:"needed_flag,omitempty"`
	RaisedFlag string `yaml:"raised_flag,omitempty"`
}

// TimeoutDuration converts the millisecond timeout.
func (s Step) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}

// Target returns the step position or the zero position.
func (s Step) Target() geom.Position {
	if s.Position == nil {
		return geom.Position{}
	}
	return *s.Position
}

func (s Step) String() string {
	if s.Type == Movement || s.Type == Element {
		return fmt.Sprintf("%s/%s %q", s.Type, s.SubType, s.Desc)
	}
	return fmt.Sprintf("%s %s %q", s.Type, s.ActionID, s.Desc)
}

func (s Step) validate() error {
	switch s.Type {
	case Movement:
		switch s.SubType {
		case Goto, GotoBack, GotoChain, GotoAstar, Face:
			if s.Position == nil {
				return fmt.Errorf("%w: %s step %q needs a position", ErrInvalidPlan, s.SubType, s.Desc)
			}
		case Go, Turn, SetSpeed:
		case Wait, WaitUntilClock:
			if s.Timeout < 0 {
				return fmt.Errorf("%w: %s step %q has a negative timeout", ErrInvalidPlan, s.SubType, s.Desc)
			}
		default:
			return fmt.Errorf("%w: %s is not a movement subtype", ErrInvalidPlan, s.SubType)
		}
	case Manipulation:
		if s.ActionID == "" {
			return fmt.Errorf("%w: manipulation step %q without action_id", ErrInvalidPlan, s.Desc)
		}
	case Element:
		if s.SubType != AddZone && s.SubType != DeleteZone {
			return fmt.Errorf("%w: %s is not an element subtype", ErrInvalidPlan, s.SubType)
		}
		if s.ItemID == "" {
			return fmt.Errorf("%w: element step %q without item_id", ErrInvalidPlan, s.Desc)
		}
	}
	return nil
}
