// Match records with greptime tags
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Record types written to a match log.
const (
	TypePose  = "pose"
	TypeEvent = "event"
)

// PoseRow is one periodic robot sample.
type PoseRow struct {
	Type      string    `json:"type"`
	MatchID   string    `json:"match_id"`  // TAG
	Color     string    `json:"color"`     // TAG
	X         float64   `json:"x"`         // FIELD
	Y         float64   `json:"y"`         // FIELD
	Theta     float64   `json:"theta"`     // FIELD
	Status    string    `json:"status"`    // FIELD
	Direction string    `json:"direction"` // FIELD
	Queue     int       `json:"queue"`     // FIELD
	Score     int       `json:"score"`     // FIELD
	State     string    `json:"state"`     // FIELD
	Timestamp time.Time `json:"ts"`        // TIME INDEX
}

// EventKind classifies match events.
type EventKind string

const (
	EventMatchStart       EventKind = "match_start"
	EventMatchEnd         EventKind = "match_end"
	EventStepStart        EventKind = "step_start"
	EventStepDone         EventKind = "step_done"
	EventObjectiveDone    EventKind = "objective_done"
	EventObjectiveSkipped EventKind = "objective_skipped"
	EventEmergency        EventKind = "emergency"
	EventCleared          EventKind = "cleared"
	EventPathFound        EventKind = "path_found"
	EventPathNotFound     EventKind = "path_not_found"
	EventTrajectoryBlock  EventKind = "trajectory_blocked"
	EventMotionBlocked    EventKind = "motion_blocked"
	EventZoneToggled      EventKind = "zone_toggled"
	EventRemote           EventKind = "remote"
)

// EventRow is one discrete match event.
type EventRow struct {
	Type      string    `json:"type"`
	MatchID   string    `json:"match_id"`   // TAG
	Kind      EventKind `json:"kind"`       // TAG
	ElapsedMS int64     `json:"elapsed_ms"` // FIELD
	Objective int       `json:"objective"`  // FIELD
	Step      string    `json:"step"`       // FIELD
	Detail    string    `json:"detail"`     // FIELD
	Score     int       `json:"score"`      // FIELD
	Timestamp time.Time `json:"ts"`         // TIME INDEX
}

// NewMatchID returns a fresh identifier stamped on every row of a match.
func NewMatchID() string {
	return uuid.NewString()
}
