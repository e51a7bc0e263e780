package match

// State is the orchestrator lifecycle.
type State int32

const (
	AwaitingCalibration State = iota
	AwaitingStartInsert
	AwaitingStartPull
	Running
	MatchEnded
)

func (s State) String() string {
	switch s {
	case AwaitingCalibration:
		return "awaiting_calibration"
	case AwaitingStartInsert:
		return "awaiting_start_insert"
	case AwaitingStartPull:
		return "awaiting_start_pull"
	case Running:
		return "running"
	case MatchEnded:
		return "match_ended"
	}
	return "unknown"
}
