package match

import (
	"matchbot/internal/config"
	"matchbot/internal/field"
	"matchbot/internal/geom"
	"matchbot/internal/telemetry"
)

// view is the part of the tick state published to other goroutines.
type view struct {
	color       config.Color
	objectiveID int
	objective   string
	step        string
	searching   bool
	detected    bool
	flags       []string
	endReason   string
}

// Status is a point-in-time snapshot of the match.
type Status struct {
	MatchID    string            `json:"match_id"`
	State      string            `json:"state"`
	Color      string            `json:"color"`
	Score      int               `json:"score"`
	ElapsedS   float64           `json:"elapsed_s"`
	RemainingS float64           `json:"remaining_s"`
	Objective  string            `json:"objective"`
	Step       string            `json:"step"`
	Pose       geom.Position     `json:"pose"`
	Motion     string            `json:"motion"`
	Queue      []geom.Position   `json:"queue"`
	Searching  bool              `json:"searching"`
	Detected   bool              `json:"obstacle_detected"`
	Flags      []string          `json:"flags"`
	Zones      []field.ZoneState `json:"zones"`
	EndReason  string            `json:"end_reason,omitempty"`
}

// Status may be called from any goroutine.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	v := o.view
	score := o.score
	o.mu.Unlock()
	st := Status{
		MatchID:    o.matchID,
		State:      o.State().String(),
		Color:      string(v.color),
		Score:      score,
		ElapsedS:   o.match.Elapsed().Seconds(),
		RemainingS: o.match.Remaining().Seconds(),
		Objective:  v.objective,
		Step:       v.step,
		Pose:       o.deps.Controller.CurrentPose(),
		Motion:     o.deps.Controller.Status().String(),
		Queue:      o.motion.Queue(),
		Searching:  v.searching,
		Detected:   v.detected,
		Flags:      v.flags,
		EndReason:  v.endReason,
	}
	if pf := o.pf.Load(); pf != nil {
		st.Zones = pf.Zones()
	}
	return st
}

// Zones lists the dynamic zones; nil before Init.
func (o *Orchestrator) Zones() []field.ZoneState {
	if pf := o.pf.Load(); pf != nil {
		return pf.Zones()
	}
	return nil
}

func (o *Orchestrator) color() config.Color {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view.color
}

// refreshView copies the plan cursor into the published view. Tick
// goroutine only.
func (o *Orchestrator) refreshView() {
	objID, objDesc, stepDesc := -1, "", ""
	if obj, step, ok := o.plan.Current(); ok {
		objID, objDesc, stepDesc = obj.ID, obj.Description, step.String()
	}
	flags := o.plan.Flags()
	o.mu.Lock()
	o.view.objectiveID, o.view.objective, o.view.step = objID, objDesc, stepDesc
	o.view.flags = flags
	o.mu.Unlock()
}

func (o *Orchestrator) setSearching(b bool) {
	o.mu.Lock()
	o.view.searching = b
	o.mu.Unlock()
}

func (o *Orchestrator) setDetected(b bool) {
	o.mu.Lock()
	o.view.detected = b
	o.mu.Unlock()
}

func (o *Orchestrator) event(kind telemetry.EventKind, step, detail string) {
	o.mu.Lock()
	score, objID := o.score, o.view.objectiveID
	o.mu.Unlock()
	row := telemetry.EventRow{
		MatchID:   o.matchID,
		Kind:      kind,
		ElapsedMS: o.match.Elapsed().Milliseconds(),
		Objective: objID,
		Step:      step,
		Detail:    detail,
		Score:     score,
		Timestamp: o.clock.Now(),
	}
	if err := o.tele.WriteEvent(row); err != nil {
		o.log.Warn("event not recorded", "kind", kind, "err", err)
	}
}

// sampleTelemetry writes a pose row once per telemetry interval.
func (o *Orchestrator) sampleTelemetry() {
	every := o.cfg.Orchestrator.TelemetryInterval()
	now := o.clock.Now()
	if every <= 0 || (!o.lastPose.IsZero() && now.Sub(o.lastPose) < every) {
		return
	}
	o.lastPose = now
	ctl := o.deps.Controller
	pose := ctl.CurrentPose()
	o.mu.Lock()
	score, color := o.score, o.view.color
	o.mu.Unlock()
	row := telemetry.PoseRow{
		MatchID:   o.matchID,
		Color:     string(color),
		X:         pose.X,
		Y:         pose.Y,
		Theta:     pose.Theta,
		Status:    ctl.Status().String(),
		Direction: ctl.CommandedDirection().String(),
		Queue:     ctl.QueueLength(),
		Score:     score,
		State:     o.State().String(),
		Timestamp: now,
	}
	if err := o.tele.WritePose(row); err != nil {
		o.log.Warn("pose not recorded", "err", err)
	}
}
