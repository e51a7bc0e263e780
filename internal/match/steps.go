package match

import (
	"context"
	"fmt"
	"time"

	"matchbot/internal/geom"
	"matchbot/internal/motion"
	"matchbot/internal/remote"
	"matchbot/internal/strategy"
	"matchbot/internal/telemetry"
)

// bump reports whether a GO step drives into a wall until stalled.
func bump(s *strategy.Step) bool {
	return s.Type == strategy.Movement && s.SubType == strategy.Go && s.Timeout > 0
}

// progress handles the current step when no emergency and no search are
// outstanding: path retries, completion, blocked motion and blocked
// trajectories.
func (o *Orchestrator) progress(ctx context.Context) {
	obj, step, ok := o.plan.Current()
	if !ok {
		return
	}
	now := o.clock.Now()
	if !o.retryAt.IsZero() {
		if now.Before(o.retryAt) {
			return
		}
		o.retryAt = time.Time{}
		o.log.Info("retrying path search", "step", step.Desc)
		o.executeCurrent(ctx)
		return
	}
	if o.stepEnded(step) {
		o.completeStep(ctx, obj, step)
		return
	}
	if !bump(step) && o.motion.Blocked() {
		o.handleBlocked(ctx, step)
		return
	}
	o.blockedSince = time.Time{}
	if step.SubType == strategy.GotoAstar && o.motion.IsTrajectoryBlocked(o.monitor.ObstaclePoints()) {
		o.log.Info("trajectory blocked, searching again", "step", step.Desc)
		o.event(telemetry.EventTrajectoryBlock, step.String(), "")
		if err := o.motion.HaltDefinitive(); err != nil {
			o.log.Error("halt failed", "err", err)
		}
		o.executeCurrent(ctx)
	}
}

// stepEnded evaluates the completion criterion of step.
func (o *Orchestrator) stepEnded(step *strategy.Step) bool {
	switch {
	case step.Type == strategy.Element:
		return true
	case step.Type == strategy.Manipulation:
		return o.deps.Actions.IsFinished()
	case step.SubType == strategy.WaitUntilClock:
		return o.match.Elapsed() >= step.TimeoutDuration()
	case step.SubType == strategy.Wait:
		return o.clock.Since(o.stepStarted) >= step.TimeoutDuration()
	case bump(step):
		st := o.deps.Controller.Status()
		if st != motion.Halted && st != motion.Blocked && o.clock.Since(o.stepStarted) < step.TimeoutDuration() {
			return false
		}
		if err := o.motion.FinishBump(); err != nil {
			o.log.Error("finishing bump failed", "err", err)
		}
		return true
	default:
		return o.motion.MovementEnded()
	}
}

func (o *Orchestrator) completeStep(ctx context.Context, obj *strategy.Objective, step *strategy.Step) {
	if step.Type == strategy.Manipulation {
		if f, ok := o.deps.Actions.LastRaisedFlag(); ok {
			o.plan.RaiseFlag(f)
		}
	}
	o.plan.RaiseFlag(step.RaisedFlag)
	o.log.Debug("step done", "objective", obj.ID, "step", step.String())
	o.event(telemetry.EventStepDone, step.String(), "")
	o.retries = 0

	completed, skipped := o.plan.Next()
	if completed != nil {
		o.award(completed)
	}
	o.logSkipped(skipped)
	o.afterCursorMove(ctx)
}

// handleBlocked applies the blocked policy: wait out the grace period,
// retry the step a bounded number of times, then give up on the objective.
func (o *Orchestrator) handleBlocked(ctx context.Context, step *strategy.Step) {
	now := o.clock.Now()
	if o.blockedSince.IsZero() {
		o.blockedSince = now
		return
	}
	if now.Sub(o.blockedSince) < o.cfg.Orchestrator.BlockedGrace() {
		return
	}
	o.blockedSince = time.Time{}
	o.retries++
	if err := o.motion.HaltDefinitive(); err != nil {
		o.log.Error("halt failed", "err", err)
	}
	if o.retries <= o.cfg.Orchestrator.BlockedRetries {
		o.log.Warn("motion blocked, retrying step", "step", step.Desc, "attempt", o.retries)
		o.event(telemetry.EventMotionBlocked, step.String(), fmt.Sprintf("retry %d", o.retries))
		o.executeCurrent(ctx)
		return
	}
	o.log.Warn("motion blocked, abandoning objective", "step", step.Desc)
	o.event(telemetry.EventMotionBlocked, step.String(), "abandon")
	o.retries = 0
	o.logSkipped(o.plan.SkipObjective())
	o.afterCursorMove(ctx)
}

func (o *Orchestrator) afterCursorMove(ctx context.Context) {
	o.refreshView()
	if o.plan.Exhausted() {
		o.log.Info("no objective left")
		o.interrupted.Store(true)
		o.endMatch("plan exhausted")
		return
	}
	o.executeCurrent(ctx)
}

func (o *Orchestrator) award(obj *strategy.Objective) {
	o.mu.Lock()
	if !o.frozen {
		o.score += obj.Points
	}
	score := o.score
	o.mu.Unlock()
	o.plan.RaiseFlag(obj.RaisedFlag)
	o.deps.Panel.ShowScore(score)
	o.log.Info("objective done", "objective", obj.ID, "desc", obj.Description, "points", obj.Points, "score", score)
	o.event(telemetry.EventObjectiveDone, "", fmt.Sprintf("%d %s", obj.ID, obj.Description))
}

func (o *Orchestrator) logSkipped(skipped []strategy.Objective) {
	for _, s := range skipped {
		o.log.Info("objective skipped", "objective", s.ID, "desc", s.Description)
		o.event(telemetry.EventObjectiveSkipped, "", fmt.Sprintf("%d %s", s.ID, s.Description))
	}
}

// executeCurrent starts the step under the cursor.
func (o *Orchestrator) executeCurrent(ctx context.Context) {
	if o.interrupted.Load() {
		return
	}
	_, step, ok := o.plan.Current()
	if !ok {
		return
	}
	o.stepStarted = o.clock.Now()
	o.blockedSince = time.Time{}
	o.refreshView()
	o.log.Info("executing step", "step", step.String())
	o.event(telemetry.EventStepStart, step.String(), "")

	switch step.Type {
	case strategy.Manipulation:
		if err := o.deps.Actions.ExecuteByID(step.ActionID); err != nil {
			o.log.Error("action failed", "action", step.ActionID, "err", err)
		}
		o.send(remote.Message{Kind: remote.ActionData, ID: step.ActionID, Payload: step.Desc})
	case strategy.Element:
		active := step.SubType == strategy.AddZone
		o.ToggleZone(step.ItemID, active)
		kind := remote.DeleteZone
		if active {
			kind = remote.AddZone
		}
		o.send(remote.Message{Kind: kind, ID: step.ItemID})
	case strategy.Movement:
		o.executeMovement(ctx, step)
	}
}

func (o *Orchestrator) executeMovement(ctx context.Context, step *strategy.Step) {
	var err error
	switch step.SubType {
	case strategy.GotoAstar:
		o.launchSearch(ctx, step.Target())
		return
	case strategy.GotoChain:
		run := o.plan.AbsorbChain()
		path := []geom.Position{o.deps.Controller.CurrentPose()}
		for _, s := range run {
			path = append(path, s.Target())
		}
		o.log.Info("chaining waypoints", "count", len(run))
		o.refreshView()
		err = o.motion.CommitTrajectory(path)
	case strategy.Go:
		err = o.motion.Execute(motion.Command{Kind: motion.KindGo, Distance: step.Dist, Bump: step.Timeout > 0})
	case strategy.Goto:
		err = o.motion.Execute(motion.Command{Kind: motion.KindGoto, Target: step.Target()})
	case strategy.GotoBack:
		err = o.motion.Execute(motion.Command{Kind: motion.KindGotoBack, Target: step.Target()})
	case strategy.Face:
		err = o.motion.Execute(motion.Command{Kind: motion.KindFace, Target: step.Target()})
	case strategy.Turn:
		err = o.motion.Execute(motion.Command{Kind: motion.KindTurn, Distance: step.Dist})
	case strategy.SetSpeed:
		err = o.motion.Execute(motion.Command{Kind: motion.KindSetSpeed, Distance: step.Dist})
	}
	if err != nil {
		o.log.Error("motion command failed", "step", step.String(), "err", err)
	}
}

func (o *Orchestrator) launchSearch(ctx context.Context, goal geom.Position) {
	pf := o.pf.Load()
	start := o.deps.Controller.CurrentPose()
	job, err := pf.Launch(ctx, start, goal)
	if err != nil {
		o.log.Warn("path search not started", "err", err)
		o.retryAt = o.clock.Now().Add(o.cfg.Orchestrator.PathRetry())
		return
	}
	o.log.Debug("path search launched", "from", start, "to", goal)
	o.job = job
	o.setSearching(true)
}

// awaitSearch waits up to one poll interval for the outstanding search.
func (o *Orchestrator) awaitSearch(ctx context.Context) {
	select {
	case <-o.job.Done():
	case <-o.clock.After(o.cfg.Orchestrator.SearchPoll()):
		return
	case <-ctx.Done():
		return
	}
	path, err := o.job.Result()
	goal := o.job.Goal
	o.job = nil
	o.setSearching(false)
	_, step, _ := o.plan.Current()
	desc := ""
	if step != nil {
		desc = step.String()
	}
	if err != nil {
		o.log.Warn("no path, holding position", "goal", goal, "err", err)
		o.event(telemetry.EventPathNotFound, desc, goal.String())
		o.retryAt = o.clock.Now().Add(o.cfg.Orchestrator.PathRetry())
		return
	}
	o.log.Info("path found", "goal", goal, "waypoints", len(path))
	o.event(telemetry.EventPathFound, desc, fmt.Sprintf("%d waypoints", len(path)))
	if err := o.motion.CommitTrajectory(path); err != nil {
		o.log.Error("commit failed", "err", err)
	}
}

func (o *Orchestrator) pollRemote() {
	if o.deps.Remote == nil {
		return
	}
	for {
		m, ok := o.deps.Remote.Poll()
		if !ok {
			return
		}
		o.log.Info("remote message", "msg", m.String())
		switch m.Kind {
		case remote.AddZone:
			o.ToggleZone(m.ID, true)
		case remote.DeleteZone:
			o.ToggleZone(m.ID, false)
		case remote.ActionData:
			if err := o.deps.Actions.ExecuteByID(m.ID); err != nil {
				o.log.Error("remote action failed", "action", m.ID, "err", err)
			}
		}
		o.event(telemetry.EventRemote, "", m.String())
	}
}

func (o *Orchestrator) send(m remote.Message) {
	if o.deps.Remote == nil {
		return
	}
	if err := o.deps.Remote.Send(m); err != nil {
		o.log.Debug("remote send dropped", "msg", m.String(), "err", err)
	}
}

// ToggleZone activates or deactivates a dynamic zone and reports whether
// the obstacle field changed.
func (o *Orchestrator) ToggleZone(id string, active bool) bool {
	pf := o.pf.Load()
	if pf == nil {
		o.log.Warn("zone toggle before pathfinding init", "zone", id)
		return false
	}
	if !pf.ToggleZone(id, active) {
		return false
	}
	o.event(telemetry.EventZoneToggled, "", fmt.Sprintf("%s active=%t", id, active))
	return true
}
