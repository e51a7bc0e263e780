// Package strategy loads the mission plan and tracks its cursor.
package strategy

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"matchbot/internal/config"
)

// ErrInvalidPlan wraps every mission plan error.
var ErrInvalidPlan = errors.New("invalid mission plan")

// Objective is a scored, ordered list of steps.
type Objective struct {
	Description string `yaml:"description"`
	ID          int    `yaml:"id"`
	Points      int    `yaml:"points"`
	// Priority is informational; objectives always run in file order.
	Priority int    `yaml:"priority,omitempty"`
	Steps    []Step `yaml:"steps"`

	SkipFlag   string `yaml:"skip_flag,omitempty"`
	NeededFlag string `yaml:"needed_flag,omitempty"`
	RaisedFlag string `yaml:"raised_flag,omitempty"`
}

// Plan is the mission plan of one color with its cursor. It is not safe
// for concurrent use; only the orchestrator touches it.
type Plan struct {
	Color      config.Color
	Objectives []Objective

	obj, step int
	flags     map[string]bool
}

// LoadPlan reads the plan for color from a YAML file keyed by color.
func LoadPlan(path string, color config.Color) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(b, color)
}

// ParsePlan decodes and validates the plan for color.
func ParsePlan(data []byte, color config.Color) (*Plan, error) {
	var doc map[config.Color][]Objective
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	for k := range doc {
		if k != config.ColorA && k != config.ColorOther {
			return nil, fmt.Errorf("%w: unknown color key %q", ErrInvalidPlan, k)
		}
	}
	objs, ok := doc[color]
	if !ok || len(objs) == 0 {
		return nil, fmt.Errorf("%w: no objectives for %s", ErrInvalidPlan, color)
	}
	for _, o := range objs {
		if len(o.Steps) == 0 {
			return nil, fmt.Errorf("%w: objective %d %q has no steps", ErrInvalidPlan, o.ID, o.Description)
		}
		for _, s := range o.Steps {
			if err := s.validate(); err != nil {
				return nil, fmt.Errorf("objective %d: %w", o.ID, err)
			}
		}
	}
	return &Plan{Color: color, Objectives: objs, obj: -1, flags: make(map[string]bool)}, nil
}

// RaiseFlag records a flag for later gating.
func (p *Plan) RaiseFlag(name string) {
	if name != "" {
		p.flags[name] = true
	}
}

// HasFlag reports whether name has been raised.
func (p *Plan) HasFlag(name string) bool { return p.flags[name] }

// Flags returns the raised flags sorted by name.
func (p *Plan) Flags() []string {
	out := make([]string, 0, len(p.flags))
	for f := range p.flags {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (p *Plan) runnable(skip, needed string) bool {
	if skip != "" && p.flags[skip] {
		return false
	}
	return needed == "" || p.flags[needed]
}

// Start positions the cursor on the first runnable step. It returns the
// objectives skipped on the way and false when nothing is runnable.
func (p *Plan) Start() ([]Objective, bool) {
	p.obj, p.step = 0, -1
	return p.seek()
}

// Current returns the objective and step under the cursor.
func (p *Plan) Current() (*Objective, *Step, bool) {
	if p.Exhausted() || p.step < 0 {
		return nil, nil, false
	}
	o := &p.Objectives[p.obj]
	return o, &o.Steps[p.step], true
}

// Exhausted reports whether every objective has been consumed.
func (p *Plan) Exhausted() bool { return p.obj < 0 || p.obj >= len(p.Objectives) }

// Index returns the cursor position.
func (p *Plan) Index() (objective, step int) { return p.obj, p.step }

// Next moves past the current step. completed is set when that step
// finished its objective; skipped lists objectives passed over because
// their gate or all of their steps were closed.
func (p *Plan) Next() (completed *Objective, skipped []Objective) {
	if p.Exhausted() {
		return nil, nil
	}
	o := &p.Objectives[p.obj]
	for p.step++; p.step < len(o.Steps); p.step++ {
		s := o.Steps[p.step]
		if p.runnable(s.SkipFlag, s.NeededFlag) {
			return nil, nil
		}
	}
	completed = o
	p.obj, p.step = p.obj+1, -1
	skipped, _ = p.seek()
	return completed, skipped
}

// SkipObjective abandons the current objective without completing it.
func (p *Plan) SkipObjective() []Objective {
	if p.Exhausted() {
		return nil
	}
	skipped := []Objective{p.Objectives[p.obj]}
	p.obj, p.step = p.obj+1, -1
	more, _ := p.seek()
	return append(skipped, more...)
}

// AbsorbChain returns the run of consecutive runnable GOTO_CHAIN steps
// starting at the cursor and leaves the cursor on the last of them.
func (p *Plan) AbsorbChain() []Step {
	o, s, ok := p.Current()
	if !ok || s.SubType != GotoChain {
		return nil
	}
	run := []Step{*s}
	for i := p.step + 1; i < len(o.Steps); i++ {
		next := o.Steps[i]
		if !p.runnable(next.SkipFlag, next.NeededFlag) {
			continue
		}
		if next.SubType != GotoChain {
			break
		}
		run = append(run, next)
		p.step = i
	}
	return run
}

// seek advances from (obj, step) to the first runnable step, entering
// following objectives as needed.
func (p *Plan) seek() ([]Objective, bool) {
	var skipped []Objective
	for ; p.obj < len(p.Objectives); p.obj, p.step = p.obj+1, -1 {
		o := p.Objectives[p.obj]
		if !p.runnable(o.SkipFlag, o.NeededFlag) {
			skipped = append(skipped, o)
			continue
		}
		for i := p.step + 1; i < len(o.Steps); i++ {
			if p.runnable(o.Steps[i].SkipFlag, o.Steps[i].NeededFlag) {
				p.step = i
				return skipped, true
			}
		}
		skipped = append(skipped, o)
	}
	return skipped, false
}
