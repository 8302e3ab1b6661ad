package moco

import (
	"errors"
	"fmt"
)

// ErrDuplicateGoal is returned by AddGoal when a goal with the same name exists.
var ErrDuplicateGoal = errors.New("duplicate goal")

// StateInfo bounds one state variable, or every state matching a pattern.
type StateInfo struct {
	Name    string
	Bounds  Bounds
	Initial Bounds
	Final   Bounds
}

// Problem is a single-phase optimal control problem over a model file.
type Problem struct {
	ModelFile   string
	TimeInitial Bounds
	TimeFinal   Bounds

	stateInfos []StateInfo
	patterns   []StateInfo
	goals      []Goal
}

// NewProblem returns a problem over modelFile with time bounds initial=0, final in [0.1, 1].
func NewProblem(modelFile string) *Problem {
	return &Problem{
		ModelFile:   modelFile,
		TimeInitial: Fixed(0),
		TimeFinal:   NewBounds(0.1, 1.0),
	}
}

// SetTimeBounds replaces the initial and final time bounds.
func (p *Problem) SetTimeBounds(initial, final Bounds) {
	p.TimeInitial = initial
	p.TimeFinal = final
}

// SetStateInfo sets the bounds for the state at path, replacing earlier settings.
func (p *Problem) SetStateInfo(path string, bounds, initial, final Bounds) {
	p.stateInfos = upsert(p.stateInfos, StateInfo{Name: path, Bounds: bounds, Initial: initial, Final: final})
}

// SetStateInfoPattern sets bounds for every state whose path matches the regex pattern.
// Explicit SetStateInfo entries take precedence in the engine.
func (p *Problem) SetStateInfoPattern(pattern string, bounds, initial, final Bounds) {
	p.patterns = upsert(p.patterns, StateInfo{Name: pattern, Bounds: bounds, Initial: initial, Final: final})
}

// StateInfo returns the explicit entry for path.
func (p *Problem) StateInfo(path string) (StateInfo, bool) {
	return find(p.stateInfos, path)
}

// StateInfoPattern returns the entry for pattern.
func (p *Problem) StateInfoPattern(pattern string) (StateInfo, bool) {
	return find(p.patterns, pattern)
}

// StateInfos returns the explicit entries in insertion order.
func (p *Problem) StateInfos() []StateInfo {
	return append([]StateInfo(nil), p.stateInfos...)
}

// StateInfoPatterns returns the pattern entries in insertion order.
func (p *Problem) StateInfoPatterns() []StateInfo {
	return append([]StateInfo(nil), p.patterns...)
}

// AddGoal appends a goal. Goal names must be unique within the problem.
func (p *Problem) AddGoal(g Goal) error {
	if g.Name() == "" {
		return errors.New("goal name must not be empty")
	}
	if g.Weight() < 0 {
		return fmt.Errorf("goal %q: weight must not be negative", g.Name())
	}
	if _, ok := p.Goal(g.Name()); ok {
		return fmt.Errorf("goal %q: %w", g.Name(), ErrDuplicateGoal)
	}
	p.goals = append(p.goals, g)
	return nil
}

// Goal looks up a goal by name.
func (p *Problem) Goal(name string) (Goal, bool) {
	for _, g := range p.goals {
		if g.Name() == name {
			return g, true
		}
	}
	return nil, false
}

// Goals returns the goals in insertion order.
func (p *Problem) Goals() []Goal {
	return append([]Goal(nil), p.goals...)
}

// Validate checks every interval in the problem.
func (p *Problem) Validate() error {
	if p.ModelFile == "" {
		return errors.New("problem has no model file")
	}
	if err := p.TimeInitial.Validate(); err != nil {
		return fmt.Errorf("initial time: %w", err)
	}
	if err := p.TimeFinal.Validate(); err != nil {
		return fmt.Errorf("final time: %w", err)
	}
	for _, list := range [][]StateInfo{p.stateInfos, p.patterns} {
		for _, info := range list {
			for _, b := range []Bounds{info.Bounds, info.Initial, info.Final} {
				if err := b.Validate(); err != nil {
					return fmt.Errorf("state %s: %w", info.Name, err)
				}
			}
		}
	}
	return nil
}

func upsert(list []StateInfo, info StateInfo) []StateInfo {
	for i := range list {
		if list[i].Name == info.Name {
			list[i] = info
			return list
		}
	}
	return append(list, info)
}

func find(list []StateInfo, name string) (StateInfo, bool) {
	for _, info := range list {
		if info.Name == name {
			return info, true
		}
	}
	return StateInfo{}, false
}
