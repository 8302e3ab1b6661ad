// File: internal/task/task.go
// Description: The closed set of movement tasks the simulations know how to compose.

package task

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnknownTask is returned when a prompt number or name matches no task.
	ErrUnknownTask = errors.New("unknown task")
	// ErrMissingArgument is returned when a composer is called without a required input.
	ErrMissingArgument = errors.New("missing required argument")
)

// Task is a movement task. The interface is sealed: every implementation lives in this
// package, so composing goals and bounds never meets a task it has no logic for.
type Task interface {
	// Name is the identifier used in file names, e.g. ConcentricUpwardReach105.
	Name() string
	// Number is the operator's prompt selection.
	Number() int
	// Description is the prompt label.
	Description() string
	// BoundRow is the row label in the task bound tables.
	BoundRow() string
	// Reach reports whether the task is a reaching movement.
	Reach() bool
	// MeshIntervals is the collocation mesh the task is solved on.
	MeshIntervals() int

	sealed()
}

// reachTask is a reach towards a point in front of and above the shoulder.
type reachTask struct {
	name        string
	number      int
	description string
	boundRow    string
	mesh        int
}

func (t reachTask) Name() string        { return t.name }
func (t reachTask) Number() int         { return t.number }
func (t reachTask) Description() string { return t.description }
func (t reachTask) BoundRow() string    { return t.boundRow }
func (t reachTask) Reach() bool         { return true }
func (t reachTask) MeshIntervals() int  { return t.mesh }
func (reachTask) sealed()               {}

// ConcentricUpwardReach105 is the concentric phase of the upward reach.
var ConcentricUpwardReach105 Task = reachTask{
	name:        "ConcentricUpwardReach105",
	number:      1,
	description: "Concentric Upward Reach 105",
	boundRow:    "UpwardReach105",
	mesh:        50,
}

var all = []Task{ConcentricUpwardReach105}

// All lists every task in prompt order.
func All() []Task {
	return append([]Task(nil), all...)
}

// ByNumber returns the task for an operator prompt selection.
func ByNumber(n int) (Task, error) {
	for _, t := range all {
		if t.Number() == n {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: selection %d", ErrUnknownTask, n)
}

// ByName returns the task with the given name.
func ByName(name string) (Task, error) {
	for _, t := range all {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
}

// Parse accepts either a prompt number or a task name.
func Parse(s string) (Task, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return ByNumber(n)
	}
	return ByName(s)
}
