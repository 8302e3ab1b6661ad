// File: internal/guess/guess.go
// Description: Repairs a previous solution so it can seed a new solve. A random guess
// from the solver supplies a well-formed layout (and zeroed slacks); the source supplies
// the time, state, control and multiplier values.

package guess

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/strengthsim/internal/trajectory"
)

var (
	// ErrChannelMismatch is returned when the source has a channel the solver does not expect.
	ErrChannelMismatch = errors.New("guess channel mismatch")
	// ErrInvalidValues is returned when the repaired guess still holds NaN values.
	ErrInvalidValues = errors.New("guess contains invalid values")
)

// ForceSetPrefix is the path prefix of actuators that live in the model's force set.
const ForceSetPrefix = "/forceset"

// Solver is the solver whose guess is being repaired.
type Solver interface {
	// CreateGuess returns a random trajectory with exactly the layout the solver expects.
	CreateGuess(ctx context.Context) (*trajectory.Trajectory, error)
	// SetGuess installs the trajectory as the solver's initial guess.
	SetGuess(ctx context.Context, guess *trajectory.Trajectory) error
}

// FixGuess loads the trajectory at sourcePath, repairs it against a fresh random guess
// from solver and installs the result as the solver's guess.
func FixGuess(ctx context.Context, sourcePath string, solver Solver) (*trajectory.Trajectory, error) {
	if sourcePath == "" || solver == nil {
		return nil, errors.New("a guess file and a solver are required")
	}
	source, err := trajectory.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}
	random, err := solver.CreateGuess(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create random guess: %w", err)
	}
	repaired, err := Repair(source, random)
	if err != nil {
		return nil, fmt.Errorf("guess %s: %w", sourcePath, err)
	}
	if err := solver.SetGuess(ctx, repaired); err != nil {
		return nil, fmt.Errorf("failed to set guess: %w", err)
	}
	return repaired, nil
}

// Repair returns a copy of random carrying source's time, states, controls and
// multipliers. random itself is left untouched, so repairing the same inputs twice
// gives identical results.
func Repair(source, random *trajectory.Trajectory) (*trajectory.Trajectory, error) {
	out := random.Clone()
	if out.NumTimes() != source.NumTimes() {
		if err := out.ResampleWithNumTimes(source.NumTimes()); err != nil {
			return nil, fmt.Errorf("failed to resample random guess: %w", err)
		}
	}
	if err := out.SetTime(source.Time); err != nil {
		return nil, err
	}
	if err := out.SetStatesTrajectory(source.ExportStatesTable()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelMismatch, err)
	}

	// Reserve and torque actuators may have been problem components when the source was
	// solved; they are force set members now.
	for _, name := range source.ControlNames() {
		values, err := source.Channel(trajectory.Controls, name)
		if err != nil {
			return nil, err
		}
		if err := out.SetControl(ControlPath(name), values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrChannelMismatch, err)
		}
	}
	for _, name := range source.MultiplierNames() {
		values, err := source.Channel(trajectory.Multipliers, name)
		if err != nil {
			return nil, err
		}
		if err := out.SetMultiplier(name, values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrChannelMismatch, err)
		}
	}

	if out.HasNaN() {
		return nil, ErrInvalidValues
	}
	return out, nil
}

// ControlPath normalises a control name to its force set path.
func ControlPath(name string) string {
	if strings.HasPrefix(name, ForceSetPrefix+"/") {
		return name
	}
	return ForceSetPrefix + name
}
