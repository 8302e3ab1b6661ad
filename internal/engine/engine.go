// File: internal/engine/engine.go
// Description: Contract with the external dynamics and trajectory optimization engine.
// Everything numerically heavy happens behind this interface.

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNotConverged is returned when the solver finishes without a converged solution.
	ErrNotConverged = errors.New("solver did not converge")
	// ErrLandmarkNotFound is returned when a pose has no entry for a joint frame or marker.
	ErrLandmarkNotFound = errors.New("landmark not found")
)

// Engine is the set of operations delegated to the simulation engine.
type Engine interface {
	// InitSystem initialises the model's state and reports landmark positions in ground.
	InitSystem(ctx context.Context, modelPath string) (*Pose, error)
	// CreateGuess writes a structurally valid random guess for the study to outputPath.
	CreateGuess(ctx context.Context, studyPath, outputPath string) (string, error)
	// Solve runs the study and writes its solution to solutionPath. A run that ends
	// without convergence returns its result together with ErrNotConverged.
	Solve(ctx context.Context, studyPath, solutionPath string) (*SolveResult, error)
}

// Pose holds ground-frame positions read from an initialised model state.
type Pose struct {
	// Frames maps a joint name to the origins of its frames (0 = parent, 1 = child).
	Frames  map[string][]r3.Vec
	Markers map[string]r3.Vec
}

// JointFrameLocation returns the ground position of frame index of joint.
func (p *Pose) JointFrameLocation(joint string, frame int) (r3.Vec, error) {
	frames, ok := p.Frames[joint]
	if !ok || frame < 0 || frame >= len(frames) {
		return r3.Vec{}, fmt.Errorf("joint %q frame %d: %w", joint, frame, ErrLandmarkNotFound)
	}
	return frames[frame], nil
}

// MarkerLocation returns the ground position of the named marker.
func (p *Pose) MarkerLocation(name string) (r3.Vec, error) {
	v, ok := p.Markers[name]
	if !ok {
		return r3.Vec{}, fmt.Errorf("marker %q: %w", name, ErrLandmarkNotFound)
	}
	return v, nil
}

// SolveResult summarises a finished solve.
type SolveResult struct {
	SolutionPath string
	Success      bool
	Status       string
	Objective    float64
	Iterations   int
	Duration     time.Duration
}
