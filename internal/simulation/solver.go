package simulation

import (
	"context"
	"errors"

	"github.com/xkilldash9x/strengthsim/internal/engine"
	"github.com/xkilldash9x/strengthsim/internal/guess"
	"github.com/xkilldash9x/strengthsim/internal/moco"
	"github.com/xkilldash9x/strengthsim/internal/trajectory"
)

// EngineSolver exposes a study saved at StudyPath as a guess.Solver. Random guesses are
// written to RandomPath and the installed guess to RepairedPath.
type EngineSolver struct {
	Engine       engine.Engine
	StudyPath    string
	RandomPath   string
	RepairedPath string
}

var _ guess.Solver = (*EngineSolver)(nil)

// CreateGuess asks the engine for a random guess and reads it back.
func (s *EngineSolver) CreateGuess(ctx context.Context) (*trajectory.Trajectory, error) {
	if s.Engine == nil {
		return nil, errors.New("engine solver has no engine")
	}
	path, err := s.Engine.CreateGuess(ctx, s.StudyPath, s.RandomPath)
	if err != nil {
		return nil, err
	}
	return trajectory.ReadFile(path)
}

// SetGuess writes g to RepairedPath and points the study's guess_file at it.
func (s *EngineSolver) SetGuess(_ context.Context, g *trajectory.Trajectory) error {
	if err := g.WriteFile(s.RepairedPath); err != nil {
		return err
	}
	return moco.SetGuessFile(s.StudyPath, s.RepairedPath)
}
