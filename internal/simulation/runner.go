// File: internal/simulation/runner.go
// Description: The baseline simulation pipeline. Prepares the task model, composes the
// optimal control problem, seeds it from a repaired guess when one is available, solves
// it through the engine and records the outcome.

package simulation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/strengthsim/internal/config"
	"github.com/xkilldash9x/strengthsim/internal/engine"
	"github.com/xkilldash9x/strengthsim/internal/guess"
	"github.com/xkilldash9x/strengthsim/internal/moco"
	"github.com/xkilldash9x/strengthsim/internal/osim"
	"github.com/xkilldash9x/strengthsim/internal/plotting"
	"github.com/xkilldash9x/strengthsim/internal/store"
	"github.com/xkilldash9x/strengthsim/internal/task"
	"github.com/xkilldash9x/strengthsim/internal/trajectory"
)

// Result describes the files a run produced.
type Result struct {
	Task         task.Task
	ResultsDir   string
	ModelPath    string
	StudyPath    string
	SolutionPath string
	// GuessPath is the repaired guess, empty when no starting guess was found.
	GuessPath string
	Targets   task.ReachTargets
	Solve     *engine.SolveResult
}

// Runner executes simulations one task at a time.
type Runner struct {
	cfg      config.Interface
	logger   *zap.Logger
	engine   engine.Engine
	recorder store.Recorder
	now      func() time.Time
}

// New creates a Runner. recorder may be store.Nop{} when no ledger is configured.
func New(cfg config.Interface, logger *zap.Logger, eng engine.Engine, recorder store.Recorder) (*Runner, error) {
	if cfg == nil || logger == nil || eng == nil || recorder == nil {
		return nil, errors.New("cannot initialize simulation runner with nil dependencies")
	}
	return &Runner{
		cfg:      cfg,
		logger:   logger.Named("simulation"),
		engine:   eng,
		recorder: recorder,
		now:      time.Now,
	}, nil
}

// Run simulates t. Solver non-convergence is terminal and returned as
// engine.ErrNotConverged; there is no retry.
func (r *Runner) Run(ctx context.Context, t task.Task) (*Result, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no task selected", task.ErrMissingArgument)
	}
	started := r.now()
	logger := r.logger.With(zap.String("task", t.Name()))
	logger.Info("Starting simulation", zap.Int("mesh_intervals", t.MeshIntervals()))

	res, err := r.run(ctx, t, logger)

	run := store.Run{
		Task:          t.Name(),
		MeshIntervals: t.MeshIntervals(),
		Status:        store.StatusSucceeded,
		StartedAt:     started,
		FinishedAt:    r.now(),
	}
	if res != nil {
		run.Model = res.ModelPath
		run.Solution = res.SolutionPath
		if res.Solve != nil {
			run.Objective = res.Solve.Objective
			run.Iterations = res.Solve.Iterations
		}
	}
	if err != nil {
		run.Status = store.StatusFailed
		run.Error = err.Error()
	}
	if recErr := r.recorder.RecordRun(ctx, run); recErr != nil {
		logger.Warn("Failed to record run", zap.Error(recErr))
	}

	if err != nil {
		logger.Error("Simulation failed", zap.Error(err))
		return res, err
	}
	logger.Info("Simulation finished", zap.String("solution", res.SolutionPath), zap.Duration("elapsed", run.FinishedAt.Sub(started)))
	return res, nil
}

func (r *Runner) run(ctx context.Context, t task.Task, logger *zap.Logger) (*Result, error) {
	paths := r.cfg.Paths()
	resultsRoot, err := paths.Resolve(paths.ResultsDir)
	if err != nil {
		return nil, err
	}
	res := &Result{Task: t, ResultsDir: filepath.Join(resultsRoot, t.Name())}
	if err := os.MkdirAll(res.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	// -- Model --
	modelDir, err := paths.Resolve(paths.ModelDir)
	if err != nil {
		return nil, err
	}
	model, err := osim.Load(filepath.Join(modelDir, paths.BaselineModel))
	if err != nil {
		return nil, err
	}
	if err := r.prepareModel(model, t); err != nil {
		return nil, fmt.Errorf("failed to prepare model: %w", err)
	}
	res.ModelPath = filepath.Join(res.ResultsDir, ModelFileName(t))
	if err := model.Save(res.ModelPath); err != nil {
		return nil, err
	}

	// -- Problem --
	pose, err := r.engine.InitSystem(ctx, res.ModelPath)
	if err != nil {
		return res, err
	}
	problem, err := r.composeProblem(t, model, pose, res)
	if err != nil {
		return res, err
	}

	settings := r.solverSettings(t)
	nodes := settings.NumNodes()
	study := &moco.Study{Name: t.Name(), Problem: problem, Solver: settings}
	res.StudyPath = filepath.Join(res.ResultsDir, StudyFileName(t, nodes))
	res.SolutionPath = filepath.Join(res.ResultsDir, SolutionFileName(t, nodes))

	// -- Guess --
	guessDir, err := paths.Resolve(paths.GuessDir)
	if err != nil {
		return res, err
	}
	startingGuess := filepath.Join(guessDir, StartingGuessFileName(t))
	_, statErr := os.Stat(startingGuess)
	switch {
	case statErr == nil:
		if err := study.Save(res.StudyPath); err != nil {
			return res, err
		}
		handle := &EngineSolver{
			Engine:       r.engine,
			StudyPath:    res.StudyPath,
			RandomPath:   filepath.Join(res.ResultsDir, RandomGuessFileName(t)),
			RepairedPath: filepath.Join(res.ResultsDir, RepairedGuessFileName(t)),
		}
		if _, err := guess.FixGuess(ctx, startingGuess, handle); err != nil {
			return res, err
		}
		study.Solver.GuessFile = handle.RepairedPath
		res.GuessPath = handle.RepairedPath
		logger.Info("Seeding solve from repaired guess", zap.String("source", startingGuess), zap.String("guess", res.GuessPath))
	case errors.Is(statErr, fs.ErrNotExist):
		logger.Info("No starting guess found; the engine builds its own", zap.String("looked_for", startingGuess))
	default:
		return res, fmt.Errorf("checking starting guess %s: %w", startingGuess, statErr)
	}

	// -- Solve --
	if err := study.Save(res.StudyPath); err != nil {
		return res, err
	}
	solve, err := r.engine.Solve(ctx, res.StudyPath, res.SolutionPath)
	res.Solve = solve
	if err != nil {
		return res, err
	}

	if err := r.plotSolution(res.SolutionPath, filepath.Join(res.ResultsDir, PlotFileName(t, nodes)), t); err != nil {
		logger.Warn("Could not plot solution", zap.Error(err))
	}
	return res, nil
}

// prepareModel locks the thorax, loads the hand for reaching tasks and adds the reserve
// actuators.
func (r *Runner) prepareModel(model *osim.Model, t task.Task) error {
	mc := r.cfg.Model()
	for _, coord := range mc.LockedCoordinates {
		if err := model.LockCoordinate(coord); err != nil {
			return err
		}
	}
	if t.Reach() && mc.ReachAddedMass != 0 {
		if err := model.AddBodyMass(mc.HandBody, mc.ReachAddedMass); err != nil {
			return err
		}
	}
	for _, a := range mc.Actuators {
		act := osim.CoordinateActuator{
			Coordinate:   a.Coordinate,
			OptimalForce: a.OptimalForce,
			MaxControl:   a.MaxControl,
			MinControl:   a.MinControl,
			Suffix:       a.Suffix,
		}
		if err := model.AddCoordinateActuator(act); err != nil {
			return err
		}
	}
	// End-point goals address these markers by path.
	markers := model.Markers()
	for _, name := range []string{task.RadialMarker, task.UlnarMarker, task.HandMarker} {
		if !slices.Contains(markers, name) {
			return &osim.ComponentError{Kind: "marker", Name: name, Err: osim.ErrComponentNotFound}
		}
	}
	model.SetName(t.Name())
	return model.FinalizeConnections()
}

func (r *Runner) composeProblem(t task.Task, model *osim.Model, pose *engine.Pose, res *Result) (*moco.Problem, error) {
	sc := r.cfg.Study()
	problem := moco.NewProblem(res.ModelPath)
	problem.SetTimeBounds(moco.Fixed(sc.InitialTime), moco.NewBounds(sc.FinalTimeMin, sc.FinalTimeMax))

	targets, err := task.AddMarkerEndPoints(t, problem, pose)
	if err != nil {
		return nil, err
	}
	res.Targets = targets

	elv, rot, ang, err := r.loadBoundTables()
	if err != nil {
		return nil, err
	}
	if err := task.AddTaskBounds(t, problem, model, elv, rot, ang); err != nil {
		return nil, err
	}

	if err := problem.AddGoal(moco.ControlGoal{GoalName: "effort", GoalScale: sc.EffortWeight}); err != nil {
		return nil, err
	}
	if err := problem.AddGoal(moco.FinalTimeGoal{GoalName: "final_time", GoalScale: sc.FinalTimeWeight}); err != nil {
		return nil, err
	}
	return problem, nil
}

func (r *Runner) loadBoundTables() (elv, rot, ang *task.BoundTable, err error) {
	paths := r.cfg.Paths()
	dir, err := paths.Resolve(paths.SupportingDir)
	if err != nil {
		return nil, nil, nil, err
	}
	bc := r.cfg.Bounds()
	if elv, err = task.LoadBoundTable(filepath.Join(dir, bc.ElevationFile)); err != nil {
		return nil, nil, nil, err
	}
	if rot, err = task.LoadBoundTable(filepath.Join(dir, bc.RotationFile)); err != nil {
		return nil, nil, nil, err
	}
	if ang, err = task.LoadBoundTable(filepath.Join(dir, bc.AngleFile)); err != nil {
		return nil, nil, nil, err
	}
	return elv, rot, ang, nil
}

func (r *Runner) solverSettings(t task.Task) moco.SolverSettings {
	sc := r.cfg.Solver()
	return moco.SolverSettings{
		NumMeshIntervals:      t.MeshIntervals(),
		ConvergenceTolerance:  sc.ConvergenceTolerance,
		ConstraintTolerance:   sc.ConstraintTolerance,
		MaxIterations:         sc.MaxIterations,
		MultibodyDynamicsMode: sc.MultibodyDynamicsMode,
		Transcription:         sc.Transcription,
		OptimSolver:           sc.OptimSolver,
	}
}

func (r *Runner) plotSolution(solutionPath, out string, t task.Task) error {
	traj, err := trajectory.ReadFile(solutionPath)
	if err != nil {
		return err
	}
	return plotting.CoordinatePlot(traj, t.Description(), out)
}
