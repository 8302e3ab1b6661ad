// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xkilldash9x/strengthsim/internal/config"
	"github.com/xkilldash9x/strengthsim/internal/engine"
	"github.com/xkilldash9x/strengthsim/internal/observability"
	"github.com/xkilldash9x/strengthsim/internal/store"
	"github.com/xkilldash9x/strengthsim/internal/task"
	"github.com/xkilldash9x/strengthsim/internal/trajectory"
)

const elbowValue = "/jointset/elbow/elbow_flexion/value"

// resetForTest clears package state and installs a quiet logger without a log file, so
// the PersistentPreRunE initialisation becomes a no-op.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(func() { cfgFile = "" })
}

// executeCommand runs a fresh root command with args and returns its combined output.
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	raw, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, raw, 0o644))
}

// newProjectRoot lays out a project directory with the fixture model and bound tables
// and returns a default config pointing at it.
func newProjectRoot(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()
	copyFile(t, "../internal/osim/testdata/shoulder.osim", filepath.Join(root, "ModelFiles", "BaselineModel.osim"))
	for _, name := range []string{"TaskBounds_Elv.csv", "TaskBounds_Rot.csv", "TaskBounds_Ang.csv"} {
		copyFile(t, filepath.Join("../internal/task/testdata", name), filepath.Join(root, "SupportingData", name))
	}
	cfg := config.NewDefaultConfig()
	cfg.SetPathsRoot(root)
	return root, cfg
}

// -- Fakes --

type fakeEngine struct {
	solveErr error
}

func (f *fakeEngine) InitSystem(context.Context, string) (*engine.Pose, error) {
	return &engine.Pose{
		Frames: map[string][]r3.Vec{
			task.ShoulderJoint: {{}, {X: -0.01, Y: 1.2, Z: 0.17}},
			task.ElbowJoint:    {{}, {X: 0.02, Y: 0.9, Z: 0.2}},
			task.WristJoint:    {{X: 0.29, Y: 0.9, Z: 0.2}, {}},
		},
		Markers: map[string]r3.Vec{
			task.RadialMarker: {X: 0.29, Y: 0.9, Z: 0.18},
			task.UlnarMarker:  {X: 0.29, Y: 0.9, Z: 0.22},
			task.HandMarker:   {X: 0.29, Y: 0.95, Z: 0.2},
		},
	}, nil
}

func (f *fakeEngine) CreateGuess(_ context.Context, _, outputPath string) (string, error) {
	rnd := trajectory.New([]float64{0, 1})
	if err := rnd.AddChannel(trajectory.States, elbowValue, []float64{0.5, 0.5}); err != nil {
		return "", err
	}
	if err := rnd.AddChannel(trajectory.Controls, "/forceset/DELT1", []float64{0.1, 0.1}); err != nil {
		return "", err
	}
	return outputPath, rnd.WriteFile(outputPath)
}

func (f *fakeEngine) Solve(_ context.Context, _, solutionPath string) (*engine.SolveResult, error) {
	if f.solveErr != nil {
		return &engine.SolveResult{SolutionPath: solutionPath, Status: "Infeasible_Problem_Detected"}, f.solveErr
	}
	sol := trajectory.New([]float64{0, 0.5})
	if err := sol.AddChannel(trajectory.States, elbowValue, []float64{0.1, 1.2}); err != nil {
		return nil, err
	}
	if err := sol.WriteFile(solutionPath); err != nil {
		return nil, err
	}
	return &engine.SolveResult{SolutionPath: solutionPath, Success: true, Status: "Solve_Succeeded"}, nil
}

func fakeEngineFactory(eng engine.Engine, err error) engineFactory {
	return func(config.EngineConfig, *zap.Logger) (engine.Engine, error) {
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
}

type fakeRecorderProvider struct {
	recorder store.Recorder
	err      error
	closed   bool
}

func (p *fakeRecorderProvider) Create(context.Context, config.Interface) (store.Recorder, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.recorder, func() { p.closed = true }, nil
}

type capturingRecorder struct {
	runs []store.Run
}

func (r *capturingRecorder) RecordRun(_ context.Context, run store.Run) error {
	r.runs = append(r.runs, run)
	return nil
}
