// File: cmd/simulate_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/strengthsim/internal/engine"
	"github.com/xkilldash9x/strengthsim/internal/store"
	"github.com/xkilldash9x/strengthsim/internal/task"
)

func TestSelectTask(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    task.Task
		wantErr error
	}{
		{name: "first task", input: "1\n", want: task.ConcentricUpwardReach105},
		{name: "surrounding space", input: "  1 \n", want: task.ConcentricUpwardReach105},
		{name: "no trailing newline", input: "1", want: task.ConcentricUpwardReach105},
		{name: "unknown number", input: "7\n", wantErr: task.ErrUnknownTask},
		{name: "not a number", input: "reach\n", wantErr: task.ErrUnknownTask},
		{name: "empty input", input: "", wantErr: task.ErrMissingArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := selectTask(strings.NewReader(tt.input), &out)
			assert.Equal(t, "Select task to simulate:\n[1] Concentric Upward Reach 105\nEnter number selection: ", out.String())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunSimulate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		root, cfg := newProjectRoot(t)
		rec := &capturingRecorder{}
		provider := &fakeRecorderProvider{recorder: rec}
		var out bytes.Buffer

		err := runSimulate(ctx, cfg, zaptest.NewLogger(t), task.ConcentricUpwardReach105, fakeEngineFactory(&fakeEngine{}, nil), provider, &out)
		require.NoError(t, err)

		want := filepath.Join(root, "SimulationResults", "ConcentricUpwardReach105", "ConcentricUpwardReach105_101nodes_solution.sto")
		assert.Equal(t, want+"\n", out.String())
		assert.True(t, provider.closed)
		require.Len(t, rec.runs, 1)
		assert.Equal(t, store.StatusSucceeded, rec.runs[0].Status)
	})

	t.Run("not converged", func(t *testing.T) {
		_, cfg := newProjectRoot(t)
		eng := &fakeEngine{solveErr: fmt.Errorf("%w: Infeasible_Problem_Detected", engine.ErrNotConverged)}
		err := runSimulate(ctx, cfg, zaptest.NewLogger(t), task.ConcentricUpwardReach105, fakeEngineFactory(eng, nil), &fakeRecorderProvider{recorder: store.Nop{}}, &bytes.Buffer{})
		assert.ErrorIs(t, err, engine.ErrNotConverged)
		assert.Contains(t, err.Error(), "simulation ConcentricUpwardReach105 failed")
	})

	t.Run("engine unavailable", func(t *testing.T) {
		_, cfg := newProjectRoot(t)
		err := runSimulate(ctx, cfg, zaptest.NewLogger(t), task.ConcentricUpwardReach105, fakeEngineFactory(nil, errors.New("engine command cannot be empty")), &fakeRecorderProvider{}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize engine")
	})

	t.Run("ledger unavailable", func(t *testing.T) {
		_, cfg := newProjectRoot(t)
		provider := &fakeRecorderProvider{err: errors.New("connection refused")}
		err := runSimulate(ctx, cfg, zaptest.NewLogger(t), task.ConcentricUpwardReach105, fakeEngineFactory(&fakeEngine{}, nil), provider, &bytes.Buffer{})
		assert.NoError(t, err)
	})
}

func TestSimulateCmd(t *testing.T) {
	t.Run("unknown task flag", func(t *testing.T) {
		resetForTest(t)
		root := NewRootCommand()
		_, err := executeCommand(t, root, "simulate", "--task", "HairTouch")
		assert.ErrorIs(t, err, task.ErrUnknownTask)
	})

	t.Run("prompt", func(t *testing.T) {
		resetForTest(t)
		projectRoot, _ := newProjectRoot(t)
		rec := &capturingRecorder{}

		root := NewRootCommand()
		for _, c := range root.Commands() {
			if c.Name() == "simulate" {
				root.RemoveCommand(c)
			}
		}
		root.AddCommand(newSimulateCmd(fakeEngineFactory(&fakeEngine{}, nil), &fakeRecorderProvider{recorder: rec}))
		root.SetIn(strings.NewReader("1\n"))

		out, err := executeCommand(t, root, "--root", projectRoot, "simulate")
		require.NoError(t, err)
		assert.Contains(t, out, "Enter number selection: ")
		assert.Contains(t, out, "ConcentricUpwardReach105_101nodes_solution.sto")
		require.Len(t, rec.runs, 1)
	})
}
