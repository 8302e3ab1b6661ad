package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpcloud/tail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xkilldash9x/strengthsim/internal/config"
)

// -- Helper process --

// fakeBridge points execCommandContext at this test binary, which then plays the part of
// the engine bridge in TestHelperProcess.
func fakeBridge(t *testing.T, mode string) {
	t.Helper()
	testExecutable := os.Args[0]
	execCommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, testExecutable, cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { execCommandContext = exec.CommandContext })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	// args[0] is the configured command, then any configured args, then the operation.
	valueFlags := map[string]bool{"--model": true, "--study": true, "--output": true, "--log": true}
	flags := map[string]string{}
	op := ""
	for i := 1; i < len(args); i++ {
		switch {
		case valueFlags[args[i]] && i+1 < len(args):
			flags[args[i]] = args[i+1]
			i++
		case op == "" && !strings.HasPrefix(args[i], "-"):
			op = args[i]
		}
	}

	mode := os.Getenv("HELPER_MODE")
	switch mode {
	case "fail":
		fmt.Fprintln(os.Stderr, "loading model")
		fmt.Fprintln(os.Stderr, "Exception: socket 'parent_frame' not connected")
		os.Exit(3)
	case "badjson":
		fmt.Println("Warning: not json")
		os.Exit(0)
	case "hang":
		time.Sleep(10 * time.Second)
		os.Exit(0)
	}

	switch op {
	case "init-system":
		if flags["--model"] == "" {
			os.Exit(2)
		}
		fmt.Println(`{"frames":{"shoulder0":[[0,0.3,0.1],[0.01,0.35,0.12]],"elbow":[[0,0,0],[0.02,0.05,0.15]]},"markers":{"RS":[0.3,0.1,0.2]}}`)
	case "create-guess":
		out := flags["--output"]
		_ = os.WriteFile(out, []byte("guess\nendheader\ntime\n0\n"), 0o644)
		fmt.Printf(`{"path":%q}`+"\n", out)
	case "solve":
		f, _ := os.OpenFile(flags["--log"], os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		fmt.Fprintln(f, "iter    objective    inf_pr")
		fmt.Fprintln(f, "   1  1.0e+01  2.0e-01")
		fmt.Fprintln(f, "EXIT: Optimal Solution Found.")
		f.Close()
		_ = os.WriteFile(flags["--output"], []byte("solution\nendheader\ntime\n0\n"), 0o644)
		if mode == "noconverge" {
			fmt.Println(`{"success":false,"status":"Maximum_Iterations_Exceeded","objective":12.5,"iterations":3000}`)
		} else {
			fmt.Println(`{"success":true,"status":"Solve_Succeeded","objective":3.25,"iterations":187}`)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown operation %q\n", op)
		os.Exit(2)
	}
	os.Exit(0)
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	b, err := NewBridge(config.EngineConfig{Command: "osim-moco-bridge", Args: []string{"--quiet"}, ProgressInterval: time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return b
}

// -- Tests --

func TestNewBridge(t *testing.T) {
	_, err := NewBridge(config.EngineConfig{}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewBridge(config.EngineConfig{Command: "x"}, nil)
	assert.Error(t, err)
}

func TestBridgeInitSystem(t *testing.T) {
	defer goleak.VerifyNone(t)
	fakeBridge(t, "")
	b := newTestBridge(t)

	pose, err := b.InitSystem(context.Background(), "model.osim")
	require.NoError(t, err)

	shoulder, err := pose.JointFrameLocation("shoulder0", 1)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 0.01, Y: 0.35, Z: 0.12}, shoulder)

	rs, err := pose.MarkerLocation("RS")
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 0.3, Y: 0.1, Z: 0.2}, rs)

	_, err = pose.JointFrameLocation("elbow", 2)
	assert.ErrorIs(t, err, ErrLandmarkNotFound)
	_, err = pose.MarkerLocation("US")
	assert.ErrorIs(t, err, ErrLandmarkNotFound)
}

func TestBridgeCreateGuess(t *testing.T) {
	defer goleak.VerifyNone(t)
	fakeBridge(t, "")
	b := newTestBridge(t)

	out := filepath.Join(t.TempDir(), "random.sto")
	path, err := b.CreateGuess(context.Background(), "study.omoco", out)
	require.NoError(t, err)
	assert.Equal(t, out, path)
	assert.FileExists(t, out)
}

func TestBridgeSolve(t *testing.T) {
	t.Run("converged", func(t *testing.T) {
		fakeBridge(t, "")
		b := newTestBridge(t)
		solution := filepath.Join(t.TempDir(), "task_101nodes_solution.sto")

		res, err := b.Solve(context.Background(), "study.omoco", solution)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "Solve_Succeeded", res.Status)
		assert.Equal(t, 3.25, res.Objective)
		assert.Equal(t, 187, res.Iterations)
		assert.Equal(t, solution, res.SolutionPath)
		assert.FileExists(t, solution)
		assert.FileExists(t, strings.TrimSuffix(solution, ".sto")+".log")
	})

	t.Run("not converged", func(t *testing.T) {
		fakeBridge(t, "noconverge")
		b := newTestBridge(t)

		res, err := b.Solve(context.Background(), "study.omoco", filepath.Join(t.TempDir(), "s.sto"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotConverged)
		assert.Contains(t, err.Error(), "Maximum_Iterations_Exceeded")
		require.NotNil(t, res)
		assert.Equal(t, 3000, res.Iterations)
	})

	t.Run("progress log cannot be followed", func(t *testing.T) {
		fakeBridge(t, "")
		tailFile = func(string, tail.Config) (*tail.Tail, error) {
			return nil, errors.New("inotify watch limit reached")
		}
		t.Cleanup(func() { tailFile = tail.TailFile })

		core, logs := observer.New(zapcore.WarnLevel)
		b, err := NewBridge(config.EngineConfig{Command: "osim-moco-bridge"}, zap.New(core))
		require.NoError(t, err)

		res, err := b.Solve(context.Background(), "study.omoco", filepath.Join(t.TempDir(), "s.sto"))
		require.NoError(t, err)
		assert.True(t, res.Success)
		warned := logs.FilterMessage("Solver progress unavailable").All()
		require.Len(t, warned, 1)
		assert.Equal(t, "inotify watch limit reached", warned[0].ContextMap()["error"])
	})
}

func TestBridgeFailures(t *testing.T) {
	t.Run("non-zero exit carries stderr", func(t *testing.T) {
		fakeBridge(t, "fail")
		_, err := newTestBridge(t).InitSystem(context.Background(), "model.osim")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine init-system failed")
		assert.Contains(t, err.Error(), "socket 'parent_frame' not connected")
	})

	t.Run("undecodable reply", func(t *testing.T) {
		fakeBridge(t, "badjson")
		_, err := newTestBridge(t).InitSystem(context.Background(), "model.osim")
		assert.ErrorContains(t, err, "failed to decode engine pose")
	})

	t.Run("cancelled", func(t *testing.T) {
		fakeBridge(t, "hang")
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, err := newTestBridge(t).CreateGuess(ctx, "study.omoco", "g.sto")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("missing executable", func(t *testing.T) {
		b, err := NewBridge(config.EngineConfig{Command: filepath.Join(t.TempDir(), "no-such-bridge")}, zap.NewNop())
		require.NoError(t, err)
		_, err = b.InitSystem(context.Background(), "model.osim")
		assert.ErrorContains(t, err, "failed to start engine")
	})
}

func TestFollowProgress(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b := &Bridge{logger: zap.New(core), progressInterval: time.Hour}

	path := filepath.Join(t.TempDir(), "solve.log")
	done := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- b.followProgress(context.Background(), path, done) }()

	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(f, "  %d  1.0e+01\n", i)
	}
	fmt.Fprintln(f, "EXIT: Optimal Solution Found.")
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		return logs.FilterField(zap.String("line", "EXIT: Optimal Solution Found.")).Len() == 1
	}, 5*time.Second, 20*time.Millisecond)

	close(done)
	require.NoError(t, <-errCh)
	// One throttled progress line plus the exit line.
	assert.Equal(t, 2, logs.FilterMessage("Solver progress").Len())
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c\nd", lastLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a", lastLines("a", 5))
}
