// File: internal/engine/bridge.go
// Description: Engine implementation that drives the engine's command-line bridge as a
// subprocess and decodes its JSON replies.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xkilldash9x/strengthsim/internal/config"
)

// execCommandContext is swapped out in tests.
var execCommandContext = exec.CommandContext

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stderrTailLines is how much of the bridge's stderr is kept in error messages.
const stderrTailLines = 20

// Bridge runs engine operations through an external command.
type Bridge struct {
	logger           *zap.Logger
	command          string
	args             []string
	progressInterval time.Duration
}

var _ Engine = (*Bridge)(nil)

// NewBridge creates a Bridge from the engine configuration.
func NewBridge(cfg config.EngineConfig, logger *zap.Logger) (*Bridge, error) {
	if cfg.Command == "" {
		return nil, errors.New("engine command cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Bridge{
		logger:           logger.Named("engine"),
		command:          cfg.Command,
		args:             cfg.Args,
		progressInterval: cfg.ProgressInterval,
	}, nil
}

type poseReply struct {
	Frames  map[string][][3]float64 `json:"frames"`
	Markers map[string][3]float64   `json:"markers"`
}

// InitSystem asks the engine for the landmark positions of the model at modelPath.
func (b *Bridge) InitSystem(ctx context.Context, modelPath string) (*Pose, error) {
	out, err := b.run(ctx, "", "init-system", "--model", modelPath)
	if err != nil {
		return nil, err
	}
	var reply poseReply
	if err := json.Unmarshal(out, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode engine pose: %w", err)
	}

	pose := &Pose{Frames: make(map[string][]r3.Vec, len(reply.Frames)), Markers: make(map[string]r3.Vec, len(reply.Markers))}
	for joint, frames := range reply.Frames {
		for _, f := range frames {
			pose.Frames[joint] = append(pose.Frames[joint], r3.Vec{X: f[0], Y: f[1], Z: f[2]})
		}
	}
	for name, m := range reply.Markers {
		pose.Markers[name] = r3.Vec{X: m[0], Y: m[1], Z: m[2]}
	}
	b.logger.Debug("Model state initialised", zap.String("model", modelPath), zap.Int("joints", len(pose.Frames)), zap.Int("markers", len(pose.Markers)))
	return pose, nil
}

type guessReply struct {
	Path string `json:"path"`
}

// CreateGuess has the engine write a random guess for the study.
func (b *Bridge) CreateGuess(ctx context.Context, studyPath, outputPath string) (string, error) {
	out, err := b.run(ctx, "", "create-guess", "--study", studyPath, "--output", outputPath)
	if err != nil {
		return "", err
	}
	var reply guessReply
	if err := json.Unmarshal(out, &reply); err != nil {
		return "", fmt.Errorf("failed to decode engine guess reply: %w", err)
	}
	if reply.Path == "" {
		reply.Path = outputPath
	}
	return reply.Path, nil
}

type solveReply struct {
	Success    bool    `json:"success"`
	Status     string  `json:"status"`
	Objective  float64 `json:"objective"`
	Iterations int     `json:"iterations"`
}

// Solve runs the study to completion, following the solver's progress log meanwhile.
// There is no timeout; cancelling ctx kills the engine.
func (b *Bridge) Solve(ctx context.Context, studyPath, solutionPath string) (*SolveResult, error) {
	logPath := strings.TrimSuffix(solutionPath, ".sto") + ".log"
	if err := os.Remove(logPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to clear solver log: %w", err)
	}

	b.logger.Info("Solving study", zap.String("study", studyPath), zap.String("log", logPath))
	start := time.Now()
	out, err := b.run(ctx, logPath, "solve", "--study", studyPath, "--output", solutionPath, "--log", logPath)
	if err != nil {
		return nil, err
	}

	var reply solveReply
	if err := json.Unmarshal(out, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode engine solve reply: %w", err)
	}
	result := &SolveResult{
		SolutionPath: solutionPath,
		Success:      reply.Success,
		Status:       reply.Status,
		Objective:    reply.Objective,
		Iterations:   reply.Iterations,
		Duration:     time.Since(start),
	}
	b.logger.Info("Solve finished",
		zap.Bool("success", result.Success),
		zap.String("status", result.Status),
		zap.Float64("objective", result.Objective),
		zap.Int("iterations", result.Iterations),
		zap.Duration("duration", result.Duration))

	if !result.Success {
		return result, fmt.Errorf("%w: %s", ErrNotConverged, result.Status)
	}
	return result, nil
}

// run executes one bridge operation and returns its stdout. When progressLog is set the
// file is followed until the process exits.
func (b *Bridge) run(ctx context.Context, progressLog string, args ...string) ([]byte, error) {
	argv := append(append([]string{}, b.args...), args...)
	cmd := execCommandContext(ctx, b.command, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %q: %w", b.command, err)
	}

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		return cmd.Wait()
	})
	if progressLog != "" {
		// Progress is informational; losing it never fails the operation.
		g.Go(func() error {
			if err := b.followProgress(ctx, progressLog, done); err != nil {
				b.logger.Warn("Solver progress unavailable", zap.String("log", progressLog), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("engine %s interrupted: %w", args[0], ctx.Err())
		}
		return nil, fmt.Errorf("engine %s failed: %w: %s", args[0], err, lastLines(stderr.String(), stderrTailLines))
	}
	return stdout.Bytes(), nil
}

// lastLines returns the last n lines of s.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
