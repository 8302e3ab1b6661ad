// File: cmd/simulate.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/strengthsim/internal/config"
	"github.com/xkilldash9x/strengthsim/internal/engine"
	"github.com/xkilldash9x/strengthsim/internal/observability"
	"github.com/xkilldash9x/strengthsim/internal/simulation"
	"github.com/xkilldash9x/strengthsim/internal/store"
	"github.com/xkilldash9x/strengthsim/internal/task"
)

// engineFactory creates the simulation engine. Tests swap in a fake.
type engineFactory func(cfg config.EngineConfig, logger *zap.Logger) (engine.Engine, error)

func defaultEngineFactory(cfg config.EngineConfig, logger *zap.Logger) (engine.Engine, error) {
	b, err := engine.NewBridge(cfg, logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// recorderProvider creates the run ledger used by a simulation.
type recorderProvider interface {
	Create(ctx context.Context, cfg config.Interface) (store.Recorder, func(), error)
}

type defaultRecorderProvider struct{}

// NewRecorderProvider returns the provider that records into PostgreSQL when
// database.url is set and discards runs otherwise.
func NewRecorderProvider() recorderProvider {
	return &defaultRecorderProvider{}
}

func (p *defaultRecorderProvider) Create(ctx context.Context, cfg config.Interface) (store.Recorder, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		logger.Debug("No database configured; runs will not be recorded.")
		return store.Nop{}, nil, nil
	}
	s, cleanup, err := store.Connect(ctx, cfg.Database().URL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

// newSimulateCmd creates the `simulate` command.
func newSimulateCmd(newEngine engineFactory, recorders recorderProvider) *cobra.Command {
	var taskArg, engineCmd string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Solve the optimal control problem for a movement task",
		Long: `Prepares the task model, composes its goals and bounds, repairs a starting guess when
GuessFiles holds one, and solves the problem through the engine. Without --task the
task is chosen from a numbered prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if engineCmd != "" {
				cfg.SetEngineCommand(engineCmd)
			}

			var t task.Task
			if taskArg != "" {
				t, err = task.Parse(taskArg)
			} else {
				t, err = selectTask(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}
			return runSimulate(ctx, cfg, observability.GetLogger(), t, newEngine, recorders, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&taskArg, "task", "t", "", "task number or name; skips the prompt")
	cmd.Flags().StringVar(&engineCmd, "engine", "", "engine bridge executable, overriding engine.command")
	return cmd
}

// selectTask prompts for a task number. Anything other than a listed number is an error;
// there is no re-prompt.
func selectTask(in io.Reader, out io.Writer) (task.Task, error) {
	fmt.Fprintln(out, "Select task to simulate:")
	for _, t := range task.All() {
		fmt.Fprintf(out, "[%d] %s\n", t.Number(), t.Description())
	}
	fmt.Fprint(out, "Enter number selection: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("%w: no selection entered", task.ErrMissingArgument)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("%w: selection %q is not a number", task.ErrUnknownTask, strings.TrimSpace(line))
	}
	return task.ByNumber(n)
}

// runSimulate contains the testable logic of the simulate command.
func runSimulate(
	ctx context.Context,
	cfg config.Interface,
	logger *zap.Logger,
	t task.Task,
	newEngine engineFactory,
	recorders recorderProvider,
	out io.Writer,
) error {
	eng, err := newEngine(cfg.Engine(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	recorder, cleanup, err := recorders.Create(ctx, cfg)
	if err != nil {
		// A missing ledger does not stop the simulation.
		logger.Warn("Run ledger unavailable; continuing without it.", zap.Error(err))
		recorder, cleanup = store.Nop{}, nil
	}
	if cleanup != nil {
		defer cleanup()
	}

	runner, err := simulation.New(cfg, logger, eng, recorder)
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("simulation %s failed: %w", t.Name(), err)
	}
	fmt.Fprintln(out, res.SolutionPath)
	return nil
}
